package domain

// ─── Payment Types ──────────────────────────────────────────────────────────
// The payment lifecycle is owned entirely by the processor. This system only
// observes it, via synchronous lookup or asynchronous webhook.

// PaymentStatus mirrors the processor's payment-intent lifecycle.
type PaymentStatus string

const (
	PaymentRequiresAction PaymentStatus = "requires_action"
	PaymentProcessing     PaymentStatus = "processing"
	PaymentSucceeded      PaymentStatus = "succeeded"
	PaymentFailed         PaymentStatus = "failed"
	PaymentCanceled       PaymentStatus = "canceled"
)

// PaymentRecord is the processor's view of a payment, read-only here.
// CapturedAmount is minor units (cents).
type PaymentRecord struct {
	IntentID       string        `json:"intent_id"`
	Status         PaymentStatus `json:"status"`
	CapturedAmount int64         `json:"captured_amount"`
	MethodType     string        `json:"method_type,omitempty"`
}
