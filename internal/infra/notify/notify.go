// Package notify posts order confirmations to the mail relay.
// Strictly fire-and-forget: the order pipeline never waits on or fails over
// a notification.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/darkvsx/boostd/internal/domain"
)

// Mailer posts confirmation payloads to a configured relay endpoint.
type Mailer struct {
	endpoint string
	client   *http.Client
}

// New creates a mailer for the given relay endpoint. An empty endpoint
// yields a disabled mailer whose sends succeed silently.
func New(endpoint string, timeout time.Duration) *Mailer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Mailer{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// OrderConfirmation sends the confirmation email payload.
// Implements domain.Notifier.
func (m *Mailer) OrderConfirmation(ctx context.Context, o *domain.Order) error {
	if m.endpoint == "" {
		return nil
	}

	type itemLine struct {
		Name     string `json:"name"`
		Quantity int    `json:"quantity"`
		Total    int64  `json:"total"`
	}
	payload := struct {
		Template    string     `json:"template"`
		To          string     `json:"to"`
		OrderNumber string     `json:"order_number"`
		Items       []itemLine `json:"items"`
		TotalCents  int64      `json:"total_cents"`
	}{
		Template:    "order-confirmation",
		To:          o.Customer.Email,
		OrderNumber: o.OrderNumber,
		TotalCents:  o.Breakdown.TotalAmount,
	}
	for _, it := range o.Items {
		payload.Items = append(payload.Items, itemLine{Name: it.Name, Quantity: it.Quantity, Total: it.LineTotal})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("mail relay returned %d", resp.StatusCode)
	}
	return nil
}
