// Package pricing is the pricing authority: it recomputes every line total
// from the catalog and never trusts a price the client sent.
package pricing

import (
	"context"

	"github.com/darkvsx/boostd/internal/domain"
)

// Service resolves authoritative prices for a requested item set.
type Service struct {
	catalog domain.CatalogStore
}

// New creates a pricing service backed by the given catalog store.
func New(catalog domain.CatalogStore) *Service {
	return &Service{catalog: catalog}
}

// Price resolves each line item to its authoritative unit price and returns
// the priced items plus the subtotal in cents.
//
// Service and bundle refs are looked up in the catalog; any ref that is
// missing or inactive rejects the whole set with InvalidLineItemError naming
// every offending ref. Custom items carry prices computed server-side by the
// upstream custom-pricing workflow, so their descriptor price passes through
// as authoritative.
func (s *Service) Price(ctx context.Context, items []domain.LineItem) ([]domain.PricedItem, int64, error) {
	if len(items) == 0 {
		return nil, 0, &domain.InvalidLineItemError{Refs: []string{"(empty order)"}}
	}

	var bad []string
	refsByKind := map[domain.ItemType][]string{}
	for _, it := range items {
		switch it.ItemType {
		case domain.ItemService, domain.ItemBundle:
			refsByKind[it.ItemType] = append(refsByKind[it.ItemType], it.ItemRef)
		case domain.ItemCustom:
			// priced upstream; nothing to resolve
		default:
			bad = append(bad, it.ItemRef)
		}
		if it.Quantity <= 0 {
			bad = append(bad, it.ItemRef)
		}
	}
	if len(bad) > 0 {
		return nil, 0, &domain.InvalidLineItemError{Refs: bad}
	}

	entries := map[string]domain.CatalogEntry{}
	for kind, refs := range refsByKind {
		found, err := s.catalog.CatalogEntries(ctx, kind, refs)
		if err != nil {
			return nil, 0, err
		}
		for ref, e := range found {
			entries[ref] = e
		}
	}

	priced := make([]domain.PricedItem, 0, len(items))
	var subtotal int64
	for _, it := range items {
		var unit int64
		name := it.Name

		switch it.ItemType {
		case domain.ItemCustom:
			unit = it.UnitPrice
			if unit <= 0 {
				bad = append(bad, it.ItemRef)
				continue
			}
		default:
			entry, ok := entries[it.ItemRef]
			if !ok || !entry.Active {
				bad = append(bad, it.ItemRef)
				continue
			}
			unit = entry.UnitPrice
			name = entry.Name
		}

		lineTotal := unit * int64(it.Quantity)
		priced = append(priced, domain.PricedItem{
			ItemRef:   it.ItemRef,
			ItemType:  it.ItemType,
			Name:      name,
			Quantity:  it.Quantity,
			UnitPrice: unit,
			LineTotal: lineTotal,
		})
		subtotal += lineTotal
	}
	if len(bad) > 0 {
		return nil, 0, &domain.InvalidLineItemError{Refs: bad}
	}

	return priced, subtotal, nil
}
