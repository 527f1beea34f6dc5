package usecase

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/nmoreyra/taller3d/internal/domain"
)

type ShippingUC struct {
	Rates domain.ShippingRateRepo
}

// ListEligible returns the rates a customer may pick for a subtotal, cheapest
// first.
func (uc *ShippingUC) ListEligible(ctx context.Context, subtotalCents int64) ([]domain.ShippingRate, error) {
	rates, err := uc.Rates.ListEligible(ctx, subtotalCents)
	if err != nil {
		return nil, err
	}
	sort.Slice(rates, func(i, j int) bool {
		if rates[i].PriceCents == rates[j].PriceCents {
			return rates[i].Name < rates[j].Name
		}
		return rates[i].PriceCents < rates[j].PriceCents
	})
	return rates, nil
}

// SelectDefault picks the cheapest eligible rate, or nil when none exists.
func (uc *ShippingUC) SelectDefault(ctx context.Context, subtotalCents int64) (*domain.ShippingRate, error) {
	rates, err := uc.ListEligible(ctx, subtotalCents)
	if err != nil {
		return nil, err
	}
	if len(rates) == 0 {
		return nil, nil
	}
	return &rates[0], nil
}

// Resolve honors an explicitly chosen rate when it is still active and
// eligible, and auto-selects otherwise. There is no hard-coded fallback
// price: an order nothing can ship returns ErrNoShippingRate.
func (uc *ShippingUC) Resolve(ctx context.Context, subtotalCents int64, rateID *uuid.UUID) (*domain.ShippingRate, error) {
	if rateID != nil {
		r, err := uc.Rates.FindByID(ctx, *rateID)
		if err == nil && r.EligibleFor(subtotalCents) {
			return r, nil
		}
		if err != nil && err != domain.ErrNotFound {
			return nil, err
		}
		// chosen rate vanished or no longer applies; fall through to default
	}
	r, err := uc.SelectDefault(ctx, subtotalCents)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, domain.ErrNoShippingRate
	}
	return r, nil
}
