package services

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"CafePos/app/errs"
	"CafePos/app/models"
	"CafePos/app/store"
)

// LoyaltyService credits points on order completion and handles explicit
// redemption. The accrual rule is configurable; the default credits one
// point per ₹100 of the completed order total, floored.
type LoyaltyService struct {
	customers        store.CustomerStore
	pointsPerHundred decimal.Decimal
}

// NewLoyaltyService creates a loyalty service with the given accrual rate.
func NewLoyaltyService(customers store.CustomerStore, pointsPerHundred decimal.Decimal) *LoyaltyService {
	return &LoyaltyService{customers: customers, pointsPerHundred: pointsPerHundred}
}

var _ Accruer = (*LoyaltyService)(nil)

// PointsFor applies the accrual rule to an order total.
func (s *LoyaltyService) PointsFor(order *models.Order) int64 {
	hundreds := order.TotalAmount.Decimal().Div(decimal.NewFromInt(100))
	return hundreds.Mul(s.pointsPerHundred).Floor().IntPart()
}

// Accrue records the visit and credits points for a completed order. Called
// post-commit by the order service; the order snapshot, not live data,
// drives the calculation.
func (s *LoyaltyService) Accrue(ctx context.Context, customerID string, order *models.Order) error {
	if order.CompletedAt == nil {
		return errs.New(errs.KindOrderNotActive, "order %s is not completed", order.ID)
	}

	points := s.PointsFor(order)
	err := s.customers.ApplyAccrual(ctx, customerID, points, *order.CompletedAt)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		return errs.New(errs.KindInvalidItem, "customer %s not found", customerID)
	default:
		return errs.StoreUnavailable(err)
	}

	log.WithFields(log.Fields{
		"customer_id": customerID,
		"order_id":    order.ID,
		"points":      points,
	}).Info("loyalty points accrued")
	return nil
}

// Redeem debits points from the customer's balance. Redeeming more than the
// balance is rejected and leaves the balance unchanged; the balance never
// goes negative.
func (s *LoyaltyService) Redeem(ctx context.Context, customerID string, points int64) error {
	if points <= 0 {
		return errs.New(errs.KindInsufficientPoints, "redemption must be a positive point count, got %d", points)
	}

	err := s.customers.RedeemPoints(ctx, customerID, points)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrStale):
		return errs.New(errs.KindInsufficientPoints, "customer %s has fewer than %d points", customerID, points)
	case errors.Is(err, store.ErrNotFound):
		return errs.New(errs.KindInvalidItem, "customer %s not found", customerID)
	default:
		return errs.StoreUnavailable(err)
	}

	log.WithFields(log.Fields{
		"customer_id": customerID,
		"points":      points,
	}).Info("loyalty points redeemed")
	return nil
}

// GetCustomer returns the loyalty record.
func (s *LoyaltyService) GetCustomer(ctx context.Context, customerID string) (*models.Customer, error) {
	customer, err := s.customers.GetCustomer(ctx, customerID)
	switch {
	case err == nil:
		return customer, nil
	case errors.Is(err, store.ErrNotFound):
		return nil, errs.New(errs.KindInvalidItem, "customer %s not found", customerID)
	default:
		return nil, errs.StoreUnavailable(err)
	}
}
