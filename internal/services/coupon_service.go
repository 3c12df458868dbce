package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/storelane/api/internal/domain"
	"github.com/storelane/api/internal/repositories"
)

var (
	// ErrCouponInvalidInput signals the caller provided invalid data.
	ErrCouponInvalidInput = errors.New("coupon: invalid input")
	// ErrCouponNotFound indicates no coupon exists for the given code.
	ErrCouponNotFound = errors.New("coupon: not found")
	// ErrCouponInactive indicates the coupon has been disabled.
	ErrCouponInactive = errors.New("coupon: inactive")
	// ErrCouponExpired indicates the coupon is outside its validity window.
	ErrCouponExpired = errors.New("coupon: expired")
	// ErrCouponExhausted indicates the coupon reached its usage cap.
	ErrCouponExhausted = errors.New("coupon: usage limit reached")
	// ErrCouponBelowMinimum indicates the order value does not meet the coupon threshold.
	ErrCouponBelowMinimum = errors.New("coupon: order below minimum value")
	// ErrCouponConflict indicates a duplicate code or concurrent update.
	ErrCouponConflict = errors.New("coupon: conflict")
)

// CouponServiceDeps bundles collaborators required to construct the coupon service.
type CouponServiceDeps struct {
	Coupons     repositories.CouponRepository
	Clock       func() time.Time
	IDGenerator func() string
}

type couponService struct {
	coupons repositories.CouponRepository
	clock   func() time.Time
	newID   func() string
}

// NewCouponService wires dependencies into a concrete CouponService implementation.
func NewCouponService(deps CouponServiceDeps) (CouponService, error) {
	if deps.Coupons == nil {
		return nil, errors.New("coupon service: coupon repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	return &couponService{
		coupons: deps.Coupons,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID: idGen,
	}, nil
}

func (s *couponService) Validate(ctx context.Context, code string, orderValue int64) (CouponDiscount, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return CouponDiscount{}, fmt.Errorf("%w: code is required", ErrCouponInvalidInput)
	}
	if orderValue < 0 {
		return CouponDiscount{}, fmt.Errorf("%w: order value must not be negative", ErrCouponInvalidInput)
	}

	coupon, err := s.coupons.FindByCode(ctx, code)
	if err != nil {
		return CouponDiscount{}, s.mapRepositoryError(err)
	}

	if !coupon.IsActive {
		return CouponDiscount{}, fmt.Errorf("%w: %s", ErrCouponInactive, code)
	}

	now := s.clock()
	if !coupon.ValidFrom.IsZero() && now.Before(coupon.ValidFrom) {
		return CouponDiscount{}, fmt.Errorf("%w: %s not valid until %s", ErrCouponExpired, code, coupon.ValidFrom.Format(time.RFC3339))
	}
	if !coupon.ValidTo.IsZero() && now.After(coupon.ValidTo) {
		return CouponDiscount{}, fmt.Errorf("%w: %s", ErrCouponExpired, code)
	}
	if coupon.MaxUses != nil && coupon.UsedCount >= *coupon.MaxUses {
		return CouponDiscount{}, fmt.Errorf("%w: %s", ErrCouponExhausted, code)
	}
	if coupon.MinOrderValue > 0 && orderValue < coupon.MinOrderValue {
		return CouponDiscount{}, fmt.Errorf("%w: %s requires at least %d", ErrCouponBelowMinimum, code, coupon.MinOrderValue)
	}

	return CouponDiscount{
		CouponID: coupon.ID,
		Code:     coupon.Code,
		Amount:   discountAmount(coupon, orderValue),
	}, nil
}

func (s *couponService) CommitUsage(ctx context.Context, couponID string) error {
	couponID = strings.TrimSpace(couponID)
	if couponID == "" {
		return fmt.Errorf("%w: coupon id is required", ErrCouponInvalidInput)
	}
	if err := s.coupons.IncrementUsage(ctx, couponID); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

func (s *couponService) Create(ctx context.Context, cmd UpsertCouponCommand) (Coupon, error) {
	code := strings.ToUpper(strings.TrimSpace(cmd.Code))
	if code == "" {
		return Coupon{}, fmt.Errorf("%w: code is required", ErrCouponInvalidInput)
	}
	if cmd.Value <= 0 {
		return Coupon{}, fmt.Errorf("%w: value must be positive", ErrCouponInvalidInput)
	}
	switch cmd.Type {
	case domain.CouponTypeFixed:
	case domain.CouponTypePercent:
		if cmd.Value > 100 {
			return Coupon{}, fmt.Errorf("%w: percent value must not exceed 100", ErrCouponInvalidInput)
		}
	default:
		return Coupon{}, fmt.Errorf("%w: unknown coupon type %q", ErrCouponInvalidInput, cmd.Type)
	}
	if !cmd.ValidFrom.IsZero() && !cmd.ValidTo.IsZero() && cmd.ValidTo.Before(cmd.ValidFrom) {
		return Coupon{}, fmt.Errorf("%w: validity window ends before it starts", ErrCouponInvalidInput)
	}
	if cmd.MaxUses != nil && *cmd.MaxUses <= 0 {
		return Coupon{}, fmt.Errorf("%w: max uses must be positive", ErrCouponInvalidInput)
	}
	if cmd.MinOrderValue < 0 {
		return Coupon{}, fmt.Errorf("%w: minimum order value must not be negative", ErrCouponInvalidInput)
	}

	coupon := Coupon{
		ID:            "cpn_" + s.newID(),
		Code:          code,
		Type:          cmd.Type,
		Value:         cmd.Value,
		MaxUses:       cmd.MaxUses,
		ValidFrom:     cmd.ValidFrom.UTC(),
		ValidTo:       cmd.ValidTo.UTC(),
		MinOrderValue: cmd.MinOrderValue,
		IsActive:      cmd.IsActive,
	}

	stored, err := s.coupons.Upsert(ctx, coupon)
	if err != nil {
		return Coupon{}, s.mapRepositoryError(err)
	}
	return stored, nil
}

func (s *couponService) List(ctx context.Context, pager Pagination) (domain.CursorPage[Coupon], error) {
	page, err := s.coupons.List(ctx, pager)
	if err != nil {
		return domain.CursorPage[Coupon]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

// discountAmount computes the coupon discount in whole currency units.
// Percent discounts truncate toward zero; the discount never exceeds the order value.
func discountAmount(coupon Coupon, orderValue int64) int64 {
	var amount int64
	switch coupon.Type {
	case domain.CouponTypePercent:
		amount = orderValue * coupon.Value / 100
	default:
		amount = coupon.Value
	}
	if amount > orderValue {
		amount = orderValue
	}
	if amount < 0 {
		amount = 0
	}
	return amount
}

func (s *couponService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrCouponNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrCouponConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("coupon: repository unavailable: %w", err)
		}
	}
	return err
}
