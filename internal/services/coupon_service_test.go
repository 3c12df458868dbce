package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/storelane/api/internal/domain"
)

type stubCouponRepo struct {
	findByCodeFn func(context.Context, string) (domain.Coupon, error)
	incrementFn  func(context.Context, string) error
	upsertFn     func(context.Context, domain.Coupon) (domain.Coupon, error)
	listFn       func(context.Context, domain.Pagination) (domain.CursorPage[domain.Coupon], error)
}

func (s *stubCouponRepo) FindByCode(ctx context.Context, code string) (domain.Coupon, error) {
	if s.findByCodeFn != nil {
		return s.findByCodeFn(ctx, code)
	}
	return domain.Coupon{}, errors.New("not implemented")
}

func (s *stubCouponRepo) IncrementUsage(ctx context.Context, couponID string) error {
	if s.incrementFn != nil {
		return s.incrementFn(ctx, couponID)
	}
	return nil
}

func (s *stubCouponRepo) Upsert(ctx context.Context, coupon domain.Coupon) (domain.Coupon, error) {
	if s.upsertFn != nil {
		return s.upsertFn(ctx, coupon)
	}
	return coupon, nil
}

func (s *stubCouponRepo) List(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Coupon], error) {
	if s.listFn != nil {
		return s.listFn(ctx, pager)
	}
	return domain.CursorPage[domain.Coupon]{}, nil
}

func newTestCouponService(t *testing.T, repo *stubCouponRepo, now time.Time) CouponService {
	t.Helper()
	svc, err := NewCouponService(CouponServiceDeps{
		Coupons: repo,
		Clock:   func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewCouponService returned error: %v", err)
	}
	return svc
}

func TestCouponValidateRejections(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	maxUses := int64(5)

	cases := []struct {
		name    string
		coupon  domain.Coupon
		findErr error
		value   int64
		wantErr error
	}{
		{
			name:    "not found",
			findErr: stubRepoErr{notFound: true},
			value:   100000,
			wantErr: ErrCouponNotFound,
		},
		{
			name:    "inactive",
			coupon:  domain.Coupon{ID: "cpn-1", Code: "SALE", IsActive: false},
			value:   100000,
			wantErr: ErrCouponInactive,
		},
		{
			name: "not yet valid",
			coupon: domain.Coupon{
				ID: "cpn-1", Code: "SALE", IsActive: true,
				ValidFrom: now.Add(24 * time.Hour),
			},
			value:   100000,
			wantErr: ErrCouponExpired,
		},
		{
			name: "past validity",
			coupon: domain.Coupon{
				ID: "cpn-1", Code: "SALE", IsActive: true,
				ValidTo: now.Add(-time.Hour),
			},
			value:   100000,
			wantErr: ErrCouponExpired,
		},
		{
			name: "exhausted",
			coupon: domain.Coupon{
				ID: "cpn-1", Code: "SALE", IsActive: true,
				MaxUses: &maxUses, UsedCount: 5,
			},
			value:   100000,
			wantErr: ErrCouponExhausted,
		},
		{
			name: "below minimum",
			coupon: domain.Coupon{
				ID: "cpn-1", Code: "SALE", IsActive: true,
				MinOrderValue: 200000,
			},
			value:   100000,
			wantErr: ErrCouponBelowMinimum,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &stubCouponRepo{
				findByCodeFn: func(context.Context, string) (domain.Coupon, error) {
					if tc.findErr != nil {
						return domain.Coupon{}, tc.findErr
					}
					return tc.coupon, nil
				},
			}
			svc := newTestCouponService(t, repo, now)

			_, err := svc.Validate(context.Background(), "SALE", tc.value)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestCouponValidateDiscounts(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		coupon domain.Coupon
		value  int64
		want   int64
	}{
		{
			name:   "fixed amount",
			coupon: domain.Coupon{ID: "cpn-1", Code: "OFF50K", Type: domain.CouponTypeFixed, Value: 50000, IsActive: true},
			value:  300000,
			want:   50000,
		},
		{
			name:   "fixed amount capped at order value",
			coupon: domain.Coupon{ID: "cpn-1", Code: "OFF50K", Type: domain.CouponTypeFixed, Value: 50000, IsActive: true},
			value:  30000,
			want:   30000,
		},
		{
			name:   "percent",
			coupon: domain.Coupon{ID: "cpn-2", Code: "PCT33", Type: domain.CouponTypePercent, Value: 33, IsActive: true},
			value:  1000,
			want:   330,
		},
		{
			name:   "percent truncates",
			coupon: domain.Coupon{ID: "cpn-3", Code: "PCT15", Type: domain.CouponTypePercent, Value: 15, IsActive: true},
			value:  999,
			want:   149,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &stubCouponRepo{
				findByCodeFn: func(context.Context, string) (domain.Coupon, error) {
					return tc.coupon, nil
				},
			}
			svc := newTestCouponService(t, repo, now)

			discount, err := svc.Validate(context.Background(), tc.coupon.Code, tc.value)
			if err != nil {
				t.Fatalf("Validate returned error: %v", err)
			}
			if discount.Amount != tc.want {
				t.Fatalf("expected discount %d, got %d", tc.want, discount.Amount)
			}
			if discount.CouponID != tc.coupon.ID {
				t.Fatalf("expected coupon id %s, got %s", tc.coupon.ID, discount.CouponID)
			}
		})
	}
}

func TestCouponValidateUppercasesCode(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	var lookedUp string
	repo := &stubCouponRepo{
		findByCodeFn: func(_ context.Context, code string) (domain.Coupon, error) {
			lookedUp = code
			return domain.Coupon{ID: "cpn-1", Code: code, Type: domain.CouponTypeFixed, Value: 1000, IsActive: true}, nil
		},
	}
	svc := newTestCouponService(t, repo, now)

	if _, err := svc.Validate(context.Background(), "  sale10 ", 50000); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if lookedUp != "SALE10" {
		t.Fatalf("expected normalised code SALE10, got %q", lookedUp)
	}
}

func TestCouponCreateValidation(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	svc := newTestCouponService(t, &stubCouponRepo{}, now)

	_, err := svc.Create(context.Background(), UpsertCouponCommand{
		Code:  "TOOMUCH",
		Type:  domain.CouponTypePercent,
		Value: 120,
	})
	if !errors.Is(err, ErrCouponInvalidInput) {
		t.Fatalf("expected ErrCouponInvalidInput for percent over 100, got %v", err)
	}

	_, err = svc.Create(context.Background(), UpsertCouponCommand{
		Code:      "BACKWARDS",
		Type:      domain.CouponTypeFixed,
		Value:     1000,
		ValidFrom: now,
		ValidTo:   now.Add(-time.Hour),
	})
	if !errors.Is(err, ErrCouponInvalidInput) {
		t.Fatalf("expected ErrCouponInvalidInput for inverted window, got %v", err)
	}
}

func TestCouponCreateDuplicateCodeConflicts(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	repo := &stubCouponRepo{
		upsertFn: func(context.Context, domain.Coupon) (domain.Coupon, error) {
			return domain.Coupon{}, stubRepoErr{conflict: true}
		},
	}
	svc := newTestCouponService(t, repo, now)

	_, err := svc.Create(context.Background(), UpsertCouponCommand{
		Code:  "SALE10",
		Type:  domain.CouponTypeFixed,
		Value: 10000,
	})
	if !errors.Is(err, ErrCouponConflict) {
		t.Fatalf("expected ErrCouponConflict for duplicate code, got %v", err)
	}
}

func TestCouponCommitUsage(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	var bumped string
	repo := &stubCouponRepo{
		incrementFn: func(_ context.Context, couponID string) error {
			bumped = couponID
			return nil
		},
	}
	svc := newTestCouponService(t, repo, now)

	if err := svc.CommitUsage(context.Background(), "cpn-9"); err != nil {
		t.Fatalf("CommitUsage returned error: %v", err)
	}
	if bumped != "cpn-9" {
		t.Fatalf("expected usage bump for cpn-9, got %q", bumped)
	}
}
