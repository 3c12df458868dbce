package repositories

import (
	"context"
	"time"

	domain "github.com/storelane/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// CatalogRepository exposes product reads plus the store-level stock mutation
// primitives. Each mutation is an independent atomic operation against the
// store; the repository never serialises a read-modify-write across calls.
type CatalogRepository interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	// UpdateFields applies a partial update to the product document.
	UpdateFields(ctx context.Context, productID string, fields map[string]any) error
	// IncrementField atomically adds delta to a numeric top-level field.
	IncrementField(ctx context.Context, productID string, field string, delta int64) error
	// AdjustVariantStock adds delta to the named variant's count, clamping at
	// zero. A missing variant is a no-op. Independent from IncrementField: the
	// aggregate and variant counters are two separate mutations.
	AdjustVariantStock(ctx context.Context, productID string, variant string, delta int64) error
	// AdjustStockAtomic validates availability and applies both the aggregate
	// and variant adjustments in one transaction. Returns a conflict error when
	// the requested quantity exceeds availability.
	AdjustStockAtomic(ctx context.Context, productID string, variant string, quantity int64) (domain.Product, error)
}

// CartRepository owns the per-user pending cart document.
type CartRepository interface {
	Get(ctx context.Context, userID string) (domain.Cart, error)
	Put(ctx context.Context, cart domain.Cart) error
	Clear(ctx context.Context, userID string) error
}

// CouponRepository maintains coupon definitions and their usage counters.
type CouponRepository interface {
	FindByCode(ctx context.Context, code string) (domain.Coupon, error)
	// IncrementUsage atomically bumps usedCount by one. Usage is never returned
	// on cancellation.
	IncrementUsage(ctx context.Context, couponID string) error
	Upsert(ctx context.Context, coupon domain.Coupon) (domain.Coupon, error)
	List(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Coupon], error)
}

// OrderRepository persists order documents. Insert enforces order-code
// uniqueness and reports collisions as conflict errors.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	FindByCode(ctx context.Context, code string) (domain.Order, error)
	// FindByPaymentRef locates the order tagged with a payment provider
	// transaction id. Used for webhook idempotency.
	FindByPaymentRef(ctx context.Context, paymentRef string) (domain.Order, error)
	ListByUser(ctx context.Context, userID string, pager domain.Pagination) (domain.CursorPage[domain.Order], error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
}

// OrderListFilter narrows admin order listings.
type OrderListFilter struct {
	Status        *domain.OrderStatus
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Pagination    domain.Pagination
}
