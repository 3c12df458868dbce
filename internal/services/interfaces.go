package services

import (
	"context"
	"time"

	domain "github.com/storelane/api/internal/domain"
	"github.com/storelane/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination    = domain.Pagination
	Product       = domain.Product
	ColorStock    = domain.ColorStock
	Cart          = domain.Cart
	CartItem      = domain.CartItem
	Coupon        = domain.Coupon
	CouponType    = domain.CouponType
	Order         = domain.Order
	OrderLineItem = domain.OrderLineItem
	OrderTotals   = domain.OrderTotals
	OrderStatus   = domain.OrderStatus
	StatusEntry   = domain.StatusEntry
	ShippingInfo  = domain.ShippingInfo
	PaymentMethod = domain.PaymentMethod
	PaymentStatus = domain.PaymentStatus
)

// StockService guards and mutates product stock counters for checkout and cancellation.
type StockService interface {
	// ValidateAvailability checks the product can satisfy the requested line.
	ValidateAvailability(product Product, item CartItem) error
	// Decrement applies the stock deduction for a line as two independent
	// writes: the aggregate counter and, when set, the variant counter.
	Decrement(ctx context.Context, item CartItem) error
	// DecrementIfAvailable validates and deducts both counters in a single
	// atomic operation, failing with ErrStockInsufficient on contention.
	DecrementIfAvailable(ctx context.Context, item CartItem) (Product, error)
	// Restore returns a line's quantity to stock after cancellation.
	Restore(ctx context.Context, item CartItem) error
}

// CouponDiscount is the applied result of a successful coupon validation.
type CouponDiscount struct {
	CouponID string
	Code     string
	Amount   int64
}

// CouponService validates coupon codes against an order value and tracks usage.
type CouponService interface {
	Validate(ctx context.Context, code string, orderValue int64) (CouponDiscount, error)
	// CommitUsage records a redemption. Callers treat failures as non-fatal.
	CommitUsage(ctx context.Context, couponID string) error
	Create(ctx context.Context, cmd UpsertCouponCommand) (Coupon, error)
	List(ctx context.Context, pager Pagination) (domain.CursorPage[Coupon], error)
}

// OrderService owns order placement, reads, and the status lifecycle.
type OrderService interface {
	Checkout(ctx context.Context, cmd CheckoutCommand) (Order, error)
	GetOrder(ctx context.Context, orderID string, opts OrderReadOptions) (Order, error)
	ListOrders(ctx context.Context, userID string, pager Pagination) (domain.CursorPage[Order], error)
	ListAllOrders(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[Order], error)
	TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error)
	CancelByUser(ctx context.Context, cmd CancelOrderCommand) (Order, error)
	LegalNextStatuses(order Order) []OrderStatus
	HandlePaymentNotification(ctx context.Context, cmd PaymentNotificationCommand) (PaymentNotificationResult, error)
}

// CheckoutCommand carries the caller intent for placing an order. PaymentRef
// is set when the order is created from an already-settled gateway payment.
type CheckoutCommand struct {
	UserID        string
	Shipping      ShippingInfo
	PaymentMethod string
	CouponCode    string
	PaymentRef    string
}

// OrderReadOptions scopes a single-order read.
type OrderReadOptions struct {
	// UserID, when set, restricts the read to orders owned by that user.
	UserID string
}

// OrderStatusTransitionCommand advances an order to a target status.
type OrderStatusTransitionCommand struct {
	OrderID string
	Target  OrderStatus
	Note    string
	ActorID string
}

// CancelOrderCommand cancels an order on behalf of its owner.
type CancelOrderCommand struct {
	OrderID string
	UserID  string
	Reason  string
}

// PaymentNotificationCommand wraps a verified-to-be provider callback.
type PaymentNotificationCommand struct {
	Provider string
	Body     []byte
	Headers  map[string][]string
}

// PaymentNotificationResult reports how a provider callback was handled.
type PaymentNotificationResult struct {
	OrderID       string
	OrderCode     string
	TransactionID string
	Duplicate     bool
	Paid          bool
}

// UpsertCouponCommand creates or replaces a coupon definition.
type UpsertCouponCommand struct {
	Code          string
	Type          CouponType
	Value         int64
	MaxUses       *int64
	ValidFrom     time.Time
	ValidTo       time.Time
	MinOrderValue int64
	IsActive      bool
}

// OrderEventMessage is the payload published for order lifecycle events.
type OrderEventMessage struct {
	Event      string    `json:"event"`
	OrderID    string    `json:"orderId"`
	OrderCode  string    `json:"orderCode"`
	UserID     string    `json:"userId,omitempty"`
	Status     string    `json:"status,omitempty"`
	Previous   string    `json:"previous,omitempty"`
	Amount     int64     `json:"amount,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, message OrderEventMessage) (string, error)
}
