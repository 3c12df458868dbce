package domain

import "time"

// Product is the catalog projection the order subsystem reads and whose stock
// fields it mutates. Prices are whole currency units.
type Product struct {
	ID          string
	Name        string
	Image       string
	Price       int64
	SalePrice   int64
	IsActive    bool
	InStock     bool
	Stock       int64
	ColorStocks []ColorStock
}

// ColorStock tracks per-variant inventory. The aggregate Stock field is
// expected to equal the sum of all variant counts when variants exist; the two
// are maintained as independent counters, so drift is representable.
type ColorStock struct {
	Name  string
	Stock int64
}

// HasVariants reports whether the product tracks per-variant stock.
func (p Product) HasVariants() bool {
	return len(p.ColorStocks) > 0
}

// VariantStock returns the stock count for the named variant.
func (p Product) VariantStock(name string) (int64, bool) {
	for _, cs := range p.ColorStocks {
		if cs.Name == name {
			return cs.Stock, true
		}
	}
	return 0, false
}

// UnitPrice returns the effective selling price (sale price when set).
func (p Product) UnitPrice() int64 {
	if p.SalePrice > 0 && p.SalePrice < p.Price {
		return p.SalePrice
	}
	return p.Price
}

// Cart holds a user's pending line items between add-to-cart and checkout.
type Cart struct {
	UserID    string
	Items     []CartItem
	UpdatedAt time.Time
}

// CartItem references a product plus the chosen quantity and variant.
type CartItem struct {
	ProductID string
	Quantity  int64
	Variant   string
}

// OrderStatus enumerates the order lifecycle states.
type OrderStatus string

const (
	// OrderStatusPending indicates the order was placed and awaits confirmation.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusProcessing indicates the order was confirmed and is being prepared.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusHandover indicates the parcel was handed to the carrier.
	OrderStatusHandover OrderStatus = "handover_to_carrier"
	// OrderStatusShipping indicates the parcel is in transit.
	OrderStatusShipping OrderStatus = "shipping"
	// OrderStatusDelivered indicates the carrier reports delivery.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusReceived indicates the customer confirmed receipt. Terminal.
	OrderStatusReceived OrderStatus = "received"
	// OrderStatusCancelled indicates the order was cancelled. Terminal.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// PaymentStatus tracks settlement of an order.
type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	PaymentStatusPaid   PaymentStatus = "paid"
)

// PaymentMethod enumerates the accepted payment methods.
type PaymentMethod string

const (
	PaymentMethodCOD          PaymentMethod = "cod"
	PaymentMethodMoMo         PaymentMethod = "momo"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
)

// Order is the central entity of the subsystem. Created once, never deleted;
// only status, paymentStatus, and statusHistory mutate after creation.
type Order struct {
	ID            string
	Code          string
	UserID        string
	Items         []OrderLineItem
	Totals        OrderTotals
	Status        OrderStatus
	PaymentMethod PaymentMethod
	PaymentStatus PaymentStatus
	PaymentRef    string
	StatusHistory []StatusEntry
	CouponID      string
	Shipping      ShippingInfo
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OrderLineItem is an immutable snapshot of a cart line captured at creation
// time. Price and identity fields are never re-read from the live catalog.
type OrderLineItem struct {
	ProductID    string
	Name         string
	Image        string
	UnitPrice    int64
	PreSalePrice int64
	Quantity     int64
	Variant      string
}

// LineTotal returns the payable amount for the line.
func (li OrderLineItem) LineTotal() int64 {
	return li.UnitPrice * li.Quantity
}

// OrderTotals stores the amounts computed once at creation. They are never
// recomputed from items afterwards so the record stays accurate even if
// catalog prices change.
type OrderTotals struct {
	SubTotal    int64
	Total       int64
	Savings     int64
	ShippingFee int64
	Discount    int64
	GrandTotal  int64
}

// StatusEntry is one row of the append-only status audit trail.
type StatusEntry struct {
	Status    OrderStatus
	Note      string
	UpdatedBy string
	UpdatedAt time.Time
}

// Visited reports whether the history already contains the given status.
func Visited(history []StatusEntry, status OrderStatus) bool {
	for _, entry := range history {
		if entry.Status == status {
			return true
		}
	}
	return false
}

// ShippingInfo is the destination captured with the order.
type ShippingInfo struct {
	FullName string
	Phone    string
	Address  string
	Note     string
}

// CouponType selects how a coupon's value is interpreted.
type CouponType string

const (
	CouponTypeFixed   CouponType = "fixed"
	CouponTypePercent CouponType = "percent"
)

// Coupon is a discount code with a validity window and usage cap. UsedCount is
// mutated only via the store's atomic increment and is never decremented.
type Coupon struct {
	ID            string
	Code          string
	Type          CouponType
	Value         int64
	MaxUses       *int64
	UsedCount     int64
	ValidFrom     time.Time
	ValidTo       time.Time
	MinOrderValue int64
	IsActive      bool
}

// CursorPage wraps a page of results with an opaque continuation token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// Pagination carries page controls for list queries.
type Pagination struct {
	PageSize  int
	PageToken string
}
