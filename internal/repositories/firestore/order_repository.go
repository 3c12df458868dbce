package firestore

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/storelane/api/internal/domain"
	pfirestore "github.com/storelane/api/internal/platform/firestore"
	"github.com/storelane/api/internal/repositories"
)

const (
	orderCollection     = "orders"
	orderCodeCollection = "orderCodes"
)

// OrderRepository persists order documents. Order codes are reserved through a
// companion orderCodes/{code} document created in the same transaction as the
// order, so a duplicate code surfaces as a conflict.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.BaseRepository[orderDocument]
	codes    *pfirestore.BaseRepository[orderCodeDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		provider: provider,
		orders:   pfirestore.NewBaseRepository[orderDocument](provider, orderCollection, nil),
		codes:    pfirestore.NewBaseRepository[orderCodeDocument](provider, orderCodeCollection, nil),
	}, nil
}

// Insert creates the order and reserves its code atomically.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.provider == nil {
		return errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(order.ID)
	code := strings.TrimSpace(order.Code)
	if id == "" {
		return errors.New("order repository: order id is required")
	}
	if code == "" {
		return errors.New("order repository: order code is required")
	}

	doc := newOrderDocument(order)

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		codeRef, err := r.codes.DocumentRef(ctx, code)
		if err != nil {
			return err
		}
		orderRef, err := r.orders.DocumentRef(ctx, id)
		if err != nil {
			return err
		}

		if err := tx.Create(codeRef, orderCodeDocument{
			OrderID:   id,
			CreatedAt: doc.CreatedAt,
		}); err != nil {
			return err
		}
		return tx.Create(orderRef, doc)
	})
	return pfirestore.WrapError("orders.insert", err)
}

// Update replaces the order document.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if r == nil || r.orders == nil {
		return errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(order.ID)
	if id == "" {
		return errors.New("order repository: order id is required")
	}

	_, err := r.orders.Set(ctx, id, newOrderDocument(order))
	return err
}

// FindByID loads a single order document.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.orders == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	doc, err := r.orders.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// FindByCode locates an order by its human-readable code.
func (r *OrderRepository) FindByCode(ctx context.Context, code string) (domain.Order, error) {
	if r == nil || r.orders == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.Order{}, errors.New("order repository: order code is required")
	}

	docs, err := r.orders.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("code", "==", code).Limit(1)
	})
	if err != nil {
		return domain.Order{}, err
	}
	if len(docs) == 0 {
		return domain.Order{}, pfirestore.NewNotFoundError("orders.findbycode", fmt.Errorf("order %s not found", code))
	}
	return docs[0].Data.toDomain(docs[0].ID), nil
}

// FindByPaymentRef locates the order tagged with a provider transaction id.
func (r *OrderRepository) FindByPaymentRef(ctx context.Context, paymentRef string) (domain.Order, error) {
	if r == nil || r.orders == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	ref := strings.TrimSpace(paymentRef)
	if ref == "" {
		return domain.Order{}, errors.New("order repository: payment ref is required")
	}

	docs, err := r.orders.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("paymentRef", "==", ref).Limit(1)
	})
	if err != nil {
		return domain.Order{}, err
	}
	if len(docs) == 0 {
		return domain.Order{}, pfirestore.NewNotFoundError("orders.findbypaymentref", fmt.Errorf("no order for payment ref %s", ref))
	}
	return docs[0].Data.toDomain(docs[0].ID), nil
}

// ListByUser pages through a user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string, pager domain.Pagination) (domain.CursorPage[domain.Order], error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository: user id is required")
	}
	return r.list(ctx, pager, func(query firestore.Query) firestore.Query {
		return query.Where("userId", "==", uid)
	})
}

// List pages through all orders matching the filter, newest first.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	return r.list(ctx, filter.Pagination, func(query firestore.Query) firestore.Query {
		if filter.Status != nil {
			query = query.Where("status", "==", string(*filter.Status))
		}
		if filter.CreatedAfter != nil {
			query = query.Where("createdAt", ">=", filter.CreatedAfter.UTC())
		}
		if filter.CreatedBefore != nil {
			query = query.Where("createdAt", "<", filter.CreatedBefore.UTC())
		}
		return query
	})
}

func (r *OrderRepository) list(ctx context.Context, pager domain.Pagination, build pfirestore.QueryBuilder) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.orders == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}

	pageSize := pager.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	var token *orderPageToken
	if encoded := strings.TrimSpace(pager.PageToken); encoded != "" {
		decoded, err := decodeOrderPageToken(encoded)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
		}
		token = decoded
	}

	docs, err := r.orders.Query(ctx, func(query firestore.Query) firestore.Query {
		if build != nil {
			query = build(query)
		}
		// Code is unique, so it breaks createdAt ties deterministically.
		query = query.
			OrderBy("createdAt", firestore.Desc).
			OrderBy("code", firestore.Desc).
			Limit(pageSize + 1)
		if token != nil {
			query = query.StartAfter(token.CreatedAt, token.Code)
		}
		return query
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, doc.Data.toDomain(doc.ID))
	}

	hasMore := len(orders) > pageSize
	if hasMore {
		orders = orders[:pageSize]
	}
	var nextToken string
	if hasMore && len(orders) > 0 {
		last := orders[len(orders)-1]
		encoded, err := encodeOrderPageToken(orderPageToken{CreatedAt: last.CreatedAt, Code: last.Code})
		if err != nil {
			return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
		}
		nextToken = encoded
	}

	return domain.CursorPage[domain.Order]{
		Items:         orders,
		NextPageToken: nextToken,
	}, nil
}

type orderDocument struct {
	Code          string               `firestore:"code"`
	UserID        string               `firestore:"userId"`
	Items         []orderItemDocument  `firestore:"items"`
	Totals        orderTotalsDocument  `firestore:"totals"`
	Status        string               `firestore:"status"`
	PaymentMethod string               `firestore:"paymentMethod"`
	PaymentStatus string               `firestore:"paymentStatus"`
	PaymentRef    string               `firestore:"paymentRef,omitempty"`
	StatusHistory []statusDocument     `firestore:"statusHistory"`
	CouponID      string               `firestore:"couponId,omitempty"`
	Shipping      shippingInfoDocument `firestore:"shipping"`
	CreatedAt     time.Time            `firestore:"createdAt"`
	UpdatedAt     time.Time            `firestore:"updatedAt"`
}

type orderItemDocument struct {
	ProductID    string `firestore:"productId"`
	Name         string `firestore:"name"`
	Image        string `firestore:"image,omitempty"`
	UnitPrice    int64  `firestore:"unitPrice"`
	PreSalePrice int64  `firestore:"preSalePrice,omitempty"`
	Quantity     int64  `firestore:"quantity"`
	Variant      string `firestore:"variant,omitempty"`
}

type orderTotalsDocument struct {
	SubTotal    int64 `firestore:"subTotal"`
	Total       int64 `firestore:"total"`
	Savings     int64 `firestore:"savings,omitempty"`
	ShippingFee int64 `firestore:"shippingFee"`
	Discount    int64 `firestore:"discount,omitempty"`
	GrandTotal  int64 `firestore:"grandTotal"`
}

type statusDocument struct {
	Status    string    `firestore:"status"`
	Note      string    `firestore:"note,omitempty"`
	UpdatedBy string    `firestore:"updatedBy,omitempty"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

type shippingInfoDocument struct {
	FullName string `firestore:"fullName"`
	Phone    string `firestore:"phone"`
	Address  string `firestore:"address"`
	Note     string `firestore:"note,omitempty"`
}

type orderCodeDocument struct {
	OrderID   string    `firestore:"orderId"`
	CreatedAt time.Time `firestore:"createdAt"`
}

func newOrderDocument(order domain.Order) orderDocument {
	doc := orderDocument{
		Code:          strings.TrimSpace(order.Code),
		UserID:        strings.TrimSpace(order.UserID),
		Items:         make([]orderItemDocument, 0, len(order.Items)),
		Totals:        orderTotalsDocument(order.Totals),
		Status:        string(order.Status),
		PaymentMethod: string(order.PaymentMethod),
		PaymentStatus: string(order.PaymentStatus),
		PaymentRef:    strings.TrimSpace(order.PaymentRef),
		StatusHistory: make([]statusDocument, 0, len(order.StatusHistory)),
		CouponID:      strings.TrimSpace(order.CouponID),
		Shipping: shippingInfoDocument{
			FullName: strings.TrimSpace(order.Shipping.FullName),
			Phone:    strings.TrimSpace(order.Shipping.Phone),
			Address:  strings.TrimSpace(order.Shipping.Address),
			Note:     strings.TrimSpace(order.Shipping.Note),
		},
		CreatedAt: order.CreatedAt.UTC(),
		UpdatedAt: order.UpdatedAt.UTC(),
	}
	for _, item := range order.Items {
		doc.Items = append(doc.Items, orderItemDocument{
			ProductID:    strings.TrimSpace(item.ProductID),
			Name:         item.Name,
			Image:        item.Image,
			UnitPrice:    item.UnitPrice,
			PreSalePrice: item.PreSalePrice,
			Quantity:     item.Quantity,
			Variant:      strings.TrimSpace(item.Variant),
		})
	}
	for _, entry := range order.StatusHistory {
		doc.StatusHistory = append(doc.StatusHistory, statusDocument{
			Status:    string(entry.Status),
			Note:      entry.Note,
			UpdatedBy: entry.UpdatedBy,
			UpdatedAt: entry.UpdatedAt.UTC(),
		})
	}
	return doc
}

func (d orderDocument) toDomain(id string) domain.Order {
	order := domain.Order{
		ID:            id,
		Code:          strings.TrimSpace(d.Code),
		UserID:        strings.TrimSpace(d.UserID),
		Items:         make([]domain.OrderLineItem, 0, len(d.Items)),
		Totals:        domain.OrderTotals(d.Totals),
		Status:        domain.OrderStatus(d.Status),
		PaymentMethod: domain.PaymentMethod(d.PaymentMethod),
		PaymentStatus: domain.PaymentStatus(d.PaymentStatus),
		PaymentRef:    strings.TrimSpace(d.PaymentRef),
		StatusHistory: make([]domain.StatusEntry, 0, len(d.StatusHistory)),
		CouponID:      strings.TrimSpace(d.CouponID),
		Shipping: domain.ShippingInfo{
			FullName: d.Shipping.FullName,
			Phone:    d.Shipping.Phone,
			Address:  d.Shipping.Address,
			Note:     d.Shipping.Note,
		},
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	for _, item := range d.Items {
		order.Items = append(order.Items, domain.OrderLineItem{
			ProductID:    item.ProductID,
			Name:         item.Name,
			Image:        item.Image,
			UnitPrice:    item.UnitPrice,
			PreSalePrice: item.PreSalePrice,
			Quantity:     item.Quantity,
			Variant:      item.Variant,
		})
	}
	for _, entry := range d.StatusHistory {
		order.StatusHistory = append(order.StatusHistory, domain.StatusEntry{
			Status:    domain.OrderStatus(entry.Status),
			Note:      entry.Note,
			UpdatedBy: entry.UpdatedBy,
			UpdatedAt: entry.UpdatedAt,
		})
	}
	return order
}

type orderPageToken struct {
	CreatedAt time.Time
	Code      string
}

func encodeOrderPageToken(token orderPageToken) (string, error) {
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(token); err != nil {
		return "", fmt.Errorf("encode order page token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes.TrimSpace(buf.Bytes())), nil
}

func decodeOrderPageToken(encoded string) (*orderPageToken, error) {
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode order page token: %w", err)
	}
	var token orderPageToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("decode order page token json: %w", err)
	}
	return &token, nil
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
