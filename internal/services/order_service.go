package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/storelane/api/internal/domain"
	"github.com/storelane/api/internal/payments"
	"github.com/storelane/api/internal/repositories"
)

const (
	orderEventCreated       = "order.created"
	orderEventStatusChanged = "order.status.changed"
	orderEventPaid          = "order.paid"

	orderIDPrefix   = "ord_"
	orderCodePrefix = "DH"
	orderCodeLength = 8
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderConflict indicates duplicate writes or concurrent updates.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderInvalidState indicates an invalid status transition was attempted.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrInvalidShipping indicates required shipping fields are missing.
	ErrInvalidShipping = errors.New("order: invalid shipping info")
	// ErrEmptyCart indicates the user has nothing to check out.
	ErrEmptyCart = errors.New("order: cart is empty")
	// ErrNoValidItems indicates every cart line was dropped during assembly.
	ErrNoValidItems = errors.New("order: no purchasable items in cart")
	// ErrOrderCodeExhausted indicates code generation kept colliding.
	ErrOrderCodeExhausted = errors.New("order: could not allocate a unique order code")
)

// Cancellation is legal from every non-terminal state; received and cancelled
// are terminal and have no outgoing transitions.
var orderStateTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending:    {domain.OrderStatusProcessing, domain.OrderStatusCancelled},
	domain.OrderStatusProcessing: {domain.OrderStatusHandover, domain.OrderStatusCancelled},
	domain.OrderStatusHandover:   {domain.OrderStatusShipping, domain.OrderStatusCancelled},
	domain.OrderStatusShipping:   {domain.OrderStatusDelivered, domain.OrderStatusCancelled},
	domain.OrderStatusDelivered:  {domain.OrderStatusReceived, domain.OrderStatusCancelled},
}

// Customers may only cancel before the order is confirmed; every later stage
// requires staff action.
var userCancellableStatuses = []domain.OrderStatus{
	domain.OrderStatusPending,
}

// History entries carry these labels when the caller supplies no note.
var statusHistoryNotes = map[domain.OrderStatus]string{
	domain.OrderStatusPending:    "order placed",
	domain.OrderStatusProcessing: "order confirmed",
	domain.OrderStatusHandover:   "handed over to carrier",
	domain.OrderStatusShipping:   "order in transit",
	domain.OrderStatusDelivered:  "order delivered",
	domain.OrderStatusReceived:   "receipt confirmed",
	domain.OrderStatusCancelled:  "order cancelled",
}

const orderCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders        repositories.OrderRepository
	Carts         repositories.CartRepository
	Catalog       repositories.CatalogRepository
	Stock         StockService
	Coupons       CouponService
	Providers     *payments.Registry
	ShippingFee   int64
	CodeAttempts  int
	CodeBackoff   time.Duration
	AtomicStock   bool
	Clock         func() time.Time
	IDGenerator   func() string
	CodeGenerator func() string
	Sleep         func(time.Duration)
	Events        OrderEventPublisher
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders       repositories.OrderRepository
	carts        repositories.CartRepository
	catalog      repositories.CatalogRepository
	stock        StockService
	coupons      CouponService
	providers    *payments.Registry
	shippingFee  int64
	codeAttempts int
	codeBackoff  time.Duration
	atomicStock  bool
	clock        func() time.Time
	newID        func() string
	newCode      func() string
	sleep        func(time.Duration)
	events       OrderEventPublisher
	logger       func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Carts == nil {
		return nil, errors.New("order service: cart repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("order service: catalog repository is required")
	}
	if deps.Stock == nil {
		return nil, errors.New("order service: stock service is required")
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
	codeGen := deps.CodeGenerator
	if codeGen == nil {
		codeGen = randomOrderCode
	}
	sleep := deps.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	attempts := deps.CodeAttempts
	if attempts <= 0 {
		attempts = 3
	}
	backoff := deps.CodeBackoff
	if backoff <= 0 {
		backoff = 50 * time.Millisecond
	}

	return &orderService{
		orders:       deps.Orders,
		carts:        deps.Carts,
		catalog:      deps.Catalog,
		stock:        deps.Stock,
		coupons:      deps.Coupons,
		providers:    deps.Providers,
		shippingFee:  deps.ShippingFee,
		codeAttempts: attempts,
		codeBackoff:  backoff,
		atomicStock:  deps.AtomicStock,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:   idGen,
		newCode: codeGen,
		sleep:   sleep,
		events:  deps.Events,
		logger:  logger,
	}, nil
}

func (s *orderService) Checkout(ctx context.Context, cmd CheckoutCommand) (Order, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Order{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	if err := validateShipping(cmd.Shipping); err != nil {
		return Order{}, err
	}

	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return Order{}, ErrEmptyCart
		}
		return Order{}, s.mapRepositoryError(err)
	}
	if len(cart.Items) == 0 {
		return Order{}, ErrEmptyCart
	}

	lines, err := s.assembleLines(ctx, cart.Items)
	if err != nil {
		return Order{}, err
	}
	if len(lines) == 0 {
		return Order{}, ErrNoValidItems
	}

	now := s.clock()
	totals := buildTotals(lines, s.shippingFee)

	var discount CouponDiscount
	if code := strings.TrimSpace(cmd.CouponCode); code != "" && s.coupons != nil {
		// A bad coupon never blocks checkout; the order proceeds undiscounted.
		applied, couponErr := s.coupons.Validate(ctx, code, totals.Total)
		if couponErr != nil {
			s.logger(ctx, "order.coupon.rejected", map[string]any{
				"code":  code,
				"error": couponErr.Error(),
			})
		} else {
			discount = applied
			totals.Discount = applied.Amount
		}
	}
	totals.GrandTotal = totals.Total + totals.ShippingFee - totals.Discount
	if totals.GrandTotal < 0 {
		totals.GrandTotal = 0
	}

	order := Order{
		ID:            orderIDPrefix + s.newID(),
		UserID:        userID,
		Items:         lines,
		Totals:        totals,
		Status:        domain.OrderStatusPending,
		PaymentMethod: normalizePaymentMethod(cmd.PaymentMethod),
		PaymentStatus: domain.PaymentStatusUnpaid,
		CouponID:      discount.CouponID,
		Shipping:      trimShipping(cmd.Shipping),
		StatusHistory: []StatusEntry{{
			Status:    domain.OrderStatusPending,
			Note:      statusHistoryNotes[domain.OrderStatusPending],
			UpdatedBy: userID,
			UpdatedAt: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if ref := strings.TrimSpace(cmd.PaymentRef); ref != "" {
		order.PaymentRef = ref
		order.PaymentStatus = domain.PaymentStatusPaid
	}

	if err := s.insertWithFreshCode(ctx, &order); err != nil {
		if s.atomicStock {
			// The reservation already happened; hand the units back.
			s.releaseLines(ctx, lines)
		}
		return Order{}, err
	}

	if !s.atomicStock {
		// Stock is deducted only once the order is durably written. A failed
		// deduction is logged, never unwound: the order stands.
		for _, line := range lines {
			err := s.stock.Decrement(ctx, CartItem{
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				Variant:   line.Variant,
			})
			if err != nil {
				s.logger(ctx, "order.stock.decrement.failed", map[string]any{
					"order":   order.ID,
					"product": line.ProductID,
					"variant": line.Variant,
					"error":   err.Error(),
				})
			}
		}
	}

	if clearErr := s.carts.Clear(ctx, userID); clearErr != nil {
		s.logger(ctx, "order.cart.clear.failed", map[string]any{
			"order": order.ID,
			"user":  userID,
			"error": clearErr.Error(),
		})
	}

	if discount.CouponID != "" {
		if usageErr := s.coupons.CommitUsage(ctx, discount.CouponID); usageErr != nil {
			s.logger(ctx, "order.coupon.usage.failed", map[string]any{
				"order":  order.ID,
				"coupon": discount.CouponID,
				"error":  usageErr.Error(),
			})
		}
	}

	s.publishEvent(ctx, OrderEventMessage{
		Event:      orderEventCreated,
		OrderID:    order.ID,
		OrderCode:  order.Code,
		UserID:     userID,
		Status:     string(order.Status),
		Amount:     order.Totals.GrandTotal,
		OccurredAt: now,
	})

	return order, nil
}

// assembleLines snapshots each cart line against the current catalog. Lines
// whose product has vanished are dropped; any availability violation aborts
// the whole checkout, so a single short line never yields a partial order.
// With atomic stock enabled the deduction itself is the availability check,
// and units reserved for earlier lines are handed back on abort.
func (s *orderService) assembleLines(ctx context.Context, items []CartItem) ([]OrderLineItem, error) {
	lines := make([]OrderLineItem, 0, len(items))
	for _, item := range items {
		product, err := s.catalog.FindByID(ctx, strings.TrimSpace(item.ProductID))
		if err != nil {
			var repoErr repositories.RepositoryError
			if errors.As(err, &repoErr) && repoErr.IsNotFound() {
				s.logSkippedLine(ctx, item, err)
				continue
			}
			s.releaseLines(ctx, lines)
			return nil, s.mapRepositoryError(err)
		}

		if err := s.stock.ValidateAvailability(product, item); err != nil {
			s.releaseLines(ctx, lines)
			return nil, err
		}

		if s.atomicStock {
			if _, err := s.stock.DecrementIfAvailable(ctx, item); err != nil {
				s.releaseLines(ctx, lines)
				return nil, err
			}
		}

		lines = append(lines, OrderLineItem{
			ProductID:    product.ID,
			Name:         product.Name,
			Image:        product.Image,
			UnitPrice:    product.UnitPrice(),
			PreSalePrice: product.Price,
			Quantity:     item.Quantity,
			Variant:      strings.TrimSpace(item.Variant),
		})
	}
	return lines, nil
}

// releaseLines compensates atomic reservations when assembly or persistence
// fails partway. Without atomic stock nothing has been deducted yet.
func (s *orderService) releaseLines(ctx context.Context, lines []OrderLineItem) {
	if !s.atomicStock {
		return
	}
	for _, line := range lines {
		err := s.stock.Restore(ctx, CartItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Variant:   line.Variant,
		})
		if err != nil {
			s.logger(ctx, "order.stock.release.failed", map[string]any{
				"product": line.ProductID,
				"variant": line.Variant,
				"error":   err.Error(),
			})
		}
	}
}

// insertWithFreshCode generates order codes until the insert stops colliding
// or the attempt budget runs out.
func (s *orderService) insertWithFreshCode(ctx context.Context, order *Order) error {
	for attempt := 0; attempt < s.codeAttempts; attempt++ {
		if attempt > 0 {
			s.sleep(s.codeBackoff)
		}
		order.Code = s.newCode()

		err := s.orders.Insert(ctx, *order)
		if err == nil {
			return nil
		}

		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsConflict() {
			s.logger(ctx, "order.code.collision", map[string]any{
				"order":   order.ID,
				"code":    order.Code,
				"attempt": attempt + 1,
			})
			continue
		}
		return s.mapRepositoryError(err)
	}
	return ErrOrderCodeExhausted
}

func (s *orderService) GetOrder(ctx context.Context, orderID string, opts OrderReadOptions) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if user := strings.TrimSpace(opts.UserID); user != "" && order.UserID != user {
		// Foreign orders read as missing; ownership is not disclosed.
		return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, userID string, pager Pagination) (domain.CursorPage[Order], error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.CursorPage[Order]{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	page, err := s.orders.ListByUser(ctx, userID, pager)
	if err != nil {
		return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *orderService) ListAllOrders(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[Order], error) {
	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *orderService) TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if !isKnownStatus(cmd.Target) {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, cmd.Target)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	return s.applyTransition(ctx, order, cmd.Target, cmd.Note, strings.TrimSpace(cmd.ActorID))
}

func (s *orderService) CancelByUser(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	userID := strings.TrimSpace(cmd.UserID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if userID == "" {
		return Order{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if order.UserID != userID {
		return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	if !slices.Contains(userCancellableStatuses, order.Status) {
		return Order{}, fmt.Errorf("%w: order status %q cannot be cancelled by the customer", ErrOrderInvalidState, order.Status)
	}

	note := strings.TrimSpace(cmd.Reason)
	if note == "" {
		note = "cancelled by customer"
	}
	return s.applyTransition(ctx, order, domain.OrderStatusCancelled, note, userID)
}

func (s *orderService) LegalNextStatuses(order Order) []OrderStatus {
	candidates := orderStateTransitions[order.Status]
	out := make([]OrderStatus, 0, len(candidates))
	for _, status := range candidates {
		if domain.Visited(order.StatusHistory, status) {
			continue
		}
		out = append(out, status)
	}
	return out
}

func (s *orderService) HandlePaymentNotification(ctx context.Context, cmd PaymentNotificationCommand) (PaymentNotificationResult, error) {
	if s.providers == nil {
		return PaymentNotificationResult{}, payments.ErrUnsupportedProvider
	}
	provider, err := s.providers.Lookup(cmd.Provider)
	if err != nil {
		return PaymentNotificationResult{}, err
	}

	notification, err := provider.VerifyNotification(ctx, payments.IPNRequest{
		Body:    cmd.Body,
		Headers: http.Header(cmd.Headers),
	})
	if err != nil {
		return PaymentNotificationResult{}, err
	}
	result := PaymentNotificationResult{TransactionID: notification.TransactionID}

	if !notification.Success {
		// Declined and aborted payments are acknowledged and dropped; no
		// order exists yet, so there is nothing to unwind.
		s.logger(ctx, "order.payment.declined", map[string]any{
			"provider":    notification.Provider,
			"transaction": notification.TransactionID,
			"message":     notification.Message,
		})
		return result, nil
	}

	// Replays of an already-recorded transaction acknowledge without mutating.
	if notification.TransactionID != "" {
		existing, refErr := s.orders.FindByPaymentRef(ctx, notification.TransactionID)
		if refErr == nil {
			result.OrderID = existing.ID
			result.OrderCode = existing.Code
			result.Duplicate = true
			result.Paid = true
			return result, nil
		}
		var repoErr repositories.RepositoryError
		if !errors.As(refErr, &repoErr) || !repoErr.IsNotFound() {
			return PaymentNotificationResult{}, s.mapRepositoryError(refErr)
		}
	}

	checkout, err := checkoutCommandFromNotification(notification)
	if err != nil {
		// The gateway retries on non-acknowledgement, so a payload this
		// service can never decode is acknowledged rather than bounced.
		s.logger(ctx, "order.payment.payload.invalid", map[string]any{
			"provider":    notification.Provider,
			"transaction": notification.TransactionID,
			"error":       err.Error(),
		})
		return result, nil
	}

	order, err := s.Checkout(ctx, checkout)
	if err != nil {
		return PaymentNotificationResult{}, err
	}

	s.publishEvent(ctx, OrderEventMessage{
		Event:      orderEventPaid,
		OrderID:    order.ID,
		OrderCode:  order.Code,
		UserID:     order.UserID,
		Status:     string(order.Status),
		Amount:     notification.Amount,
		OccurredAt: s.clock(),
	})

	result.OrderID = order.ID
	result.OrderCode = order.Code
	result.Paid = true
	return result, nil
}

// checkoutCommandFromNotification rebuilds the checkout intent the storefront
// tunnelled through the gateway's opaque extra-data field.
func checkoutCommandFromNotification(n payments.Notification) (CheckoutCommand, error) {
	extra, ok := n.Raw["extraData"].(map[string]any)
	if !ok {
		return CheckoutCommand{}, errors.New("notification carries no extra data")
	}
	str := func(key string) string {
		v, _ := extra[key].(string)
		return strings.TrimSpace(v)
	}

	cmd := CheckoutCommand{
		UserID: str("userId"),
		Shipping: ShippingInfo{
			FullName: str("fullName"),
			Phone:    str("phone"),
			Address:  str("address"),
			Note:     str("note"),
		},
		CouponCode:    str("couponCode"),
		PaymentMethod: n.Provider,
		PaymentRef:    n.TransactionID,
	}
	if cmd.UserID == "" {
		return CheckoutCommand{}, errors.New("notification extra data is missing the user id")
	}
	return cmd, nil
}

// applyTransition enforces the transition table, performs cancellation side
// effects, persists the order, and emits the status event.
func (s *orderService) applyTransition(ctx context.Context, order Order, target domain.OrderStatus, note, actor string) (Order, error) {
	current := order.Status
	if current == target {
		return Order{}, fmt.Errorf("%w: order already %s", ErrOrderInvalidState, target)
	}
	if domain.Visited(order.StatusHistory, target) {
		return Order{}, fmt.Errorf("%w: order already passed through %s", ErrOrderInvalidState, target)
	}
	if !canTransition(current, target) {
		return Order{}, fmt.Errorf("%w: %s to %s", ErrOrderInvalidState, current, target)
	}

	now := s.clock()

	if target == domain.OrderStatusCancelled {
		s.restoreStock(ctx, order)
	}

	order.Status = target
	if target == domain.OrderStatusDelivered || target == domain.OrderStatusReceived {
		order.PaymentStatus = domain.PaymentStatusPaid
	}
	entryNote := strings.TrimSpace(note)
	if entryNote == "" {
		entryNote = statusHistoryNotes[target]
	}
	order.StatusHistory = append(order.StatusHistory, StatusEntry{
		Status:    target,
		Note:      entryNote,
		UpdatedBy: actor,
		UpdatedAt: now,
	})
	order.UpdatedAt = now

	if err := s.orders.Update(ctx, order); err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEventMessage{
		Event:      orderEventStatusChanged,
		OrderID:    order.ID,
		OrderCode:  order.Code,
		UserID:     order.UserID,
		Status:     string(target),
		Previous:   string(current),
		OccurredAt: now,
	})

	return order, nil
}

// restoreStock returns each line's quantity to the catalog. Restock failures
// are logged and do not block the cancellation itself.
func (s *orderService) restoreStock(ctx context.Context, order Order) {
	for _, line := range order.Items {
		err := s.stock.Restore(ctx, CartItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Variant:   line.Variant,
		})
		if err != nil {
			s.logger(ctx, "order.stock.restore.failed", map[string]any{
				"order":   order.ID,
				"product": line.ProductID,
				"variant": line.Variant,
				"error":   err.Error(),
			})
		}
	}
}

func (s *orderService) logSkippedLine(ctx context.Context, item CartItem, err error) {
	s.logger(ctx, "order.item.skipped", map[string]any{
		"product": item.ProductID,
		"variant": item.Variant,
		"error":   err.Error(),
	})
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}
	return err
}

func (s *orderService) publishEvent(ctx context.Context, message OrderEventMessage) {
	if s.events == nil {
		return
	}
	if _, err := s.events.PublishOrderEvent(ctx, message); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"event": message.Event,
			"order": message.OrderID,
			"error": err.Error(),
		})
	}
}

func validateShipping(info ShippingInfo) error {
	if strings.TrimSpace(info.FullName) == "" {
		return fmt.Errorf("%w: full name is required", ErrInvalidShipping)
	}
	if strings.TrimSpace(info.Phone) == "" {
		return fmt.Errorf("%w: phone is required", ErrInvalidShipping)
	}
	if strings.TrimSpace(info.Address) == "" {
		return fmt.Errorf("%w: address is required", ErrInvalidShipping)
	}
	return nil
}

func trimShipping(info ShippingInfo) ShippingInfo {
	return ShippingInfo{
		FullName: strings.TrimSpace(info.FullName),
		Phone:    strings.TrimSpace(info.Phone),
		Address:  strings.TrimSpace(info.Address),
		Note:     strings.TrimSpace(info.Note),
	}
}

// normalizePaymentMethod folds unknown payment methods to cash on delivery.
func normalizePaymentMethod(method string) PaymentMethod {
	switch strings.ToLower(strings.TrimSpace(method)) {
	case string(domain.PaymentMethodMoMo):
		return domain.PaymentMethodMoMo
	case string(domain.PaymentMethodBankTransfer):
		return domain.PaymentMethodBankTransfer
	default:
		return domain.PaymentMethodCOD
	}
}

// buildTotals prices the order. SubTotal is the pre-sale value of the lines,
// Total is what the lines actually cost, and Savings is the gap between them.
// Shipping joins only at the grand total.
func buildTotals(lines []OrderLineItem, shippingFee int64) OrderTotals {
	var subtotal, total int64
	for _, line := range lines {
		listPrice := line.PreSalePrice
		if listPrice < line.UnitPrice {
			listPrice = line.UnitPrice
		}
		subtotal += listPrice * line.Quantity
		total += line.UnitPrice * line.Quantity
	}
	return OrderTotals{
		SubTotal:    subtotal,
		Total:       total,
		Savings:     subtotal - total,
		ShippingFee: shippingFee,
	}
}

func isKnownStatus(status domain.OrderStatus) bool {
	switch status {
	case domain.OrderStatusPending, domain.OrderStatusProcessing, domain.OrderStatusHandover,
		domain.OrderStatusShipping, domain.OrderStatusDelivered, domain.OrderStatusReceived,
		domain.OrderStatusCancelled:
		return true
	}
	return false
}

func canTransition(current, target domain.OrderStatus) bool {
	next, ok := orderStateTransitions[current]
	if !ok {
		return false
	}
	return slices.Contains(next, target)
}

// randomOrderCode builds a short human-readable code like DH7KQ2M9XP.
// The alphabet omits easily confused characters.
func randomOrderCode() string {
	buf := make([]byte, orderCodeLength)
	if _, err := rand.Read(buf); err != nil {
		// ULID entropy as a fallback keeps codes unique enough to retry on.
		id := ulid.Make().String()
		return orderCodePrefix + id[len(id)-orderCodeLength:]
	}
	for i, b := range buf {
		buf[i] = orderCodeAlphabet[int(b)%len(orderCodeAlphabet)]
	}
	return orderCodePrefix + string(buf)
}
