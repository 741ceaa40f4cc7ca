package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/cafe-ordering/internal/domain/auth"
	"github.com/xenking/cafe-ordering/internal/domain/coupon"
	"github.com/xenking/cafe-ordering/internal/domain/menu"
	"github.com/xenking/cafe-ordering/internal/domain/pricing"
)

const instrumentationName = "github.com/xenking/cafe-ordering/internal/domain/order"

// Default list sizes.
const (
	DefaultListLimit = 50
	PendingListLimit = 10
)

// Sentinel errors for order validation and lifecycle.
var (
	ErrEmptyCart            = errors.New("cart is empty")
	ErrMissingAddress       = errors.New("address is required for delivery orders")
	ErrMissingContact       = errors.New("name and email are required")
	ErrMissingPaymentMethod = errors.New("payment method is required")
	ErrInvalidOrderType     = errors.New("order type must be dine-in, takeout or delivery")
	ErrInvalidStatus        = errors.New("invalid order status")
	ErrNotFound             = errors.New("order not found")
	ErrNotPending           = errors.New("order is no longer pending")
	ErrCouponAlreadyApplied = errors.New("a coupon is already applied to this order")
	ErrStatusConflict       = errors.New("order status changed concurrently")
)

// MenuItemNotFoundError indicates a requested food item does not exist.
type MenuItemNotFoundError struct {
	FoodItemID string
}

func (e *MenuItemNotFoundError) Error() string {
	return fmt.Sprintf("food item %s not found", e.FoodItemID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	FoodItemID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for food item %s", e.FoodItemID)
}

// TransitionError indicates a status change the lifecycle does not allow.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot change order status from %s to %s", e.From, e.To)
}

// ItemSource provides menu prices at checkout.
type ItemSource interface {
	GetByIDs(ctx context.Context, ids []string) ([]menu.Item, error)
}

// CouponValidator checks a coupon code against a subtotal.
type CouponValidator interface {
	Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*coupon.Validated, error)
}

// LineRequest is a cart line as submitted by the client.
type LineRequest struct {
	FoodItemID string
	Quantity   int
}

// PlaceOrderRequest holds the input for placing an order. Client-side prices,
// totals and discounts are not part of it: they are always recomputed.
type PlaceOrderRequest struct {
	UserID        string
	Name          string
	Email         string
	Address       string
	Type          Type
	PaymentMethod string
	Items         []LineRequest
	CouponCode    string
}

// Service encapsulates order placement and lifecycle business logic.
type Service struct {
	items   ItemSource
	coupons CouponValidator
	orders  Repository

	now   func() time.Time
	newID func() string

	tracer     trace.Tracer
	placed     metric.Int64Counter
	rejections metric.Int64Counter
	totals     metric.Float64Histogram
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	items ItemSource,
	coupons CouponValidator,
	orders Repository,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (*Service, error) {
	meter := mp.Meter(instrumentationName)
	s := &Service{
		items:   items,
		coupons: coupons,
		orders:  orders,
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
		tracer:  tp.Tracer(instrumentationName),
	}

	var err error
	if s.placed, err = meter.Int64Counter("cafe.orders.placed",
		metric.WithDescription("Orders placed"),
	); err != nil {
		return nil, errors.Wrap(err, "orders placed counter")
	}
	if s.rejections, err = meter.Int64Counter("cafe.coupon.rejections",
		metric.WithDescription("Coupon applications rejected, by reason"),
	); err != nil {
		return nil, errors.Wrap(err, "coupon rejections counter")
	}
	if s.totals, err = meter.Float64Histogram("cafe.order.total",
		metric.WithDescription("Payable order totals"),
	); err != nil {
		return nil, errors.Wrap(err, "order total histogram")
	}
	return s, nil
}

// PlaceOrder validates the request, prices the cart from the menu, re-validates
// the coupon against the computed subtotal, and persists the order together
// with the coupon usage increment.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.PlaceOrder",
		trace.WithAttributes(attribute.Int("order.items", len(req.Items))),
	)
	defer func() { endSpan(span, rerr) }()

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	items, err := s.priceItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	o := &Order{
		ID:            s.newID(),
		UserID:        req.UserID,
		Name:          strings.TrimSpace(req.Name),
		Email:         strings.TrimSpace(req.Email),
		Address:       strings.TrimSpace(req.Address),
		Type:          req.Type,
		PaymentMethod: strings.TrimSpace(req.PaymentMethod),
		Items:         items,
		Status:        StatusPending,
	}

	var rule *pricing.Rule
	if code := coupon.NormalizeCode(req.CouponCode); code != "" {
		v, err := s.coupons.Validate(ctx, code, pricing.Subtotal(o.Lines()))
		if err != nil {
			s.rejected(ctx, err)
			return nil, errors.Wrap(err, "validate coupon")
		}
		r := v.Coupon.Rule()
		rule = &r
		o.Coupon = &AppliedCoupon{Code: v.Coupon.Code}
	}

	totals, err := pricing.Compute(o.Lines(), rule)
	if err != nil {
		return nil, errors.Wrap(err, "compute totals")
	}
	o.Subtotal = totals.Subtotal
	o.TotalAmount = totals.Total
	if o.Coupon != nil {
		o.Coupon.DiscountAmount = totals.Discount
	}

	now := s.now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now

	if err := s.orders.Create(ctx, o); err != nil {
		if errors.Is(err, coupon.ErrUsageLimitReached) {
			s.rejected(ctx, err)
			return nil, coupon.ErrUsageLimitReached
		}
		return nil, errors.Wrap(err, "create order")
	}

	couponAttr := attribute.Bool("coupon", o.Coupon != nil)
	s.placed.Add(ctx, 1, metric.WithAttributes(couponAttr, attribute.String("type", string(o.Type))))
	s.totals.Record(ctx, o.TotalAmount.InexactFloat64(), metric.WithAttributes(couponAttr))
	span.SetAttributes(attribute.String("order.id", o.ID))

	return o, nil
}

func validateRequest(req PlaceOrderRequest) error {
	if len(req.Items) == 0 {
		return ErrEmptyCart
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" {
		return ErrMissingContact
	}
	if !req.Type.Valid() {
		return ErrInvalidOrderType
	}
	if req.Type == TypeDelivery && strings.TrimSpace(req.Address) == "" {
		return ErrMissingAddress
	}
	if strings.TrimSpace(req.PaymentMethod) == "" {
		return ErrMissingPaymentMethod
	}
	for _, it := range req.Items {
		if it.Quantity <= 0 {
			return &InvalidQuantityError{FoodItemID: it.FoodItemID}
		}
	}
	return nil
}

// priceItems fetches all requested items in one batch and snapshots their
// names and costs into order lines.
func (s *Service) priceItems(ctx context.Context, lines []LineRequest) ([]Item, error) {
	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.FoodItemID
	}

	fetched, err := s.items.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get menu items")
	}
	byID := make(map[string]menu.Item, len(fetched))
	for _, it := range fetched {
		byID[it.ID] = it
	}

	items := make([]Item, len(lines))
	for i, l := range lines {
		m, ok := byID[l.FoodItemID]
		if !ok {
			return nil, &MenuItemNotFoundError{FoodItemID: l.FoodItemID}
		}
		items[i] = Item{
			FoodItemID: m.ID,
			Name:       m.Name,
			Quantity:   l.Quantity,
			Price:      m.Cost,
		}
	}
	return items, nil
}

// ApplyCoupon attaches a coupon to an existing pending order of the caller.
// The discount is computed from the stored lines, never taken from the client.
func (s *Service) ApplyCoupon(ctx context.Context, actor auth.Identity, orderID, code string) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.ApplyCoupon",
		trace.WithAttributes(attribute.String("order.id", orderID)),
	)
	defer func() { endSpan(span, rerr) }()

	o, err := s.Get(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusPending {
		return nil, ErrNotPending
	}
	if o.Coupon != nil {
		return nil, ErrCouponAlreadyApplied
	}

	v, err := s.coupons.Validate(ctx, code, o.Subtotal)
	if err != nil {
		s.rejected(ctx, err)
		return nil, errors.Wrap(err, "validate coupon")
	}
	rule := v.Coupon.Rule()
	totals, err := pricing.Compute(o.Lines(), &rule)
	if err != nil {
		return nil, errors.Wrap(err, "compute totals")
	}

	applied := AppliedCoupon{Code: v.Coupon.Code, DiscountAmount: totals.Discount}
	if err := s.orders.AttachCoupon(ctx, o.ID, applied, totals.Total); err != nil {
		switch {
		case errors.Is(err, coupon.ErrUsageLimitReached):
			s.rejected(ctx, err)
			return nil, coupon.ErrUsageLimitReached
		case errors.Is(err, ErrCouponAlreadyApplied), errors.Is(err, ErrNotFound):
			return nil, err
		}
		return nil, errors.Wrap(err, "attach coupon")
	}

	o.Coupon = &applied
	o.Subtotal = totals.Subtotal
	o.TotalAmount = totals.Total
	o.UpdatedAt = s.now().UTC()
	return o, nil
}

// Get returns an order visible to actor. Orders of other users are reported
// as not found.
func (s *Service) Get(ctx context.Context, actor auth.Identity, id string) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "get order")
	}
	if !o.VisibleTo(actor) {
		return nil, ErrNotFound
	}
	return o, nil
}

// List returns orders newest first, DefaultListLimit when no limit is given.
func (s *Service) List(ctx context.Context, f Filter) ([]Order, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	list, err := s.orders.List(ctx, f)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return list, nil
}

// Pending returns the staff queue of the most recent pending orders.
func (s *Service) Pending(ctx context.Context) ([]Order, error) {
	return s.List(ctx, Filter{Status: StatusPending, Limit: PendingListLimit})
}

// UpdateStatus moves an order along its lifecycle.
func (s *Service) UpdateStatus(ctx context.Context, id string, to Status) (*Order, error) {
	if !to.Valid() {
		return nil, ErrInvalidStatus
	}

	o, err := s.orders.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "get order")
	}
	if !CanTransition(o.Type, o.Status, to) {
		return nil, &TransitionError{From: o.Status, To: to}
	}

	if err := s.orders.UpdateStatus(ctx, id, o.Status, to); err != nil {
		if errors.Is(err, ErrStatusConflict) {
			return nil, &TransitionError{From: o.Status, To: to}
		}
		return nil, errors.Wrap(err, "update order status")
	}

	o.Status = to
	o.UpdatedAt = s.now().UTC()
	return o, nil
}

// Sales reports revenue and order count of delivered orders, rounded to cents.
func (s *Service) Sales(ctx context.Context) (Sales, error) {
	sales, err := s.orders.Sales(ctx)
	if err != nil {
		return Sales{}, errors.Wrap(err, "sales")
	}
	sales.Revenue = sales.Revenue.Round(2)
	return sales, nil
}

// Delete removes an order.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.orders.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return errors.Wrap(err, "delete order")
	}
	return nil
}

func (s *Service) rejected(ctx context.Context, err error) {
	s.rejections.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", coupon.Reason(err))))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
