// Package memory implements the repositories in process memory, for local
// runs and tests. A single mutex guards all collections so that an order
// write and its coupon increment are atomic.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/xenking/cafe-ordering/internal/domain/coupon"
	"github.com/xenking/cafe-ordering/internal/domain/menu"
	"github.com/xenking/cafe-ordering/internal/domain/order"
)

// Store holds every collection.
type Store struct {
	mu      sync.Mutex
	coupons map[string]coupon.Coupon
	orders  map[string]order.Order
	items   map[string]menu.Item
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		coupons: make(map[string]coupon.Coupon),
		orders:  make(map[string]order.Order),
		items:   make(map[string]menu.Item),
	}
}

// Coupons returns the coupon repository view of s.
func (s *Store) Coupons() *CouponRepository { return &CouponRepository{s: s} }

// Orders returns the order repository view of s.
func (s *Store) Orders() *OrderRepository { return &OrderRepository{s: s} }

// Menu returns the menu repository view of s.
func (s *Store) Menu() *MenuRepository { return &MenuRepository{s: s} }

var (
	_ coupon.Repository = (*CouponRepository)(nil)
	_ order.Repository  = (*OrderRepository)(nil)
	_ menu.Repository   = (*MenuRepository)(nil)
)

// CouponRepository implements coupon.Repository.
type CouponRepository struct {
	s *Store
}

func (r *CouponRepository) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.couponByCode(code)
	if !ok {
		return nil, coupon.ErrCouponNotFound
	}
	return clonePtr(c), nil
}

func (r *CouponRepository) Get(_ context.Context, id string) (*coupon.Coupon, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.coupons[id]
	if !ok {
		return nil, coupon.ErrCouponNotFound
	}
	return clonePtr(c), nil
}

func (r *CouponRepository) List(_ context.Context) ([]coupon.Coupon, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]coupon.Coupon, 0, len(r.s.coupons))
	for _, c := range r.s.coupons {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *CouponRepository) Create(_ context.Context, c *coupon.Coupon) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, taken := r.s.couponByCode(c.Code); taken {
		return coupon.ErrDuplicateCode
	}
	r.s.coupons[c.ID] = *c
	return nil
}

// Upsert inserts c or replaces the coupon with the same code, keeping its id
// and usage count.
func (r *CouponRepository) Upsert(_ context.Context, c *coupon.Coupon) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if existing, ok := r.s.couponByCode(c.Code); ok {
		c.ID = existing.ID
		c.UsedCount = existing.UsedCount
		c.CreatedAt = existing.CreatedAt
	}
	r.s.coupons[c.ID] = *c
	return nil
}

func (r *CouponRepository) Update(_ context.Context, c *coupon.Coupon) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.coupons[c.ID]
	if !ok {
		return coupon.ErrCouponNotFound
	}
	if other, taken := r.s.couponByCode(c.Code); taken && other.ID != c.ID {
		return coupon.ErrDuplicateCode
	}
	updated := *c
	updated.UsedCount = existing.UsedCount
	r.s.coupons[c.ID] = updated
	c.UsedCount = existing.UsedCount
	return nil
}

func (r *CouponRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.coupons[id]; !ok {
		return coupon.ErrCouponNotFound
	}
	delete(r.s.coupons, id)
	return nil
}

// couponByCode must be called with mu held.
func (s *Store) couponByCode(code string) (coupon.Coupon, bool) {
	code = coupon.NormalizeCode(code)
	for _, c := range s.coupons {
		if c.Code == code {
			return c, true
		}
	}
	return coupon.Coupon{}, false
}

// incrementUsage must be called with mu held. A coupon deleted since
// validation counts as exhausted.
func (s *Store) incrementUsage(code string) error {
	c, ok := s.couponByCode(code)
	if !ok || c.Exhausted() {
		return coupon.ErrUsageLimitReached
	}
	c.UsedCount++
	s.coupons[c.ID] = c
	return nil
}

// OrderRepository implements order.Repository.
type OrderRepository struct {
	s *Store
}

func (r *OrderRepository) Create(_ context.Context, o *order.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if o.Coupon != nil {
		if err := r.s.incrementUsage(o.Coupon.Code); err != nil {
			return err
		}
	}
	r.s.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (r *OrderRepository) Get(_ context.Context, id string) (*order.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	o, ok := r.s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	o = cloneOrder(o)
	return &o, nil
}

func (r *OrderRepository) List(_ context.Context, f order.Filter) ([]order.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []order.Order
	for _, o := range r.s.orders {
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *OrderRepository) UpdateStatus(_ context.Context, id string, from, to order.Status) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	o, ok := r.s.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	if o.Status != from {
		return order.ErrStatusConflict
	}
	o.Status = to
	r.s.orders[id] = o
	return nil
}

func (r *OrderRepository) AttachCoupon(_ context.Context, id string, c order.AppliedCoupon, total decimal.Decimal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	o, ok := r.s.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	if o.Status != order.StatusPending {
		return order.ErrNotPending
	}
	if o.Coupon != nil {
		return order.ErrCouponAlreadyApplied
	}
	if err := r.s.incrementUsage(c.Code); err != nil {
		return err
	}
	o.Coupon = &c
	o.TotalAmount = total
	r.s.orders[id] = o
	return nil
}

func (r *OrderRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.orders[id]; !ok {
		return order.ErrNotFound
	}
	delete(r.s.orders, id)
	return nil
}

func (r *OrderRepository) Sales(_ context.Context) (order.Sales, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out order.Sales
	for _, o := range r.s.orders {
		if o.Status != order.StatusDelivered {
			continue
		}
		out.Revenue = out.Revenue.Add(o.TotalAmount)
		out.Orders++
	}
	return out, nil
}

// MenuRepository implements menu.Repository.
type MenuRepository struct {
	s *Store
}

func (r *MenuRepository) List(_ context.Context, category menu.Category) ([]menu.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]menu.Item, 0, len(r.s.items))
	for _, it := range r.s.items {
		if category != "" && it.Category != category {
			continue
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

func (r *MenuRepository) GetByID(_ context.Context, id string) (*menu.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	it, ok := r.s.items[id]
	if !ok {
		return nil, menu.ErrNotFound
	}
	return &it, nil
}

func (r *MenuRepository) GetByIDs(_ context.Context, ids []string) ([]menu.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]menu.Item, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if it, ok := r.s.items[id]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

func (r *MenuRepository) Create(_ context.Context, it *menu.Item) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.items[it.ID] = *it
	return nil
}

func (r *MenuRepository) Update(_ context.Context, it *menu.Item) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.items[it.ID]
	if !ok {
		return menu.ErrNotFound
	}
	it.CreatedAt = existing.CreatedAt
	r.s.items[it.ID] = *it
	return nil
}

func (r *MenuRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.items[id]; !ok {
		return menu.ErrNotFound
	}
	delete(r.s.items, id)
	return nil
}

func clonePtr(c coupon.Coupon) *coupon.Coupon {
	if c.UsageLimit != nil {
		limit := *c.UsageLimit
		c.UsageLimit = &limit
	}
	return &c
}

func cloneOrder(o order.Order) order.Order {
	o.Items = append([]order.Item(nil), o.Items...)
	if o.Coupon != nil {
		applied := *o.Coupon
		o.Coupon = &applied
	}
	return o
}
