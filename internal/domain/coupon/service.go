package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/cafe-ordering/internal/domain/pricing"
)

// Params holds the fields of a new coupon.
type Params struct {
	Code           string
	Name           string
	DiscountType   pricing.DiscountType
	DiscountValue  decimal.Decimal
	MinOrderAmount decimal.Decimal
	MaxDiscount    decimal.NullDecimal
	UsageLimit     *int
	ExpiryDate     time.Time
	// IsActive defaults to true when nil.
	IsActive *bool
}

// Patch lists the fields an admin update changes; nil fields are kept.
type Patch struct {
	Code           *string
	Name           *string
	DiscountType   *pricing.DiscountType
	DiscountValue  *decimal.Decimal
	MinOrderAmount *decimal.Decimal
	MaxDiscount    *decimal.NullDecimal
	// UsageLimit set to a nil inner pointer removes the limit.
	UsageLimit **int
	ExpiryDate *time.Time
	IsActive   *bool
}

// Service implements coupon administration.
type Service struct {
	repo  Repository
	now   func() time.Time
	newID func() string
}

// NewService creates a Service backed by repo.
func NewService(repo Repository) *Service {
	return &Service{
		repo:  repo,
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
}

// Create validates and persists a new coupon.
func (s *Service) Create(ctx context.Context, p Params) (*Coupon, error) {
	now := s.now().UTC()
	c := &Coupon{
		ID:             s.newID(),
		Code:           NormalizeCode(p.Code),
		Name:           p.Name,
		DiscountType:   p.DiscountType,
		DiscountValue:  p.DiscountValue,
		MinOrderAmount: p.MinOrderAmount,
		MaxDiscount:    p.MaxDiscount,
		UsageLimit:     p.UsageLimit,
		ExpiryDate:     p.ExpiryDate,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if p.IsActive != nil {
		c.IsActive = *p.IsActive
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, errors.Wrap(err, "create coupon")
	}
	return c, nil
}

// List returns every coupon, newest first.
func (s *Service) List(ctx context.Context) ([]Coupon, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list coupons")
	}
	return list, nil
}

// Get returns a coupon by id.
func (s *Service) Get(ctx context.Context, id string) (*Coupon, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get coupon")
	}
	return c, nil
}

// Update applies patch to the coupon with the given id. Usage counters are
// never touched by an update.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (*Coupon, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get coupon")
	}

	if patch.Code != nil {
		c.Code = NormalizeCode(*patch.Code)
	}
	if patch.Name != nil {
		c.Name = *patch.Name
	}
	if patch.DiscountType != nil {
		c.DiscountType = *patch.DiscountType
	}
	if patch.DiscountValue != nil {
		c.DiscountValue = *patch.DiscountValue
	}
	if patch.MinOrderAmount != nil {
		c.MinOrderAmount = *patch.MinOrderAmount
	}
	if patch.MaxDiscount != nil {
		c.MaxDiscount = *patch.MaxDiscount
	}
	if patch.UsageLimit != nil {
		c.UsageLimit = *patch.UsageLimit
	}
	if patch.ExpiryDate != nil {
		c.ExpiryDate = *patch.ExpiryDate
	}
	if patch.IsActive != nil {
		c.IsActive = *patch.IsActive
	}
	c.UpdatedAt = s.now().UTC()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, errors.Wrap(err, "update coupon")
	}
	return c, nil
}

// Delete removes a coupon. Orders keep their discount snapshot.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return errors.Wrap(err, "delete coupon")
	}
	return nil
}
