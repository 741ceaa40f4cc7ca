package mongo

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xenking/cafe-ordering/internal/domain/coupon"
	"github.com/xenking/cafe-ordering/internal/domain/menu"
	"github.com/xenking/cafe-ordering/internal/domain/order"
	"github.com/xenking/cafe-ordering/internal/domain/pricing"
)

type couponModel struct {
	ID             string           `bson:"_id"`
	Code           string           `bson:"code"`
	Name           string           `bson:"name"`
	DiscountType   string           `bson:"discountType"`
	DiscountValue  bson.Decimal128  `bson:"discountValue"`
	MinOrderAmount bson.Decimal128  `bson:"minOrderAmount"`
	MaxDiscount    *bson.Decimal128 `bson:"maxDiscount"`
	UsageLimit     *int             `bson:"usageLimit"`
	UsedCount      int              `bson:"usedCount"`
	ExpiryDate     time.Time        `bson:"expiryDate"`
	IsActive       bool             `bson:"isActive"`
	CreatedAt      time.Time        `bson:"createdAt"`
	UpdatedAt      time.Time        `bson:"updatedAt"`
}

type menuItemModel struct {
	ID          string          `bson:"_id"`
	Name        string          `bson:"name"`
	Category    string          `bson:"category"`
	Cost        bson.Decimal128 `bson:"cost"`
	Description string          `bson:"description"`
	Image       string          `bson:"image"`
	CreatedAt   time.Time       `bson:"createdAt"`
	UpdatedAt   time.Time       `bson:"updatedAt"`
}

type orderModel struct {
	ID            string              `bson:"_id"`
	UserID        string              `bson:"userId"`
	Name          string              `bson:"name"`
	Email         string              `bson:"email"`
	Address       string              `bson:"address"`
	OrderType     string              `bson:"orderType"`
	PaymentMethod string              `bson:"paymentMethod"`
	Items         []orderItemModel    `bson:"items"`
	Subtotal      bson.Decimal128     `bson:"subtotal"`
	TotalAmount   bson.Decimal128     `bson:"totalAmount"`
	Coupon        *appliedCouponModel `bson:"coupon"`
	Status        string              `bson:"status"`
	CreatedAt     time.Time           `bson:"createdAt"`
	UpdatedAt     time.Time           `bson:"updatedAt"`
}

type orderItemModel struct {
	FoodItemID string          `bson:"foodItemId"`
	Name       string          `bson:"name"`
	Quantity   int             `bson:"quantity"`
	Price      bson.Decimal128 `bson:"price"`
}

type appliedCouponModel struct {
	Code           string          `bson:"code"`
	DiscountAmount bson.Decimal128 `bson:"discountAmount"`
}

func toDecimal128(d decimal.Decimal) bson.Decimal128 {
	// decimal.String never produces a value ParseDecimal128 rejects.
	v, _ := bson.ParseDecimal128(d.String())
	return v
}

func fromDecimal128(v bson.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse decimal128 %q", v.String())
	}
	return d, nil
}

func toCouponModel(c *coupon.Coupon) couponModel {
	m := couponModel{
		ID:             c.ID,
		Code:           c.Code,
		Name:           c.Name,
		DiscountType:   string(c.DiscountType),
		DiscountValue:  toDecimal128(c.DiscountValue),
		MinOrderAmount: toDecimal128(c.MinOrderAmount),
		UsageLimit:     c.UsageLimit,
		UsedCount:      c.UsedCount,
		ExpiryDate:     c.ExpiryDate,
		IsActive:       c.IsActive,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
	if c.MaxDiscount.Valid {
		v := toDecimal128(c.MaxDiscount.Decimal)
		m.MaxDiscount = &v
	}
	return m
}

func fromCouponModel(m *couponModel) (*coupon.Coupon, error) {
	value, err := fromDecimal128(m.DiscountValue)
	if err != nil {
		return nil, err
	}
	minOrder, err := fromDecimal128(m.MinOrderAmount)
	if err != nil {
		return nil, err
	}
	c := &coupon.Coupon{
		ID:             m.ID,
		Code:           m.Code,
		Name:           m.Name,
		DiscountType:   pricing.DiscountType(m.DiscountType),
		DiscountValue:  value,
		MinOrderAmount: minOrder,
		UsageLimit:     m.UsageLimit,
		UsedCount:      m.UsedCount,
		ExpiryDate:     m.ExpiryDate.UTC(),
		IsActive:       m.IsActive,
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
	}
	if m.MaxDiscount != nil {
		maxDiscount, err := fromDecimal128(*m.MaxDiscount)
		if err != nil {
			return nil, err
		}
		c.MaxDiscount = decimal.NewNullDecimal(maxDiscount)
	}
	return c, nil
}

func toMenuItemModel(it *menu.Item) menuItemModel {
	return menuItemModel{
		ID:          it.ID,
		Name:        it.Name,
		Category:    string(it.Category),
		Cost:        toDecimal128(it.Cost),
		Description: it.Description,
		Image:       it.Image,
		CreatedAt:   it.CreatedAt,
		UpdatedAt:   it.UpdatedAt,
	}
}

func fromMenuItemModel(m *menuItemModel) (menu.Item, error) {
	cost, err := fromDecimal128(m.Cost)
	if err != nil {
		return menu.Item{}, err
	}
	return menu.Item{
		ID:          m.ID,
		Name:        m.Name,
		Category:    menu.Category(m.Category),
		Cost:        cost,
		Description: m.Description,
		Image:       m.Image,
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}, nil
}

func toOrderModel(o *order.Order) orderModel {
	m := orderModel{
		ID:            o.ID,
		UserID:        o.UserID,
		Name:          o.Name,
		Email:         o.Email,
		Address:       o.Address,
		OrderType:     string(o.Type),
		PaymentMethod: o.PaymentMethod,
		Items:         make([]orderItemModel, len(o.Items)),
		Subtotal:      toDecimal128(o.Subtotal),
		TotalAmount:   toDecimal128(o.TotalAmount),
		Status:        string(o.Status),
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	for i, it := range o.Items {
		m.Items[i] = orderItemModel{
			FoodItemID: it.FoodItemID,
			Name:       it.Name,
			Quantity:   it.Quantity,
			Price:      toDecimal128(it.Price),
		}
	}
	if o.Coupon != nil {
		m.Coupon = toAppliedCouponModel(*o.Coupon)
	}
	return m
}

func toAppliedCouponModel(c order.AppliedCoupon) *appliedCouponModel {
	return &appliedCouponModel{Code: c.Code, DiscountAmount: toDecimal128(c.DiscountAmount)}
}

func fromOrderModel(m *orderModel) (order.Order, error) {
	subtotal, err := fromDecimal128(m.Subtotal)
	if err != nil {
		return order.Order{}, err
	}
	total, err := fromDecimal128(m.TotalAmount)
	if err != nil {
		return order.Order{}, err
	}
	o := order.Order{
		ID:            m.ID,
		UserID:        m.UserID,
		Name:          m.Name,
		Email:         m.Email,
		Address:       m.Address,
		Type:          order.Type(m.OrderType),
		PaymentMethod: m.PaymentMethod,
		Items:         make([]order.Item, len(m.Items)),
		Subtotal:      subtotal,
		TotalAmount:   total,
		Status:        order.Status(m.Status),
		CreatedAt:     m.CreatedAt.UTC(),
		UpdatedAt:     m.UpdatedAt.UTC(),
	}
	for i, it := range m.Items {
		price, err := fromDecimal128(it.Price)
		if err != nil {
			return order.Order{}, err
		}
		o.Items[i] = order.Item{
			FoodItemID: it.FoodItemID,
			Name:       it.Name,
			Quantity:   it.Quantity,
			Price:      price,
		}
	}
	if m.Coupon != nil {
		discount, err := fromDecimal128(m.Coupon.DiscountAmount)
		if err != nil {
			return order.Order{}, err
		}
		o.Coupon = &order.AppliedCoupon{Code: m.Coupon.Code, DiscountAmount: discount}
	}
	return o, nil
}
