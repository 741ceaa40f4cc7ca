package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/cafe-ordering/internal/domain/coupon"
	"github.com/xenking/cafe-ordering/internal/domain/pricing"
)

type validateCouponRequest struct {
	Code        string
	OrderAmount decimal.Decimal
}

func (v *validateCouponRequest) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "code":
			s, err := d.Str()
			v.Code = s
			return err
		case "orderAmount":
			amount, err := decodeDecimal(d)
			if err != nil {
				return badRequest("Order amount must be a number")
			}
			v.OrderAmount = amount
			return nil
		default:
			return d.Skip()
		}
	})
}

type applyCouponRequest struct {
	Code    string
	OrderID string
}

func (a *applyCouponRequest) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "code":
			a.Code, err = d.Str()
		case "orderId":
			a.OrderID, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
}

// couponRequest decodes the admin coupon payload into a patch: absent fields
// stay nil, explicit nulls clear maxDiscount and usageLimit.
type couponRequest struct {
	coupon.Patch
}

func (c *couponRequest) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		field := string(key)
		switch field {
		case "code", "name", "discountType":
			s, err := d.Str()
			if err != nil {
				return err
			}
			switch field {
			case "code":
				c.Code = &s
			case "name":
				c.Name = &s
			default:
				t := pricing.DiscountType(s)
				c.DiscountType = &t
			}
			return nil
		case "discountValue", "minOrderAmount":
			v, err := decodeDecimal(d)
			if err != nil {
				return badRequest("Invalid " + field)
			}
			if field == "discountValue" {
				c.DiscountValue = &v
			} else {
				c.MinOrderAmount = &v
			}
			return nil
		case "maxDiscount":
			var v decimal.NullDecimal
			if d.Next() == jx.Null {
				if err := d.Null(); err != nil {
					return err
				}
			} else {
				amount, err := decodeDecimal(d)
				if err != nil {
					return badRequest("Invalid maxDiscount")
				}
				v = decimal.NewNullDecimal(amount)
			}
			c.MaxDiscount = &v
			return nil
		case "usageLimit":
			var limit *int
			if d.Next() == jx.Null {
				if err := d.Null(); err != nil {
					return err
				}
			} else {
				n, err := d.Int()
				if err != nil {
					return badRequest("Invalid usageLimit")
				}
				limit = &n
			}
			c.UsageLimit = &limit
			return nil
		case "expiryDate":
			t, err := decodeTime(d)
			if err != nil {
				return badRequest("Invalid expiryDate")
			}
			c.ExpiryDate = &t
			return nil
		case "isActive":
			v, err := d.Bool()
			c.IsActive = &v
			return err
		default:
			return d.Skip()
		}
	})
}

func (c *couponRequest) params() coupon.Params {
	var p coupon.Params
	if c.Code != nil {
		p.Code = *c.Code
	}
	if c.Name != nil {
		p.Name = strings.TrimSpace(*c.Name)
	}
	if c.DiscountType != nil {
		p.DiscountType = *c.DiscountType
	}
	if c.DiscountValue != nil {
		p.DiscountValue = *c.DiscountValue
	}
	if c.MinOrderAmount != nil {
		p.MinOrderAmount = *c.MinOrderAmount
	}
	if c.MaxDiscount != nil {
		p.MaxDiscount = *c.MaxDiscount
	}
	if c.UsageLimit != nil {
		p.UsageLimit = *c.UsageLimit
	}
	if c.ExpiryDate != nil {
		p.ExpiryDate = *c.ExpiryDate
	}
	p.IsActive = c.IsActive
	return p
}

// ValidateCoupon checks a code against an order amount without using it.
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req validateCouponRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		respondError(w, r, badRequest("Please provide a coupon code"))
		return
	}
	if req.OrderAmount.IsNegative() {
		respondError(w, r, badRequest("Order amount cannot be negative"))
		return
	}

	v, err := h.validator.Validate(r.Context(), req.Code, req.OrderAmount)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.FieldStart("coupon")
		encodeCouponSummary(e, v.Coupon)
		e.FieldStart("discountAmount")
		encodeMoney(e, v.Discount)
	})
}

// ApplyCoupon attaches a coupon to one of the caller's pending orders.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req applyCouponRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Code) == "" || req.OrderID == "" {
		respondError(w, r, badRequest("Coupon code and order ID are required"))
		return
	}

	o, err := h.orders.ApplyCoupon(r.Context(), id, req.OrderID, req.Code)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.FieldStart("message")
		e.Str("Coupon applied successfully")
		e.FieldStart("discountAmount")
		encodeMoney(e, o.Discount())
		e.FieldStart("finalAmount")
		encodeMoney(e, o.TotalAmount)
		e.FieldStart("order")
		encodeOrder(e, o)
	})
}

// ListCoupons returns every coupon, newest first.
func (h *Handler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	list, err := h.coupons.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.FieldStart("coupons")
		e.ArrStart()
		for i := range list {
			encodeCoupon(e, &list[i])
		}
		e.ArrEnd()
	})
}

// CreateCoupon adds a coupon.
func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Code == nil || req.Name == nil || req.DiscountType == nil || req.DiscountValue == nil || req.ExpiryDate == nil {
		respondError(w, r, badRequest("Please provide all required fields"))
		return
	}

	c, err := h.coupons.Create(r.Context(), req.params())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.FieldStart("message")
		e.Str("Coupon created successfully")
		e.FieldStart("coupon")
		encodeCoupon(e, c)
	})
}

// GetCoupon returns a coupon by id.
func (h *Handler) GetCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := h.coupons.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondCouponError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.FieldStart("coupon")
		encodeCoupon(e, c)
	})
}

// UpdateCoupon changes the given fields of a coupon; usedCount is read-only.
func (h *Handler) UpdateCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	c, err := h.coupons.Update(r.Context(), chi.URLParam(r, "id"), req.Patch)
	if err != nil {
		respondCouponError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.FieldStart("message")
		e.Str("Coupon updated successfully")
		e.FieldStart("coupon")
		encodeCoupon(e, c)
	})
}

// DeleteCoupon removes a coupon.
func (h *Handler) DeleteCoupon(w http.ResponseWriter, r *http.Request) {
	if err := h.coupons.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondCouponError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, message("Coupon deleted successfully"))
}

// respondCouponError reports an unknown coupon id as such rather than as an
// invalid code.
func respondCouponError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, coupon.ErrCouponNotFound) {
		writeError(w, http.StatusNotFound, "Coupon not found")
		return
	}
	respondError(w, r, err)
}
