package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/cafe-ordering/internal/domain/order"
)

// placeOrderRequest is the checkout payload. Client-side prices, subtotal,
// totalAmount and coupon discount are accepted but ignored.
type placeOrderRequest struct {
	Items         []order.LineRequest
	Name          string
	Email         string
	Address       string
	OrderType     string
	PaymentMethod string
	CouponCode    string
}

func (p *placeOrderRequest) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "items":
			err = d.Arr(func(d *jx.Decoder) error {
				line, err := decodeLine(d)
				if err != nil {
					return err
				}
				p.Items = append(p.Items, line)
				return nil
			})
		case "name":
			p.Name, err = d.Str()
		case "email":
			p.Email, err = d.Str()
		case "address":
			p.Address, err = d.Str()
		case "orderType":
			p.OrderType, err = d.Str()
		case "paymentMethod":
			p.PaymentMethod, err = d.Str()
		case "coupon":
			p.CouponCode, err = decodeCouponRef(d)
		default:
			err = d.Skip()
		}
		return err
	})
}

func decodeLine(d *jx.Decoder) (order.LineRequest, error) {
	var line order.LineRequest
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "foodItemId":
			line.FoodItemID, err = d.Str()
		case "quantity":
			line.Quantity, err = d.Int()
			if err != nil {
				return badRequest("Quantity must be an integer")
			}
		default:
			err = d.Skip()
		}
		return err
	})
	return line, err
}

// decodeCouponRef reads the coupon field, either a bare code or an object
// with a code. Anything else the client sends about the coupon is ignored.
func decodeCouponRef(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.Null:
		return "", d.Null()
	case jx.String:
		return d.Str()
	case jx.Object:
		var code string
		err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			if string(key) != "code" {
				return d.Skip()
			}
			if d.Next() == jx.Null {
				return d.Null()
			}
			var err error
			code, err = d.Str()
			return err
		})
		return code, err
	default:
		return "", badRequest("Invalid coupon")
	}
}

type statusRequest struct {
	Status string
}

func (s *statusRequest) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "status" {
			return d.Skip()
		}
		var err error
		s.Status, err = d.Str()
		return err
	})
}

// PlaceOrder prices the cart from the menu and places an order for the caller.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req placeOrderRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	o, err := h.orders.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		UserID:        id.UserID,
		Name:          req.Name,
		Email:         req.Email,
		Address:       req.Address,
		Type:          order.Type(req.OrderType),
		PaymentMethod: req.PaymentMethod,
		Items:         req.Items,
		CouponCode:    req.CouponCode,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.FieldStart("message")
		e.Str("Order placed successfully")
		e.FieldStart("order")
		encodeOrder(e, o)
	})
}

// ListUserOrders returns the caller's orders, newest first.
func (h *Handler) ListUserOrders(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	list, err := h.orders.List(r.Context(), order.Filter{UserID: id.UserID})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeOrders(w, list)
}

// ListOrders returns all orders, filtered by ?status= and capped by ?limit=.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := order.Filter{Status: order.Status(q.Get("status"))}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			respondError(w, r, badRequest("Limit must be a positive integer"))
			return
		}
		f.Limit = n
	}

	list, err := h.orders.List(r.Context(), f)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeOrders(w, list)
}

// ListPendingOrders returns the staff queue of pending orders.
func (h *Handler) ListPendingOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.orders.Pending(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeOrders(w, list)
}

// SalesStats reports revenue, count and average value of delivered orders.
func (h *Handler) SalesStats(w http.ResponseWriter, r *http.Request) {
	sales, err := h.orders.Sales(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.FieldStart("stats")
		e.ObjStart()
		e.FieldStart("totalRevenue")
		encodeMoney(e, sales.Revenue)
		e.FieldStart("totalOrders")
		e.Int(sales.Orders)
		e.FieldStart("averageOrderValue")
		encodeMoney(e, sales.Average())
		e.ObjEnd()
	})
}

// GetOrder returns an order of the caller; staff may read any order.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	o, err := h.orders.Get(r.Context(), id, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.FieldStart("order")
		encodeOrder(e, o)
	})
}

// UpdateOrderStatus moves an order along its lifecycle.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Status == "" {
		respondError(w, r, badRequest("Status is required"))
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), order.Status(req.Status))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.FieldStart("message")
		e.Str("Order status updated")
		e.FieldStart("order")
		encodeOrder(e, o)
	})
}

// DeleteOrder removes an order.
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, message("Order deleted"))
}

func writeOrders(w http.ResponseWriter, list []order.Order) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.FieldStart("orders")
		encodeOrders(e, list)
	})
}
