package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/cafe-ordering/internal/domain/coupon"
	"github.com/xenking/cafe-ordering/internal/domain/menu"
	"github.com/xenking/cafe-ordering/internal/domain/order"
)

const maxBodySize = 1 << 20

// requestError is a malformed or incomplete request body. Its message is
// returned to the client as is.
type requestError struct {
	msg string
	err error
}

func (e *requestError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *requestError) Unwrap() error { return e.err }

func badRequest(msg string) error {
	return &requestError{msg: msg}
}

type decoder interface {
	Decode(d *jx.Decoder) error
}

// decodeBody reads a JSON object from the request body into v.
func decodeBody(r *http.Request, v decoder) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return &requestError{msg: "Invalid request body", err: err}
	}
	if len(data) > maxBodySize {
		return badRequest("Request body too large")
	}
	if err := v.Decode(jx.DecodeBytes(data)); err != nil {
		var re *requestError
		if errors.As(err, &re) {
			return re
		}
		return &requestError{msg: "Invalid request body", err: err}
	}
	return nil
}

const (
	// Money columns are NUMERIC(12,2).
	maxMoneyIntDigits = 10
	maxMoneyScale     = 16
	maxMoneyLen       = 32
)

var errMoneyRange = errors.New("amount out of range")

// decodeDecimal accepts a JSON number or a numeric string that fits a money
// column. Out of range values are rejected before any arithmetic.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		raw = s
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		raw = string(n)
	default:
		return decimal.Zero, errors.Errorf("expected number, got %s", d.Next())
	}
	return parseMoney(raw)
}

func parseMoney(s string) (decimal.Decimal, error) {
	if len(s) > maxMoneyLen {
		return decimal.Zero, errMoneyRange
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	exp := int(v.Exponent())
	if exp < -maxMoneyScale {
		return decimal.Zero, errMoneyRange
	}
	if v.NumDigits()+exp > maxMoneyIntDigits {
		return decimal.Zero, errMoneyRange
	}
	return v, nil
}

// decodeTime accepts RFC 3339 timestamps and plain dates, read as UTC midnight.
func decodeTime(d *jx.Decoder) (time.Time, error) {
	s, err := d.Str()
	if err != nil {
		return time.Time{}, err
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, errors.Errorf("invalid date %q", s)
	}
	return t, nil
}

// writeJSON writes {"success":true, ...fields} with the given status code.
func writeJSON(w http.ResponseWriter, code int, fields func(e *jx.Encoder)) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(true)
	if fields != nil {
		fields(&e)
	}
	e.ObjEnd()
	writeBody(w, code, e.Bytes())
}

// writeError writes the error envelope {"success":false,"message":...}.
func writeError(w http.ResponseWriter, code int, msg string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(false)
	e.FieldStart("message")
	e.Str(msg)
	e.ObjEnd()
	writeBody(w, code, e.Bytes())
}

func writeBody(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

func message(msg string) func(e *jx.Encoder) {
	return func(e *jx.Encoder) {
		e.FieldStart("message")
		e.Str(msg)
	}
}

// encodeMoney writes d as a JSON number with two decimals.
func encodeMoney(e *jx.Encoder, d decimal.Decimal) {
	e.Raw([]byte(d.StringFixed(2)))
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}

func encodeMenuItem(e *jx.Encoder, it *menu.Item) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(it.ID)
	e.FieldStart("name")
	e.Str(it.Name)
	e.FieldStart("category")
	e.Str(string(it.Category))
	e.FieldStart("cost")
	encodeMoney(e, it.Cost)
	e.FieldStart("description")
	e.Str(it.Description)
	e.FieldStart("image")
	e.Str(it.Image)
	e.FieldStart("createdAt")
	encodeTime(e, it.CreatedAt)
	e.FieldStart("updatedAt")
	encodeTime(e, it.UpdatedAt)
	e.ObjEnd()
}

func encodeCoupon(e *jx.Encoder, c *coupon.Coupon) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(c.ID)
	encodeCouponRule(e, c)
	e.FieldStart("usageLimit")
	if c.UsageLimit != nil {
		e.Int(*c.UsageLimit)
	} else {
		e.Null()
	}
	e.FieldStart("usedCount")
	e.Int(c.UsedCount)
	e.FieldStart("expiryDate")
	encodeTime(e, c.ExpiryDate)
	e.FieldStart("isActive")
	e.Bool(c.IsActive)
	e.FieldStart("createdAt")
	encodeTime(e, c.CreatedAt)
	e.FieldStart("updatedAt")
	encodeTime(e, c.UpdatedAt)
	e.ObjEnd()
}

// encodeCouponSummary writes the public view of a coupon returned by validation.
func encodeCouponSummary(e *jx.Encoder, c *coupon.Coupon) {
	e.ObjStart()
	encodeCouponRule(e, c)
	e.ObjEnd()
}

func encodeCouponRule(e *jx.Encoder, c *coupon.Coupon) {
	e.FieldStart("code")
	e.Str(c.Code)
	e.FieldStart("name")
	e.Str(c.Name)
	e.FieldStart("discountType")
	e.Str(string(c.DiscountType))
	e.FieldStart("discountValue")
	encodeMoney(e, c.DiscountValue)
	e.FieldStart("minOrderAmount")
	encodeMoney(e, c.MinOrderAmount)
	e.FieldStart("maxDiscount")
	if c.MaxDiscount.Valid {
		encodeMoney(e, c.MaxDiscount.Decimal)
	} else {
		e.Null()
	}
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("userId")
	e.Str(o.UserID)
	e.FieldStart("name")
	e.Str(o.Name)
	e.FieldStart("email")
	e.Str(o.Email)
	e.FieldStart("address")
	e.Str(o.Address)
	e.FieldStart("orderType")
	e.Str(string(o.Type))
	e.FieldStart("paymentMethod")
	e.Str(o.PaymentMethod)
	e.FieldStart("items")
	e.ArrStart()
	for _, it := range o.Items {
		e.ObjStart()
		e.FieldStart("foodItemId")
		e.Str(it.FoodItemID)
		e.FieldStart("name")
		e.Str(it.Name)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.FieldStart("price")
		encodeMoney(e, it.Price)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("subtotal")
	encodeMoney(e, o.Subtotal)
	e.FieldStart("totalAmount")
	encodeMoney(e, o.TotalAmount)
	if o.Coupon != nil {
		e.FieldStart("coupon")
		e.ObjStart()
		e.FieldStart("code")
		e.Str(o.Coupon.Code)
		e.FieldStart("discountAmount")
		encodeMoney(e, o.Coupon.DiscountAmount)
		e.ObjEnd()
	}
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("createdAt")
	encodeTime(e, o.CreatedAt)
	e.FieldStart("updatedAt")
	encodeTime(e, o.UpdatedAt)
	e.ObjEnd()
}

func encodeOrders(e *jx.Encoder, list []order.Order) {
	e.ArrStart()
	for i := range list {
		encodeOrder(e, &list[i])
	}
	e.ArrEnd()
}
