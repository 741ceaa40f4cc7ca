package handler

import (
	"net/http"
	"unicode"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/cafe-ordering/internal/domain/auth"
	"github.com/xenking/cafe-ordering/internal/domain/coupon"
	"github.com/xenking/cafe-ordering/internal/domain/menu"
	"github.com/xenking/cafe-ordering/internal/domain/order"
	"github.com/xenking/cafe-ordering/internal/domain/pricing"
)

const (
	msgUnauthorized = "Please login to access this resource"
	msgForbidden    = "You do not have permission to access this resource"
	msgInternal     = "Internal server error"
)

var sentinelStatus = []struct {
	err  error
	code int
}{
	{coupon.ErrCouponNotFound, http.StatusNotFound},
	{order.ErrNotFound, http.StatusNotFound},
	{menu.ErrNotFound, http.StatusNotFound},

	{coupon.ErrCouponInactive, http.StatusBadRequest},
	{coupon.ErrCouponExpired, http.StatusBadRequest},
	{coupon.ErrUsageLimitReached, http.StatusBadRequest},
	{pricing.ErrInvalidDiscountType, http.StatusBadRequest},
	{order.ErrEmptyCart, http.StatusBadRequest},
	{order.ErrMissingAddress, http.StatusBadRequest},
	{order.ErrMissingContact, http.StatusBadRequest},
	{order.ErrMissingPaymentMethod, http.StatusBadRequest},
	{order.ErrInvalidOrderType, http.StatusBadRequest},
	{order.ErrInvalidStatus, http.StatusBadRequest},

	{coupon.ErrDuplicateCode, http.StatusConflict},
	{order.ErrCouponAlreadyApplied, http.StatusConflict},
	{order.ErrNotPending, http.StatusConflict},
}

// classify maps err to a status code and a client-facing message.
func classify(err error) (int, string) {
	var (
		reqErr       *requestError
		minErr       *coupon.MinimumOrderError
		qtyErr       *order.InvalidQuantityError
		itemErr      *order.MenuItemNotFoundError
		couponValErr *coupon.ValidationError
		menuValErr   *menu.ValidationError
		transErr     *order.TransitionError
	)
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest, reqErr.msg
	case errors.As(err, &minErr):
		return http.StatusBadRequest, minErr.Error()
	case errors.As(err, &qtyErr):
		return http.StatusBadRequest, capitalize(qtyErr.Error())
	case errors.As(err, &itemErr):
		return http.StatusBadRequest, capitalize(itemErr.Error())
	case errors.As(err, &couponValErr):
		return http.StatusBadRequest, "Invalid " + couponValErr.Error()
	case errors.As(err, &menuValErr):
		return http.StatusBadRequest, "Invalid " + menuValErr.Error()
	case errors.As(err, &transErr):
		return http.StatusConflict, capitalize(transErr.Error())
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, msgUnauthorized
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, msgForbidden
	}
	for _, s := range sentinelStatus {
		if errors.Is(err, s.err) {
			return s.code, capitalize(s.err.Error())
		}
	}
	return http.StatusInternalServerError, msgInternal
}

// respondError writes the error envelope for err. Unexpected errors are
// logged and reported without detail.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := classify(err)
	if code == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed",
			zap.Error(err),
			zap.String("http.request.method", r.Method),
			zap.String("url.path", r.URL.Path),
		)
	}
	writeError(w, code, msg)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
