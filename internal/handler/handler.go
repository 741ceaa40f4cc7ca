// Package handler implements the café REST API on top of the domain services.
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/xenking/cafe-ordering/internal/domain/auth"
	"github.com/xenking/cafe-ordering/internal/domain/coupon"
	"github.com/xenking/cafe-ordering/internal/domain/menu"
	"github.com/xenking/cafe-ordering/internal/domain/order"
)

// Handler serves the REST API, delegating business logic to the domain
// services and the menu repository.
type Handler struct {
	menu      menu.Repository
	coupons   *coupon.Service
	validator *coupon.Validator
	orders    *order.Service
	tokens    *auth.Tokens

	now   func() time.Time
	newID func() string
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	menuRepo menu.Repository,
	coupons *coupon.Service,
	validator *coupon.Validator,
	orders *order.Service,
	tokens *auth.Tokens,
) *Handler {
	return &Handler{
		menu:      menuRepo,
		coupons:   coupons,
		validator: validator,
		orders:    orders,
		tokens:    tokens,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// Routes registers the API on r. Routes are registered flat, using groups
// only for middleware, so a route finder on the root mux resolves all of them.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/api/food", h.ListFood)
	r.Get("/api/food/{id}", h.GetFood)
	r.Post("/api/coupons/validate", h.ValidateCoupon)

	r.Group(func(r chi.Router) {
		r.Use(h.Authenticate)

		r.Post("/api/orders", h.PlaceOrder)
		r.Get("/api/orders/user", h.ListUserOrders)
		r.Get("/api/orders/{id}", h.GetOrder)
		r.Post("/api/coupons/apply", h.ApplyCoupon)

		r.Group(func(r chi.Router) {
			r.Use(RequireRole(auth.RoleStaff))

			r.Get("/api/orders", h.ListOrders)
			r.Get("/api/orders/pending", h.ListPendingOrders)
			r.Patch("/api/orders/{id}/status", h.UpdateOrderStatus)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireRole(auth.RoleAdmin))

			r.Post("/api/food", h.CreateFood)
			r.Put("/api/food/{id}", h.UpdateFood)
			r.Delete("/api/food/{id}", h.DeleteFood)

			r.Get("/api/coupons", h.ListCoupons)
			r.Post("/api/coupons", h.CreateCoupon)
			r.Get("/api/coupons/{id}", h.GetCoupon)
			r.Patch("/api/coupons/{id}", h.UpdateCoupon)
			r.Delete("/api/coupons/{id}", h.DeleteCoupon)

			r.Get("/api/orders/stats", h.SalesStats)
			r.Delete("/api/orders/{id}", h.DeleteOrder)
		})
	})
}

// NotFound answers unknown routes with the error envelope.
func NotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "Route not found")
}

// MethodNotAllowed answers known routes called with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
}
