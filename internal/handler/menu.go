package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/cafe-ordering/internal/domain/menu"
)

// menuItemRequest holds the writable fields of a food item. Nil fields are
// left unchanged on update.
type menuItemRequest struct {
	Name        *string
	Category    *menu.Category
	Cost        *decimal.Decimal
	Description *string
	Image       *string
}

func (m *menuItemRequest) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "name":
			v, err := d.Str()
			m.Name = &v
			return err
		case "category":
			v, err := d.Str()
			c := menu.Category(v)
			m.Category = &c
			return err
		case "cost":
			v, err := decodeDecimal(d)
			if err != nil {
				return badRequest("Cost must be a positive number")
			}
			m.Cost = &v
			return nil
		case "description":
			v, err := d.Str()
			m.Description = &v
			return err
		case "image":
			v, err := d.Str()
			m.Image = &v
			return err
		default:
			return d.Skip()
		}
	})
}

func (m *menuItemRequest) apply(it *menu.Item) {
	if m.Name != nil {
		it.Name = strings.TrimSpace(*m.Name)
	}
	if m.Category != nil {
		it.Category = *m.Category
	}
	if m.Cost != nil {
		it.Cost = *m.Cost
	}
	if m.Description != nil {
		it.Description = strings.TrimSpace(*m.Description)
	}
	if m.Image != nil {
		it.Image = strings.TrimSpace(*m.Image)
	}
}

// ListFood returns the menu, optionally filtered by ?category=, both as a
// flat list and grouped by category.
func (h *Handler) ListFood(w http.ResponseWriter, r *http.Request) {
	category := menu.Category(r.URL.Query().Get("category"))
	if category != "" && !category.Valid() {
		respondError(w, r, badRequest("Invalid category"))
		return
	}

	items, err := h.menu.List(r.Context(), category)
	if err != nil {
		respondError(w, r, errors.Wrap(err, "list menu"))
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.FieldStart("data")
		e.ArrStart()
		for i := range items {
			encodeMenuItem(e, &items[i])
		}
		e.ArrEnd()

		e.FieldStart("categorizedData")
		e.ObjStart()
		for _, c := range menu.Categories {
			var started bool
			for i := range items {
				if items[i].Category != c {
					continue
				}
				if !started {
					e.FieldStart(string(c))
					e.ArrStart()
					started = true
				}
				encodeMenuItem(e, &items[i])
			}
			if started {
				e.ArrEnd()
			}
		}
		e.ObjEnd()
	})
}

// GetFood returns one menu item.
func (h *Handler) GetFood(w http.ResponseWriter, r *http.Request) {
	it, err := h.menu.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.FieldStart("data")
		encodeMenuItem(e, it)
	})
}

// CreateFood adds a menu item.
func (h *Handler) CreateFood(w http.ResponseWriter, r *http.Request) {
	var req menuItemRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Name == nil || req.Category == nil || req.Cost == nil {
		respondError(w, r, badRequest("Name, category, and cost are required"))
		return
	}

	now := h.now().UTC()
	it := &menu.Item{ID: h.newID(), CreatedAt: now, UpdatedAt: now}
	req.apply(it)
	if err := it.Validate(); err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.menu.Create(r.Context(), it); err != nil {
		respondError(w, r, errors.Wrap(err, "create menu item"))
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.FieldStart("data")
		encodeMenuItem(e, it)
	})
}

// UpdateFood changes the given fields of a menu item.
func (h *Handler) UpdateFood(w http.ResponseWriter, r *http.Request) {
	var req menuItemRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	ctx := r.Context()
	it, err := h.menu.GetByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	req.apply(it)
	it.UpdatedAt = h.now().UTC()
	if err := it.Validate(); err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.menu.Update(ctx, it); err != nil {
		respondError(w, r, errors.Wrap(err, "update menu item"))
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.FieldStart("data")
		encodeMenuItem(e, it)
	})
}

// DeleteFood removes a menu item. Placed orders keep their line snapshots.
func (h *Handler) DeleteFood(w http.ResponseWriter, r *http.Request) {
	if err := h.menu.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, message("Food item deleted"))
}
