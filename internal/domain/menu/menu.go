// Package menu describes the café's food items.
package menu

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Category groups menu items.
type Category string

const (
	CategoryPasta   Category = "pasta"
	CategoryCold    Category = "cold"
	CategoryDessert Category = "dess"
	CategoryHot     Category = "hot"
	CategorySides   Category = "sides"
)

// Categories lists every known category.
var Categories = []Category{CategoryPasta, CategoryCold, CategoryDessert, CategoryHot, CategorySides}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ErrNotFound is returned when a requested item does not exist.
var ErrNotFound = errors.New("food item not found")

// ValidationError describes a rejected item field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Item is a food item on the menu.
type Item struct {
	ID          string
	Name        string
	Category    Category
	Cost        decimal.Decimal
	Description string
	// Image is an absolute URL or an /uploads/ path; files are served elsewhere.
	Image     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks field constraints.
func (it *Item) Validate() error {
	name := strings.TrimSpace(it.Name)
	switch n := utf8.RuneCountInString(name); {
	case n < 2:
		return &ValidationError{Field: "name", Reason: "must be at least 2 characters"}
	case n > 50:
		return &ValidationError{Field: "name", Reason: "cannot exceed 50 characters"}
	}
	if !it.Category.Valid() {
		return &ValidationError{Field: "category", Reason: fmt.Sprintf("%q is not a valid category", it.Category)}
	}
	if !it.Cost.IsPositive() {
		return &ValidationError{Field: "cost", Reason: "must be greater than 0"}
	}
	if utf8.RuneCountInString(it.Description) > 500 {
		return &ValidationError{Field: "description", Reason: "cannot exceed 500 characters"}
	}
	if it.Image != "" && !strings.HasPrefix(it.Image, "/uploads/") && !strings.HasPrefix(it.Image, "http") {
		return &ValidationError{Field: "image", Reason: "invalid image path format"}
	}
	return nil
}

// Repository persists menu items.
type Repository interface {
	// List returns items ordered by name; an empty category lists everything.
	List(ctx context.Context, category Category) ([]Item, error)
	GetByID(ctx context.Context, id string) (*Item, error)
	// GetByIDs returns the items that exist; missing ids are skipped.
	GetByIDs(ctx context.Context, ids []string) ([]Item, error)
	Create(ctx context.Context, it *Item) error
	Update(ctx context.Context, it *Item) error
	Delete(ctx context.Context, id string) error
}
