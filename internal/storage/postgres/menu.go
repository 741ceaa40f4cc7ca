package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/cafe-ordering/internal/domain/menu"
)

const menuColumns = `id, name, category, cost, description, image, created_at, updated_at`

const (
	listMenuSQL = `SELECT ` + menuColumns + ` FROM menu_items
		WHERE ($1 = '' OR category = $1)
		ORDER BY name, id`
	getMenuItemSQL    = `SELECT ` + menuColumns + ` FROM menu_items WHERE id = $1`
	getMenuItemsSQL   = `SELECT ` + menuColumns + ` FROM menu_items WHERE id = ANY($1)`
	createMenuItemSQL = `INSERT INTO menu_items (id, name, category, cost, description, image, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	upsertMenuItemSQL = createMenuItemSQL + `
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			cost = EXCLUDED.cost,
			description = EXCLUDED.description,
			image = EXCLUDED.image,
			updated_at = EXCLUDED.updated_at`
	updateMenuItemSQL = `UPDATE menu_items SET name = $2, category = $3, cost = $4,
		description = $5, image = $6, updated_at = $7
		WHERE id = $1
		RETURNING created_at`
	deleteMenuItemSQL = `DELETE FROM menu_items WHERE id = $1`
)

var _ menu.Repository = (*MenuRepository)(nil)

// MenuRepository implements menu.Repository backed by PostgreSQL.
type MenuRepository struct {
	pool *pgxpool.Pool
}

// NewMenuRepository returns a MenuRepository that uses the given pool.
func NewMenuRepository(pool *pgxpool.Pool) *MenuRepository {
	return &MenuRepository{pool: pool}
}

// List returns menu items ordered by name, optionally narrowed to a category.
func (r *MenuRepository) List(ctx context.Context, category menu.Category) ([]menu.Item, error) {
	rows, err := r.pool.Query(ctx, listMenuSQL, string(category))
	if err != nil {
		return nil, fmt.Errorf("listing menu items: %w", err)
	}

	items, err := pgx.CollectRows(rows, scanMenuItem)
	if err != nil {
		return nil, fmt.Errorf("listing menu items: %w", err)
	}
	return items, nil
}

// GetByID returns a single item. It returns menu.ErrNotFound when no item
// matches.
func (r *MenuRepository) GetByID(ctx context.Context, id string) (*menu.Item, error) {
	rows, err := r.pool.Query(ctx, getMenuItemSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting menu item %q: %w", id, err)
	}

	it, err := pgx.CollectExactlyOneRow(rows, scanMenuItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, menu.ErrNotFound
		}
		return nil, fmt.Errorf("getting menu item %q: %w", id, err)
	}
	return &it, nil
}

// GetByIDs returns the items whose ids are in ids, in no particular order.
func (r *MenuRepository) GetByIDs(ctx context.Context, ids []string) ([]menu.Item, error) {
	rows, err := r.pool.Query(ctx, getMenuItemsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting menu items: %w", err)
	}

	items, err := pgx.CollectRows(rows, scanMenuItem)
	if err != nil {
		return nil, fmt.Errorf("getting menu items: %w", err)
	}
	return items, nil
}

// Create inserts a new item.
func (r *MenuRepository) Create(ctx context.Context, it *menu.Item) error {
	_, err := r.pool.Exec(ctx, createMenuItemSQL, menuArgs(it)...)
	if err != nil {
		return fmt.Errorf("creating menu item %q: %w", it.Name, err)
	}
	return nil
}

// Upsert inserts it or overwrites the item with the same id.
func (r *MenuRepository) Upsert(ctx context.Context, it *menu.Item) error {
	_, err := r.pool.Exec(ctx, upsertMenuItemSQL, menuArgs(it)...)
	if err != nil {
		return fmt.Errorf("upserting menu item %q: %w", it.ID, err)
	}
	return nil
}

// Update overwrites the item with the same id.
func (r *MenuRepository) Update(ctx context.Context, it *menu.Item) error {
	err := r.pool.QueryRow(ctx, updateMenuItemSQL,
		it.ID, it.Name, string(it.Category), it.Cost, it.Description, it.Image, it.UpdatedAt,
	).Scan(&it.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return menu.ErrNotFound
		}
		return fmt.Errorf("updating menu item %q: %w", it.ID, err)
	}
	return nil
}

// Delete removes the item with the given id.
func (r *MenuRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteMenuItemSQL, id)
	if err != nil {
		return fmt.Errorf("deleting menu item %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return menu.ErrNotFound
	}
	return nil
}

func menuArgs(it *menu.Item) []any {
	return []any{
		it.ID, it.Name, string(it.Category), it.Cost, it.Description, it.Image, it.CreatedAt, it.UpdatedAt,
	}
}

func scanMenuItem(row pgx.CollectableRow) (menu.Item, error) {
	var (
		it       menu.Item
		category string
	)
	err := row.Scan(&it.ID, &it.Name, &category, &it.Cost, &it.Description, &it.Image, &it.CreatedAt, &it.UpdatedAt)
	it.Category = menu.Category(category)
	return it, err
}
