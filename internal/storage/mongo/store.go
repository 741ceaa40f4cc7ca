// Package mongo implements the repositories on MongoDB. Usage counting
// relies on multi-document transactions, so the server must run as a
// replica set.
package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xenking/cafe-ordering/internal/domain/coupon"
	"github.com/xenking/cafe-ordering/internal/domain/menu"
	"github.com/xenking/cafe-ordering/internal/domain/order"
)

// Collection name constants.
const (
	colCoupons = "coupons"
	colOrders  = "orders"
	colMenu    = "menu_items"
)

// Store owns the client and hands out repository views.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials uri and selects database.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("cafe/mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("cafe/mongo: ping: %w", err)
	}
	return &Store{client: client, db: client.Database(database)}, nil
}

// Migrate creates indexes for all collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("cafe/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Coupons returns the coupon repository.
func (s *Store) Coupons() *CouponRepository {
	return &CouponRepository{col: s.db.Collection(colCoupons)}
}

// Orders returns the order repository.
func (s *Store) Orders() *OrderRepository {
	return &OrderRepository{
		client:  s.client,
		orders:  s.db.Collection(colOrders),
		coupons: s.db.Collection(colCoupons),
	}
}

// Menu returns the menu repository.
func (s *Store) Menu() *MenuRepository {
	return &MenuRepository{col: s.db.Collection(colMenu)}
}

var (
	_ coupon.Repository = (*CouponRepository)(nil)
	_ order.Repository  = (*OrderRepository)(nil)
	_ menu.Repository   = (*MenuRepository)(nil)
)

// ==================== Coupons ====================

// CouponRepository implements coupon.Repository.
type CouponRepository struct {
	col *mongo.Collection
}

func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	return r.findOne(ctx, bson.M{"code": coupon.NormalizeCode(code)})
}

func (r *CouponRepository) Get(ctx context.Context, id string) (*coupon.Coupon, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *CouponRepository) findOne(ctx context.Context, filter bson.M) (*coupon.Coupon, error) {
	var m couponModel
	if err := r.col.FindOne(ctx, filter).Decode(&m); err != nil {
		if isNoDocuments(err) {
			return nil, coupon.ErrCouponNotFound
		}
		return nil, fmt.Errorf("cafe/mongo: find coupon: %w", err)
	}
	return fromCouponModel(&m)
}

func (r *CouponRepository) List(ctx context.Context) ([]coupon.Coupon, error) {
	cur, err := r.col.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("cafe/mongo: list coupons: %w", err)
	}

	var models []couponModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("cafe/mongo: list coupons: %w", err)
	}

	result := make([]coupon.Coupon, len(models))
	for i := range models {
		c, err := fromCouponModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = *c
	}
	return result, nil
}

func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	if _, err := r.col.InsertOne(ctx, toCouponModel(c)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return coupon.ErrDuplicateCode
		}
		return fmt.Errorf("cafe/mongo: create coupon: %w", err)
	}
	return nil
}

// Upsert inserts c or overwrites the rule of the coupon with the same code.
// The stored id, usage count and creation time win and are copied back to c.
func (r *CouponRepository) Upsert(ctx context.Context, c *coupon.Coupon) error {
	m := toCouponModel(c)
	update := bson.M{
		"$set": bson.M{
			"name":           m.Name,
			"discountType":   m.DiscountType,
			"discountValue":  m.DiscountValue,
			"minOrderAmount": m.MinOrderAmount,
			"maxDiscount":    m.MaxDiscount,
			"usageLimit":     m.UsageLimit,
			"expiryDate":     m.ExpiryDate,
			"isActive":       m.IsActive,
			"updatedAt":      m.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"_id":       m.ID,
			"usedCount": 0,
			"createdAt": m.CreatedAt,
		},
	}

	var stored couponModel
	err := r.col.FindOneAndUpdate(ctx, bson.M{"code": m.Code}, update,
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&stored)
	if err != nil {
		return fmt.Errorf("cafe/mongo: upsert coupon %q: %w", c.Code, err)
	}
	c.ID = stored.ID
	c.UsedCount = stored.UsedCount
	c.CreatedAt = stored.CreatedAt.UTC()
	return nil
}

func (r *CouponRepository) Update(ctx context.Context, c *coupon.Coupon) error {
	m := toCouponModel(c)
	var stored couponModel
	err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": m.ID}, bson.M{
		"$set": bson.M{
			"code":           m.Code,
			"name":           m.Name,
			"discountType":   m.DiscountType,
			"discountValue":  m.DiscountValue,
			"minOrderAmount": m.MinOrderAmount,
			"maxDiscount":    m.MaxDiscount,
			"usageLimit":     m.UsageLimit,
			"expiryDate":     m.ExpiryDate,
			"isActive":       m.IsActive,
			"updatedAt":      m.UpdatedAt,
		},
	}, options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&stored)
	if err != nil {
		switch {
		case isNoDocuments(err):
			return coupon.ErrCouponNotFound
		case mongo.IsDuplicateKeyError(err):
			return coupon.ErrDuplicateCode
		}
		return fmt.Errorf("cafe/mongo: update coupon: %w", err)
	}
	c.UsedCount = stored.UsedCount
	return nil
}

func (r *CouponRepository) Delete(ctx context.Context, id string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("cafe/mongo: delete coupon: %w", err)
	}
	if res.DeletedCount == 0 {
		return coupon.ErrCouponNotFound
	}
	return nil
}

// ==================== Orders ====================

// OrderRepository implements order.Repository. Writes that touch a coupon
// run in a session transaction spanning both collections.
type OrderRepository struct {
	client  *mongo.Client
	orders  *mongo.Collection
	coupons *mongo.Collection
}

func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	m := toOrderModel(o)
	if o.Coupon == nil {
		if _, err := r.orders.InsertOne(ctx, m); err != nil {
			return fmt.Errorf("cafe/mongo: create order: %w", err)
		}
		return nil
	}

	return r.transact(ctx, func(ctx context.Context) error {
		if err := r.incrementUsage(ctx, o.Coupon.Code); err != nil {
			return err
		}
		if _, err := r.orders.InsertOne(ctx, m); err != nil {
			return fmt.Errorf("cafe/mongo: create order: %w", err)
		}
		return nil
	})
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	var m orderModel
	if err := r.orders.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		if isNoDocuments(err) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("cafe/mongo: get order: %w", err)
	}
	o, err := fromOrderModel(&m)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) List(ctx context.Context, f order.Filter) ([]order.Order, error) {
	filter := bson.M{}
	if f.UserID != "" {
		filter["userId"] = f.UserID
	}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	if f.Limit > 0 {
		opts = opts.SetLimit(int64(f.Limit))
	}

	cur, err := r.orders.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("cafe/mongo: list orders: %w", err)
	}
	var models []orderModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("cafe/mongo: list orders: %w", err)
	}

	result := make([]order.Order, len(models))
	for i := range models {
		o, err := fromOrderModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = o
	}
	return result, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to order.Status) error {
	res, err := r.orders.UpdateOne(ctx,
		bson.M{"_id": id, "status": string(from)},
		bson.M{"$set": bson.M{"status": string(to), "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("cafe/mongo: update order status: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	n, err := r.orders.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("cafe/mongo: update order status: %w", err)
	}
	if n == 0 {
		return order.ErrNotFound
	}
	return order.ErrStatusConflict
}

func (r *OrderRepository) AttachCoupon(ctx context.Context, id string, c order.AppliedCoupon, total decimal.Decimal) error {
	return r.transact(ctx, func(ctx context.Context) error {
		res, err := r.orders.UpdateOne(ctx,
			bson.M{"_id": id, "status": string(order.StatusPending), "coupon": nil},
			bson.M{"$set": bson.M{
				"coupon":      toAppliedCouponModel(c),
				"totalAmount": toDecimal128(total),
				"updatedAt":   time.Now().UTC(),
			}},
		)
		if err != nil {
			return fmt.Errorf("cafe/mongo: attach coupon: %w", err)
		}
		if res.MatchedCount == 0 {
			return r.orderState(ctx, id)
		}
		return r.incrementUsage(ctx, c.Code)
	})
}

// orderState explains why an order could not take a coupon.
func (r *OrderRepository) orderState(ctx context.Context, id string) error {
	var m orderModel
	if err := r.orders.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		if isNoDocuments(err) {
			return order.ErrNotFound
		}
		return fmt.Errorf("cafe/mongo: read order: %w", err)
	}
	if m.Coupon != nil {
		return order.ErrCouponAlreadyApplied
	}
	return order.ErrNotPending
}

func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	res, err := r.orders.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("cafe/mongo: delete order: %w", err)
	}
	if res.DeletedCount == 0 {
		return order.ErrNotFound
	}
	return nil
}

type salesModel struct {
	Revenue bson.Decimal128 `bson:"revenue"`
	Orders  int             `bson:"orders"`
}

// Sales sums the totals of delivered orders.
func (r *OrderRepository) Sales(ctx context.Context) (order.Sales, error) {
	cur, err := r.orders.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"status": string(order.StatusDelivered)}}},
		{{Key: "$group", Value: bson.M{
			"_id":     nil,
			"revenue": bson.M{"$sum": "$totalAmount"},
			"orders":  bson.M{"$sum": 1},
		}}},
	})
	if err != nil {
		return order.Sales{}, fmt.Errorf("cafe/mongo: sales: %w", err)
	}
	var rows []salesModel
	if err := cur.All(ctx, &rows); err != nil {
		return order.Sales{}, fmt.Errorf("cafe/mongo: sales: %w", err)
	}
	if len(rows) == 0 {
		return order.Sales{Revenue: decimal.Zero}, nil
	}

	revenue, err := fromDecimal128(rows[0].Revenue)
	if err != nil {
		return order.Sales{}, err
	}
	return order.Sales{Revenue: revenue, Orders: rows[0].Orders}, nil
}

// incrementUsage matches only while usedCount is below usageLimit.
func (r *OrderRepository) incrementUsage(ctx context.Context, code string) error {
	res, err := r.coupons.UpdateOne(ctx,
		bson.M{
			"code": code,
			"$or": bson.A{
				bson.M{"usageLimit": nil},
				bson.M{"$expr": bson.M{"$lt": bson.A{"$usedCount", "$usageLimit"}}},
			},
		},
		bson.M{
			"$inc": bson.M{"usedCount": 1},
			"$set": bson.M{"updatedAt": time.Now().UTC()},
		},
	)
	if err != nil {
		return fmt.Errorf("cafe/mongo: increment coupon %q: %w", code, err)
	}
	if res.MatchedCount == 0 {
		return coupon.ErrUsageLimitReached
	}
	return nil
}

func (r *OrderRepository) transact(ctx context.Context, fn func(ctx context.Context) error) error {
	sess, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("cafe/mongo: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	})
	return err
}

// ==================== Menu ====================

// MenuRepository implements menu.Repository.
type MenuRepository struct {
	col *mongo.Collection
}

func (r *MenuRepository) List(ctx context.Context, category menu.Category) ([]menu.Item, error) {
	filter := bson.M{}
	if category != "" {
		filter["category"] = string(category)
	}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}))
}

func (r *MenuRepository) GetByID(ctx context.Context, id string) (*menu.Item, error) {
	var m menuItemModel
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		if isNoDocuments(err) {
			return nil, menu.ErrNotFound
		}
		return nil, fmt.Errorf("cafe/mongo: get menu item: %w", err)
	}
	it, err := fromMenuItemModel(&m)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *MenuRepository) GetByIDs(ctx context.Context, ids []string) ([]menu.Item, error) {
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find())
}

func (r *MenuRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptionsBuilder) ([]menu.Item, error) {
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("cafe/mongo: find menu items: %w", err)
	}
	var models []menuItemModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("cafe/mongo: find menu items: %w", err)
	}

	result := make([]menu.Item, len(models))
	for i := range models {
		it, err := fromMenuItemModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = it
	}
	return result, nil
}

func (r *MenuRepository) Create(ctx context.Context, it *menu.Item) error {
	if _, err := r.col.InsertOne(ctx, toMenuItemModel(it)); err != nil {
		return fmt.Errorf("cafe/mongo: create menu item: %w", err)
	}
	return nil
}

// Upsert inserts it or replaces the item with the same id.
func (r *MenuRepository) Upsert(ctx context.Context, it *menu.Item) error {
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": it.ID}, toMenuItemModel(it),
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("cafe/mongo: upsert menu item: %w", err)
	}
	return nil
}

func (r *MenuRepository) Update(ctx context.Context, it *menu.Item) error {
	m := toMenuItemModel(it)
	var stored menuItemModel
	err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": m.ID}, bson.M{
		"$set": bson.M{
			"name":        m.Name,
			"category":    m.Category,
			"cost":        m.Cost,
			"description": m.Description,
			"image":       m.Image,
			"updatedAt":   m.UpdatedAt,
		},
	}, options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&stored)
	if err != nil {
		if isNoDocuments(err) {
			return menu.ErrNotFound
		}
		return fmt.Errorf("cafe/mongo: update menu item: %w", err)
	}
	it.CreatedAt = stored.CreatedAt.UTC()
	return nil
}

func (r *MenuRepository) Delete(ctx context.Context, id string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("cafe/mongo: delete menu item: %w", err)
	}
	if res.DeletedCount == 0 {
		return menu.ErrNotFound
	}
	return nil
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colCoupons: {
			{
				Keys:    bson.D{{Key: "code", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		},
		colOrders: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		colMenu: {
			{Keys: bson.D{{Key: "category", Value: 1}, {Key: "name", Value: 1}}},
		},
	}
}
