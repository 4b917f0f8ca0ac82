package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"go-storefront/models"
)

// Mongo implements the stores on a MongoDB database
type Mongo struct {
	Products *mongo.Collection
	Carts    *mongo.Collection
	Orders   *mongo.Collection
}

// NewMongo binds the store to the collections of db
func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{
		Products: db.Collection("products"),
		Carts:    db.Collection("carts"),
		Orders:   db.Collection("orders"),
	}
}

// EnsureIndexes creates the indexes the stores rely on for uniqueness
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	_, err := m.Carts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "owner", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("carts index: %w", err)
	}
	_, err = m.Orders.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "payment.gateway_order_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(
				bson.M{"payment.gateway_order_id": bson.M{"$exists": true}},
			),
		},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "user", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("orders index: %w", err)
	}
	_, err = m.Products.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "name", Value: 1}}},
		{Keys: bson.D{{Key: "category", Value: 1}, {Key: "price", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("products index: %w", err)
	}
	return nil
}

var after = options.FindOneAndUpdate().SetReturnDocument(options.After)

// Products

func (m *Mongo) GetProduct(ctx context.Context, id primitive.ObjectID) (models.Product, error) {
	var product models.Product
	err := m.Products.FindOne(ctx, bson.M{"_id": id}).Decode(&product)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Product{}, ErrNotFound
	}
	return product, err
}

func (m *Mongo) GetProducts(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Product, error) {
	out := make(map[primitive.ObjectID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cursor, err := m.Products.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var product models.Product
		if err := cursor.Decode(&product); err != nil {
			return nil, err
		}
		out[product.ID] = product
	}
	return out, cursor.Err()
}

func (m *Mongo) FindProductByName(ctx context.Context, name string) (models.Product, error) {
	var product models.Product
	err := m.Products.FindOne(ctx, bson.M{"name": name}).Decode(&product)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Product{}, ErrNotFound
	}
	return product, err
}

func (m *Mongo) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	query := bson.M{}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	price := bson.M{}
	if filter.MinPrice != nil {
		price["$gte"] = *filter.MinPrice
	}
	if filter.MaxPrice != nil {
		price["$lte"] = *filter.MaxPrice
	}
	if len(price) > 0 {
		query["price"] = price
	}

	cursor, err := m.Products.Find(ctx, query)
	if err != nil {
		return nil, err
	}
	products := []models.Product{}
	if err := cursor.All(ctx, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (m *Mongo) CreateProduct(ctx context.Context, product *models.Product) error {
	product.ID = primitive.NilObjectID
	result, err := m.Products.InsertOne(ctx, product)
	if err != nil {
		return err
	}
	product.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (m *Mongo) UpdateProduct(ctx context.Context, id primitive.ObjectID, product models.Product) (models.Product, error) {
	product.ID = primitive.NilObjectID
	var updated models.Product
	err := m.Products.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": product}, after).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Product{}, ErrNotFound
	}
	return updated, err
}

func (m *Mongo) DeleteProduct(ctx context.Context, id primitive.ObjectID) error {
	result, err := m.Products.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Carts

func (m *Mongo) GetCart(ctx context.Context, owner string) (models.Cart, error) {
	var cart models.Cart
	err := m.Carts.FindOne(ctx, bson.M{"owner": owner}).Decode(&cart)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Cart{Owner: owner, Items: []models.CartItem{}}, nil
	}
	return cart, err
}

// AddItem increments the quantity of an existing line in place, or pushes a
// new line guarded by $ne so two concurrent adds cannot create duplicates.
// The unique owner index turns a racing upsert into a duplicate key error,
// after which the increment path is retried.
func (m *Mongo) AddItem(ctx context.Context, owner string, productID primitive.ObjectID, quantity int) (models.Cart, error) {
	for attempt := 0; attempt < 3; attempt++ {
		now := time.Now().UTC()
		var cart models.Cart
		err := m.Carts.FindOneAndUpdate(ctx,
			bson.M{"owner": owner, "items.product_id": productID},
			bson.M{
				"$inc": bson.M{"items.$.quantity": quantity},
				"$set": bson.M{"updated_at": now},
			},
			after,
		).Decode(&cart)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return models.Cart{}, err
		}

		err = m.Carts.FindOneAndUpdate(ctx,
			bson.M{"owner": owner, "items.product_id": bson.M{"$ne": productID}},
			bson.M{
				"$push": bson.M{"items": models.CartItem{ProductID: productID, Quantity: quantity}},
				"$set":  bson.M{"updated_at": now},
			},
			options.FindOneAndUpdate().SetReturnDocument(options.After).SetUpsert(true),
		).Decode(&cart)
		if mongo.IsDuplicateKeyError(err) {
			continue
		}
		if err != nil {
			return models.Cart{}, err
		}
		return cart, nil
	}
	return models.Cart{}, ErrConflict
}

func (m *Mongo) SetItemQuantity(ctx context.Context, owner string, productID primitive.ObjectID, quantity int) (models.Cart, error) {
	update := bson.M{"$set": bson.M{"items.$.quantity": quantity, "updated_at": time.Now().UTC()}}
	if quantity <= 0 {
		update = bson.M{
			"$pull": bson.M{"items": bson.M{"product_id": productID}},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		}
	}
	var cart models.Cart
	err := m.Carts.FindOneAndUpdate(ctx, bson.M{"owner": owner, "items.product_id": productID}, update, after).Decode(&cart)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Cart{}, ErrItemNotFound
	}
	return cart, err
}

func (m *Mongo) RemoveItem(ctx context.Context, owner string, productID primitive.ObjectID) (models.Cart, error) {
	var cart models.Cart
	err := m.Carts.FindOneAndUpdate(ctx,
		bson.M{"owner": owner},
		bson.M{
			"$pull": bson.M{"items": bson.M{"product_id": productID}},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		},
		after,
	).Decode(&cart)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Cart{Owner: owner, Items: []models.CartItem{}}, nil
	}
	return cart, err
}

func (m *Mongo) ClearCart(ctx context.Context, owner string) error {
	_, err := m.Carts.UpdateOne(ctx, bson.M{"owner": owner}, bson.M{
		"$set": bson.M{"items": []models.CartItem{}, "updated_at": time.Now().UTC()},
	})
	return err
}

// DeductItems runs the per-line decrements and the final pull of emptied
// lines as one ordered bulk write on the owner's cart.
func (m *Mongo) DeductItems(ctx context.Context, owner string, items []models.CartItem) (models.Cart, error) {
	if len(items) == 0 {
		return m.GetCart(ctx, owner)
	}
	now := time.Now().UTC()
	writes := make([]mongo.WriteModel, 0, len(items)+1)
	for _, item := range items {
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"owner": owner, "items.product_id": item.ProductID}).
			SetUpdate(bson.M{
				"$inc": bson.M{"items.$.quantity": -item.Quantity},
				"$set": bson.M{"updated_at": now},
			}))
	}
	writes = append(writes, mongo.NewUpdateOneModel().
		SetFilter(bson.M{"owner": owner}).
		SetUpdate(bson.M{"$pull": bson.M{"items": bson.M{"quantity": bson.M{"$lte": 0}}}}))

	if _, err := m.Carts.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(true)); err != nil {
		return models.Cart{}, err
	}
	return m.GetCart(ctx, owner)
}

// Orders

func (m *Mongo) InsertOrder(ctx context.Context, order *models.Order) error {
	order.ID = primitive.NilObjectID
	result, err := m.Orders.InsertOne(ctx, order)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	if err != nil {
		return err
	}
	order.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (m *Mongo) GetOrder(ctx context.Context, id primitive.ObjectID) (models.Order, error) {
	return m.findOrder(ctx, bson.M{"_id": id})
}

func (m *Mongo) FindOrderByGatewayID(ctx context.Context, gatewayOrderID string) (models.Order, error) {
	return m.findOrder(ctx, bson.M{"payment.gateway_order_id": gatewayOrderID})
}

func (m *Mongo) findOrder(ctx context.Context, filter bson.M) (models.Order, error) {
	var order models.Order
	err := m.Orders.FindOne(ctx, filter).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Order{}, ErrNotFound
	}
	return order, err
}

func (m *Mongo) ListOrders(ctx context.Context, user string) ([]models.Order, error) {
	filter := bson.M{}
	if user != "" {
		filter["user"] = user
	}
	cursor, err := m.Orders.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	orders := []models.Order{}
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (m *Mongo) UpdateOrder(ctx context.Context, id primitive.ObjectID, prev models.OrderStatus, change models.OrderChange) (models.Order, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if change.Status != nil {
		set["status"] = *change.Status
	}
	if change.ShippingAddress != nil {
		set["shipping_address"] = *change.ShippingAddress
	}

	var order models.Order
	err := m.Orders.FindOneAndUpdate(ctx, bson.M{"_id": id, "status": prev}, bson.M{"$set": set}, after).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		count, cerr := m.Orders.CountDocuments(ctx, bson.M{"_id": id})
		if cerr != nil {
			return models.Order{}, cerr
		}
		if count == 0 {
			return models.Order{}, ErrNotFound
		}
		return models.Order{}, ErrConflict
	}
	return order, err
}

func (m *Mongo) DeleteOrder(ctx context.Context, id primitive.ObjectID) error {
	result, err := m.Orders.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
