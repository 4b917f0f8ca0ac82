package controllers

import (
	"errors"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"go-storefront/models"
	"go-storefront/utils"
)

// ShopController serves the singleton shop profile
type ShopController struct {
	Collection *mongo.Collection
	Logger     *zap.Logger
}

// NewShopController creates a new ShopController
func NewShopController(db *mongo.Database, logger *zap.Logger) *ShopController {
	return &ShopController{Collection: db.Collection("shop"), Logger: logger}
}

// GetShop returns the shop profile
func (sc *ShopController) GetShop(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	var shop models.Shop
	err := sc.Collection.FindOne(ctx, bson.M{}).Decode(&shop)
	if errors.Is(err, mongo.ErrNoDocuments) {
		utils.WriteMessage(w, http.StatusOK, "No shop found. Please create one.")
		return
	}
	if err != nil {
		utils.WriteError(w, sc.Logger, utils.PersistenceError("Server error", err))
		return
	}
	utils.WriteJSON(w, http.StatusOK, shop)
}

// CreateShop creates the profile; there can only be one (Admin only)
func (sc *ShopController) CreateShop(w http.ResponseWriter, r *http.Request) {
	var shop models.Shop
	if err := decodeJSON(r, &shop); err != nil {
		utils.WriteError(w, sc.Logger, err)
		return
	}
	if err := utils.Validate(shop); err != nil {
		utils.WriteError(w, sc.Logger, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	count, err := sc.Collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		utils.WriteError(w, sc.Logger, utils.PersistenceError("Server error", err))
		return
	}
	if count > 0 {
		utils.WriteError(w, sc.Logger, utils.ValidationError("Shop already exists. Use PUT to update."))
		return
	}
	shop.ID = primitive.NilObjectID
	shop.UpdatedAt = time.Now().UTC()
	res, err := sc.Collection.InsertOne(ctx, shop)
	if err != nil {
		utils.WriteError(w, sc.Logger, utils.PersistenceError("Error creating shop", err))
		return
	}
	shop.ID = res.InsertedID.(primitive.ObjectID)
	utils.WriteJSON(w, http.StatusCreated, shop)
}

// UpdateShop overwrites the profile, creating it when missing (Admin only)
func (sc *ShopController) UpdateShop(w http.ResponseWriter, r *http.Request) {
	var shop models.Shop
	if err := decodeJSON(r, &shop); err != nil {
		utils.WriteError(w, sc.Logger, err)
		return
	}
	if err := utils.Validate(shop); err != nil {
		utils.WriteError(w, sc.Logger, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	update := bson.M{"$set": bson.M{
		"name":          shop.Name,
		"address":       shop.Address,
		"phone":         shop.Phone,
		"email":         shop.Email,
		"opening_hours": shop.OpeningHours,
		"social":        shop.Social,
		"updated_at":    time.Now().UTC(),
	}}
	res, err := sc.Collection.UpdateOne(ctx, bson.M{}, update, options.Update().SetUpsert(true))
	if err != nil {
		utils.WriteError(w, sc.Logger, utils.PersistenceError("Error updating shop", err))
		return
	}
	var saved models.Shop
	if err := sc.Collection.FindOne(ctx, bson.M{}).Decode(&saved); err != nil {
		utils.WriteError(w, sc.Logger, utils.PersistenceError("Error loading shop", err))
		return
	}
	status := http.StatusOK
	if res.UpsertedCount > 0 {
		status = http.StatusCreated
	}
	utils.WriteJSON(w, status, saved)
}
