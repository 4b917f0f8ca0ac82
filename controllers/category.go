package controllers

import (
	"errors"
	"net/http"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"go-storefront/models"
	"go-storefront/utils"
)

// CategoryController handles category-related requests
type CategoryController struct {
	Collection *mongo.Collection
	Logger     *zap.Logger
}

// NewCategoryController creates a new CategoryController
func NewCategoryController(db *mongo.Database, logger *zap.Logger) *CategoryController {
	return &CategoryController{Collection: db.Collection("categories"), Logger: logger}
}

// categoryFilter matches names containing search, ignoring case
func categoryFilter(search string) bson.M {
	search = strings.TrimSpace(search)
	if search == "" {
		return bson.M{}
	}
	return bson.M{"name": primitive.Regex{Pattern: regexp.QuoteMeta(search), Options: "i"}}
}

// CreateCategory handles adding a new category (Admin only)
func (cc *CategoryController) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var category models.Category
	if err := decodeJSON(r, &category); err != nil {
		utils.WriteError(w, cc.Logger, err)
		return
	}
	category.Name = strings.TrimSpace(category.Name)
	if err := utils.Validate(category); err != nil {
		utils.WriteError(w, cc.Logger, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	res, err := cc.Collection.InsertOne(ctx, category)
	if err != nil {
		utils.WriteError(w, cc.Logger, utils.PersistenceError("Error creating category", err))
		return
	}
	category.ID = res.InsertedID.(primitive.ObjectID)
	utils.WriteJSON(w, http.StatusCreated, category)
}

// GetCategories lists categories, optionally filtered by ?search=
func (cc *CategoryController) GetCategories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	cursor, err := cc.Collection.Find(ctx, categoryFilter(r.URL.Query().Get("search")),
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		utils.WriteError(w, cc.Logger, utils.PersistenceError("Error fetching categories", err))
		return
	}
	categories := []models.Category{}
	if err := cursor.All(ctx, &categories); err != nil {
		utils.WriteError(w, cc.Logger, utils.PersistenceError("Error reading categories", err))
		return
	}
	utils.WriteJSON(w, http.StatusOK, categories)
}

// UpdateCategory replaces a category's fields (Admin only)
func (cc *CategoryController) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "category")
	if err != nil {
		utils.WriteError(w, cc.Logger, err)
		return
	}
	var category models.Category
	if err := decodeJSON(r, &category); err != nil {
		utils.WriteError(w, cc.Logger, err)
		return
	}
	category.Name = strings.TrimSpace(category.Name)
	if err := utils.Validate(category); err != nil {
		utils.WriteError(w, cc.Logger, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	var updated models.Category
	err = cc.Collection.FindOneAndUpdate(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"name": category.Name, "description": category.Description}},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		utils.WriteError(w, cc.Logger, utils.NotFoundError("Category not found"))
		return
	}
	if err != nil {
		utils.WriteError(w, cc.Logger, utils.PersistenceError("Error updating category", err))
		return
	}
	utils.WriteJSON(w, http.StatusOK, updated)
}

// DeleteCategory removes a category (Admin only)
func (cc *CategoryController) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "category")
	if err != nil {
		utils.WriteError(w, cc.Logger, err)
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()

	res, err := cc.Collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		utils.WriteError(w, cc.Logger, utils.PersistenceError("Error deleting category", err))
		return
	}
	if res.DeletedCount == 0 {
		utils.WriteError(w, cc.Logger, utils.NotFoundError("Category not found"))
		return
	}
	utils.WriteMessage(w, http.StatusOK, "Category deleted successfully")
}
