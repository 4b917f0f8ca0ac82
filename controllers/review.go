package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"go-storefront/middleware"
	"go-storefront/models"
	"go-storefront/utils"
)

// ReviewController handles review-related requests
type ReviewController struct {
	Collection *mongo.Collection
	Logger     *zap.Logger
}

// NewReviewController creates a new ReviewController
func NewReviewController(db *mongo.Database, logger *zap.Logger) *ReviewController {
	return &ReviewController{Collection: db.Collection("reviews"), Logger: logger}
}

// ReviewPage is one page of a review listing
type ReviewPage struct {
	Total   int64           `json:"total"`
	Page    int             `json:"page"`
	PerPage int             `json:"perPage"`
	Data    []models.Review `json:"data"`
}

// CreateReview stores a rating for a product. A signed-in reviewer is
// recorded by email.
func (rc *ReviewController) CreateReview(w http.ResponseWriter, r *http.Request) {
	var review models.Review
	if err := decodeJSON(r, &review); err != nil {
		utils.WriteError(w, rc.Logger, err)
		return
	}
	if review.Product.IsZero() {
		utils.WriteError(w, rc.Logger, utils.ValidationError("product, rating, and comment are required"))
		return
	}
	review.Comment = strings.TrimSpace(review.Comment)
	if err := utils.Validate(review); err != nil {
		utils.WriteError(w, rc.Logger, err)
		return
	}
	if claims, ok := middleware.ClaimsFrom(r.Context()); ok {
		review.User = claims.Email
	}
	review.ID = primitive.NilObjectID
	review.CreatedAt = time.Now().UTC()

	ctx, cancel := requestContext(r)
	defer cancel()
	res, err := rc.Collection.InsertOne(ctx, review)
	if err != nil {
		utils.WriteError(w, rc.Logger, utils.PersistenceError("Server error while creating review", err))
		return
	}
	review.ID = res.InsertedID.(primitive.ObjectID)
	utils.WriteJSON(w, http.StatusCreated, review)
}

// GetReviews lists reviews newest first, optionally for one ?product=
func (rc *ReviewController) GetReviews(w http.ResponseWriter, r *http.Request) {
	filter := bson.M{}
	if raw := r.URL.Query().Get("product"); raw != "" {
		productID, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			utils.WriteError(w, rc.Logger, utils.ValidationError("Invalid product ID"))
			return
		}
		filter["product"] = productID
	}
	page, limit := pagination(r)

	ctx, cancel := requestContext(r)
	defer cancel()
	total, err := rc.Collection.CountDocuments(ctx, filter)
	if err != nil {
		utils.WriteError(w, rc.Logger, utils.PersistenceError("Server error while fetching reviews", err))
		return
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))
	cursor, err := rc.Collection.Find(ctx, filter, opts)
	if err != nil {
		utils.WriteError(w, rc.Logger, utils.PersistenceError("Server error while fetching reviews", err))
		return
	}
	reviews := []models.Review{}
	if err := cursor.All(ctx, &reviews); err != nil {
		utils.WriteError(w, rc.Logger, utils.PersistenceError("Server error while fetching reviews", err))
		return
	}
	utils.WriteJSON(w, http.StatusOK, ReviewPage{Total: total, Page: page, PerPage: limit, Data: reviews})
}

// GetReview retrieves a review by ID
func (rc *ReviewController) GetReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "review")
	if err != nil {
		utils.WriteError(w, rc.Logger, err)
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()

	var review models.Review
	err = rc.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&review)
	if errors.Is(err, mongo.ErrNoDocuments) {
		utils.WriteError(w, rc.Logger, utils.NotFoundError("Review not found"))
		return
	}
	if err != nil {
		utils.WriteError(w, rc.Logger, utils.PersistenceError("Server error while fetching review", err))
		return
	}
	utils.WriteJSON(w, http.StatusOK, review)
}

// DeleteReview removes a review (Admin only)
func (rc *ReviewController) DeleteReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "review")
	if err != nil {
		utils.WriteError(w, rc.Logger, err)
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()

	res, err := rc.Collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		utils.WriteError(w, rc.Logger, utils.PersistenceError("Server error while deleting review", err))
		return
	}
	if res.DeletedCount == 0 {
		utils.WriteError(w, rc.Logger, utils.NotFoundError("Review not found"))
		return
	}
	utils.WriteMessage(w, http.StatusOK, "Review deleted successfully")
}
