package controllers

import (
	"errors"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"go-storefront/models"
	"go-storefront/utils"
)

// OfferController handles offer-related requests
type OfferController struct {
	Collection *mongo.Collection
	Logger     *zap.Logger
}

// NewOfferController creates a new OfferController
func NewOfferController(db *mongo.Database, logger *zap.Logger) *OfferController {
	return &OfferController{Collection: db.Collection("offers"), Logger: logger}
}

// validateOffer runs the struct tags and then the per-type discount range
func validateOffer(offer *models.Offer) error {
	offer.OfferType = strings.ToLower(strings.TrimSpace(offer.OfferType))
	offer.Product = strings.TrimSpace(offer.Product)
	if err := utils.Validate(*offer); err != nil {
		return err
	}
	if err := offer.Validate(); err != nil {
		return utils.ValidationError("%s", err.Error())
	}
	return nil
}

// GetOffers lists every offer
func (oc *OfferController) GetOffers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	cursor, err := oc.Collection.Find(ctx, bson.M{})
	if err != nil {
		utils.WriteError(w, oc.Logger, utils.PersistenceError("Error fetching offers", err))
		return
	}
	offers := []models.Offer{}
	if err := cursor.All(ctx, &offers); err != nil {
		utils.WriteError(w, oc.Logger, utils.PersistenceError("Error reading offers", err))
		return
	}
	utils.WriteJSON(w, http.StatusOK, offers)
}

// CreateOffer handles adding a new offer (Admin only)
func (oc *OfferController) CreateOffer(w http.ResponseWriter, r *http.Request) {
	var offer models.Offer
	if err := decodeJSON(r, &offer); err != nil {
		utils.WriteError(w, oc.Logger, err)
		return
	}
	if err := validateOffer(&offer); err != nil {
		utils.WriteError(w, oc.Logger, err)
		return
	}
	offer.ID = primitive.NilObjectID

	ctx, cancel := requestContext(r)
	defer cancel()
	res, err := oc.Collection.InsertOne(ctx, offer)
	if err != nil {
		utils.WriteError(w, oc.Logger, utils.PersistenceError("Error creating offer", err))
		return
	}
	offer.ID = res.InsertedID.(primitive.ObjectID)
	utils.WriteJSON(w, http.StatusCreated, offer)
}

// UpdateOffer replaces an offer's fields (Admin only). The ID comes from the
// path when present, otherwise from the body.
func (oc *OfferController) UpdateOffer(w http.ResponseWriter, r *http.Request) {
	var offer models.Offer
	if err := decodeJSON(r, &offer); err != nil {
		utils.WriteError(w, oc.Logger, err)
		return
	}
	id := offer.ID
	if _, ok := muxVar(r, "id"); ok {
		var err error
		if id, err = pathID(r, "id", "offer"); err != nil {
			utils.WriteError(w, oc.Logger, err)
			return
		}
	}
	if id.IsZero() {
		utils.WriteError(w, oc.Logger, utils.ValidationError("Invalid offer ID"))
		return
	}
	if err := validateOffer(&offer); err != nil {
		utils.WriteError(w, oc.Logger, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	var updated models.Offer
	err := oc.Collection.FindOneAndUpdate(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"offer_type": offer.OfferType,
			"product":    offer.Product,
			"discount":   offer.Discount,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		utils.WriteError(w, oc.Logger, utils.NotFoundError("Offer not found"))
		return
	}
	if err != nil {
		utils.WriteError(w, oc.Logger, utils.PersistenceError("Error updating offer", err))
		return
	}
	utils.WriteJSON(w, http.StatusOK, updated)
}

// DeleteOffer removes an offer (Admin only)
func (oc *OfferController) DeleteOffer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "offer")
	if err != nil {
		utils.WriteError(w, oc.Logger, err)
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()

	res, err := oc.Collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		utils.WriteError(w, oc.Logger, utils.PersistenceError("Error deleting offer", err))
		return
	}
	if res.DeletedCount == 0 {
		utils.WriteError(w, oc.Logger, utils.NotFoundError("Offer not found"))
		return
	}
	utils.WriteMessage(w, http.StatusOK, "Offer deleted successfully")
}
