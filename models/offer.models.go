package models

import (
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Offer types
const (
	OfferPercentage = "percentage"
	OfferFixed      = "fixed"
)

// Offer is an administrator defined discount on a product (by name)
type Offer struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	OfferType string             `bson:"offer_type" json:"offerType" validate:"required,oneof=percentage fixed"`
	Product   string             `bson:"product" json:"product" validate:"required"`
	Discount  float64            `bson:"discount" json:"discount" validate:"gte=0"`
}

// Validate checks the discount range for the offer type
func (o Offer) Validate() error {
	switch o.OfferType {
	case OfferPercentage:
		if o.Discount < 0 || o.Discount > 100 {
			return errors.New("for percentage offers discount must be between 0 and 100")
		}
	case OfferFixed:
		if o.Discount < 0 {
			return errors.New("for fixed offers discount must be >= 0")
		}
	default:
		return errors.New("offerType must be percentage or fixed")
	}
	return nil
}
