package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Review represents a product rating left by a customer
type Review struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Product   primitive.ObjectID `bson:"product" json:"product"`
	Rating    int                `bson:"rating" json:"rating" validate:"gte=1,lte=5"`
	Comment   string             `bson:"comment" json:"comment" validate:"required"`
	User      string             `bson:"user,omitempty" json:"user,omitempty"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
}

// Message is a contact form submission
type Message struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name      string             `bson:"name" json:"name" validate:"required"`
	Email     string             `bson:"email" json:"email" validate:"required,email"`
	Subject   string             `bson:"subject" json:"subject" validate:"required"`
	Message   string             `bson:"message" json:"message" validate:"required"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
}
