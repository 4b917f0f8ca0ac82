package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Social holds the shop's social media handles
type Social struct {
	Facebook  string `bson:"facebook" json:"facebook"`
	Twitter   string `bson:"twitter" json:"twitter"`
	Instagram string `bson:"instagram" json:"instagram"`
}

// Shop is the singleton storefront profile
type Shop struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name         string             `bson:"name" json:"name"`
	Address      string             `bson:"address" json:"address"`
	Phone        string             `bson:"phone" json:"phone"`
	Email        string             `bson:"email" json:"email" validate:"omitempty,email"`
	OpeningHours string             `bson:"opening_hours" json:"openingHours"`
	Social       Social             `bson:"social" json:"social"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updatedAt"`
}
