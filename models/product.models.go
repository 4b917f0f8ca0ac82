package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Product represents a catalog entry
type Product struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name         string             `bson:"name" json:"name" validate:"required"`
	Description  string             `bson:"description,omitempty" json:"description,omitempty"`
	Price        float64            `bson:"price" json:"price" validate:"gte=0"`
	Discount     float64            `bson:"discount" json:"discount" validate:"gte=0,lte=100"` // percent
	CountInStock int                `bson:"count_in_stock" json:"countInStock" validate:"gte=0"`
	Image        string             `bson:"image,omitempty" json:"image,omitempty"`
	Category     string             `bson:"category,omitempty" json:"category,omitempty"`
}

// ProductFilter narrows a product listing. Nil bounds are open.
type ProductFilter struct {
	Category string
	MinPrice *float64
	MaxPrice *float64
}

// Category groups products for browsing
type Category struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name        string             `bson:"name" json:"name" validate:"required"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
}
