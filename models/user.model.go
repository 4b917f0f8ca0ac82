package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Roles a user can hold
const (
	RoleUser    = "user"
	RoleAdmin   = "admin"
	RoleManager = "manager"
)

// User represents a registered account. Password holds the bcrypt hash.
type User struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name       string             `bson:"name" json:"name"`
	Email      string             `bson:"email" json:"email"`
	Password   string             `bson:"password,omitempty" json:"-"`
	Role       string             `bson:"role" json:"role"`
	NumOrders  int                `bson:"num_orders" json:"numOrders"`
	NumReviews int                `bson:"num_reviews" json:"numReviews"`
}
