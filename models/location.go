package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Location is a dealership site (rooftop). Event payloads reference
// locations by the short code, e.g. "L2".
type Location struct {
	ID      primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Code    string             `json:"code" bson:"code"`
	Name    string             `json:"name" bson:"name"`
	Address string             `json:"address,omitempty" bson:"address,omitempty"`
	Phone   string             `json:"phone,omitempty" bson:"phone,omitempty"`

	IsActive  bool      `json:"isActive" bson:"isActive"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}
