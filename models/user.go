package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is a dealership staff member in the directory. The engine reads
// users to expand role-at-location recipient buckets; it never writes them.
type User struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	FirstName string             `json:"firstName" bson:"firstName"`
	LastName  string             `json:"lastName" bson:"lastName"`
	Email     string             `json:"email,omitempty" bson:"email,omitempty"`
	Phone     string             `json:"phone,omitempty" bson:"phone,omitempty"`

	Role       Role   `json:"role" bson:"role"`
	LocationID string `json:"locationId" bson:"locationId"`
	OnShift    bool   `json:"onShift" bson:"onShift"`

	IsActive  bool       `json:"isActive" bson:"isActive"`
	IsDeleted bool       `json:"-" bson:"isDeleted,omitempty"`
	CreatedAt time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt" bson:"updatedAt"`
	DeletedAt *time.Time `json:"-" bson:"deletedAt,omitempty"`
}

// FullName returns the user's display name for template personalization.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

type GetUsersRequest struct {
	LocationID string `json:"locationId" form:"locationId"`
	Role       string `json:"role" form:"role"`
	Page       int    `json:"page" form:"page"`
	PageSize   int    `json:"pageSize" form:"pageSize"`
}
