package models

import (
	"time"

	"github.com/google/uuid"
)

// MaxCarImages is the most photos a single car may carry.
const MaxCarImages = 10

type Car struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	Title       string     `json:"title" db:"title"`
	Description *string    `json:"description" db:"description"`
	Tags        []string   `json:"tags" db:"tags"`
	UserID      uuid.UUID  `json:"user_id" db:"user_id"`
	Images      []string   `json:"images" db:"images"`
	CoverImage  *string    `json:"cover_image" db:"cover_image"`
	CarImages   []CarImage `json:"car_images"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// CarImage wraps a photo URL for clients that expect a list of objects.
type CarImage struct {
	URL string `json:"url"`
}

// CarInput carries the editable text fields of a car as submitted by a form.
// Tags is the raw comma separated field.
type CarInput struct {
	Title       string
	Description string
	Tags        string
}

// Reconcile brings the car's photo fields and tags into canonical shape.
func (c *Car) Reconcile() {
	c.Images, c.CoverImage, c.CarImages = ReconcileImages(c.Images, c.CoverImage)
	if c.Tags == nil {
		c.Tags = []string{}
	}
}

// IsOwnedBy reports whether userID owns the car.
func (c *Car) IsOwnedBy(userID uuid.UUID) bool {
	return c.UserID == userID
}
