package model

import "time"

// Item is a quantity-tracked inventory item owned by a single user.
// Units move between the available, issued and project counters as
// transactions progress; the total never changes except through an
// explicit stock adjustment.
type Item struct {
	ID                int64     `json:"id"`
	OwnerID           int64     `json:"owner_id"`
	Name              string    `json:"name"`
	TotalQuantity     int       `json:"total_quantity"`
	AvailableQuantity int       `json:"available_quantity"`
	IssuedQuantity    int       `json:"issued_quantity"`
	ProjectQuantity   int       `json:"project_quantity"`
	ImageMime         string    `json:"image_mime,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`

	// Joined field (not always populated).
	OwnerName string `json:"owner_name,omitempty"`
}

// Counters that units can be reserved into (from available) and
// released from (back to available).
const (
	CounterIssued  = "issued"
	CounterProject = "project"
)

// QuantitiesConsistent reports whether the item's counters satisfy
// available + issued + project == total with all four non-negative.
func (i *Item) QuantitiesConsistent() bool {
	if i.TotalQuantity < 0 || i.AvailableQuantity < 0 || i.IssuedQuantity < 0 || i.ProjectQuantity < 0 {
		return false
	}
	return i.AvailableQuantity+i.IssuedQuantity+i.ProjectQuantity == i.TotalQuantity
}
