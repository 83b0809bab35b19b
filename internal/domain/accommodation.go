package domain

import "time"

type AccommodationType string

const (
	AccommodationCabin     AccommodationType = "cabin"
	AccommodationApartment AccommodationType = "apartment"
	AccommodationHouse     AccommodationType = "house"
	AccommodationRoom      AccommodationType = "room"
)

type Accommodation struct {
	ID                int64             `gorm:"primaryKey" json:"id"`
	Name              string            `gorm:"type:varchar(100);not null;index" json:"name" validate:"required"`
	Type              AccommodationType `gorm:"type:varchar(50);not null;index" json:"type" validate:"required"`
	Capacity          int               `gorm:"not null" json:"capacity" validate:"required,gt=0"`
	BasePrice         float64           `gorm:"not null" json:"base_price" validate:"required,gt=0"`
	WeekendMultiplier float64           `gorm:"not null;default:1.2" json:"weekend_multiplier" validate:"gte=1"`
	Description       string            `gorm:"type:text" json:"description,omitempty"`
	Active            bool              `gorm:"not null;default:true;index" json:"active"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

func (Accommodation) TableName() string { return "accommodations" }
