package models

import (
	"time"

	"github.com/paulmach/orb"
)

type Submission struct {
	ID uint `gorm:"primaryKey;column:submission_id" json:"submission_id"`

	UserID uint `gorm:"not null;index" json:"-"`
	User   User `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE" json:"user"`

	CategoryID uint     `gorm:"not null;index" json:"-"`
	Category   Category `gorm:"foreignKey:CategoryID;references:ID;constraint:OnDelete:CASCADE" json:"category"`

	ImageURL          string    `gorm:"size:500;not null" json:"image_url"`
	Notes             *string   `gorm:"type:text" json:"notes"`
	Latitude          float64   `gorm:"type:decimal(10,8);not null" json:"latitude"`
	Longitude         float64   `gorm:"type:decimal(11,8);not null" json:"longitude"`
	CounterNumber     *string   `gorm:"size:50" json:"counter_number"`
	ConsumptionNumber *string   `gorm:"size:50" json:"consumption_number"`
	InvoiceImage      *string   `gorm:"size:500" json:"invoice_image"`
	CreatedAt         time.Time `gorm:"not null;index" json:"created_at"`
}

func (Submission) TableName() string { return "submissions" }

// Point returns the complaint location in orb's (lng, lat) order.
func (s *Submission) Point() orb.Point {
	return orb.Point{s.Longitude, s.Latitude}
}

// Files lists the stored file references owned by the submission.
func (s *Submission) Files() []string {
	files := []string{}
	if s.ImageURL != "" {
		files = append(files, s.ImageURL)
	}
	if s.InvoiceImage != nil && *s.InvoiceImage != "" {
		files = append(files, *s.InvoiceImage)
	}
	return files
}
