package models

import (
	"time"
)

// User is created lazily on the first successful OTP verification for a phone number.
type User struct {
	ID          uint      `gorm:"primaryKey;column:user_id" json:"user_id"`
	PhoneNumber string    `gorm:"size:20;uniqueIndex;not null" json:"phone_number"`
	CreatedAt   time.Time `gorm:"autoCreateTime;<-:create" json:"created_at"`
}

func (User) TableName() string { return "users" }
