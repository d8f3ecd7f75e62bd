package models

import "time"

// OtpCredential is the pending challenge for a phone number. The unique index
// on phone_number is what makes issuance an upsert.
type OtpCredential struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	PhoneNumber string    `gorm:"size:20;uniqueIndex;not null" json:"phone_number"`
	HashedCode  string    `gorm:"size:255;not null" json:"-"`
	ExpiresAt   time.Time `gorm:"index;not null" json:"expires_at"`
}

func (OtpCredential) TableName() string { return "otp_codes" }
