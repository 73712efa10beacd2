package models

import (
	"time"
)

// Client is a dental practice account that submits orders.
type Client struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	BusinessName string    `gorm:"size:100;not null" json:"business_name"`
	FirstName    string    `gorm:"size:50;not null" json:"first_name"`
	LastName     string    `gorm:"size:50;not null" json:"last_name"`
	VATNumber    string    `gorm:"size:50;not null" json:"vat_number"`
	Address      string    `gorm:"size:50;not null" json:"address"`
	City         string    `gorm:"size:50;not null" json:"city"`
	PostalCode   string    `gorm:"size:10;not null" json:"postal_code"`
	Province     string    `gorm:"size:50;not null" json:"province"`
	Email        string    `gorm:"size:50;not null" json:"email"`
	Username     string    `gorm:"size:20;uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName specifies the table name for the Client model
func (Client) TableName() string {
	return "clients"
}
