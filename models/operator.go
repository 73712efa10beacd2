package models

import (
	"time"
)

// Operator is a lab staff account.
type Operator struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	FirstName    string    `gorm:"size:50;not null" json:"first_name"`
	LastName     string    `gorm:"size:50;not null" json:"last_name"`
	Email        string    `gorm:"size:50;not null" json:"email"`
	Username     string    `gorm:"size:20;uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName specifies the table name for the Operator model
func (Operator) TableName() string {
	return "operators"
}

// DisplayName formats the operator as "Surname Name", the form recorded on orders.
func (o Operator) DisplayName() string {
	return o.LastName + " " + o.FirstName
}
