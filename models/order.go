package models

import (
	"time"
)

// Order is a work order submitted by a client and processed by the lab.
type Order struct {
	ID uint `gorm:"primaryKey" json:"id"`
	// Number restarts at 1 every calendar year; Year holds the year it was assigned in.
	Number int    `gorm:"column:numero;not null;uniqueIndex:idx_orders_year_numero,priority:2" json:"numero"`
	Year   int    `gorm:"not null;uniqueIndex:idx_orders_year_numero,priority:1" json:"year"`
	Status Status `gorm:"column:stato;not null;default:0;index" json:"stato"`

	ClientID   uint      `gorm:"not null;index" json:"client_id"`
	Client     Client    `gorm:"foreignKey:ClientID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"client"`
	OperatorID *uint     `gorm:"index" json:"operator_id"`
	Operator   *Operator `gorm:"foreignKey:OperatorID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"operator,omitempty"`

	OrderingPhysician string    `gorm:"size:50;not null" json:"ordering_physician"`
	PatientFirstName  string    `gorm:"size:50;not null" json:"patient_first_name"`
	PatientLastName   string    `gorm:"size:50;not null" json:"patient_last_name"`
	ShippingAddress   string    `gorm:"size:50;not null" json:"shipping_address"`
	WorkDescription   string    `gorm:"size:1000;not null" json:"work_description"`
	Color             string    `gorm:"size:100;not null" json:"color"`
	Platform          *string   `gorm:"size:1000" json:"platform"`
	DeliveryDate      time.Time `gorm:"type:date;not null" json:"delivery_date"`
	DeliveryTime      string    `gorm:"size:5;not null" json:"delivery_time"`
	Note              *string   `gorm:"size:1000" json:"note"`

	InternalNote   string     `gorm:"type:text;not null;default:''" json:"internal_note"`
	StartedAt      *time.Time `json:"started_at"`
	ShippedAt      *time.Time `json:"shipped_at"`
	LastModifiedBy string     `gorm:"size:101;not null;default:'-'" json:"last_modified_by"`
	LastModifiedAt *time.Time `json:"last_modified_at"`

	HasSourceFile  bool    `gorm:"not null;default:false" json:"has_source_file"`
	SourceFileName *string `gorm:"size:255" json:"source_file_name"`
	HasFinalFile   bool    `gorm:"not null;default:false" json:"has_final_file"`
	FinalFileName  *string `gorm:"size:255" json:"final_file_name"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// Reset returns the order to New and discards all progress data.
func (o *Order) Reset() {
	o.Status = StatusNew
	o.StartedAt = nil
	o.ShippedAt = nil
	o.InternalNote = ""
	o.LastModifiedBy = NoModifier
	o.LastModifiedAt = nil
	o.HasFinalFile = false
	o.FinalFileName = nil
}

// NoModifier is stored in LastModifiedBy when nobody has touched the order yet.
const NoModifier = "-"
