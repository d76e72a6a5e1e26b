package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// OrderPaymentDetails mirrors the gateway session of the latest online payment.
type OrderPaymentDetails struct {
	Pidx          string     `json:"pidx,omitempty"`
	PaymentURL    string     `json:"paymentUrl,omitempty"`
	TransactionID string     `json:"transactionId,omitempty"`
	InitiatedAt   *time.Time `json:"initiatedAt,omitempty"`
	VerifiedAt    *time.Time `json:"verifiedAt,omitempty"`
}

// Order is a single book line. TotalAmount is the book price at creation
// time multiplied by Quantity and is never recomputed.
type Order struct {
	gorm.Model
	UserID         uint                                    `json:"userId" gorm:"not null;index"`
	BookID         uint                                    `json:"bookId" gorm:"not null;index"`
	Quantity       int                                     `json:"quantity" gorm:"not null;default:1"`
	TotalAmount    decimal.Decimal                         `json:"totalAmount" gorm:"type:decimal(10,2);not null"`
	PaymentMethod  PaymentMethod                           `json:"paymentMethod" gorm:"type:varchar(20);not null"`
	PaymentStatus  PaymentStatus                           `json:"paymentStatus" gorm:"type:varchar(20);not null;default:pending"`
	DeliveryStatus DeliveryStatus                          `json:"deliveryStatus" gorm:"type:varchar(20);not null;default:pending"`
	PaymentDetails datatypes.JSONType[OrderPaymentDetails] `json:"paymentDetails"`
	Book           *Book                                   `json:"book,omitempty" gorm:"foreignKey:BookID"`
	User           *User                                   `json:"user,omitempty" gorm:"foreignKey:UserID"`
}
