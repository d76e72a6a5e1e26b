package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PaymentDetails struct {
	InitiatedAt     *time.Time      `json:"initiatedAt,omitempty"`
	VerifiedAt      *time.Time      `json:"verifiedAt,omitempty"`
	CompletedAt     *time.Time      `json:"completedAt,omitempty"`
	GatewayResponse json.RawMessage `json:"gatewayResponse,omitempty"`
}

// Payment is one attempt to settle an order through the gateway.
type Payment struct {
	gorm.Model
	OrderID       uint                               `json:"orderId" gorm:"not null;index"`
	UserID        uint                               `json:"userId" gorm:"not null;index"`
	Amount        decimal.Decimal                    `json:"amount" gorm:"type:decimal(10,2);not null"`
	PaymentMethod PaymentGateway                     `json:"paymentMethod" gorm:"type:varchar(20);not null"`
	Status        PaymentRecordStatus                `json:"status" gorm:"type:varchar(20);not null;default:PENDING"`
	TransactionID string                             `json:"transactionId" gorm:"size:191"`
	Pidx          string                             `json:"pidx" gorm:"size:191;index"`
	PaymentURL    string                             `json:"paymentUrl" gorm:"size:500"`
	Details       datatypes.JSONType[PaymentDetails] `json:"paymentDetails"`
	Order         *Order                             `json:"-" gorm:"foreignKey:OrderID"`
}
