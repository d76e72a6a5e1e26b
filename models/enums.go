package models

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)

// PaymentMethod is how the customer settles an order.
type PaymentMethod string

const (
	PaymentMethodCOD    PaymentMethod = "cod"
	PaymentMethodOnline PaymentMethod = "online"
)

// PaymentStatus is the payment axis of an order.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// DeliveryStatus is the fulfilment axis of an order. Only admins change it.
type DeliveryStatus string

const (
	DeliveryStatusPending    DeliveryStatus = "pending"
	DeliveryStatusProcessing DeliveryStatus = "processing"
	DeliveryStatusDelivered  DeliveryStatus = "delivered"
	DeliveryStatusCancelled  DeliveryStatus = "cancelled"
)

// PaymentRecordStatus is the lifecycle of one gateway payment attempt.
// PENDING is the only non-terminal state.
type PaymentRecordStatus string

const (
	PaymentRecordPending   PaymentRecordStatus = "PENDING"
	PaymentRecordCompleted PaymentRecordStatus = "COMPLETED"
	PaymentRecordFailed    PaymentRecordStatus = "FAILED"
	PaymentRecordCancelled PaymentRecordStatus = "CANCELLED"
)

type PaymentGateway string

const PaymentGatewayKhalti PaymentGateway = "khalti"

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch PaymentMethod(normalize(s)) {
	case PaymentMethodCOD:
		return PaymentMethodCOD, nil
	case PaymentMethodOnline:
		return PaymentMethodOnline, nil
	default:
		return "", fmt.Errorf("invalid payment method %q: must be one of cod, online", s)
	}
}

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch PaymentStatus(normalize(s)) {
	case PaymentStatusPending:
		return PaymentStatusPending, nil
	case PaymentStatusPaid:
		return PaymentStatusPaid, nil
	case PaymentStatusFailed:
		return PaymentStatusFailed, nil
	case PaymentStatusRefunded:
		return PaymentStatusRefunded, nil
	default:
		return "", fmt.Errorf("invalid payment status %q: must be one of pending, paid, failed, refunded", s)
	}
}

func ParseDeliveryStatus(s string) (DeliveryStatus, error) {
	switch DeliveryStatus(normalize(s)) {
	case DeliveryStatusPending:
		return DeliveryStatusPending, nil
	case DeliveryStatusProcessing:
		return DeliveryStatusProcessing, nil
	case DeliveryStatusDelivered:
		return DeliveryStatusDelivered, nil
	case DeliveryStatusCancelled:
		return DeliveryStatusCancelled, nil
	default:
		return "", fmt.Errorf("invalid delivery status %q: must be one of pending, processing, delivered, cancelled", s)
	}
}

func (s PaymentRecordStatus) IsTerminal() bool {
	return s != PaymentRecordPending
}

// CanTransitionTo reports whether a payment attempt may move from s to next.
func (s PaymentRecordStatus) CanTransitionTo(next PaymentRecordStatus) bool {
	if s != PaymentRecordPending {
		return false
	}
	switch next {
	case PaymentRecordCompleted, PaymentRecordFailed, PaymentRecordCancelled:
		return true
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
