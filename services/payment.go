package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/Kariqs/readpage-api/apperrors"
	"github.com/Kariqs/readpage-api/khalti"
	"github.com/Kariqs/readpage-api/metrics"
	"github.com/Kariqs/readpage-api/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Gateway is the part of the Khalti client the payment service needs.
type Gateway interface {
	Initiate(ctx context.Context, req khalti.InitiateRequest) (*khalti.InitiateResponse, error)
	Lookup(ctx context.Context, pidx string) (*khalti.LookupResponse, error)
}

type PaymentConfig struct {
	// ReturnURL is where the gateway sends the customer back to.
	ReturnURL   string
	WebsiteURL  string
	FrontendURL string
}

type InitiateResult struct {
	PaymentID  uint            `json:"paymentId"`
	OrderID    uint            `json:"orderId"`
	Pidx       string          `json:"pidx"`
	PaymentURL string          `json:"paymentUrl"`
	Amount     decimal.Decimal `json:"amount"`
}

type VerifyResult struct {
	PaymentID     uint                       `json:"paymentId"`
	OrderID       uint                       `json:"orderId"`
	Status        models.PaymentRecordStatus `json:"status"`
	GatewayStatus string                     `json:"gatewayStatus"`
	TransactionID string                     `json:"transactionId,omitempty"`
	// AlreadyApplied is true when the payment had reached this terminal
	// state before and nothing was written.
	AlreadyApplied bool `json:"alreadyApplied"`
}

// CallbackParams are the query parameters Khalti appends to the return URL.
// They only say which payment to re-check; they are never trusted as proof.
type CallbackParams struct {
	Pidx            string `form:"pidx"`
	PurchaseOrderID string `form:"purchase_order_id"`
	Status          string `form:"status"`
	TransactionID   string `form:"transaction_id"`
}

type OrderSummary struct {
	ID             uint                  `json:"id"`
	BookID         uint                  `json:"bookId"`
	BookTitle      string                `json:"bookTitle,omitempty"`
	Quantity       int                   `json:"quantity"`
	TotalAmount    decimal.Decimal       `json:"totalAmount"`
	PaymentMethod  models.PaymentMethod  `json:"paymentMethod"`
	PaymentStatus  models.PaymentStatus  `json:"paymentStatus"`
	DeliveryStatus models.DeliveryStatus `json:"deliveryStatus"`
}

type PaymentStatusResult struct {
	Order   OrderSummary    `json:"order"`
	Payment *models.Payment `json:"payment"`
}

type PaymentService struct {
	db      *gorm.DB
	gateway Gateway
	cfg     PaymentConfig
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

func NewPaymentService(db *gorm.DB, gateway Gateway, cfg PaymentConfig, m *metrics.Metrics, logger *zap.Logger) *PaymentService {
	return &PaymentService{
		db:      db,
		gateway: gateway,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// ToPaisa converts rupees to the gateway's smallest unit.
func ToPaisa(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// Initiate records a PENDING payment for the caller's order and opens a
// hosted payment session for it.
func (s *PaymentService) Initiate(ctx context.Context, user *models.User, orderID uint) (*InitiateResult, error) {
	db := s.db.WithContext(ctx)

	var order models.Order
	err := db.Where("id = ? AND user_id = ?", orderID, user.ID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("order not found")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to fetch order", err)
	}
	switch {
	case order.PaymentStatus == models.PaymentStatusPaid || order.PaymentStatus == models.PaymentStatusRefunded:
		return nil, apperrors.Validation("order is already paid")
	case order.PaymentMethod != models.PaymentMethodOnline:
		return nil, apperrors.Validation("order is not set up for online payment")
	}

	initiatedAt := s.now()
	payment := models.Payment{
		OrderID:       order.ID,
		UserID:        user.ID,
		Amount:        order.TotalAmount,
		PaymentMethod: models.PaymentGatewayKhalti,
		Status:        models.PaymentRecordPending,
		Details:       datatypes.NewJSONType(models.PaymentDetails{InitiatedAt: &initiatedAt}),
	}
	if err := db.Create(&payment).Error; err != nil {
		return nil, apperrors.Internal("failed to create payment record", err)
	}

	resp, err := s.gateway.Initiate(ctx, khalti.InitiateRequest{
		ReturnURL:         s.cfg.ReturnURL,
		WebsiteURL:        s.cfg.WebsiteURL,
		Amount:            ToPaisa(order.TotalAmount),
		PurchaseOrderID:   strconv.FormatUint(uint64(payment.ID), 10),
		PurchaseOrderName: fmt.Sprintf("Order_%d", order.ID),
		CustomerInfo: khalti.CustomerInfo{
			Name:  user.Name,
			Email: user.Email,
			Phone: user.Phone,
		},
	})
	if err != nil {
		s.markInitiationFailed(ctx, &payment, err)
		return nil, gatewayError(err)
	}

	details := payment.Details.Data()
	details.GatewayResponse = rawJSON(resp.Raw)
	if err := db.Model(&payment).Updates(map[string]any{
		"pidx":        resp.Pidx,
		"payment_url": resp.PaymentURL,
		"details":     datatypes.NewJSONType(details),
	}).Error; err != nil {
		return nil, apperrors.Internal("failed to save payment session", err)
	}

	orderDetails := order.PaymentDetails.Data()
	orderDetails.Pidx = resp.Pidx
	orderDetails.PaymentURL = resp.PaymentURL
	orderDetails.InitiatedAt = &initiatedAt
	if err := db.Model(&order).Update("payment_details", datatypes.NewJSONType(orderDetails)).Error; err != nil {
		s.logger.Error("Payment session opened but order details not saved",
			zap.Uint("order_id", order.ID),
			zap.String("pidx", resp.Pidx),
			zap.Error(err),
		)
	}

	s.logger.Info("Payment initiated",
		zap.Uint("order_id", order.ID),
		zap.Uint("payment_id", payment.ID),
		zap.String("pidx", resp.Pidx),
	)
	return &InitiateResult{
		PaymentID:  payment.ID,
		OrderID:    order.ID,
		Pidx:       resp.Pidx,
		PaymentURL: resp.PaymentURL,
		Amount:     order.TotalAmount,
	}, nil
}

func (s *PaymentService) markInitiationFailed(ctx context.Context, payment *models.Payment, cause error) {
	details := payment.Details.Data()
	var apiErr *khalti.APIError
	if errors.As(cause, &apiErr) {
		details.GatewayResponse = rawJSON(apiErr.Body)
	}

	result := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", payment.ID, models.PaymentRecordPending).
		Updates(map[string]any{
			"status":  models.PaymentRecordFailed,
			"details": datatypes.NewJSONType(details),
		})
	if result.Error != nil {
		s.logger.Error("Failed to mark payment attempt as failed", zap.Uint("payment_id", payment.ID), zap.Error(result.Error))
		return
	}
	s.metrics.RecordPaymentProcessed(string(models.PaymentRecordFailed))
}

// Verify re-checks a payment session with the gateway and applies the
// result. Customers may only verify their own payments.
func (s *PaymentService) Verify(ctx context.Context, user *models.User, pidx string) (*VerifyResult, error) {
	if pidx == "" {
		return nil, apperrors.Validation("pidx is required")
	}

	query := s.db.WithContext(ctx).Where("pidx = ?", pidx)
	if !user.IsAdmin() {
		query = query.Where("user_id = ?", user.ID)
	}
	var payment models.Payment
	err := query.First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("payment not found")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to fetch payment", err)
	}

	lookup, err := s.gateway.Lookup(ctx, pidx)
	if err != nil {
		return nil, gatewayError(err)
	}
	return s.apply(ctx, &payment, lookup)
}

// Complete handles the browser coming back from the gateway and returns the
// frontend page to redirect to. Every failure lands on the failure page.
func (s *PaymentService) Complete(ctx context.Context, params CallbackParams) string {
	id, err := strconv.ParseUint(params.PurchaseOrderID, 10, 64)
	if err != nil {
		s.logger.Warn("Payment callback without a usable purchase order id", zap.String("purchase_order_id", params.PurchaseOrderID))
		return s.failureURL(0)
	}

	var payment models.Payment
	if err := s.db.WithContext(ctx).First(&payment, uint(id)).Error; err != nil {
		s.logger.Warn("Payment callback for unknown payment", zap.Uint64("payment_id", id), zap.Error(err))
		return s.failureURL(0)
	}

	// Without a stored session there is nothing to check the echoed pidx against.
	pidx := payment.Pidx
	if pidx == "" {
		s.logger.Warn("Payment callback for an attempt without a gateway session", zap.Uint("payment_id", payment.ID))
		return s.failureURL(payment.OrderID)
	}
	if params.Pidx != "" && params.Pidx != pidx {
		s.logger.Warn("Payment callback pidx does not match stored session",
			zap.Uint("payment_id", payment.ID),
			zap.String("stored", pidx),
			zap.String("received", params.Pidx),
		)
		return s.failureURL(payment.OrderID)
	}

	lookup, err := s.gateway.Lookup(ctx, pidx)
	if err != nil {
		s.logger.Error("Payment lookup failed during callback", zap.Uint("payment_id", payment.ID), zap.Error(err))
		return s.failureURL(payment.OrderID)
	}
	if lookup.Pidx != "" && lookup.Pidx != pidx {
		s.logger.Warn("Gateway lookup returned a different session", zap.Uint("payment_id", payment.ID), zap.String("pidx", lookup.Pidx))
		return s.failureURL(payment.OrderID)
	}

	result, err := s.apply(ctx, &payment, lookup)
	if err != nil {
		s.logger.Error("Failed to apply payment callback", zap.Uint("payment_id", payment.ID), zap.Error(err))
		return s.failureURL(payment.OrderID)
	}
	if result.Status != models.PaymentRecordCompleted {
		return s.failureURL(payment.OrderID)
	}
	return s.successURL(payment.OrderID)
}

// Status returns an order with its latest payment attempt, if any.
func (s *PaymentService) Status(ctx context.Context, user *models.User, orderID uint) (*PaymentStatusResult, error) {
	db := s.db.WithContext(ctx)

	query := db.Preload("Book", includeDeletedBook).Where("id = ?", orderID)
	if !user.IsAdmin() {
		query = query.Where("user_id = ?", user.ID)
	}
	var order models.Order
	err := query.First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("order not found")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to fetch order", err)
	}

	result := &PaymentStatusResult{Order: summarize(&order)}

	var payment models.Payment
	err = db.Where("order_id = ?", order.ID).Order("id DESC").First(&payment).Error
	switch {
	case err == nil:
		result.Payment = &payment
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, apperrors.Internal("failed to fetch payment", err)
	}
	return result, nil
}

// outcome is what a gateway status means locally.
type outcome struct {
	payment models.PaymentRecordStatus
	order   models.PaymentStatus
}

func mapGatewayStatus(status string) (outcome, bool) {
	switch status {
	case khalti.StatusCompleted:
		return outcome{models.PaymentRecordCompleted, models.PaymentStatusPaid}, true
	case khalti.StatusPending:
		return outcome{models.PaymentRecordPending, models.PaymentStatusPending}, true
	case khalti.StatusFailed, khalti.StatusExpired:
		return outcome{models.PaymentRecordFailed, models.PaymentStatusFailed}, true
	case khalti.StatusUserCanceled:
		return outcome{models.PaymentRecordCancelled, models.PaymentStatusFailed}, true
	}
	return outcome{}, false
}

// apply moves a payment out of PENDING according to a gateway lookup. The
// status update is conditional on the row still being PENDING, so two
// concurrent verifications cannot both apply.
func (s *PaymentService) apply(ctx context.Context, payment *models.Payment, lookup *khalti.LookupResponse) (*VerifyResult, error) {
	target, ok := mapGatewayStatus(lookup.Status)
	if !ok {
		return nil, apperrors.Gateway("unrecognized payment status", map[string]string{"status": lookup.Status}, nil)
	}

	result := &VerifyResult{
		PaymentID:     payment.ID,
		OrderID:       payment.OrderID,
		Status:        target.payment,
		GatewayStatus: lookup.Status,
	}
	if target.payment == models.PaymentRecordPending {
		result.Status = payment.Status
		result.TransactionID = payment.TransactionID
		return result, nil
	}

	if target.payment == models.PaymentRecordCompleted {
		expected := ToPaisa(payment.Amount)
		if lookup.TotalAmount != expected {
			return nil, apperrors.Gateway("payment amount mismatch", map[string]int64{
				"expected": expected,
				"received": lookup.TotalAmount,
			}, nil)
		}
		result.TransactionID = lookup.TransactionID
	}

	now := s.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		details := payment.Details.Data()
		details.VerifiedAt = &now
		details.GatewayResponse = rawJSON(lookup.Raw)
		updates := map[string]any{"status": target.payment}
		if target.payment == models.PaymentRecordCompleted {
			details.CompletedAt = &now
			updates["transaction_id"] = lookup.TransactionID
		}
		updates["details"] = datatypes.NewJSONType(details)

		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", payment.ID, models.PaymentRecordPending).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var current models.Payment
			if err := tx.First(&current, payment.ID).Error; err != nil {
				return err
			}
			if current.Status != target.payment {
				return apperrors.Conflict(fmt.Sprintf("payment is already %s", current.Status))
			}
			result.AlreadyApplied = true
			result.TransactionID = current.TransactionID
			return nil
		}

		var order models.Order
		if err := tx.First(&order, payment.OrderID).Error; err != nil {
			return err
		}
		orderDetails := order.PaymentDetails.Data()
		orderDetails.VerifiedAt = &now
		if lookup.TransactionID != "" {
			orderDetails.TransactionID = lookup.TransactionID
		}
		// A paid or refunded order is never pulled back by a later attempt.
		return tx.Model(&models.Order{}).
			Where("id = ? AND payment_status IN ?", order.ID, []string{string(models.PaymentStatusPending), string(models.PaymentStatusFailed)}).
			Updates(map[string]any{
				"payment_status":  target.order,
				"payment_details": datatypes.NewJSONType(orderDetails),
			}).Error
	})
	if err != nil {
		return nil, wrapInternal(err, "failed to apply payment status")
	}

	if !result.AlreadyApplied {
		s.metrics.RecordPaymentProcessed(string(target.payment))
		s.logger.Info("Payment status applied",
			zap.Uint("payment_id", payment.ID),
			zap.Uint("order_id", payment.OrderID),
			zap.String("status", string(target.payment)),
		)
	}
	return result, nil
}

func gatewayError(err error) error {
	var apiErr *khalti.APIError
	switch {
	case errors.As(err, &apiErr):
		return apperrors.Gateway("payment gateway rejected the request", apiErr.Payload(), err)
	case errors.Is(err, khalti.ErrCircuitOpen):
		return apperrors.Gateway("payment gateway is temporarily unavailable", nil, err)
	default:
		return apperrors.Gateway("payment gateway is unreachable", nil, err)
	}
}

func (s *PaymentService) successURL(orderID uint) string {
	return s.cfg.FrontendURL + "/payment/success?orderId=" + url.QueryEscape(strconv.FormatUint(uint64(orderID), 10))
}

func (s *PaymentService) failureURL(orderID uint) string {
	if orderID == 0 {
		return s.cfg.FrontendURL + "/payment/failure"
	}
	return s.cfg.FrontendURL + "/payment/failure?orderId=" + url.QueryEscape(strconv.FormatUint(uint64(orderID), 10))
}

// rawJSON drops bodies that are not JSON so they cannot break the column.
func rawJSON(body []byte) json.RawMessage {
	if len(body) == 0 || !json.Valid(body) {
		return nil
	}
	return body
}

func summarize(order *models.Order) OrderSummary {
	summary := OrderSummary{
		ID:             order.ID,
		BookID:         order.BookID,
		Quantity:       order.Quantity,
		TotalAmount:    order.TotalAmount,
		PaymentMethod:  order.PaymentMethod,
		PaymentStatus:  order.PaymentStatus,
		DeliveryStatus: order.DeliveryStatus,
	}
	if order.Book != nil {
		summary.BookTitle = order.Book.Title
	}
	return summary
}
