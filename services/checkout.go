package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Kariqs/readpage-api/apperrors"
	"github.com/Kariqs/readpage-api/cache"
	"github.com/Kariqs/readpage-api/metrics"
	"github.com/Kariqs/readpage-api/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PaymentInitiator starts an online payment for an order that already exists.
type PaymentInitiator interface {
	Initiate(ctx context.Context, user *models.User, orderID uint) (*InitiateResult, error)
}

type CheckoutRequest struct {
	CartItemIDs   []uint `json:"cartItemIds" binding:"required,min=1"`
	PaymentMethod string `json:"paymentMethod" binding:"required"`
}

type DirectOrderRequest struct {
	BookID        uint   `json:"bookId" binding:"required"`
	Quantity      int    `json:"quantity"`
	PaymentMethod string `json:"paymentMethod" binding:"required"`
}

// CheckoutResult carries the committed orders. PaymentError is set when the
// orders stand but starting the online payment failed; the customer retries
// payment separately.
type CheckoutResult struct {
	Orders       []models.Order
	Payment      *InitiateResult
	PaymentError error
}

type CheckoutService struct {
	db       *gorm.DB
	payments PaymentInitiator
	books    cache.BookCache
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewCheckoutService(db *gorm.DB, payments PaymentInitiator, books cache.BookCache, m *metrics.Metrics, logger *zap.Logger) *CheckoutService {
	if books == nil {
		books = cache.NoopBookCache{}
	}
	return &CheckoutService{db: db, payments: payments, books: books, metrics: m, logger: logger}
}

// Checkout turns the caller's selected cart rows into orders in one
// transaction. Rows owned by someone else are skipped silently.
func (s *CheckoutService) Checkout(ctx context.Context, user *models.User, req CheckoutRequest) (*CheckoutResult, error) {
	if len(req.CartItemIDs) == 0 {
		return nil, apperrors.Validation("cartItemIds must contain at least one item")
	}
	method, err := models.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	var orders []models.Order
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var items []models.CartItem
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Book").
			Where("id IN ? AND user_id = ?", req.CartItemIDs, user.ID).
			Order("id").
			Find(&items).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return apperrors.NotFound("no valid cart items found")
		}

		converted := make([]uint, 0, len(items))
		for _, item := range items {
			if item.Book.ID == 0 {
				return apperrors.Conflict(fmt.Sprintf("book %d is no longer available", item.BookID))
			}
			order, err := placeOrder(tx, user.ID, &item.Book, item.Quantity, method)
			if err != nil {
				return err
			}
			orders = append(orders, *order)
			converted = append(converted, item.ID)
		}

		return tx.Where("id IN ? AND user_id = ?", converted, user.ID).Delete(&models.CartItem{}).Error
	})
	if err != nil {
		return nil, wrapInternal(err, "failed to create orders")
	}

	s.logger.Info("Checkout completed",
		zap.Uint("user_id", user.ID),
		zap.Int("orders", len(orders)),
		zap.String("payment_method", string(method)),
	)
	return s.afterCommit(ctx, user, method, orders), nil
}

// BuyNow orders a single book without going through the cart.
func (s *CheckoutService) BuyNow(ctx context.Context, user *models.User, req DirectOrderRequest) (*CheckoutResult, error) {
	method, err := models.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	qty := req.Quantity
	if qty < 1 {
		qty = 1
	}

	var order *models.Order
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var book models.Book
		if err := tx.First(&book, req.BookID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("book not found")
			}
			return err
		}
		placed, err := placeOrder(tx, user.ID, &book, qty, method)
		order = placed
		return err
	})
	if err != nil {
		return nil, wrapInternal(err, "failed to create order")
	}

	return s.afterCommit(ctx, user, method, []models.Order{*order}), nil
}

func (s *CheckoutService) afterCommit(ctx context.Context, user *models.User, method models.PaymentMethod, orders []models.Order) *CheckoutResult {
	s.metrics.RecordOrdersCreated(string(method), len(orders))
	// cached stock is stale now
	for _, o := range orders {
		s.books.Invalidate(ctx, o.BookID)
	}

	result := &CheckoutResult{Orders: orders}
	if method != models.PaymentMethodOnline || s.payments == nil {
		return result
	}

	payment, err := s.payments.Initiate(ctx, user, orders[0].ID)
	if err != nil {
		s.logger.Warn("Orders created but payment initiation failed",
			zap.Uint("order_id", orders[0].ID),
			zap.Error(err),
		)
		result.PaymentError = err
		return result
	}
	result.Payment = payment
	return result
}

// placeOrder takes qty off the book's stock and records the order line at
// the current price. The decrement is conditional, so a concurrent checkout
// can never drive stock negative.
func placeOrder(tx *gorm.DB, userID uint, book *models.Book, qty int, method models.PaymentMethod) (*models.Order, error) {
	result := tx.Model(&models.Book{}).
		Where("id = ? AND stock >= ?", book.ID, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, apperrors.Conflict(fmt.Sprintf("insufficient stock for %q", book.Title))
	}

	order := &models.Order{
		UserID:         userID,
		BookID:         book.ID,
		Quantity:       qty,
		TotalAmount:    book.Price.Mul(decimal.NewFromInt(int64(qty))),
		PaymentMethod:  method,
		PaymentStatus:  models.PaymentStatusPending,
		DeliveryStatus: models.DeliveryStatusPending,
	}
	if err := tx.Create(order).Error; err != nil {
		return nil, err
	}
	book.Stock -= qty
	order.Book = book
	return order, nil
}
