package services

import (
	"context"
	"errors"
	"io"

	"github.com/Kariqs/readpage-api/apperrors"
	"github.com/Kariqs/readpage-api/models"
	"github.com/Kariqs/readpage-api/utils"
	"github.com/tealeg/xlsx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// includeDeletedBook lets orders keep showing a book removed from the catalog.
func includeDeletedBook(db *gorm.DB) *gorm.DB {
	return db.Unscoped()
}

type UpdateStatusRequest struct {
	PaymentStatus  *string `json:"paymentStatus"`
	DeliveryStatus *string `json:"deliveryStatus"`
}

type OrderService struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewOrderService(db *gorm.DB, logger *zap.Logger) *OrderService {
	return &OrderService{db: db, logger: logger}
}

// List returns a page of orders, newest first. Admins see every order with
// its customer; everyone else sees their own.
func (s *OrderService) List(ctx context.Context, user *models.User, page, limit int) ([]models.Order, utils.Pagination, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		if user.IsAdmin() {
			return db
		}
		return db.Where("user_id = ?", user.ID)
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Order{}).Scopes(scope).Count(&count).Error; err != nil {
		return nil, utils.Pagination{}, apperrors.Internal("failed to count orders", err)
	}

	query := s.db.WithContext(ctx).Scopes(scope).Preload("Book", includeDeletedBook)
	if user.IsAdmin() {
		query = query.Preload("User", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "name", "email", "username", "phone")
		})
	}

	var orders []models.Order
	if err := query.
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(utils.Offset(page, limit)).
		Find(&orders).Error; err != nil {
		return nil, utils.Pagination{}, apperrors.Internal("failed to fetch orders", err)
	}
	return orders, utils.NewPagination(count, page, limit), nil
}

func (s *OrderService) Get(ctx context.Context, user *models.User, orderID uint) (*models.Order, error) {
	query := s.db.WithContext(ctx).Preload("Book", includeDeletedBook).Where("id = ?", orderID)
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
	return &order, nil
}

// ListForUser is the admin view of one customer's orders.
func (s *OrderService) ListForUser(ctx context.Context, userID uint) ([]models.Order, error) {
	var orders []models.Order
	if err := s.db.WithContext(ctx).
		Preload("Book", includeDeletedBook).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&orders).Error; err != nil {
		return nil, apperrors.Internal("failed to fetch orders", err)
	}
	return orders, nil
}

// UpdateStatus changes either status axis. Values outside the closed sets
// are rejected before anything is written, and refunded is only reachable
// from paid.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uint, req UpdateStatusRequest) (*models.Order, error) {
	if req.PaymentStatus == nil && req.DeliveryStatus == nil {
		return nil, apperrors.Validation("paymentStatus or deliveryStatus is required")
	}

	updates := map[string]any{}
	var paymentStatus models.PaymentStatus
	if req.PaymentStatus != nil {
		ps, err := models.ParsePaymentStatus(*req.PaymentStatus)
		if err != nil {
			return nil, apperrors.Validation(err.Error())
		}
		paymentStatus = ps
		updates["payment_status"] = ps
	}
	if req.DeliveryStatus != nil {
		ds, err := models.ParseDeliveryStatus(*req.DeliveryStatus)
		if err != nil {
			return nil, apperrors.Validation(err.Error())
		}
		updates["delivery_status"] = ds
	}

	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("order not found")
			}
			return err
		}
		if paymentStatus == models.PaymentStatusRefunded &&
			order.PaymentStatus != models.PaymentStatusPaid &&
			order.PaymentStatus != models.PaymentStatusRefunded {
			return apperrors.Conflict("only paid orders can be refunded")
		}
		if err := tx.Model(&order).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Preload("Book", includeDeletedBook).First(&order, orderID).Error
	})
	if err != nil {
		return nil, wrapInternal(err, "failed to update order status")
	}

	s.logger.Info("Order status updated",
		zap.Uint("order_id", order.ID),
		zap.String("payment_status", string(order.PaymentStatus)),
		zap.String("delivery_status", string(order.DeliveryStatus)),
	)
	return &order, nil
}

var exportHeaders = []string{
	"Order ID", "Customer", "Email", "Book", "Quantity", "Total Amount",
	"Payment Method", "Payment Status", "Delivery Status", "Transaction ID", "Created At",
}

// Export writes every order as an xlsx workbook.
func (s *OrderService) Export(ctx context.Context, w io.Writer) error {
	var orders []models.Order
	if err := s.db.WithContext(ctx).
		Preload("Book", includeDeletedBook).
		Preload("User").
		Order("created_at DESC, id DESC").
		Find(&orders).Error; err != nil {
		return apperrors.Internal("failed to fetch orders", err)
	}

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Orders")
	if err != nil {
		return apperrors.Internal("failed to create Excel sheet", err)
	}

	headerRow := sheet.AddRow()
	for _, h := range exportHeaders {
		headerRow.AddCell().SetValue(h)
	}

	for _, o := range orders {
		var customer, email, title string
		if o.User != nil {
			customer, email = o.User.Name, o.User.Email
		}
		if o.Book != nil {
			title = o.Book.Title
		}

		row := sheet.AddRow()
		row.AddCell().SetValue(o.ID)
		row.AddCell().SetValue(customer)
		row.AddCell().SetValue(email)
		row.AddCell().SetValue(title)
		row.AddCell().SetValue(o.Quantity)
		row.AddCell().SetValue(o.TotalAmount.StringFixed(2))
		row.AddCell().SetValue(string(o.PaymentMethod))
		row.AddCell().SetValue(string(o.PaymentStatus))
		row.AddCell().SetValue(string(o.DeliveryStatus))
		row.AddCell().SetValue(o.PaymentDetails.Data().TransactionID)
		row.AddCell().SetValue(o.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	if err := file.Write(w); err != nil {
		return apperrors.Internal("failed to write Excel file", err)
	}
	return nil
}
