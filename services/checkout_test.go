package services

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Kariqs/readpage-api/apperrors"
	"github.com/Kariqs/readpage-api/models"
	"github.com/Kariqs/readpage-api/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestCheckoutCashOnDelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book := testutil.CreateBook(t, f.db, "Muna Madan", "500", 10)

	for i := 0; i < 2; i++ {
		_, _, err := f.cart.Add(ctx, f.customer.ID, book.ID, 1)
		require.NoError(t, err)
	}
	items, err := f.cart.List(ctx, f.customer.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, 2, items[0].Quantity)

	result, err := f.checkout.Checkout(ctx, f.customer, CheckoutRequest{
		CartItemIDs:   []uint{items[0].ID},
		PaymentMethod: "cod",
	})
	require.NoError(t, err)
	require.Len(t, result.Orders, 1)
	assert.Nil(t, result.Payment)
	assert.NoError(t, result.PaymentError)

	var order models.Order
	require.NoError(t, f.db.First(&order, result.Orders[0].ID).Error)
	assert.Equal(t, book.ID, order.BookID)
	assert.Equal(t, 2, order.Quantity)
	assert.True(t, decimal.NewFromInt(1000).Equal(order.TotalAmount), order.TotalAmount.String())
	assert.Equal(t, models.PaymentMethodCOD, order.PaymentMethod)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, models.DeliveryStatusPending, order.DeliveryStatus)

	assert.Zero(t, f.countCart(t, f.customer.ID))
	assert.Equal(t, 8, f.reloadBook(t, book.ID).Stock)
	assert.Empty(t, f.gateway.initiated)
}

func TestCheckoutSnapshotsPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book := testutil.CreateBook(t, f.db, "Basain", "250.50", 10)
	item := testutil.AddToCart(t, f.db, f.customer.ID, book.ID, 2)

	result, err := f.checkout.Checkout(ctx, f.customer, CheckoutRequest{CartItemIDs: []uint{item.ID}, PaymentMethod: "cod"})
	require.NoError(t, err)

	require.NoError(t, f.db.Model(&models.Book{}).Where("id = ?", book.ID).Update("price", decimal.NewFromInt(999)).Error)

	var order models.Order
	require.NoError(t, f.db.First(&order, result.Orders[0].ID).Error)
	assert.True(t, decimal.RequireFromString("501").Equal(order.TotalAmount), order.TotalAmount.String())
}

func TestCheckoutIgnoresForeignItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book := testutil.CreateBook(t, f.db, "Sumnima", "300", 10)
	foreign := testutil.AddToCart(t, f.db, f.other.ID, book.ID, 1)

	_, err := f.checkout.Checkout(ctx, f.customer, CheckoutRequest{
		CartItemIDs:   []uint{foreign.ID, 4242},
		PaymentMethod: "cod",
	})
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
	assert.Zero(t, f.countOrders(t))
	assert.Equal(t, int64(1), f.countCart(t, f.other.ID))
	assert.Equal(t, 10, f.reloadBook(t, book.ID).Stock)
}

func TestCheckoutConvertsOnlyOwnedItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book := testutil.CreateBook(t, f.db, "Sumnima", "300", 10)
	mine := testutil.AddToCart(t, f.db, f.customer.ID, book.ID, 1)
	foreign := testutil.AddToCart(t, f.db, f.other.ID, book.ID, 1)

	result, err := f.checkout.Checkout(ctx, f.customer, CheckoutRequest{
		CartItemIDs:   []uint{mine.ID, foreign.ID},
		PaymentMethod: "cod",
	})
	require.NoError(t, err)
	assert.Len(t, result.Orders, 1)
	assert.Equal(t, int64(1), f.countCart(t, f.other.ID))
}

func TestCheckoutRejectsUnknownPaymentMethod(t *testing.T) {
	f := newFixture(t)
	book := testutil.CreateBook(t, f.db, "Ghumne Mechmathi Andho Manche", "200", 10)
	item := testutil.AddToCart(t, f.db, f.customer.ID, book.ID, 1)

	for _, method := range []string{"", "card", "esewa"} {
		_, err := f.checkout.Checkout(context.Background(), f.customer, CheckoutRequest{
			CartItemIDs:   []uint{item.ID},
			PaymentMethod: method,
		})
		assert.True(t, apperrors.Is(err, apperrors.KindValidation), method)
	}
	assert.Zero(t, f.countOrders(t))
	assert.Equal(t, int64(1), f.countCart(t, f.customer.ID))
}

func TestCheckoutRejectsEmptySelection(t *testing.T) {
	f := newFixture(t)

	_, err := f.checkout.Checkout(context.Background(), f.customer, CheckoutRequest{PaymentMethod: "cod"})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
}

func TestCheckoutInsufficientStockRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plenty := testutil.CreateBook(t, f.db, "Plenty", "100", 10)
	scarce := testutil.CreateBook(t, f.db, "Scarce", "100", 1)
	a := testutil.AddToCart(t, f.db, f.customer.ID, plenty.ID, 2)
	b := testutil.AddToCart(t, f.db, f.customer.ID, scarce.ID, 3)

	_, err := f.checkout.Checkout(ctx, f.customer, CheckoutRequest{
		CartItemIDs:   []uint{a.ID, b.ID},
		PaymentMethod: "cod",
	})
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))

	assert.Zero(t, f.countOrders(t))
	assert.Equal(t, int64(2), f.countCart(t, f.customer.ID))
	assert.Equal(t, 10, f.reloadBook(t, plenty.ID).Stock)
	assert.Equal(t, 1, f.reloadBook(t, scarce.ID).Stock)
}

func TestConcurrentCheckoutsWithDisjointItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := testutil.CreateBook(t, f.db, "A", "100", 5)
	b := testutil.CreateBook(t, f.db, "B", "200", 5)
	itemA := testutil.AddToCart(t, f.db, f.customer.ID, a.ID, 2)
	itemB := testutil.AddToCart(t, f.db, f.customer.ID, b.ID, 3)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []uint{itemA.ID, itemB.ID} {
		wg.Add(1)
		go func(i int, id uint) {
			defer wg.Done()
			_, errs[i] = f.checkout.Checkout(ctx, f.customer, CheckoutRequest{CartItemIDs: []uint{id}, PaymentMethod: "cod"})
		}(i, id)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, int64(2), f.countOrders(t))
	assert.Zero(t, f.countCart(t, f.customer.ID))
	assert.Equal(t, 3, f.reloadBook(t, a.ID).Stock)
	assert.Equal(t, 2, f.reloadBook(t, b.ID).Stock)
}

func TestConcurrentCheckoutsCannotOversell(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book := testutil.CreateBook(t, f.db, "Last Copy", "100", 1)
	mine := testutil.AddToCart(t, f.db, f.customer.ID, book.ID, 1)
	theirs := testutil.AddToCart(t, f.db, f.other.ID, book.ID, 1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	users := []*models.User{f.customer, f.other}
	for i, id := range []uint{mine.ID, theirs.ID} {
		wg.Add(1)
		go func(i int, id uint) {
			defer wg.Done()
			_, errs[i] = f.checkout.Checkout(ctx, users[i], CheckoutRequest{CartItemIDs: []uint{id}, PaymentMethod: "cod"})
		}(i, id)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.True(t, apperrors.Is(err, apperrors.KindConflict), err.Error())
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int64(1), f.countOrders(t))
	assert.Zero(t, f.reloadBook(t, book.ID).Stock)
}

func TestCheckoutOnlineInitiatesFirstOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book := testutil.CreateBook(t, f.db, "Radha", "200", 10)
	item := testutil.AddToCart(t, f.db, f.customer.ID, book.ID, 3)

	result, err := f.checkout.Checkout(ctx, f.customer, CheckoutRequest{CartItemIDs: []uint{item.ID}, PaymentMethod: "online"})
	require.NoError(t, err)
	require.NoError(t, result.PaymentError)
	require.NotNil(t, result.Payment)
	require.Len(t, result.Orders, 1)

	order := result.Orders[0]
	assert.True(t, decimal.NewFromInt(600).Equal(order.TotalAmount))
	assert.Equal(t, order.ID, result.Payment.OrderID)
	assert.NotEmpty(t, result.Payment.PaymentURL)

	require.Len(t, f.gateway.initiated, 1)
	req := f.gateway.initiated[0]
	assert.Equal(t, int64(60000), req.Amount)
	assert.Equal(t, "Order_"+uintString(order.ID), req.PurchaseOrderName)
	assert.Equal(t, uintString(result.Payment.PaymentID), req.PurchaseOrderID)
	assert.Equal(t, f.customer.Email, req.CustomerInfo.Email)
}

func TestCheckoutKeepsOrdersWhenPaymentInitiationFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gateway.initiateErr = errors.New("connection reset")
	book := testutil.CreateBook(t, f.db, "Radha", "200", 10)
	item := testutil.AddToCart(t, f.db, f.customer.ID, book.ID, 1)

	result, err := f.checkout.Checkout(ctx, f.customer, CheckoutRequest{CartItemIDs: []uint{item.ID}, PaymentMethod: "online"})
	require.NoError(t, err)
	assert.True(t, apperrors.Is(result.PaymentError, apperrors.KindGateway))
	assert.Nil(t, result.Payment)

	assert.Equal(t, int64(1), f.countOrders(t))
	assert.Zero(t, f.countCart(t, f.customer.ID))

	var payment models.Payment
	require.NoError(t, f.db.Where("order_id = ?", result.Orders[0].ID).First(&payment).Error)
	assert.Equal(t, models.PaymentRecordFailed, payment.Status)
}

func TestBuyNow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book := testutil.CreateBook(t, f.db, "Aama", "150", 4)

	result, err := f.checkout.BuyNow(ctx, f.customer, DirectOrderRequest{BookID: book.ID, Quantity: 0, PaymentMethod: "COD"})
	require.NoError(t, err)
	require.Len(t, result.Orders, 1)
	assert.Equal(t, 1, result.Orders[0].Quantity)
	assert.Equal(t, 3, f.reloadBook(t, book.ID).Stock)

	_, err = f.checkout.BuyNow(ctx, f.customer, DirectOrderRequest{BookID: book.ID, Quantity: 10, PaymentMethod: "cod"})
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))

	_, err = f.checkout.BuyNow(ctx, f.customer, DirectOrderRequest{BookID: 9999, Quantity: 1, PaymentMethod: "cod"})
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestCheckoutRollsBackWhenOrderInsertFails(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `cart_items`")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "book_id", "quantity", "created_at", "updated_at"}).
			AddRow(11, 1, 5, 2, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `books`")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at", "deleted_at", "title", "author", "description", "price", "stock", "category", "cover_image"}).
			AddRow(5, now, now, nil, "Muna Madan", "Devkota", "", "500.00", 10, "General", "{}"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `books` SET `stock`=stock - ?")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `orders`")).
		WillReturnError(errors.New("connection lost"))
	mock.ExpectRollback()

	svc := NewCheckoutService(db, nil, nil, nil, zaptest.NewLogger(t))
	user := &models.User{Role: models.RoleCustomer}
	user.ID = 1

	_, err = svc.Checkout(context.Background(), user, CheckoutRequest{CartItemIDs: []uint{11}, PaymentMethod: "cod"})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindInternal))
	assert.NoError(t, mock.ExpectationsWereMet())
}
