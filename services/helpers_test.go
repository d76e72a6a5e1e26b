package services

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"

	"github.com/Kariqs/readpage-api/khalti"
	"github.com/Kariqs/readpage-api/metrics"
	"github.com/Kariqs/readpage-api/models"
	"github.com/Kariqs/readpage-api/testutil"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

// fakeGateway hands out pidx values derived from the purchase order id and
// answers lookups through lookupFn.
type fakeGateway struct {
	mu          sync.Mutex
	initiateErr error
	lookupFn    func(pidx string) (*khalti.LookupResponse, error)
	initiated   []khalti.InitiateRequest
	lookups     int
}

func (g *fakeGateway) Initiate(ctx context.Context, req khalti.InitiateRequest) (*khalti.InitiateResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initiated = append(g.initiated, req)
	if g.initiateErr != nil {
		return nil, g.initiateErr
	}
	pidx := "pidx-" + req.PurchaseOrderID
	return &khalti.InitiateResponse{
		Pidx:       pidx,
		PaymentURL: "https://test-pay.khalti.com/?pidx=" + pidx,
		Raw:        []byte(fmt.Sprintf(`{"pidx":%q}`, pidx)),
	}, nil
}

func (g *fakeGateway) Lookup(ctx context.Context, pidx string) (*khalti.LookupResponse, error) {
	g.mu.Lock()
	g.lookups++
	fn := g.lookupFn
	g.mu.Unlock()
	if fn == nil {
		return &khalti.LookupResponse{Pidx: pidx, Status: khalti.StatusPending}, nil
	}
	return fn(pidx)
}

// respond makes every lookup report status with the given paisa amount.
func (g *fakeGateway) respond(status string, amount int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lookupFn = func(pidx string) (*khalti.LookupResponse, error) {
		return &khalti.LookupResponse{
			Pidx:          pidx,
			Status:        status,
			TotalAmount:   amount,
			TransactionID: "txn-" + pidx,
			Raw:           []byte(`{"status":"` + status + `"}`),
		}, nil
	}
}

type fixture struct {
	db       *gorm.DB
	gateway  *fakeGateway
	metrics  *metrics.Metrics
	cart     *CartService
	payments *PaymentService
	checkout *CheckoutService
	orders   *OrderService
	customer *models.User
	other    *models.User
	admin    *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	m := metrics.New(prometheus.NewRegistry())
	gateway := &fakeGateway{}

	payments := NewPaymentService(db, gateway, PaymentConfig{
		ReturnURL:   "http://localhost:8080/payments/khalti/complete",
		WebsiteURL:  "http://localhost:5173",
		FrontendURL: "http://localhost:5173",
	}, m, logger)

	return &fixture{
		db:       db,
		gateway:  gateway,
		metrics:  m,
		cart:     NewCartService(db, logger),
		payments: payments,
		checkout: NewCheckoutService(db, payments, nil, m, logger),
		orders:   NewOrderService(db, logger),
		customer: testutil.CreateUser(t, db, "asha", models.RoleCustomer),
		other:    testutil.CreateUser(t, db, "bikash", models.RoleCustomer),
		admin:    testutil.CreateUser(t, db, "admin", models.RoleAdmin),
	}
}

func (f *fixture) reloadBook(t *testing.T, id uint) models.Book {
	t.Helper()
	var book models.Book
	if err := f.db.First(&book, id).Error; err != nil {
		t.Fatalf("reload book %d: %v", id, err)
	}
	return book
}

func (f *fixture) countOrders(t *testing.T) int64 {
	t.Helper()
	var n int64
	if err := f.db.Model(&models.Order{}).Count(&n).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	return n
}

func (f *fixture) countCart(t *testing.T, userID uint) int64 {
	t.Helper()
	var n int64
	if err := f.db.Model(&models.CartItem{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		t.Fatalf("count cart: %v", err)
	}
	return n
}

func uintString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
