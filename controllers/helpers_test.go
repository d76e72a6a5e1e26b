package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/Kariqs/readpage-api/controllers"
	"github.com/Kariqs/readpage-api/khalti"
	"github.com/Kariqs/readpage-api/metrics"
	"github.com/Kariqs/readpage-api/middlewares"
	"github.com/Kariqs/readpage-api/models"
	"github.com/Kariqs/readpage-api/routes"
	"github.com/Kariqs/readpage-api/services"
	"github.com/Kariqs/readpage-api/storage"
	"github.com/Kariqs/readpage-api/testutil"
	"github.com/Kariqs/readpage-api/utils"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

const (
	jwtSecret   = "controller-test-secret"
	frontendURL = "http://localhost:5173"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type sentMail struct {
	to, name, url, otp string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *fakeMailer) SendVerificationEmail(to, name, verificationURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to: to, name: name, url: verificationURL})
	return nil
}

func (m *fakeMailer) SendPasswordResetOTP(to, name, otp string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to: to, name: name, otp: otp})
	return nil
}

func (m *fakeMailer) last() sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMail{}
	}
	return m.sent[len(m.sent)-1]
}

// fakeGateway answers like the Khalti sandbox: pidx is derived from the
// purchase order id and lookups report status for the requested amount.
type fakeGateway struct {
	mu          sync.Mutex
	initiateErr error
	status      string
	amounts     map[string]int64
}

func (g *fakeGateway) Initiate(ctx context.Context, req khalti.InitiateRequest) (*khalti.InitiateResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.initiateErr != nil {
		return nil, g.initiateErr
	}
	pidx := "pidx-" + req.PurchaseOrderID
	if g.amounts == nil {
		g.amounts = map[string]int64{}
	}
	g.amounts[pidx] = req.Amount
	return &khalti.InitiateResponse{
		Pidx:       pidx,
		PaymentURL: "https://test-pay.khalti.com/?pidx=" + pidx,
		Raw:        []byte(`{"pidx":"` + pidx + `"}`),
	}, nil
}

func (g *fakeGateway) Lookup(ctx context.Context, pidx string) (*khalti.LookupResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	status := g.status
	if status == "" {
		status = khalti.StatusPending
	}
	return &khalti.LookupResponse{
		Pidx:          pidx,
		Status:        status,
		TotalAmount:   g.amounts[pidx],
		TransactionID: "txn-" + pidx,
	}, nil
}

func (g *fakeGateway) setStatus(status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status = status
}

type testApp struct {
	t       *testing.T
	db      *gorm.DB
	router  *gin.Engine
	mailer  *fakeMailer
	gateway *fakeGateway
	uploads string
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	db := testutil.NewDB(t)
	logger := zaptest.NewLogger(t)
	m := metrics.New(prometheus.NewRegistry())
	uploads := t.TempDir()
	images := storage.NewLocalStore(uploads)
	mailer := &fakeMailer{}
	gateway := &fakeGateway{}

	payments := services.NewPaymentService(db, gateway, services.PaymentConfig{
		ReturnURL:   "http://localhost:8080/payments/khalti/complete",
		WebsiteURL:  frontendURL,
		FrontendURL: frontendURL,
	}, m, logger)
	orders := services.NewOrderService(db, logger)
	checkout := services.NewCheckoutService(db, payments, nil, m, logger)

	router := gin.New()
	routes.Register(router, routes.Handlers{
		Default: controllers.NewDefaultController(db),
		Auth: controllers.NewAuthController(db, controllers.AuthConfig{
			JWTSecret:   jwtSecret,
			JWTTTL:      time.Hour,
			FrontendURL: frontendURL,
		}, mailer, images, orders, logger),
		Books:       controllers.NewBookController(services.NewBookService(db, images, nil, m, logger), logger),
		Cart:        controllers.NewCartController(services.NewCartService(db, logger), logger),
		Orders:      controllers.NewOrderController(orders, checkout, logger),
		Payments:    controllers.NewPaymentController(payments, logger),
		RequireAuth: middlewares.RequireAuth(db, jwtSecret),
	})

	return &testApp{t: t, db: db, router: router, mailer: mailer, gateway: gateway, uploads: uploads}
}

func (a *testApp) token(user *models.User) string {
	a.t.Helper()
	token, err := utils.GenerateJWT(user.ID, string(user.Role), jwtSecret, time.Hour)
	require.NoError(a.t, err)
	return token
}

func (a *testApp) do(method, path string, body io.Reader, contentType, token string) *httptest.ResponseRecorder {
	a.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testApp) json(method, path string, payload any, token string) *httptest.ResponseRecorder {
	a.t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(a.t, err)
		body = bytes.NewReader(raw)
	}
	return a.do(method, path, body, "application/json", token)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func requireStatus(t *testing.T, w *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
