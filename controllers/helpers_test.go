package controllers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/cmsp-lab/lab-orders-api/config"
	"github.com/cmsp-lab/lab-orders-api/middleware"
	"github.com/cmsp-lab/lab-orders-api/models"
	"github.com/cmsp-lab/lab-orders-api/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var bg = context.Background()

// subjectHeader carries the mock principal, e.g. "client:3", into the test router.
const subjectHeader = "X-Test-Subject"

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	return db
}

// mockAuth stands in for the token middleware: it trusts the subject header.
func mockAuth(c *gin.Context) {
	if sub := c.GetHeader(subjectHeader); sub != "" {
		principal, err := services.ParseSubject(sub)
		if err == nil {
			middleware.SetPrincipal(c, principal)
		}
	}
	c.Next()
}

type fixture struct {
	db        *gorm.DB
	files     *services.MockFileStorage
	notifier  *services.RecordingNotifier
	store     *services.GormOrderStore
	lifecycle *services.OrderLifecycle
	clients   *services.ClientService
	operators *services.OperatorService
	router    *gin.Engine

	client   models.Client
	operator models.Operator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := setupTestDB(t)
	f := &fixture{
		db:        db,
		files:     services.NewMockFileStorage(),
		notifier:  services.NewRecordingNotifier(),
		store:     services.NewGormOrderStore(db),
		clients:   services.NewClientService(db),
		operators: services.NewOperatorService(db),
	}
	f.lifecycle = services.NewOrderLifecycle(f.store, f.files, f.notifier, zaptest.NewLogger(t))
	pdf := services.NewPDFRenderer()

	clientOrders := NewClientOrderController(f.lifecycle, f.store, f.clients, pdf)
	operatorOrders := NewOperatorOrderController(f.lifecycle, f.store, f.operators, pdf)
	clientAdmin := NewClientAdminController(f.clients, f.store)

	router := gin.New()
	router.Use(mockAuth)
	client := router.Group("/api/v1/client", middleware.RequireRole(services.RoleClient))
	{
		client.POST("/orders", clientOrders.Create)
		client.GET("/orders", clientOrders.List)
		client.GET("/orders/:id/pdf", clientOrders.PDF)
		client.GET("/orders/:id/file", clientOrders.SourceFile)
		client.GET("/orders/:id/final-file", clientOrders.FinalFile)
	}
	operator := router.Group("/api/v1/operator", middleware.RequireRole(services.RoleOperator))
	{
		operator.GET("/orders", operatorOrders.List)
		operator.GET("/orders/new/count", operatorOrders.CountNew)
		operator.PATCH("/orders/update/:id/:option", operatorOrders.UpdateStatus)
		operator.POST("/orders/:id/field-work", operatorOrders.RecordFieldWork)
		operator.DELETE("/orders/:id", operatorOrders.Delete)
		operator.GET("/orders/:id/pdf", operatorOrders.PDF)
		operator.GET("/orders/:id/file", operatorOrders.SourceFile)
		operator.GET("/orders/:id/final-file", operatorOrders.FinalFile)

		operator.GET("/clients", clientAdmin.List)
		operator.POST("/clients", clientAdmin.Create)
		operator.GET("/clients/:id", clientAdmin.Get)
		operator.PATCH("/clients/:id", clientAdmin.Update)
		operator.DELETE("/clients/:id", clientAdmin.Delete)
		operator.GET("/clients/:id/orders", clientAdmin.Orders)
	}
	f.router = router

	f.client = f.createClient(t, "studio1")
	f.operator = f.createOperator(t, "lab1", "Rossi")
	return f
}

func (f *fixture) createClient(t *testing.T, username string) models.Client {
	t.Helper()

	client := models.Client{
		BusinessName: "Acme Dental",
		FirstName:    "Giulia",
		LastName:     "Bianchi",
		VATNumber:    "IT01234567890",
		Address:      "Via Roma 1",
		City:         "Milano",
		PostalCode:   "20100",
		Province:     "MI",
		Email:        username + "@acme.example",
		Username:     username,
		PasswordHash: "x",
	}
	require.NoError(t, f.db.Create(&client).Error)
	return client
}

func (f *fixture) createOperator(t *testing.T, username, lastName string) models.Operator {
	t.Helper()

	op := models.Operator{
		FirstName:    "Mario",
		LastName:     lastName,
		Email:        username + "@lab.example",
		Username:     username,
		PasswordHash: "x",
	}
	require.NoError(t, f.db.Create(&op).Error)
	return op
}

// createOrder registers an order through the lifecycle, with a case file when filename is set.
func (f *fixture) createOrder(t *testing.T, client models.Client, filename string) models.Order {
	t.Helper()

	var upload *services.Upload
	if filename != "" {
		upload = &services.Upload{Filename: filename, Size: 5, Body: bytes.NewBufferString("solid")}
	}
	result, err := f.lifecycle.CreateOrder(bg, client, services.NewOrder{
		OrderingPhysician: "Dr. Verdi",
		PatientFirstName:  "Mario",
		PatientLastName:   "Rossi",
		ShippingAddress:   "Via Milano 2",
		WorkDescription:   "Crown on 16",
		Color:             "A2",
		DeliveryDate:      time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC),
		DeliveryTime:      "10:00",
	}, upload)
	require.NoError(t, err)
	return *result.Order
}

func (f *fixture) reload(t *testing.T, id uint) models.Order {
	t.Helper()

	order, err := f.store.FindByID(bg, id)
	require.NoError(t, err)
	return *order
}

func (f *fixture) do(req *http.Request, subject string) *httptest.ResponseRecorder {
	if subject != "" {
		req.Header.Set(subjectHeader, subject)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) clientSubject() string {
	return services.Principal{Role: services.RoleClient, ID: f.client.ID}.Subject()
}

func (f *fixture) operatorSubject() string {
	return services.Principal{Role: services.RoleOperator, ID: f.operator.ID}.Subject()
}
