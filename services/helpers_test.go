package services

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cmsp-lab/lab-orders-api/config"
	"github.com/cmsp-lab/lab-orders-api/models"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var testNow = time.Date(2025, time.March, 10, 9, 30, 0, 0, time.UTC)

// testNumberSeq keeps numbers of directly inserted orders unique.
var testNumberSeq int

// setupTestDB opens a migrated SQLite database with foreign keys enforced.
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

func createTestClient(t *testing.T, db *gorm.DB, username string) models.Client {
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
	require.NoError(t, db.Create(&client).Error)
	return client
}

func createTestOperator(t *testing.T, db *gorm.DB, username, lastName string) models.Operator {
	t.Helper()

	op := models.Operator{
		FirstName:    "Mario",
		LastName:     lastName,
		Email:        username + "@lab.example",
		Username:     username,
		PasswordHash: "x",
	}
	require.NoError(t, db.Create(&op).Error)
	return op
}

// insertOrder stores an order as-is, bypassing number assignment.
func insertOrder(t *testing.T, db *gorm.DB, order models.Order) models.Order {
	t.Helper()

	if order.CreatedAt.IsZero() {
		order.CreatedAt = testNow
	}
	if order.Year == 0 {
		order.Year = order.CreatedAt.Year()
	}
	if order.Number == 0 {
		testNumberSeq++
		order.Number = 1000 + testNumberSeq
	}
	if order.LastModifiedBy == "" {
		order.LastModifiedBy = models.NoModifier
	}
	order.OrderingPhysician = "Dr. Verdi"
	order.PatientFirstName = "Mario"
	order.PatientLastName = "Rossi"
	order.ShippingAddress = "Via Po 2"
	order.WorkDescription = "Crown 36"
	order.Color = "A2"
	order.DeliveryDate = testNow.AddDate(0, 0, 7)
	order.DeliveryTime = "10:00"
	require.NoError(t, db.Omit(clause.Associations).Create(&order).Error)
	return order
}

func reloadOrder(t *testing.T, db *gorm.DB, id uint) models.Order {
	t.Helper()

	var order models.Order
	require.NoError(t, db.First(&order, id).Error)
	return order
}

type lifecycleFixture struct {
	db        *gorm.DB
	store     *GormOrderStore
	files     *MockFileStorage
	notifier  *RecordingNotifier
	lifecycle *OrderLifecycle
	now       time.Time
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()

	f := &lifecycleFixture{
		db:       setupTestDB(t),
		files:    NewMockFileStorage(),
		notifier: NewRecordingNotifier(),
		now:      testNow,
	}
	f.store = NewGormOrderStore(f.db)
	f.lifecycle = NewOrderLifecycle(f.store, f.files, f.notifier, zaptest.NewLogger(t)).
		WithClock(func() time.Time { return f.now })
	return f
}

func newUpload(name, content string) *Upload {
	return &Upload{Filename: name, Size: int64(len(content)), Body: bytes.NewBufferString(content)}
}

func sampleNewOrder() NewOrder {
	return NewOrder{
		OrderingPhysician: "Dr. Verdi",
		PatientFirstName:  "Mario",
		PatientLastName:   "Rossi",
		ShippingAddress:   "Via Po 2",
		WorkDescription:   "Crown 36",
		Color:             "A2",
		DeliveryDate:      testNow.AddDate(0, 0, 7),
		DeliveryTime:      "10:00",
	}
}

func strPtr(s string) *string {
	return &s
}

var bg = context.Background()
