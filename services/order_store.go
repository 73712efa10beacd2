package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cmsp-lab/lab-orders-api/apperrors"
	"github.com/cmsp-lab/lab-orders-api/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrStatusChanged is returned by ChangeStatus when the order no longer has the expected status.
var ErrStatusChanged = errors.New("order status changed concurrently")

// maxNumberAttempts bounds the retries when two orders race for the same yearly number.
const maxNumberAttempts = 5

// StatusChange is a conditional status update: it applies only while the order is still in From.
type StatusChange struct {
	OrderID    uint
	From       models.Status
	To         models.Status
	StartedAt  *time.Time
	ShippedAt  *time.Time
	OperatorID *uint
}

// FieldWorkUpdate carries what an operator changed while working on an order.
// Nil pointers leave the column untouched.
type FieldWorkUpdate struct {
	InternalNote  *string
	FinalFileName *string
	ModifiedBy    string
	ModifiedAt    time.Time
}

// OrderStore is the persistence boundary for orders.
type OrderStore interface {
	FindByID(ctx context.Context, id uint) (*models.Order, error)
	// Create assigns the yearly number and inserts the order.
	Create(ctx context.Context, order *models.Order) error
	AttachSourceFile(ctx context.Context, id uint, name string) error
	ChangeStatus(ctx context.Context, change StatusChange) error
	Reset(ctx context.Context, id uint) error
	SaveFieldWork(ctx context.Context, id uint, update FieldWorkUpdate) error
	Delete(ctx context.Context, id uint) error

	ListByStatus(ctx context.Context, status models.Status) ([]models.Order, error)
	CountByStatus(ctx context.Context, status models.Status) (int64, error)
	// ListByClient returns the client's orders, newest first. A zero since returns all of them.
	ListByClient(ctx context.Context, clientID uint, since time.Time) ([]models.Order, error)
}

// GormOrderStore implements OrderStore on GORM.
type GormOrderStore struct {
	db *gorm.DB
}

func NewGormOrderStore(db *gorm.DB) *GormOrderStore {
	return &GormOrderStore{db: db}
}

func (s *GormOrderStore) FindByID(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Preload("Client").Preload("Operator").First(&order, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("order not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order %d: %w", id, err)
	}
	return &order, nil
}

func (s *GormOrderStore) Create(ctx context.Context, order *models.Order) error {
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	order.Year = order.CreatedAt.Year()

	var err error
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var last int64
			if err := tx.Model(&models.Order{}).
				Where("year = ?", order.Year).
				Select("COALESCE(MAX(numero), 0)").
				Scan(&last).Error; err != nil {
				return err
			}
			order.Number = int(last) + 1
			return tx.Omit(clause.Associations).Create(order).Error
		})
		if err == nil {
			return nil
		}
		if !isDuplicateKey(err) {
			return fmt.Errorf("failed to create order: %w", err)
		}
		order.ID = 0
	}
	return apperrors.Conflict("could not assign an order number, try again", err)
}

func (s *GormOrderStore) AttachSourceFile(ctx context.Context, id uint, name string) error {
	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"has_source_file":  true,
			"source_file_name": name,
		})
	return rowsOrNotFound(res, "order not found")
}

// ChangeStatus updates the order only if its status still equals change.From.
func (s *GormOrderStore) ChangeStatus(ctx context.Context, change StatusChange) error {
	updates := map[string]interface{}{"stato": change.To}
	if change.StartedAt != nil {
		updates["started_at"] = *change.StartedAt
	}
	if change.ShippedAt != nil {
		updates["shipped_at"] = *change.ShippedAt
	}
	if change.OperatorID != nil {
		updates["operator_id"] = *change.OperatorID
	}

	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND stato = ?", change.OrderID, change.From).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update order %d: %w", change.OrderID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStatusChanged
	}
	return nil
}

func (s *GormOrderStore) Reset(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"stato":            models.StatusNew,
			"started_at":       nil,
			"shipped_at":       nil,
			"internal_note":    "",
			"last_modified_by": models.NoModifier,
			"last_modified_at": nil,
			"has_final_file":   false,
			"final_file_name":  nil,
		})
	return rowsOrNotFound(res, "order not found")
}

func (s *GormOrderStore) SaveFieldWork(ctx context.Context, id uint, update FieldWorkUpdate) error {
	updates := map[string]interface{}{
		"last_modified_by": update.ModifiedBy,
		"last_modified_at": update.ModifiedAt,
	}
	if update.InternalNote != nil {
		updates["internal_note"] = *update.InternalNote
	}
	if update.FinalFileName != nil {
		updates["has_final_file"] = true
		updates["final_file_name"] = *update.FinalFileName
	}

	res := s.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Updates(updates)
	return rowsOrNotFound(res, "order not found")
}

func (s *GormOrderStore) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Order{}, id)
	return rowsOrNotFound(res, "order not found")
}

func (s *GormOrderStore) ListByStatus(ctx context.Context, status models.Status) ([]models.Order, error) {
	order := "created_at DESC"
	switch status {
	case models.StatusInProgress:
		order = "started_at DESC"
	case models.StatusShipped:
		order = "shipped_at DESC"
	}

	var orders []models.Order
	err := s.db.WithContext(ctx).
		Preload("Client").Preload("Operator").
		Where("stato = ?", status).
		Order(order).Order("id DESC").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *GormOrderStore) CountByStatus(ctx context.Context, status models.Status) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Order{}).Where("stato = ?", status).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return count, nil
}

func (s *GormOrderStore) ListByClient(ctx context.Context, clientID uint, since time.Time) ([]models.Order, error) {
	q := s.db.WithContext(ctx).Preload("Client").Preload("Operator").Where("client_id = ?", clientID)
	if !since.IsZero() {
		q = q.Where("created_at >= ?", since)
	}

	var orders []models.Order
	if err := q.Order("created_at DESC").Order("id DESC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list client orders: %w", err)
	}
	return orders, nil
}

func rowsOrNotFound(res *gorm.DB, msg string) error {
	if res.Error != nil {
		return fmt.Errorf("database error: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound(msg)
	}
	return nil
}

// isDuplicateKey matches translated GORM errors and raw driver messages.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique")
}

// isForeignKeyViolation matches translated GORM errors and raw driver messages.
func isForeignKeyViolation(err error) bool {
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "foreign key")
}
