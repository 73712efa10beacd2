package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmsp-lab/lab-orders-api/apperrors"
	"github.com/cmsp-lab/lab-orders-api/models"
	"gorm.io/gorm"
)

// OperatorFields describes an operator account to create.
type OperatorFields struct {
	FirstName string
	LastName  string
	Email     string
	Username  string
	Password  string
}

// OperatorService manages lab staff accounts.
type OperatorService struct {
	db *gorm.DB
}

func NewOperatorService(db *gorm.DB) *OperatorService {
	return &OperatorService{db: db}
}

func (s *OperatorService) FindByID(ctx context.Context, id uint) (*models.Operator, error) {
	var op models.Operator
	err := s.db.WithContext(ctx).First(&op, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound(MsgOperatorNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load operator %d: %w", id, err)
	}
	return &op, nil
}

// OperatorEmails returns the e-mail of every operator, read fresh on each call.
func (s *OperatorService) OperatorEmails(ctx context.Context) ([]string, error) {
	var emails []string
	if err := s.db.WithContext(ctx).Model(&models.Operator{}).Where("email <> ''").Order("id").Pluck("email", &emails).Error; err != nil {
		return nil, fmt.Errorf("failed to list operator emails: %w", err)
	}
	return emails, nil
}

// EnsureOperator creates the operator unless the username already exists.
// It reports whether a new account was created.
func (s *OperatorService) EnsureOperator(ctx context.Context, in OperatorFields) (*models.Operator, bool, error) {
	var existing models.Operator
	err := s.db.WithContext(ctx).Where("username = ?", in.Username).First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("failed to look up operator: %w", err)
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, false, err
	}
	op := &models.Operator{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: hash,
	}
	if err := s.db.WithContext(ctx).Create(op).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, false, apperrors.Conflict(MsgUsernameTaken, err)
		}
		return nil, false, fmt.Errorf("failed to create operator: %w", err)
	}
	return op, true, nil
}
