package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmsp-lab/lab-orders-api/apperrors"
	"github.com/cmsp-lab/lab-orders-api/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	MsgNoDataModified   = "no data was modified"
	MsgUsernameTaken    = "username already in use"
	MsgClientHasOrders  = "the client has orders and cannot be deleted"
	MsgClientNotFound   = "client not found"
	MsgOperatorNotFound = "operator not found"
	MsgPasswordTooLong  = "password must be at most 72 bytes"
)

// ClientFields are the editable client attributes. On update, empty values are left unchanged.
type ClientFields struct {
	BusinessName string
	FirstName    string
	LastName     string
	VATNumber    string
	Address      string
	City         string
	PostalCode   string
	Province     string
	Email        string
	Username     string
	Password     string
}

// ClientService manages client accounts.
type ClientService struct {
	db *gorm.DB
}

func NewClientService(db *gorm.DB) *ClientService {
	return &ClientService{db: db}
}

// List returns every client, most recent first.
func (s *ClientService) List(ctx context.Context) ([]models.Client, error) {
	var clients []models.Client
	if err := s.db.WithContext(ctx).Order("id DESC").Find(&clients).Error; err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	return clients, nil
}

func (s *ClientService) FindByID(ctx context.Context, id uint) (*models.Client, error) {
	var client models.Client
	err := s.db.WithContext(ctx).First(&client, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound(MsgClientNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load client %d: %w", id, err)
	}
	return &client, nil
}

func (s *ClientService) Create(ctx context.Context, in ClientFields) (*models.Client, error) {
	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	client := &models.Client{
		BusinessName: in.BusinessName,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		VATNumber:    in.VATNumber,
		Address:      in.Address,
		City:         in.City,
		PostalCode:   in.PostalCode,
		Province:     in.Province,
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: hash,
	}
	if err := s.db.WithContext(ctx).Create(client).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, apperrors.Conflict(MsgUsernameTaken, err)
		}
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, nil
}

// Update applies the non-empty fields of in. It fails when nothing was provided.
func (s *ClientService) Update(ctx context.Context, id uint, in ClientFields) (*models.Client, error) {
	client, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	set := func(column, value string) {
		if value != "" {
			updates[column] = value
		}
	}
	set("business_name", in.BusinessName)
	set("first_name", in.FirstName)
	set("last_name", in.LastName)
	set("vat_number", in.VATNumber)
	set("address", in.Address)
	set("city", in.City)
	set("postal_code", in.PostalCode)
	set("province", in.Province)
	set("email", in.Email)
	set("username", in.Username)
	if in.Password != "" {
		hash, err := hashPassword(in.Password)
		if err != nil {
			return nil, err
		}
		updates["password_hash"] = hash
	}

	if len(updates) == 0 {
		return nil, apperrors.Validation(MsgNoDataModified)
	}

	if err := s.db.WithContext(ctx).Model(client).Updates(updates).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, apperrors.Conflict(MsgUsernameTaken, err)
		}
		return nil, fmt.Errorf("failed to update client: %w", err)
	}
	return s.FindByID(ctx, id)
}

// Delete removes a client. The orders foreign key blocks deletion while orders reference it.
func (s *ClientService) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Client{}, id)
	if res.Error != nil {
		if isForeignKeyViolation(res.Error) {
			return apperrors.Conflict(MsgClientHasOrders, res.Error)
		}
		return fmt.Errorf("failed to delete client: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound(MsgClientNotFound)
	}
	return nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", apperrors.ValidationFields(MsgPasswordTooLong, map[string]string{"password": MsgPasswordTooLong})
	}
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
