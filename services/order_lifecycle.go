package services

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/cmsp-lab/lab-orders-api/apperrors"
	"github.com/cmsp-lab/lab-orders-api/models"
	"github.com/cmsp-lab/lab-orders-api/utils"
	"go.uber.org/zap"
)

// Messages returned to the caller on success.
const (
	MsgOrderAccepted        = "You have taken charge of the order."
	MsgOrderShipped         = "You have shipped the order."
	MsgOrderReset           = "You cancelled the assignment and restored the order."
	MsgOrderCreated         = "Order created successfully!"
	MsgOrderCreatedWithFile = "Order created and file uploaded successfully!"
	MsgFieldWorkFile        = "Work file uploaded successfully!"
	MsgFieldWorkNote        = "Notes updated successfully!"
	MsgFieldWorkFileAndNote = "Work file uploaded and notes updated successfully!"
	MsgOrderDeleted         = "Order deleted successfully."

	MsgNothingChanged    = "nothing changed"
	MsgConcurrentUpdate  = "the order was updated by someone else, reload and try again"
	MsgFileNotInDatabase = "file not found in database"
	MsgFileNotOnServer   = "file does not exist on the server"
)

// Transition names the status change performed by an operation.
type Transition string

const (
	TransitionAccepted Transition = "accepted"
	TransitionShipped  Transition = "shipped"
	TransitionReset    Transition = "reset"
)

// Upload is a file received from a client or an operator.
type Upload struct {
	Filename string
	Size     int64
	Body     io.Reader
}

// NewOrder holds the fields a client submits. Values are validated by the caller.
type NewOrder struct {
	OrderingPhysician string
	PatientFirstName  string
	PatientLastName   string
	ShippingAddress   string
	WorkDescription   string
	Color             string
	Platform          *string
	DeliveryDate      time.Time
	DeliveryTime      string
	Note              *string
}

// FieldWork is what an operator records on an order: a new internal note, a final file, or both.
type FieldWork struct {
	Note *string
	File *Upload
}

// Result is the outcome of a lifecycle operation.
type Result struct {
	Order      *models.Order
	Transition Transition
	Message    string
}

// OrderLifecycle owns the order status and the fields derived from it.
type OrderLifecycle struct {
	store    OrderStore
	files    FileStorage
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewOrderLifecycle(store OrderStore, files FileStorage, notifier Notifier, logger *zap.Logger) *OrderLifecycle {
	return &OrderLifecycle{
		store:    store,
		files:    files,
		notifier: notifier,
		logger:   logger.With(zap.String("component", "order_lifecycle")),
		now:      time.Now,
	}
}

// WithClock replaces the time source.
func (l *OrderLifecycle) WithClock(now func() time.Time) *OrderLifecycle {
	l.now = now
	return l
}

func (l *OrderLifecycle) Get(ctx context.Context, orderID uint) (*models.Order, error) {
	return l.store.FindByID(ctx, orderID)
}

// Advance moves the order one step along New -> InProgress -> Shipped.
// Accepting assigns the acting operator; shipping notifies the client.
func (l *OrderLifecycle) Advance(ctx context.Context, orderID uint, operator models.Operator) (*Result, error) {
	if operator.ID == 0 {
		return nil, apperrors.Unauthorized("an authenticated operator is required")
	}

	order, err := l.store.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	next, err := order.Status.Forward()
	if err != nil {
		return nil, err
	}

	now := l.now()
	change := StatusChange{OrderID: order.ID, From: order.Status, To: next}
	result := &Result{Order: order}

	switch next {
	case models.StatusInProgress:
		change.StartedAt = &now
		change.OperatorID = &operator.ID
		result.Transition = TransitionAccepted
		result.Message = MsgOrderAccepted
	case models.StatusShipped:
		change.ShippedAt = &now
		result.Transition = TransitionShipped
		result.Message = MsgOrderShipped
	}

	if err := l.store.ChangeStatus(ctx, change); err != nil {
		if errors.Is(err, ErrStatusChanged) {
			return nil, apperrors.Conflict(MsgConcurrentUpdate, err)
		}
		return nil, err
	}

	order.Status = next
	if change.StartedAt != nil {
		order.StartedAt = change.StartedAt
		order.OperatorID = &operator.ID
		op := operator
		order.Operator = &op
	}
	if change.ShippedAt != nil {
		order.ShippedAt = change.ShippedAt
		l.notifyShipped(ctx, order, operator)
	}

	l.logger.Info("order advanced",
		zap.Uint("order_id", order.ID),
		zap.Stringer("status", next),
		zap.Uint("operator_id", operator.ID),
	)
	return result, nil
}

// Reset unconditionally returns the order to New, discarding progress data.
func (l *OrderLifecycle) Reset(ctx context.Context, orderID uint) (*Result, error) {
	order, err := l.store.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := l.store.Reset(ctx, orderID); err != nil {
		return nil, err
	}
	order.Reset()

	l.logger.Info("order reset", zap.Uint("order_id", order.ID))
	return &Result{Order: order, Transition: TransitionReset, Message: MsgOrderReset}, nil
}

// RecordFieldWork stores an operator's internal note and/or final file.
// An empty note counts as no note. The file is stored before the order is updated.
func (l *OrderLifecycle) RecordFieldWork(ctx context.Context, orderID uint, work FieldWork, operator models.Operator) (*Result, error) {
	if operator.ID == 0 {
		return nil, apperrors.Unauthorized("an authenticated operator is required")
	}

	note := work.Note
	if note != nil && *note == "" {
		note = nil
	}
	if note == nil && work.File == nil {
		return nil, apperrors.Validation(MsgNothingChanged)
	}
	if work.File != nil {
		if err := validateUpload(work.File); err != nil {
			return nil, err
		}
	}

	order, err := l.store.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	update := FieldWorkUpdate{
		InternalNote: note,
		ModifiedBy:   operator.DisplayName(),
		ModifiedAt:   l.now(),
	}

	if work.File != nil {
		name := utils.FinalFileName(order.Client.BusinessName, order.PatientLastName, order.PatientFirstName,
			order.ID, utils.Extension(work.File.Filename))
		if err := l.files.Save(ctx, name, work.File.Body, work.File.Size); err != nil {
			return nil, apperrors.Storage("failed to store the work file", err)
		}
		update.FinalFileName = &name
	}

	if err := l.store.SaveFieldWork(ctx, orderID, update); err != nil {
		return nil, err
	}

	order.LastModifiedBy = update.ModifiedBy
	order.LastModifiedAt = &update.ModifiedAt
	if note != nil {
		order.InternalNote = *note
	}
	if update.FinalFileName != nil {
		order.HasFinalFile = true
		order.FinalFileName = update.FinalFileName
	}

	msg := MsgFieldWorkNote
	switch {
	case work.File != nil && note != nil:
		msg = MsgFieldWorkFileAndNote
	case work.File != nil:
		msg = MsgFieldWorkFile
	}
	return &Result{Order: order, Message: msg}, nil
}

// CreateOrder registers a new order for client with the next yearly number.
// When a file is attached it is stored and the client and operators are notified;
// without a file the order is created silently.
func (l *OrderLifecycle) CreateOrder(ctx context.Context, client models.Client, in NewOrder, file *Upload) (*Result, error) {
	if client.ID == 0 {
		return nil, apperrors.Unauthorized("an authenticated client is required")
	}
	if file != nil {
		if err := validateUpload(file); err != nil {
			return nil, err
		}
	}

	order := &models.Order{
		ClientID:          client.ID,
		Status:            models.StatusNew,
		CreatedAt:         l.now(),
		OrderingPhysician: in.OrderingPhysician,
		PatientFirstName:  in.PatientFirstName,
		PatientLastName:   in.PatientLastName,
		ShippingAddress:   in.ShippingAddress,
		WorkDescription:   in.WorkDescription,
		Color:             in.Color,
		Platform:          in.Platform,
		DeliveryDate:      in.DeliveryDate,
		DeliveryTime:      in.DeliveryTime,
		Note:              in.Note,
		InternalNote:      "",
		LastModifiedBy:    models.NoModifier,
	}
	if err := l.store.Create(ctx, order); err != nil {
		return nil, err
	}
	order.Client = client

	if file == nil {
		l.logger.Info("order created without file", zap.Uint("order_id", order.ID), zap.Int("numero", order.Number))
		return &Result{Order: order, Message: MsgOrderCreated}, nil
	}

	name := utils.SourceFileName(client.BusinessName, in.PatientLastName, in.PatientFirstName, order.ID, utils.Extension(file.Filename))
	if err := l.files.Save(ctx, name, file.Body, file.Size); err != nil {
		if delErr := l.store.Delete(ctx, order.ID); delErr != nil {
			l.logger.Error("failed to roll back order after storage failure", zap.Uint("order_id", order.ID), zap.Error(delErr))
		}
		return nil, apperrors.Storage("failed to store the case file", err)
	}
	if err := l.store.AttachSourceFile(ctx, order.ID, name); err != nil {
		return nil, err
	}
	order.HasSourceFile = true
	order.SourceFileName = &name

	l.enqueue(ctx, Notification{
		Kind:         NotificationOrderCreated,
		OrderID:      order.ID,
		Number:       order.Number,
		Year:         order.Year,
		ClientEmail:  client.Email,
		BusinessName: client.BusinessName,
	})

	l.logger.Info("order created", zap.Uint("order_id", order.ID), zap.Int("numero", order.Number), zap.Int("year", order.Year))
	return &Result{Order: order, Message: MsgOrderCreatedWithFile}, nil
}

// DeleteOrder removes the order and then, best effort, its stored files.
func (l *OrderLifecycle) DeleteOrder(ctx context.Context, orderID uint) (*Result, error) {
	order, err := l.store.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := l.store.Delete(ctx, orderID); err != nil {
		return nil, err
	}

	for _, name := range []*string{order.SourceFileName, order.FinalFileName} {
		if name == nil {
			continue
		}
		if err := l.files.Delete(ctx, *name); err != nil {
			l.logger.Warn("failed to delete order file", zap.Uint("order_id", orderID), zap.String("file", *name), zap.Error(err))
		}
	}

	l.logger.Info("order deleted", zap.Uint("order_id", orderID))
	return &Result{Order: order, Message: MsgOrderDeleted}, nil
}

// OpenSourceFile opens the case file attached by the client.
func (l *OrderLifecycle) OpenSourceFile(ctx context.Context, order *models.Order) (io.ReadCloser, string, error) {
	return l.openFile(ctx, order.SourceFileName)
}

// OpenFinalFile opens the deliverable attached by an operator.
func (l *OrderLifecycle) OpenFinalFile(ctx context.Context, order *models.Order) (io.ReadCloser, string, error) {
	return l.openFile(ctx, order.FinalFileName)
}

func (l *OrderLifecycle) openFile(ctx context.Context, name *string) (io.ReadCloser, string, error) {
	if name == nil || *name == "" {
		return nil, "", apperrors.NotFound(MsgFileNotInDatabase)
	}

	exists, err := l.files.Exists(ctx, *name)
	if err != nil {
		return nil, "", apperrors.Storage("failed to read the file", err)
	}
	if !exists {
		return nil, "", apperrors.NotFound(MsgFileNotOnServer)
	}

	rc, err := l.files.Open(ctx, *name)
	if errors.Is(err, ErrFileNotFound) {
		return nil, "", apperrors.NotFound(MsgFileNotOnServer)
	}
	if err != nil {
		return nil, "", apperrors.Storage("failed to read the file", err)
	}
	return rc, *name, nil
}

func (l *OrderLifecycle) notifyShipped(ctx context.Context, order *models.Order, acting models.Operator) {
	op := acting
	if order.Operator != nil {
		op = *order.Operator
	}
	l.enqueue(ctx, Notification{
		Kind:              NotificationOrderShipped,
		OrderID:           order.ID,
		Number:            order.Number,
		Year:              order.Year,
		ClientEmail:       order.Client.Email,
		OperatorFirstName: op.FirstName,
		OperatorLastName:  op.LastName,
	})
}

// enqueue never fails the caller: the status change is already persisted.
func (l *OrderLifecycle) enqueue(ctx context.Context, n Notification) {
	if err := l.notifier.Enqueue(context.WithoutCancel(ctx), n); err != nil {
		l.logger.Error("failed to enqueue notification",
			zap.String("kind", string(n.Kind)),
			zap.Uint("order_id", n.OrderID),
			zap.Error(err),
		)
	}
}

func validateUpload(file *Upload) error {
	err := utils.ValidateCaseFile(file.Filename, file.Size)
	if err == nil {
		return nil
	}
	fields := map[string]string{"userfile": err.Error()}
	var uploadErr *utils.FileUploadError
	if errors.As(err, &uploadErr) {
		fields["reason"] = uploadErr.Code
	}
	appErr := apperrors.ValidationFields(err.Error(), fields)
	appErr.Err = err
	return appErr
}
