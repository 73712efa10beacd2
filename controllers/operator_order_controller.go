package controllers

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/cmsp-lab/lab-orders-api/apperrors"
	"github.com/cmsp-lab/lab-orders-api/middleware"
	"github.com/cmsp-lab/lab-orders-api/models"
	"github.com/cmsp-lab/lab-orders-api/services"
	"github.com/gin-gonic/gin"
)

const (
	optionForward = "forward"
	optionBack    = "back"
)

// OperatorOrderController serves the lab side of the order workflow.
type OperatorOrderController struct {
	orderDocuments
	store     services.OrderStore
	operators *services.OperatorService
}

func NewOperatorOrderController(lifecycle *services.OrderLifecycle, store services.OrderStore, operators *services.OperatorService, pdf *services.PDFRenderer) *OperatorOrderController {
	return &OperatorOrderController{
		orderDocuments: orderDocuments{lifecycle: lifecycle, pdf: pdf},
		store:          store,
		operators:      operators,
	}
}

func (oc *OperatorOrderController) currentOperator(c *gin.Context) (*models.Operator, bool) {
	principal, err := middleware.GetPrincipal(c)
	if err != nil || principal.Role != services.RoleOperator {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information", nil)
		return nil, false
	}

	op, err := oc.operators.FindByID(c.Request.Context(), principal.ID)
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeNotFound {
			respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "The account no longer exists", nil)
			return nil, false
		}
		respondAppError(c, err)
		return nil, false
	}
	return op, true
}

func (oc *OperatorOrderController) order(c *gin.Context) (*models.Order, bool) {
	id, ok := parseID(c, "id")
	if !ok {
		return nil, false
	}
	order, err := oc.lifecycle.Get(c.Request.Context(), id)
	if err != nil {
		respondAppError(c, err)
		return nil, false
	}
	return order, true
}

// List handles GET /api/v1/operator/orders?status=new|in_progress|shipped
func (oc *OperatorOrderController) List(c *gin.Context) {
	status := models.StatusNew
	if raw := c.Query("status"); raw != "" {
		parsed, err := models.ParseStatus(raw)
		if err != nil {
			respondAppError(c, err)
			return
		}
		status = parsed
	}

	orders, err := oc.store.ListByStatus(c.Request.Context(), status)
	if err != nil {
		respondAppError(c, err)
		return
	}
	newCount, err := oc.store.CountByStatus(c.Request.Context(), models.StatusNew)
	if err != nil {
		respondAppError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, "", gin.H{
		"status":    status.String(),
		"orders":    orders,
		"new_count": newCount,
	})
}

// CountNew handles GET /api/v1/operator/orders/new/count
func (oc *OperatorOrderController) CountNew(c *gin.Context) {
	count, err := oc.store.CountByStatus(c.Request.Context(), models.StatusNew)
	if err != nil {
		respondAppError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, "", gin.H{"count": count})
}

// UpdateStatus handles PATCH /api/v1/operator/orders/update/:id/:option
func (oc *OperatorOrderController) UpdateStatus(c *gin.Context) {
	op, ok := oc.currentOperator(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var (
		result *services.Result
		err    error
	)
	switch c.Param("option") {
	case optionForward:
		result, err = oc.lifecycle.Advance(c.Request.Context(), id, *op)
	case optionBack:
		result, err = oc.lifecycle.Reset(c.Request.Context(), id)
	default:
		respondError(c, http.StatusBadRequest, "INVALID_OPTION", "option must be forward or back", nil)
		return
	}
	if err != nil {
		respondAppError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, result.Message, result.Order)
}

// RecordFieldWork handles POST /api/v1/operator/orders/:id/field-work with an
// optional "note_int" field and an optional "userfile" part.
func (oc *OperatorOrderController) RecordFieldWork(c *gin.Context) {
	op, ok := oc.currentOperator(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var work services.FieldWork
	if note, present := c.GetPostForm("note_int"); present {
		work.Note = &note
	}

	fileHeader, err := c.FormFile("userfile")
	switch {
	case err == nil:
		upload, closeFile, err := openUpload(fileHeader)
		if err != nil {
			respondAppError(c, apperrors.Validation("Could not read the uploaded file"))
			return
		}
		defer closeFile()
		work.File = upload
	case !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart):
		respondValidation(c, err)
		return
	}

	result, err := oc.lifecycle.RecordFieldWork(c.Request.Context(), id, work, *op)
	if err != nil {
		respondAppError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, result.Message, result.Order)
}

// Delete handles DELETE /api/v1/operator/orders/:id
func (oc *OperatorOrderController) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	result, err := oc.lifecycle.DeleteOrder(c.Request.Context(), id)
	if err != nil {
		respondAppError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, result.Message, nil)
}

// PDF handles GET /api/v1/operator/orders/:id/pdf
func (oc *OperatorOrderController) PDF(c *gin.Context) {
	order, ok := oc.order(c)
	if !ok {
		return
	}
	oc.sendPDF(c, order, true)
}

// SourceFile handles GET /api/v1/operator/orders/:id/file
func (oc *OperatorOrderController) SourceFile(c *gin.Context) {
	order, ok := oc.order(c)
	if !ok {
		return
	}
	oc.sendSourceFile(c, order)
}

// FinalFile handles GET /api/v1/operator/orders/:id/final-file
func (oc *OperatorOrderController) FinalFile(c *gin.Context) {
	order, ok := oc.order(c)
	if !ok {
		return
	}
	oc.sendFinalFile(c, order)
}

func openUpload(fh *multipart.FileHeader) (*services.Upload, func() error, error) {
	file, err := fh.Open()
	if err != nil {
		return nil, nil, err
	}
	return &services.Upload{Filename: fh.Filename, Size: fh.Size, Body: file}, file.Close, nil
}
