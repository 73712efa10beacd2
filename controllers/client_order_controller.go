package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/cmsp-lab/lab-orders-api/apperrors"
	"github.com/cmsp-lab/lab-orders-api/middleware"
	"github.com/cmsp-lab/lab-orders-api/models"
	"github.com/cmsp-lab/lab-orders-api/services"
	"github.com/gin-gonic/gin"
)

// CreateOrderForm represents the multipart form for creating an order. The
// case file is sent in the "userfile" part.
type CreateOrderForm struct {
	OrderingPhysician string    `form:"ordering_physician" binding:"required,max=50"`
	PatientFirstName  string    `form:"patient_first_name" binding:"required,max=50"`
	PatientLastName   string    `form:"patient_last_name" binding:"required,max=50"`
	ShippingAddress   string    `form:"shipping_address" binding:"required,max=50"`
	WorkDescription   string    `form:"work_description" binding:"required,max=1000"`
	Color             string    `form:"color" binding:"required,max=100"`
	Platform          string    `form:"platform" binding:"max=1000"`
	DeliveryDate      time.Time `form:"delivery_date" binding:"required" time_format:"2006-01-02"`
	DeliveryTime      string    `form:"delivery_time" binding:"required,max=5"`
	Note              string    `form:"note" binding:"max=1000"`
}

// ClientOrderController serves the order endpoints of client accounts.
type ClientOrderController struct {
	orderDocuments
	store   services.OrderStore
	clients *services.ClientService
}

func NewClientOrderController(lifecycle *services.OrderLifecycle, store services.OrderStore, clients *services.ClientService, pdf *services.PDFRenderer) *ClientOrderController {
	return &ClientOrderController{
		orderDocuments: orderDocuments{lifecycle: lifecycle, pdf: pdf},
		store:          store,
		clients:        clients,
	}
}

func (cc *ClientOrderController) currentClient(c *gin.Context) (*models.Client, bool) {
	principal, err := middleware.GetPrincipal(c)
	if err != nil || principal.Role != services.RoleClient {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information", nil)
		return nil, false
	}

	client, err := cc.clients.FindByID(c.Request.Context(), principal.ID)
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeNotFound {
			respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "The account no longer exists", nil)
			return nil, false
		}
		respondAppError(c, err)
		return nil, false
	}
	return client, true
}

// ownOrder loads the order named in the path and checks that it belongs to the client.
func (cc *ClientOrderController) ownOrder(c *gin.Context) (*models.Order, bool) {
	client, ok := cc.currentClient(c)
	if !ok {
		return nil, false
	}
	id, ok := parseID(c, "id")
	if !ok {
		return nil, false
	}

	order, err := cc.lifecycle.Get(c.Request.Context(), id)
	if err != nil {
		respondAppError(c, err)
		return nil, false
	}
	if order.ClientID != client.ID {
		respondAppError(c, apperrors.Forbidden("You can only access your own orders"))
		return nil, false
	}
	return order, true
}

// Create handles POST /api/v1/client/orders
func (cc *ClientOrderController) Create(c *gin.Context) {
	client, ok := cc.currentClient(c)
	if !ok {
		return
	}

	var form CreateOrderForm
	if err := c.ShouldBind(&form); err != nil {
		respondValidation(c, err)
		return
	}

	fileHeader, err := c.FormFile("userfile")
	if err != nil {
		respondAppError(c, apperrors.ValidationFields("The case file is required",
			map[string]string{"userfile": "The userfile field is required."}))
		return
	}
	upload, closeFile, err := openUpload(fileHeader)
	if err != nil {
		respondAppError(c, apperrors.Validation("Could not read the uploaded file"))
		return
	}
	defer closeFile()

	result, err := cc.lifecycle.CreateOrder(c.Request.Context(), *client, services.NewOrder{
		OrderingPhysician: form.OrderingPhysician,
		PatientFirstName:  form.PatientFirstName,
		PatientLastName:   form.PatientLastName,
		ShippingAddress:   form.ShippingAddress,
		WorkDescription:   form.WorkDescription,
		Color:             form.Color,
		Platform:          optional(form.Platform),
		DeliveryDate:      form.DeliveryDate,
		DeliveryTime:      form.DeliveryTime,
		Note:              optional(form.Note),
	}, upload)
	if err != nil {
		respondAppError(c, err)
		return
	}

	respondSuccess(c, http.StatusCreated, result.Message, result.Order)
}

// List handles GET /api/v1/client/orders?days=N|all
func (cc *ClientOrderController) List(c *gin.Context) {
	client, ok := cc.currentClient(c)
	if !ok {
		return
	}

	var since time.Time
	if days := c.Query("days"); days != "" && days != "all" {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			respondError(c, http.StatusBadRequest, string(apperrors.CodeValidation), "days must be a positive number or \"all\"", nil)
			return
		}
		since = time.Now().AddDate(0, 0, -n)
	}

	orders, err := cc.store.ListByClient(c.Request.Context(), client.ID, since)
	if err != nil {
		respondAppError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, "", orders)
}

// PDF handles GET /api/v1/client/orders/:id/pdf
func (cc *ClientOrderController) PDF(c *gin.Context) {
	order, ok := cc.ownOrder(c)
	if !ok {
		return
	}
	cc.sendPDF(c, order, false)
}

// SourceFile handles GET /api/v1/client/orders/:id/file
func (cc *ClientOrderController) SourceFile(c *gin.Context) {
	order, ok := cc.ownOrder(c)
	if !ok {
		return
	}
	cc.sendSourceFile(c, order)
}

// FinalFile handles GET /api/v1/client/orders/:id/final-file
func (cc *ClientOrderController) FinalFile(c *gin.Context) {
	order, ok := cc.ownOrder(c)
	if !ok {
		return
	}
	cc.sendFinalFile(c, order)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
