package controllers

import (
	"net/http"
	"time"

	"github.com/cmsp-lab/lab-orders-api/services"
	"github.com/gin-gonic/gin"
)

// CreateClientRequest represents the request body for registering a client account
type CreateClientRequest struct {
	BusinessName string `json:"business_name" binding:"required,max=100"`
	FirstName    string `json:"first_name" binding:"required,max=50"`
	LastName     string `json:"last_name" binding:"required,max=50"`
	VATNumber    string `json:"vat_number" binding:"required,max=50"`
	Address      string `json:"address" binding:"required,max=50"`
	City         string `json:"city" binding:"required,max=50"`
	PostalCode   string `json:"postal_code" binding:"required,numeric,max=10"`
	Province     string `json:"province" binding:"required,max=50"`
	Email        string `json:"email" binding:"required,email,max=50"`
	Username     string `json:"username" binding:"required,max=20"`
	Password     string `json:"password" binding:"required,max=72"`
}

// UpdateClientRequest represents the request body for editing a client. Omitted fields are kept.
type UpdateClientRequest struct {
	BusinessName string `json:"business_name" binding:"omitempty,max=100"`
	FirstName    string `json:"first_name" binding:"omitempty,max=50"`
	LastName     string `json:"last_name" binding:"omitempty,max=50"`
	VATNumber    string `json:"vat_number" binding:"omitempty,max=50"`
	Address      string `json:"address" binding:"omitempty,max=50"`
	City         string `json:"city" binding:"omitempty,max=50"`
	PostalCode   string `json:"postal_code" binding:"omitempty,numeric,max=10"`
	Province     string `json:"province" binding:"omitempty,max=50"`
	Email        string `json:"email" binding:"omitempty,email,max=50"`
	Username     string `json:"username" binding:"omitempty,max=20"`
	Password     string `json:"password" binding:"omitempty,max=72"`
}

func (r CreateClientRequest) fields() services.ClientFields {
	return services.ClientFields(r)
}

func (r UpdateClientRequest) fields() services.ClientFields {
	return services.ClientFields(r)
}

// ClientAdminController lets operators manage client accounts.
type ClientAdminController struct {
	clients *services.ClientService
	store   services.OrderStore
}

func NewClientAdminController(clients *services.ClientService, store services.OrderStore) *ClientAdminController {
	return &ClientAdminController{clients: clients, store: store}
}

// List handles GET /api/v1/operator/clients
func (ac *ClientAdminController) List(c *gin.Context) {
	clients, err := ac.clients.List(c.Request.Context())
	if err != nil {
		respondAppError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, "", clients)
}

// Get handles GET /api/v1/operator/clients/:id
func (ac *ClientAdminController) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	client, err := ac.clients.FindByID(c.Request.Context(), id)
	if err != nil {
		respondAppError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, "", client)
}

// Create handles POST /api/v1/operator/clients
func (ac *ClientAdminController) Create(c *gin.Context) {
	var req CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	client, err := ac.clients.Create(c.Request.Context(), req.fields())
	if err != nil {
		respondAppError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, "Client created successfully", client)
}

// Update handles PATCH /api/v1/operator/clients/:id
func (ac *ClientAdminController) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req UpdateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	client, err := ac.clients.Update(c.Request.Context(), id, req.fields())
	if err != nil {
		respondAppError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, "Client updated successfully", client)
}

// Delete handles DELETE /api/v1/operator/clients/:id
func (ac *ClientAdminController) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := ac.clients.Delete(c.Request.Context(), id); err != nil {
		respondAppError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, "Client deleted successfully", nil)
}

// Orders handles GET /api/v1/operator/clients/:id/orders
func (ac *ClientAdminController) Orders(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, err := ac.clients.FindByID(c.Request.Context(), id); err != nil {
		respondAppError(c, err)
		return
	}

	orders, err := ac.store.ListByClient(c.Request.Context(), id, time.Time{})
	if err != nil {
		respondAppError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, "", orders)
}
