package controllers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/cmsp-lab/lab-orders-api/models"
	"github.com/cmsp-lab/lab-orders-api/services"
	"github.com/gin-gonic/gin"
)

// orderDocuments serves the PDF sheet and the stored files of an order.
type orderDocuments struct {
	lifecycle *services.OrderLifecycle
	pdf       *services.PDFRenderer
}

func (d orderDocuments) sendPDF(c *gin.Context, order *models.Order, forOperator bool) {
	content, err := d.pdf.Render(services.NewOrderSnapshot(order, forOperator))
	if err != nil {
		respondAppError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", d.pdf.FileName(order.ID)))
	c.Data(http.StatusOK, "application/pdf", content)
}

func (d orderDocuments) sendSourceFile(c *gin.Context, order *models.Order) {
	rc, name, err := d.lifecycle.OpenSourceFile(c.Request.Context(), order)
	d.stream(c, rc, name, err)
}

func (d orderDocuments) sendFinalFile(c *gin.Context, order *models.Order) {
	rc, name, err := d.lifecycle.OpenFinalFile(c.Request.Context(), order)
	d.stream(c, rc, name, err)
}

func (d orderDocuments) stream(c *gin.Context, rc io.ReadCloser, name string, err error) {
	if err != nil {
		respondAppError(c, err)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, -1, services.ContentTypeFor(name), rc, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", name),
	})
}
