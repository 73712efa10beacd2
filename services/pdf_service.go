package services

import (
	"bytes"
	"fmt"
	"time"

	"github.com/cmsp-lab/lab-orders-api/models"
	"github.com/go-pdf/fpdf"
)

// InternalDetails are the operator-only parts of an order sheet.
type InternalDetails struct {
	LastModifiedBy string
	LastModifiedAt *time.Time
	InternalNote   string
}

// OrderSnapshot is the read-only projection of an order and its client printed on the order sheet.
type OrderSnapshot struct {
	ID                uint
	Number            int
	Year              int
	CreatedAt         time.Time
	BusinessName      string
	ClientAddress     string
	ClientCity        string
	ClientProvince    string
	OrderingPhysician string
	PatientFirstName  string
	PatientLastName   string
	ShippingAddress   string
	WorkDescription   string
	Color             string
	Platform          string
	DeliveryDate      time.Time
	DeliveryTime      string
	Note              string

	// Internal is nil unless the sheet is printed for an operator.
	Internal *InternalDetails
}

// NewOrderSnapshot projects order for printing.
func NewOrderSnapshot(order *models.Order, forOperator bool) OrderSnapshot {
	s := OrderSnapshot{
		ID:                order.ID,
		Number:            order.Number,
		Year:              order.Year,
		CreatedAt:         order.CreatedAt,
		BusinessName:      order.Client.BusinessName,
		ClientAddress:     order.Client.Address,
		ClientCity:        order.Client.City,
		ClientProvince:    order.Client.Province,
		OrderingPhysician: order.OrderingPhysician,
		PatientFirstName:  order.PatientFirstName,
		PatientLastName:   order.PatientLastName,
		ShippingAddress:   order.ShippingAddress,
		WorkDescription:   order.WorkDescription,
		Color:             order.Color,
		DeliveryDate:      order.DeliveryDate,
		DeliveryTime:      order.DeliveryTime,
	}
	if order.Platform != nil {
		s.Platform = *order.Platform
	}
	if order.Note != nil {
		s.Note = *order.Note
	}
	if forOperator {
		s.Internal = &InternalDetails{
			LastModifiedBy: order.LastModifiedBy,
			LastModifiedAt: order.LastModifiedAt,
			InternalNote:   order.InternalNote,
		}
	}
	return s
}

// PDFRenderer prints order sheets.
type PDFRenderer struct{}

func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{}
}

// FileName is the download name of the sheet for an order.
func (r *PDFRenderer) FileName(orderID uint) string {
	return fmt.Sprintf("ordine_%d.pdf", orderID)
}

func (r *PDFRenderer) Render(s OrderSnapshot) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Ordine %d/%d", s.Number, s.Year), true)
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(fmt.Sprintf("Ordine n° %d/%d", s.Number, s.Year)), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, tr("Data: "+s.CreatedAt.Format("02/01/2006 15:04")), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	section := func(title string) {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.SetFillColor(230, 230, 230)
		pdf.CellFormat(0, 8, tr(title), "", 1, "L", true, 0, "")
		pdf.SetFont("Helvetica", "", 10)
	}
	row := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(50, 6, tr(label), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 6, tr(value), "", "L", false)
	}

	section("Cliente")
	row("Ragione sociale", s.BusinessName)
	row("Indirizzo", fmt.Sprintf("%s, %s (%s)", s.ClientAddress, s.ClientCity, s.ClientProvince))
	pdf.Ln(2)

	section("Ordine")
	row("Medico ordinante", s.OrderingPhysician)
	row("Paziente", s.PatientLastName+" "+s.PatientFirstName)
	row("Indirizzo di spedizione", s.ShippingAddress)
	row("Lavorazione", s.WorkDescription)
	row("Colore", s.Color)
	row("Piattaforma", s.Platform)
	row("Consegna", s.DeliveryDate.Format("02/01/2006")+" "+s.DeliveryTime)
	row("Note", s.Note)

	if s.Internal != nil {
		pdf.Ln(2)
		section("Uso interno")
		modified := "-"
		if s.Internal.LastModifiedAt != nil {
			modified = s.Internal.LastModifiedAt.Format("02/01/2006 15:04")
		}
		row("Ultima modifica", s.Internal.LastModifiedBy+" ("+modified+")")
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(0, 6, tr("Note interne"), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		html := pdf.HTMLBasicNew()
		html.Write(5, tr(s.Internal.InternalNote))
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
