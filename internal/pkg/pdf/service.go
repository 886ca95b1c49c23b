// internal/pkg/pdf/service.go
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"

	"github.com/SebastiaanKlippert/go-wkhtmltopdf"
	"github.com/shopspring/decimal"
	"github.com/vaarahi/storefront/internal/config"
	"github.com/vaarahi/storefront/internal/domain/checkout"
	"github.com/vaarahi/storefront/internal/domain/pricing"
)

// ErrGeneratorUnavailable is returned when the wkhtmltopdf binary cannot be found.
var ErrGeneratorUnavailable = errors.New("pdf generator unavailable")

// Service renders order receipts.
type Service struct {
	companyName string
	siteURL     string
}

// NewService creates a new PDF service
func NewService(app config.AppConfig) *Service {
	return &Service{
		companyName: app.CompanyName,
		siteURL:     app.BaseURL,
	}
}

// GenerateReceipt renders order as a PDF.
func (s *Service) GenerateReceipt(order *checkout.CompletedOrder) (*bytes.Buffer, error) {
	html, err := s.RenderHTML(order)
	if err != nil {
		return nil, err
	}

	pdfg, err := wkhtmltopdf.NewPDFGenerator()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneratorUnavailable, err)
	}

	pdfg.Dpi.Set(300)
	pdfg.Orientation.Set(wkhtmltopdf.OrientationPortrait)
	pdfg.PageSize.Set(wkhtmltopdf.PageSizeA4)

	page := wkhtmltopdf.NewPageReader(bytes.NewReader(html))
	page.FooterRight.Set("[page]")
	page.FooterFontSize.Set(9)
	page.Zoom.Set(0.95)
	pdfg.AddPage(page)

	if err := pdfg.Create(); err != nil {
		return nil, fmt.Errorf("failed to create PDF: %w", err)
	}
	return bytes.NewBuffer(pdfg.Bytes()), nil
}

// RenderHTML produces the receipt page that GenerateReceipt converts.
func (s *Service) RenderHTML(order *checkout.CompletedOrder) ([]byte, error) {
	data := receiptData{
		Company:     s.companyName,
		SiteURL:     s.siteURL,
		OrderID:     order.OrderID,
		Transaction: order.TransactionID,
		PaymentID:   order.PaymentID,
		Provider:    order.Provider,
		Date:        order.Timestamp.Format("January 2, 2006 15:04 MST"),
		Customer:    order.CustomerInfo,
		Total:       inr(order.Amount),
	}
	for _, item := range order.Items {
		price := decimal.NewFromFloat(item.Price)
		data.Items = append(data.Items, receiptLine{
			Name:     item.Name,
			Quantity: item.Quantity,
			Price:    pricing.FormatINR(price),
			Total:    pricing.FormatINR(price.Mul(decimal.NewFromInt(int64(item.Quantity)))),
		})
	}

	var buf bytes.Buffer
	if err := receiptTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.Bytes(), nil
}

func inr(amount string) string {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return amount
	}
	return pricing.FormatINR(d)
}

type receiptData struct {
	Company     string
	SiteURL     string
	OrderID     string
	Transaction string
	PaymentID   string
	Provider    string
	Date        string
	Customer    checkout.CustomerInfo
	Items       []receiptLine
	Total       string
}

type receiptLine struct {
	Name     string
	Quantity int
	Price    string
	Total    string
}

var receiptTemplate = template.Must(template.New("receipt").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Receipt {{.OrderID}}</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 0; padding: 20px; color: #333; }
        .header { border-bottom: 2px solid #eee; padding-bottom: 20px; margin-bottom: 30px; }
        .title { font-size: 28px; font-weight: bold; color: #b8860b; }
        .meta td { padding: 2px 12px 2px 0; }
        table.items { width: 100%; border-collapse: collapse; margin-top: 20px; }
        table.items th { background: #f8f9fa; text-align: left; padding: 10px; border-bottom: 2px solid #dee2e6; }
        table.items td { padding: 10px; border-bottom: 1px solid #eee; }
        .right { text-align: right; }
        .total { font-size: 18px; font-weight: bold; }
        .footer { margin-top: 40px; font-size: 12px; color: #777; }
    </style>
</head>
<body>
    <div class="header">
        <div class="title">{{.Company}}</div>
        <div>Payment Receipt</div>
    </div>

    <table class="meta">
        <tr><td>Order ID</td><td>{{.OrderID}}</td></tr>
        <tr><td>Transaction ID</td><td>{{.Transaction}}</td></tr>
        {{if .PaymentID}}<tr><td>Payment ID</td><td>{{.PaymentID}}</td></tr>{{end}}
        <tr><td>Payment Method</td><td>{{.Provider}}</td></tr>
        <tr><td>Date</td><td>{{.Date}}</td></tr>
    </table>

    <h3>Shipping Address</h3>
    <p>
        {{.Customer.Name}}<br>
        {{.Customer.Address}}<br>
        {{.Customer.City}}, {{.Customer.State}} {{.Customer.Pincode}}<br>
        {{.Customer.Phone}}<br>
        {{.Customer.Email}}
    </p>

    <table class="items">
        <thead>
            <tr><th>Item</th><th class="right">Qty</th><th class="right">Price</th><th class="right">Total</th></tr>
        </thead>
        <tbody>
            {{range .Items}}
            <tr><td>{{.Name}}</td><td class="right">{{.Quantity}}</td><td class="right">{{.Price}}</td><td class="right">{{.Total}}</td></tr>
            {{end}}
        </tbody>
        <tfoot>
            <tr><td colspan="3" class="right total">Amount Paid</td><td class="right total">{{.Total}}</td></tr>
        </tfoot>
    </table>

    <div class="footer">Thank you for shopping with {{.Company}}. {{.SiteURL}}</div>
</body>
</html>
`))
