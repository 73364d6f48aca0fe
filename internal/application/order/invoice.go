package order

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/storefront-api/internal/domain"
	"github.com/storefront-api/internal/pkg/money"
)

// DisplayLayout is how timestamps are shown to customers.
const DisplayLayout = "2006-01-02 15:04:05"

var invoiceHTML = template.Must(template.New("invoice").Parse(`<!doctype html>
<html><body style="font-family:Arial,sans-serif;color:#222">
<h2>{{.Store}} invoice</h2>
<p><strong>Order:</strong> {{.OrderID}}<br>
<strong>Payment:</strong> {{.PaymentID}}<br>
<strong>Receipt:</strong> {{.Receipt}}<br>
<strong>Date:</strong> {{.Date}}</p>
<p><strong>Bill to:</strong> {{.Name}} &lt;{{.Email}}&gt;<br>
{{.Address}}<br>{{.Phone}}</p>
<table cellpadding="6" style="border-collapse:collapse;width:100%">
<tr style="background:#f2f2f2"><th align="left">Item</th><th>Size</th><th>Qty</th><th align="right">Price</th><th align="right">Total</th></tr>
{{range .Lines}}<tr><td>{{.Name}}</td><td align="center">{{.Size}}</td><td align="center">{{.Quantity}}</td><td align="right">{{.Price}}</td><td align="right">{{.Total}}</td></tr>
{{end}}<tr><td colspan="4" align="right"><strong>Items total</strong></td><td align="right">{{.ItemsTotal}}</td></tr>
<tr><td colspan="4" align="right"><strong>Amount paid ({{.Currency}})</strong></td><td align="right"><strong>{{.Paid}}</strong></td></tr>
</table>
</body></html>`))

type invoiceLine struct {
	Name, Size, Price, Total string
	Quantity                 int
}

// InvoiceKey is the object storage key of an archived invoice.
func InvoiceKey(userID, orderID string) string {
	return fmt.Sprintf("invoices/%s/%s.html", userID, orderID)
}

// RenderInvoice renders the HTML invoice for a paid order with dates in loc.
func RenderInvoice(store string, rec *domain.OrderHistoryRecord, loc *time.Location) (string, error) {
	if loc == nil {
		loc = time.UTC
	}
	lines := make([]invoiceLine, 0, len(rec.Cart.Items))
	for _, it := range rec.Cart.Items {
		lines = append(lines, invoiceLine{
			Name:     it.Name,
			Size:     it.Size,
			Quantity: it.Quantity,
			Price:    money.Format(it.UnitPrice()),
			Total:    money.Format(it.LineTotal()),
		})
	}
	date := rec.VerifiedAt
	if date.IsZero() {
		date = rec.CreatedAt
	}
	data := struct {
		Store, OrderID, PaymentID, Receipt, Date string
		Name, Email, Address, Phone, Currency    string
		ItemsTotal, Paid                         string
		Lines                                    []invoiceLine
	}{
		Store:      store,
		OrderID:    rec.GatewayOrderID,
		PaymentID:  rec.PaymentID,
		Receipt:    rec.Receipt,
		Date:       date.In(loc).Format(DisplayLayout),
		Name:       rec.Name,
		Email:      rec.Email,
		Address:    rec.Address,
		Phone:      rec.Phone,
		Currency:   rec.Currency,
		ItemsTotal: money.Format(rec.Cart.Total()),
		Paid:       money.Format(decimal.NewFromInt(rec.Amount)),
		Lines:      lines,
	}

	var buf bytes.Buffer
	if err := invoiceHTML.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render invoice: %w", err)
	}
	return buf.String(), nil
}

func invoiceText(store string, rec *domain.OrderHistoryRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Thank you for shopping at %s.\nOrder %s\nPayment %s\n\n", store, rec.GatewayOrderID, rec.PaymentID)
	for _, it := range rec.Cart.Items {
		fmt.Fprintf(&b, "%d x %s (%s) %s\n", it.Quantity, it.Name, it.Size, money.Format(it.LineTotal()))
	}
	fmt.Fprintf(&b, "\nAmount paid: %s %s\n", rec.Currency, money.Format(decimal.NewFromInt(rec.Amount)))
	return b.String()
}
