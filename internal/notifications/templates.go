package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	"geranium/pkg/model"
)

const (
	brandName    = "Geranium Cleaning Services"
	supportPhone = "+254 726 390610"
	supportTel   = "+254726390610"
)

const frameTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>` + brandName + `</title></head>
<body style="margin:0;padding:0;background:#fdf8f6;font-family:Inter,Segoe UI,sans-serif;">
<div style="max-width:600px;margin:0 auto;padding:40px 20px;">
  <div style="background:#c69491;border-radius:20px 20px 0 0;padding:32px;text-align:center;">
    <h1 style="margin:0;color:white;font-size:22px;">` + brandName + `</h1>
    <p style="margin:6px 0 0;color:#fff;font-size:13px;">Nairobi &amp; Kiambu</p>
  </div>
  <div style="background:white;border-radius:0 0 20px 20px;padding:36px;">
    {{template "content" .}}
  </div>
  <div style="text-align:center;padding:24px;color:#96aca0;font-size:12px;">
    <p>` + supportPhone + ` &middot; {{.AdminEmail}}</p>
    <p>&copy; {{.Year}} ` + brandName + `</p>
  </div>
</div>
</body>
</html>`

const summaryTemplate = `{{define "summary"}}<div style="background:#fef5f3;border-radius:14px;padding:24px;margin-bottom:24px;border:1.5px solid #f9c8c2;">
{{range .}}<div style="display:flex;justify-content:space-between;padding:8px 0;border-bottom:1px solid #f0e8e6;font-size:14px;">
<span style="color:#96aca0;">{{.Label}}</span> <span style="color:#60665a;font-weight:600;">{{.Value}}</span></div>
{{end}}</div>{{end}}`

var contentTemplates = map[Kind]string{
	KindBookingReceived: `{{define "content"}}<h2 style="color:#60665a;">Booking Received</h2>
<p>Hi <strong>{{.Booking.Name}}</strong>, thank you for booking with us. We will confirm your appointment shortly.</p>
{{template "summary" .Rows}}
<p>Our cleaner will contact you before arrival. For questions call <a href="tel:` + supportTel + `">` + supportPhone + `</a>.</p>{{end}}`,

	KindNewBookingAlert: `{{define "content"}}<h2 style="color:#60665a;">New Booking Received</h2>
<p>A new cleaning booking has been submitted.</p>
{{template "summary" .Rows}}
<p style="text-align:center;"><a href="{{.ClientURL}}/admin/dashboard">View in Dashboard</a></p>{{end}}`,

	KindPaymentConfirmed: `{{define "content"}}<h2 style="color:#60665a;">Payment Confirmed</h2>
<p>Hi <strong>{{.Booking.Name}}</strong>, we have received your payment of <strong>{{.Total}}</strong>. Your booking is secured.</p>
{{template "summary" .Rows}}{{end}}`,

	KindStatusChanged: `{{define "content"}}{{if .Accepted}}<h2 style="color:#60665a;">Booking Accepted</h2>
<p>Hi <strong>{{.Booking.Name}}</strong>, great news! Your cleaning booking for <strong>{{.DateShort}} at {{.Booking.TimeSlot}}</strong> has been confirmed by our team.</p>
{{else}}<h2 style="color:#60665a;">Booking Update</h2>
<p>Hi <strong>{{.Booking.Name}}</strong>, we are sorry, but we are unable to fulfil your booking for <strong>{{.DateShort}} at {{.Booking.TimeSlot}}</strong>. Please contact us to reschedule.</p>
{{end}}{{with .Booking.AdminNotes}}<p style="color:#7d9094;">Note from our team: {{.}}</p>{{end}}
<p style="text-align:center;"><a href="tel:` + supportTel + `">Contact Us</a></p>{{end}}`,

	KindInvoice: `{{define "content"}}<h2 style="color:#60665a;">Service Complete: Your Invoice</h2>
<p>Hi <strong>{{.Booking.Name}}</strong>, your cleaning is done. Thank you for choosing us!</p>
{{template "summary" .Rows}}
<p style="font-size:16px;font-weight:700;">Total: {{.Total}}</p>
<p style="text-align:center;"><a href="{{.ClientURL}}/book">Book Again</a></p>{{end}}`,
}

type row struct {
	Label string
	Value string
}

type emailData struct {
	Booking    *model.Booking
	Rows       []row
	Total      string
	DateShort  string
	Accepted   bool
	ClientURL  string
	AdminEmail string
	Year       int
}

// Renderer turns notifications into emails. Templates are parsed once.
type Renderer struct {
	adminEmail string
	clientURL  string
	templates  map[Kind]*template.Template
	now        func() time.Time
}

func NewRenderer(adminEmail, clientURL string) (*Renderer, error) {
	base, err := template.New("frame").Parse(frameTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse email frame: %w", err)
	}
	if _, err := base.Parse(summaryTemplate); err != nil {
		return nil, fmt.Errorf("failed to parse email summary: %w", err)
	}

	templates := make(map[Kind]*template.Template, len(contentTemplates))
	for kind, content := range contentTemplates {
		t, err := template.Must(base.Clone()).Parse(content)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", kind, err)
		}
		templates[kind] = t
	}

	return &Renderer{
		adminEmail: adminEmail,
		clientURL:  strings.TrimRight(clientURL, "/"),
		templates:  templates,
		now:        time.Now,
	}, nil
}

func (r *Renderer) Render(n Notification) (Email, error) {
	b := n.Booking
	if b == nil {
		return Email{}, fmt.Errorf("notification %s has no booking", n.ID)
	}
	t, ok := r.templates[n.Kind]
	if !ok {
		return Email{}, fmt.Errorf("unknown notification kind %q", n.Kind)
	}

	data := emailData{
		Booking:    b,
		Total:      FormatKSh(b.Total),
		DateShort:  formatDate(b.Date, "02/01/2006", ""),
		Accepted:   b.BookingStatus == model.BookingAccepted,
		ClientURL:  r.clientURL,
		AdminEmail: r.adminEmail,
		Year:       r.now().Year(),
		Rows:       r.rows(n.Kind, b),
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "frame", data); err != nil {
		return Email{}, fmt.Errorf("failed to render %s email: %w", n.Kind, err)
	}

	email := Email{To: b.Email, Subject: r.subject(n.Kind, b), HTML: buf.String()}
	if n.Kind == KindNewBookingAlert {
		email.To = r.adminEmail
	}
	return email, nil
}

func (r *Renderer) subject(kind Kind, b *model.Booking) string {
	switch kind {
	case KindBookingReceived:
		return fmt.Sprintf("Booking Received - %s · Geranium Cleaning", formatDate(b.Date, "Monday, 2 January 2006", "Date TBD"))
	case KindNewBookingAlert:
		return fmt.Sprintf("New Booking - %s · %s", b.Name, FormatKSh(b.Total))
	case KindPaymentConfirmed:
		return fmt.Sprintf("Payment Received - Booking #%s · Geranium Cleaning", b.Reference())
	case KindStatusChanged:
		if b.BookingStatus == model.BookingAccepted {
			return "Confirmed - Your Geranium Cleaning Booking"
		}
		return "Update - Your Geranium Cleaning Booking"
	case KindInvoice:
		return "Service Complete - Invoice · Geranium Cleaning"
	}
	return brandName
}

func (r *Renderer) rows(kind Kind, b *model.Booking) []row {
	location := joinNonEmpty(b.Address, b.Area, b.County)
	when := formatDate(b.Date, "Monday, 2 January 2006", "TBD")
	if b.TimeSlot != "" {
		when += " at " + b.TimeSlot
	}

	switch kind {
	case KindNewBookingAlert:
		return []row{
			{"Client", b.Name},
			{"Email", b.Email},
			{"Phone", b.Phone},
			{"Location", location},
			{"Date & Time", when},
			{"Item", b.SeatType},
			{"Count", strconv.Itoa(b.SeatCount)},
			{"Payment", paymentLabel(b.PaymentMethod)},
			{"Amount", FormatKSh(b.Total)},
			{"Status", string(b.PaymentStatus)},
		}
	case KindPaymentConfirmed:
		rows := []row{
			{"Booking ID", "#" + b.Reference()},
			{"Amount Paid", FormatKSh(b.Total)},
			{"Payment Method", paymentLabel(b.PaymentMethod)},
		}
		if b.MpesaReceiptNumber != "" {
			rows = append(rows, row{"M-Pesa Receipt", b.MpesaReceiptNumber})
		}
		return rows
	}

	return []row{
		{"Booking ID", "#" + b.Reference()},
		{"Date & Time", when},
		{"Location", location},
		{"Item", b.SeatType},
		{"Count", pluralize(b.SeatCount, itemNoun(b.ServiceType))},
		{"Payment Method", paymentLabel(b.PaymentMethod)},
		{"Amount", FormatKSh(b.Total)},
	}
}

func paymentLabel(m model.PaymentMethod) string {
	switch m {
	case model.PaymentMpesa:
		return "M-Pesa"
	case model.PaymentCard:
		return "Card"
	default:
		return "Pay on Service (Cash)"
	}
}

func itemNoun(s model.ServiceType) string {
	switch s {
	case model.ServiceMattress:
		return "mattress"
	case model.ServiceBedFrame:
		return "bed frame"
	}
	return "seat"
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	if strings.HasSuffix(noun, "s") {
		return fmt.Sprintf("%d %ses", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func formatDate(d *time.Time, layout, fallback string) string {
	if d == nil {
		return fallback
	}
	return d.Format(layout)
}

func joinNonEmpty(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}

// FormatKSh renders an amount as "KSh 1,400" or "KSh 1,400.50".
func FormatKSh(amount float64) string {
	cents := int64(model.RoundAmount(amount)*100 + 0.5)
	if amount < 0 {
		cents = int64(model.RoundAmount(amount)*100 - 0.5)
	}
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}

	whole := strconv.FormatInt(cents/100, 10)
	var grouped strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(r)
	}

	out := "KSh " + sign + grouped.String()
	if frac := cents % 100; frac != 0 {
		out += fmt.Sprintf(".%02d", frac)
	}
	return out
}
