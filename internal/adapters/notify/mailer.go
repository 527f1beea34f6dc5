package notify

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/gomail.v2"

	"github.com/nmoreyra/taller3d/internal/domain"
)

// Mailer sends the transactional mails. When SMTP is not configured it logs
// a warning and reports success so order flows never fail on email.
type Mailer struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

func New(host string, port int, user, pass, from string) *Mailer {
	return &Mailer{Host: host, Port: port, User: user, Pass: pass, From: from}
}

func (m *Mailer) configured() bool {
	return m.Host != "" && m.User != "" && m.Pass != ""
}

func (m *Mailer) send(to, subject, body string) error {
	if !m.configured() {
		log.Warn().Str("subject", subject).Msg("SMTP not configured, skipping email")
		return nil
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	d := gomail.NewDialer(m.Host, m.Port, m.User, m.Pass)
	if err := d.DialAndSend(msg); err != nil {
		log.Error().Err(err).Str("subject", subject).Msg("email send")
		return err
	}
	return nil
}

func itemLines(o *domain.Order) string {
	var b strings.Builder
	for _, it := range o.Items {
		fmt.Fprintf(&b, "- %s x%d  $%s\n", it.ProductName, it.Quantity, dollars(it.UnitPriceCents))
	}
	return b.String()
}

func dollars(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

func (m *Mailer) OrderConfirmation(o *domain.Order) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Thanks for your order %s!\n\n", o.OrderNumber)
	b.WriteString("Items:\n")
	b.WriteString(itemLines(o))
	fmt.Fprintf(&b, "\nSubtotal: $%s\n", dollars(o.SubtotalCents))
	if o.DiscountCents > 0 {
		fmt.Fprintf(&b, "Discount (%s): -$%s\n", o.CouponCode, dollars(o.DiscountCents))
	}
	fmt.Fprintf(&b, "Shipping (%s): $%s\n", o.ShippingRateName, dollars(o.ShippingCents))
	fmt.Fprintf(&b, "Tax: $%s\n", dollars(o.TaxCents))
	fmt.Fprintf(&b, "Total: $%s\n\n", dollars(o.TotalCents))
	fmt.Fprintf(&b, "Ship to: %s, %s %s, %s %s\n",
		o.ShippingAddress.FullName, o.ShippingAddress.Line1, o.ShippingAddress.Line2,
		o.ShippingAddress.City, o.ShippingAddress.PostalCode)
	b.WriteString("\nWe'll email you again when it ships. Track anytime with your order number and email.\n")
	return m.send(o.Email, "Order confirmed "+o.OrderNumber, b.String())
}

func (m *Mailer) ShippingNotification(o *domain.Order) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Your order %s is on its way!\n\n", o.OrderNumber)
	if o.ShippingCarrier != "" {
		fmt.Fprintf(&b, "Carrier: %s\n", o.ShippingCarrier)
	}
	if o.TrackingNumber != "" {
		fmt.Fprintf(&b, "Tracking number: %s\n", o.TrackingNumber)
	}
	if o.TrackingURL != "" {
		fmt.Fprintf(&b, "Track it here: %s\n", o.TrackingURL)
	}
	b.WriteString("\nItems:\n")
	b.WriteString(itemLines(o))
	return m.send(o.Email, "Order shipped "+o.OrderNumber, b.String())
}

func (m *Mailer) RefundNotification(o *domain.Order, amountCents int64, reason string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "A refund of $%s was issued for order %s.\n", dollars(amountCents), o.OrderNumber)
	if reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", reason)
	}
	b.WriteString("\nDepending on your bank it can take a few business days to appear.\n")
	return m.send(o.Email, "Refund issued for "+o.OrderNumber, b.String())
}
