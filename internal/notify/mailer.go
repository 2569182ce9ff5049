package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/notdp/franxx-store-sub000/internal/config"
	"github.com/notdp/franxx-store-sub000/internal/logger"
	"github.com/notdp/franxx-store-sub000/internal/models"
	"gopkg.in/gomail.v2"
)

// Sender delivers prepared messages. *gomail.Dialer implements it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer e-mails customers about their orders.
type Mailer struct {
	sender Sender
	from   string
	log    *logger.Logger
}

func NewMailer(cfg config.EmailConfig, log *logger.Logger) *Mailer {
	d := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	return NewMailerWithSender(d, cfg.From, log)
}

func NewMailerWithSender(sender Sender, from string, log *logger.Logger) *Mailer {
	return &Mailer{sender: sender, from: from, log: log}
}

var deliveredTemplate = template.Must(template.New("delivered").Parse(`
<h2>Your {{.PackageName}} account is ready</h2>
<p>Thank you for your order <strong>{{.OrderID}}</strong> ({{printf "%.2f" .Amount}} {{.Currency}}).</p>
<p>Sign in with the credentials below and change the password after your first login.</p>
<table>
  <tr><td>Email</td><td><code>{{.Account.Email}}</code></td></tr>
  <tr><td>Password</td><td><code>{{.Account.Password}}</code></td></tr>
</table>
<p>You can always find these details on your orders page.</p>
`))

var failedTemplate = template.Must(template.New("failed").Parse(`
<h2>Your payment did not go through</h2>
<p>We could not collect payment for order <strong>{{.OrderID}}</strong> ({{.PackageName}}).</p>
<p>No account was issued and you have not been charged. You can start a new checkout at any time.</p>
`))

// HandleOrderEvent is the Kafka handler: delivered orders get their credentials,
// failed orders get a notice, anything else is ignored.
func (m *Mailer) HandleOrderEvent(ctx context.Context, event models.OrderEvent) error {
	if event.Email == "" {
		m.log.Warn("NOTIFY", fmt.Sprintf("Order %s has no customer email, skipping %s", event.OrderID, event.Type))
		return nil
	}

	switch event.Type {
	case models.OrderEventDelivered:
		if event.Account == nil {
			m.log.Warn("NOTIFY", fmt.Sprintf("Delivered order %s carries no account", event.OrderID))
			return nil
		}
		return m.send(event, "Your FRANXX order is ready", deliveredTemplate)
	case models.OrderEventFailed:
		return m.send(event, "Your FRANXX payment failed", failedTemplate)
	default:
		m.log.Debug("NOTIFY", fmt.Sprintf("Ignoring %s for order %s", event.Type, event.OrderID))
		return nil
	}
}

func (m *Mailer) send(event models.OrderEvent, subject string, tmpl *template.Template) error {
	var body bytes.Buffer
	if err := tmpl.Execute(&body, event); err != nil {
		return fmt.Errorf("render %s mail: %w", tmpl.Name(), err)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", event.Email)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body.String())

	if err := m.sender.DialAndSend(msg); err != nil {
		m.log.Error("NOTIFY", fmt.Sprintf("Failed to send %s mail for order %s: %v", tmpl.Name(), event.OrderID, err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	m.log.Info("NOTIFY", fmt.Sprintf("Sent %s mail for order %s to %s", tmpl.Name(), event.OrderID, event.Email))
	return nil
}
