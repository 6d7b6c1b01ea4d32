package notify

import (
	"context"
	"html"
	"strings"

	"gopkg.in/gomail.v2"
)

// dialer is the part of *gomail.Dialer the notifier uses.
type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type MailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	To       []string
}

// MailNotifier sends alerts over SMTP. Retries are left to Retrying.
type MailNotifier struct {
	dialer dialer
	from   string
	to     []string
}

func NewMailNotifier(cfg MailConfig) *MailNotifier {
	from := cfg.From
	if from == "" {
		from = "noreply@vaultkeeper.local"
	}
	return &MailNotifier{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   from,
		to:     cfg.To,
	}
}

func (m *MailNotifier) message(a Alert) *gomail.Message {
	subject := a.Title
	if a.Priority == PriorityHigh {
		subject = "[HIGH] " + subject
	}

	var body strings.Builder
	body.WriteString("<p>" + html.EscapeString(a.Text) + "</p>")
	if len(a.Fields) > 0 {
		body.WriteString("<table>")
		for _, f := range a.Fields {
			body.WriteString("<tr><td><b>" + html.EscapeString(f.Label) + "</b></td><td>" + html.EscapeString(f.Value) + "</td></tr>")
		}
		body.WriteString("</table>")
	}
	if a.Link != "" {
		body.WriteString(`<p><a href="` + html.EscapeString(a.Link) + `">Open</a></p>`)
	}

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.from, "Vaultkeeper")
	msg.SetHeader("Bcc", m.to...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body.String())
	return msg
}

func (m *MailNotifier) SendAlert(ctx context.Context, a Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.dialer.DialAndSend(m.message(a))
}
