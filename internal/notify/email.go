package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// EmailNotifier sends notifications through SendGrid.
type EmailNotifier struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
}

func NewEmailNotifier(apiKey, fromEmail, fromName string) *EmailNotifier {
	return &EmailNotifier{
		client:    sendgrid.NewSendClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

func (n *EmailNotifier) Send(ctx context.Context, msg Message) error {
	from := mail.NewEmail(n.fromName, n.fromEmail)
	to := mail.NewEmail(msg.RecipientName, msg.Recipient)

	htmlContent := msg.HTMLBody
	if htmlContent == "" {
		htmlContent = "<p>" + strings.ReplaceAll(html.EscapeString(msg.Body), "\n", "<br>") + "</p>"
	}

	m := mail.NewSingleEmail(from, msg.Subject, to, msg.Body, htmlContent)
	resp, err := n.client.SendWithContext(ctx, m)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid: email to %s rejected with status %d", msg.Recipient, resp.StatusCode)
	}
	return nil
}
