// Package notify sends order emails to customers and shop staff.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"pipshop/internal/models"
)

// Settings are the shop settings that steer notifications.
type Settings struct {
	NotifyEmails []string
	ReplyTo      string
}

// SettingsFrom reads notification settings out of the shop settings.
// notify_email_addresses is a comma separated list.
func SettingsFrom(s models.ShopSettings) Settings {
	var emails []string
	for _, e := range strings.Split(s.Get(models.SettingNotifyEmails, ""), ",") {
		if e = strings.TrimSpace(e); e != "" {
			emails = append(emails, e)
		}
	}
	return Settings{NotifyEmails: emails, ReplyTo: strings.TrimSpace(s.Get(models.SettingReplyTo, ""))}
}

// Message is one outgoing email.
type Message struct {
	From    string
	To      []string
	ReplyTo string
	Subject string
	Body    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// LogMailer writes messages to the log instead of sending them. It is
// used in development when no SMTP host is configured.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, m Message) error {
	slog.Info("email", "to", strings.Join(m.To, ", "), "subject", m.Subject, "reply_to", m.ReplyTo, "body", m.Body)
	return nil
}

// Notifier builds the order emails.
type Notifier struct {
	mailer Mailer
	from   string
	domain string
}

// NewNotifier returns a Notifier sending from the given address. domain is
// the public base URL used in order status links.
func NewNotifier(mailer Mailer, from, domain string) *Notifier {
	return &Notifier{mailer: mailer, from: from, domain: strings.TrimRight(domain, "/")}
}

// StatusURL is the customer's link to the order status page.
func (n *Notifier) StatusURL(o *models.Order) string {
	return n.domain + "/shop/order/" + o.Token + "/"
}

func (n *Notifier) send(ctx context.Context, s Settings, to []string, subject, body string) error {
	replyTo := s.ReplyTo
	if replyTo == "" {
		replyTo = n.from
	}
	return n.mailer.Send(ctx, Message{
		From:    n.from,
		To:      to,
		ReplyTo: replyTo,
		Subject: subject,
		Body:    body,
	})
}

// OrderCreated emails the customer a receipt and, when a notify list is
// set, the shop staff an alert.
func (n *Notifier) OrderCreated(ctx context.Context, o *models.Order, s Settings) error {
	status := "Your order is being processed."
	if o.Status == models.OrderHold {
		status = "Your order will be completed when payment has been received."
	}
	body := fmt.Sprintf("Thank you for your order! %s\nView the status of your order: %s", status, n.StatusURL(o))
	if err := n.send(ctx, s, []string{o.Email}, fmt.Sprintf("Order '%s' has been received", o.Ref), body); err != nil {
		return fmt.Errorf("send order receipt: %w", err)
	}

	if len(s.NotifyEmails) == 0 {
		return nil
	}
	if err := n.send(ctx, s, s.NotifyEmails, fmt.Sprintf("New shop order '%s'", o.Ref), "A new shop order has been received."); err != nil {
		return fmt.Errorf("send staff alert: %w", err)
	}
	return nil
}

// StatusChanged tells the customer their order moved to PROCESSING or
// COMPLETED. Other statuses send nothing.
func (n *Notifier) StatusChanged(ctx context.Context, o *models.Order, s Settings) error {
	var subject, status string
	switch o.Status {
	case models.OrderCompleted:
		subject = fmt.Sprintf("Order '%s' is completed", o.Ref)
		status = "Your order is now complete."
	case models.OrderProcessing:
		subject = fmt.Sprintf("Order '%s' is being processed", o.Ref)
		status = "Your order is being processed."
	default:
		return nil
	}
	body := fmt.Sprintf("Thank you for your order! %s\nView the status of your order: %s", status, n.StatusURL(o))
	if err := n.send(ctx, s, []string{o.Email}, subject, body); err != nil {
		return fmt.Errorf("send status email: %w", err)
	}
	return nil
}
