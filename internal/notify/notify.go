// Package notify delivers email notifications for transaction lifecycle
// events. Delivery is fire-and-forget: the engine logs failures and never
// rolls back or fails the transition that triggered them.
package notify

import (
	"context"
	"database/sql"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/assetly/assetly/internal/model"
	"github.com/assetly/assetly/internal/store"
)

// Kind identifies which lifecycle event a notification is about.
type Kind string

const (
	KindRequested Kind = "requested"
	KindApproved  Kind = "approved"
	KindRejected  Kind = "rejected"
	KindOverdue   Kind = "overdue"
)

// Notifier sends a notification about a transaction.
type Notifier interface {
	Notify(ctx context.Context, kind Kind, txn *model.Transaction) error
}

// Mailer is an SMTP-backed Notifier. It looks up the item and the two
// parties to compose the message, so it only needs the transaction itself.
type Mailer struct {
	DB       *sql.DB
	Addr     string // host:port
	Host     string // for PlainAuth
	Username string
	Password string
	From     string
	BaseURL  string // public base URL used in item links
}

// Notify composes and sends the email for the given event.
func (m *Mailer) Notify(ctx context.Context, kind Kind, txn *model.Transaction) error {
	item, err := store.GetItem(ctx, m.DB, txn.ItemID)
	if err != nil {
		return err
	}
	itemName := "Unknown Item"
	if item != nil {
		itemName = item.Name
	}

	owner, err := store.GetUser(ctx, m.DB, txn.OwnerID)
	if err != nil {
		return err
	}
	issuer, err := store.GetUser(ctx, m.DB, txn.IssuerID)
	if err != nil {
		return err
	}
	if owner == nil || issuer == nil {
		return fmt.Errorf("notification for transaction %d: party not found", txn.ID)
	}

	itemLink := fmt.Sprintf("%s/item/%d", m.BaseURL, txn.ItemID)

	var to []string
	var subject, body string

	switch kind {
	case KindRequested:
		to = []string{owner.Email}
		subject = fmt.Sprintf("Request for %q", itemName)
		body = fmt.Sprintf("Hello %s,\n\n%s has requested %d of %q.\n\nView the item or respond to the request: %s\n",
			owner.Name, issuer.Name, txn.Quantity, itemName, itemLink)
	case KindApproved:
		to = []string{issuer.Email}
		subject = fmt.Sprintf("Request approved: %q", itemName)
		body = fmt.Sprintf("Hello %s,\n\nYour request for %q has been approved by %s.\n\nView the item: %s\n",
			issuer.Name, itemName, owner.Name, itemLink)
	case KindRejected:
		to = []string{issuer.Email}
		subject = fmt.Sprintf("Request rejected: %q", itemName)
		body = fmt.Sprintf("Hello %s,\n\nYour request for %q has been rejected by %s.\n",
			issuer.Name, itemName, owner.Name)
	case KindOverdue:
		to = []string{issuer.Email, owner.Email}
		subject = fmt.Sprintf("Overdue item: %s", itemName)
		due := "unknown"
		if txn.ReturnDate != nil {
			due = txn.ReturnDate.Format("Mon, 02 Jan 2006")
		}
		body = fmt.Sprintf("The item %q held by %s is overdue.\nReturn date: %s\n\nDetails: %s\n",
			itemName, issuer.Name, due, itemLink)
	default:
		return fmt.Errorf("unknown notification kind %q", kind)
	}

	return m.send(to, subject, body)
}

func (m *Mailer) send(to []string, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + m.From,
		"To: " + strings.Join(to, ", "),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	var auth smtp.Auth
	if m.Username != "" {
		auth = smtp.PlainAuth("", m.Username, m.Password, m.Host)
	}

	if err := smtp.SendMail(m.Addr, auth, m.From, to, []byte(msg)); err != nil {
		return fmt.Errorf("sending mail: %w", err)
	}
	return nil
}
