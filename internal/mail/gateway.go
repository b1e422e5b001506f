// Package mail is the gateway to the upstream mailbox: SMTP submission
// and IMAP unread-message operations, performed with the credentials of
// whichever account a request resolves to.
package mail

import (
	"context"
	"time"
)

// Account holds the resolved (already decrypted) mailbox credentials for
// one operation. Instances are built per request and never persisted.
type Account struct {
	Address  string
	Password string
	SMTPHost string
	SMTPPort int
	IMAPHost string
	IMAPPort int
}

// Filter selects which unread messages a list operation returns.
type Filter struct {
	By        FilterBy
	StartDate time.Time
	EndDate   time.Time
	// MarkAsRead fetches without peek so the server flags messages seen.
	MarkAsRead bool
}

type FilterBy string

const (
	FilterToday     FilterBy = "today"
	FilterAll       FilterBy = "all"
	FilterDateRange FilterBy = "date_range"
)

// Message is one unread mailbox message with its plain-text body.
type Message struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	From      string    `json:"from_email"`
	Body      string    `json:"body"`
	MessageID string    `json:"message_id,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// FlagResult is the per-message outcome of a batch flag operation.
type FlagResult struct {
	ID  string
	Err error
}

// Gateway is the mail-transport collaborator consumed by the service
// layer. The production implementation speaks SMTP and IMAP; tests
// substitute a fake.
type Gateway interface {
	Send(ctx context.Context, account Account, to, subject, body string) error
	ListUnread(ctx context.Context, account Account, filter Filter) ([]Message, error)
	SetReadFlags(ctx context.Context, account Account, ids []string, read bool) ([]FlagResult, error)
}
