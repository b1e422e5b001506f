package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/makkenzo/email-gateway-api/internal/ierr"
	"go.uber.org/zap"
)

// Client is the production Gateway speaking SMTP for submission and IMAP
// for mailbox reads.
type Client struct {
	logger *zap.Logger
}

func NewClient(logger *zap.Logger) *Client {
	return &Client{logger: logger.Named("MailClient")}
}

var _ Gateway = (*Client)(nil)

// Send submits a plain-text message through the account's SMTP server
// using STARTTLS and PLAIN authentication.
func (c *Client) Send(ctx context.Context, account Account, to, subject, body string) error {
	raw, err := composeMessage(account.Address, to, subject, body)
	if err != nil {
		return fmt.Errorf("%w: composing message: %v", ierr.ErrUpstreamInput, err)
	}

	addr := fmt.Sprintf("%s:%d", account.SMTPHost, account.SMTPPort)

	// Dial under the request context so a cancelled or timed-out request
	// aborts the connection attempt instead of hanging on the upstream.
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		c.logger.Error("SMTP connection failed", zap.String("addr", addr), zap.Error(err))
		return fmt.Errorf("%w: connecting to %s: %v", ierr.ErrUpstreamTransport, addr, err)
	}

	client, err := smtp.NewClientStartTLS(conn, &tls.Config{ServerName: account.SMTPHost})
	if err != nil {
		conn.Close()
		c.logger.Error("SMTP STARTTLS negotiation failed", zap.String("addr", addr), zap.Error(err))
		return fmt.Errorf("%w: starttls with %s: %v", ierr.ErrUpstreamTransport, addr, err)
	}
	defer client.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if err := client.Auth(sasl.NewPlainClient("", account.Address, account.Password)); err != nil {
		c.logger.Warn("SMTP authentication failed", zap.String("addr", addr), zap.String("account", account.Address))
		return fmt.Errorf("%w: smtp authentication rejected", ierr.ErrUpstreamTransport)
	}

	if err := client.SendMail(account.Address, []string{to}, bytes.NewReader(raw)); err != nil {
		c.logger.Warn("SMTP send rejected",
			zap.String("to", to),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", ierr.ErrUpstreamInput, err)
	}

	c.logger.Info("Email sent", zap.String("to", to), zap.String("from", account.Address))
	return nil
}

func composeMessage(from, to, subject, body string) ([]byte, error) {
	var buf bytes.Buffer

	var h mail.Header
	h.SetDate(time.Now().UTC())
	h.SetAddressList("From", []*mail.Address{{Address: from}})
	h.SetAddressList("To", []*mail.Address{{Address: to}})
	h.SetSubject(subject)

	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(w, body); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
