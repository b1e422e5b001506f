package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	gomail "github.com/emersion/go-message/mail"
	"github.com/makkenzo/email-gateway-api/internal/ierr"
	"go.uber.org/zap"
)

func (c *Client) connectIMAP(ctx context.Context, account Account) (*imapclient.Client, error) {
	addr := fmt.Sprintf("%s:%d", account.IMAPHost, account.IMAPPort)

	// Dial under the request context so cancellation aborts the attempt.
	dialer := tls.Dialer{Config: &tls.Config{ServerName: account.IMAPHost}}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		c.logger.Error("IMAP connection failed", zap.String("addr", addr), zap.Error(err))
		return nil, fmt.Errorf("%w: connecting to %s: %v", ierr.ErrUpstreamTransport, addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client := imapclient.New(conn, nil)

	if err := client.Login(account.Address, account.Password).Wait(); err != nil {
		_ = client.Logout().Wait()
		c.logger.Warn("IMAP authentication failed", zap.String("addr", addr), zap.String("account", account.Address))
		return nil, fmt.Errorf("%w: imap authentication rejected", ierr.ErrUpstreamTransport)
	}

	if _, err := client.Select("INBOX", nil).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("%w: selecting INBOX: %v", ierr.ErrUpstreamTransport, err)
	}

	return client, nil
}

// ListUnread searches the inbox for unseen messages matching the filter
// and returns each with its plain-text body. With filter.MarkAsRead the
// fetch omits peek, so the server flags the messages seen.
func (c *Client) ListUnread(ctx context.Context, account Account, filter Filter) ([]Message, error) {
	criteria, err := searchCriteria(filter)
	if err != nil {
		return nil, err
	}

	client, err := c.connectIMAP(ctx, account)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("%w: searching messages: %v", ierr.ErrUpstreamTransport, err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	bodySection := &imap.FetchItemBodySection{
		Peek: !filter.MarkAsRead,
	}
	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), fetchOpts)

	var messages []Message
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			continue
		}

		m := Message{ID: strconv.FormatUint(uint64(buf.UID), 10)}
		if buf.Envelope != nil {
			m.Subject = buf.Envelope.Subject
			m.MessageID = buf.Envelope.MessageID
			m.Timestamp = buf.Envelope.Date
			if len(buf.Envelope.From) > 0 {
				m.From = buf.Envelope.From[0].Addr()
			}
		}
		if raw := buf.FindBodySection(bodySection); raw != nil {
			m.Body = extractTextBody(raw)
		}

		messages = append(messages, m)
	}

	if err := fetchCmd.Close(); err != nil {
		return messages, fmt.Errorf("%w: fetching messages: %v", ierr.ErrUpstreamTransport, err)
	}

	c.logger.Info("Unread messages fetched",
		zap.Int("count", len(messages)),
		zap.String("filter", string(filter.By)),
	)
	return messages, nil
}

// SetReadFlags adds or removes the Seen flag on each message over a
// single connection, reporting a per-message outcome.
func (c *Client) SetReadFlags(ctx context.Context, account Account, ids []string, read bool) ([]FlagResult, error) {
	client, err := c.connectIMAP(ctx, account)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	op := imap.StoreFlagsAdd
	if !read {
		op = imap.StoreFlagsDel
	}

	results := make([]FlagResult, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("%w: %v", ierr.ErrUpstreamTransport, err)
		}

		uid, parseErr := strconv.ParseUint(id, 10, 32)
		if parseErr != nil {
			results = append(results, FlagResult{ID: id, Err: fmt.Errorf("%w: invalid message id %q", ierr.ErrUpstreamInput, id)})
			continue
		}

		storeCmd := client.Store(imap.UIDSetNum(imap.UID(uid)), &imap.StoreFlags{
			Op:     op,
			Silent: true,
			Flags:  []imap.Flag{imap.FlagSeen},
		}, nil)
		if err := storeCmd.Close(); err != nil {
			results = append(results, FlagResult{ID: id, Err: fmt.Errorf("%w: %v", ierr.ErrUpstreamTransport, err)})
			continue
		}

		results = append(results, FlagResult{ID: id})
	}

	return results, nil
}

func searchCriteria(filter Filter) (*imap.SearchCriteria, error) {
	criteria := &imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
	}

	switch filter.By {
	case FilterToday:
		now := time.Now().UTC()
		criteria.SentSince = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	case FilterDateRange:
		if filter.StartDate.IsZero() || filter.EndDate.IsZero() {
			return nil, fmt.Errorf("%w: date_range filter requires start_date and end_date", ierr.ErrValidation)
		}
		if !filter.StartDate.Before(filter.EndDate) {
			return nil, fmt.Errorf("%w: start_date must be before end_date", ierr.ErrValidation)
		}
		criteria.SentSince = filter.StartDate
		criteria.SentBefore = filter.EndDate
	case FilterAll:
	default:
		return nil, fmt.Errorf("%w: invalid filter_by option %q", ierr.ErrValidation, filter.By)
	}

	return criteria, nil
}

// extractTextBody pulls the first text/plain part out of a raw RFC 5322
// message, falling back to the raw bytes when MIME parsing fails.
func extractTextBody(raw []byte) string {
	mr, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return string(raw)
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		h, ok := part.Header.(*gomail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		if !strings.HasPrefix(contentType, "text/plain") {
			continue
		}

		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			return "[could not decode body]"
		}
		return string(body)
	}

	return ""
}
