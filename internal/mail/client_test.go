package mail

import (
	"context"
	"errors"
	"testing"

	"github.com/makkenzo/email-gateway-api/internal/ierr"
	"go.uber.org/zap"
)

func TestClient_CancelledContextAbortsUpstream(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(zap.NewNop())
	account := Account{
		Address:  "user@example.com",
		Password: "pw",
		SMTPHost: "127.0.0.1",
		SMTPPort: 9,
		IMAPHost: "127.0.0.1",
		IMAPPort: 9,
	}

	if err := client.Send(ctx, account, "to@example.com", "subject", "body"); !errors.Is(err, ierr.ErrUpstreamTransport) {
		t.Errorf("Send with cancelled context = %v, want ErrUpstreamTransport", err)
	}
	if _, err := client.ListUnread(ctx, account, Filter{By: FilterAll}); !errors.Is(err, ierr.ErrUpstreamTransport) {
		t.Errorf("ListUnread with cancelled context = %v, want ErrUpstreamTransport", err)
	}
	if _, err := client.SetReadFlags(ctx, account, []string{"1"}, true); !errors.Is(err, ierr.ErrUpstreamTransport) {
		t.Errorf("SetReadFlags with cancelled context = %v, want ErrUpstreamTransport", err)
	}
}

func TestSearchCriteria_DateRangeValidation(t *testing.T) {
	t.Parallel()

	if _, err := searchCriteria(Filter{By: FilterDateRange}); !errors.Is(err, ierr.ErrValidation) {
		t.Errorf("date_range without bounds = %v, want ErrValidation", err)
	}
	if _, err := searchCriteria(Filter{By: "yesterday"}); !errors.Is(err, ierr.ErrValidation) {
		t.Errorf("unknown filter = %v, want ErrValidation", err)
	}
}
