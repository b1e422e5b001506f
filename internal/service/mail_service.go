package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/makkenzo/email-gateway-api/internal/config"
	"github.com/makkenzo/email-gateway-api/internal/domain/apikey"
	"github.com/makkenzo/email-gateway-api/internal/handler/dto"
	"github.com/makkenzo/email-gateway-api/internal/ierr"
	"github.com/makkenzo/email-gateway-api/internal/mail"
	"github.com/makkenzo/email-gateway-api/internal/secrets"
	"go.uber.org/zap"
)

// MailService proxies send/read/mark operations to the mail gateway with
// the account resolved from the calling key, falling back to the
// service-wide default mailbox.
type MailService struct {
	gateway  mail.Gateway
	cipher   *secrets.Cipher
	defaults config.MailConfig
	logger   *zap.Logger
}

func NewMailService(gateway mail.Gateway, cipher *secrets.Cipher, defaults config.MailConfig, logger *zap.Logger) *MailService {
	return &MailService{
		gateway:  gateway,
		cipher:   cipher,
		defaults: defaults,
		logger:   logger.Named("MailService"),
	}
}

func (s *MailService) resolveAccount(key *apikey.APIKey) (mail.Account, error) {
	if creds := key.MailCredentials; creds != nil {
		password, err := s.cipher.Decrypt(creds.EncryptedPassword)
		if err != nil {
			s.logger.Error("Failed to decrypt mail credentials", zap.String("key_id", key.KeyID), zap.Error(err))
			return mail.Account{}, fmt.Errorf("%w: stored mail credentials are unusable", ierr.ErrInternalServer)
		}
		return mail.Account{
			Address:  creds.Address,
			Password: password,
			SMTPHost: creds.SMTPHost,
			SMTPPort: creds.SMTPPort,
			IMAPHost: creds.IMAPHost,
			IMAPPort: creds.IMAPPort,
		}, nil
	}

	if s.defaults.Address == "" || s.defaults.Password == "" {
		return mail.Account{}, fmt.Errorf("%w: no mailbox account configured for this key", ierr.ErrInternalServer)
	}
	return mail.Account{
		Address:  s.defaults.Address,
		Password: s.defaults.Password,
		SMTPHost: s.defaults.SMTPHost,
		SMTPPort: s.defaults.SMTPPort,
		IMAPHost: s.defaults.IMAPHost,
		IMAPPort: s.defaults.IMAPPort,
	}, nil
}

func (s *MailService) Send(ctx context.Context, key *apikey.APIKey, req *dto.SendEmailRequest) error {
	account, err := s.resolveAccount(key)
	if err != nil {
		return err
	}

	subject := sanitizeSubject(req.Subject)
	body := strings.ReplaceAll(req.Body, "\x00", "")

	if err := s.gateway.Send(ctx, account, req.ReceiverEmail, subject, body); err != nil {
		return err
	}

	s.logger.Info("Email sent via gateway",
		zap.String("key_id", key.KeyID),
		zap.String("to", req.ReceiverEmail),
	)
	return nil
}

func (s *MailService) ListUnread(ctx context.Context, key *apikey.APIKey, query *dto.ListEmailsQuery) (*dto.EmailListResponse, error) {
	account, err := s.resolveAccount(key)
	if err != nil {
		return nil, err
	}

	filter := mail.Filter{
		By:         mail.FilterBy(query.FilterBy),
		MarkAsRead: query.MarkAsRead,
	}
	if filter.By == "" {
		filter.By = mail.FilterToday
	}
	if query.StartDate != nil {
		filter.StartDate = *query.StartDate
	}
	if query.EndDate != nil {
		filter.EndDate = *query.EndDate
	}

	messages, err := s.gateway.ListUnread(ctx, account, filter)
	if err != nil {
		return nil, err
	}

	if messages == nil {
		messages = []mail.Message{}
	}
	return &dto.EmailListResponse{
		Count:  len(messages),
		Emails: messages,
	}, nil
}

// MarkRead flags a single message seen.
func (s *MailService) MarkRead(ctx context.Context, key *apikey.APIKey, id string) error {
	account, err := s.resolveAccount(key)
	if err != nil {
		return err
	}

	results, err := s.gateway.SetReadFlags(ctx, account, []string{id}, true)
	if err != nil {
		return err
	}
	if len(results) > 0 && results[0].Err != nil {
		return results[0].Err
	}
	return nil
}

// MarkReadBatch flags each id seen, reporting per-id outcomes.
func (s *MailService) MarkReadBatch(ctx context.Context, key *apikey.APIKey, ids []string) (*dto.BatchOperationResponse, error) {
	return s.setFlagsBatch(ctx, key, ids, true)
}

// MarkUnreadBatch removes the seen flag from each id.
func (s *MailService) MarkUnreadBatch(ctx context.Context, key *apikey.APIKey, ids []string) (*dto.BatchOperationResponse, error) {
	return s.setFlagsBatch(ctx, key, ids, false)
}

func (s *MailService) setFlagsBatch(ctx context.Context, key *apikey.APIKey, ids []string, read bool) (*dto.BatchOperationResponse, error) {
	account, err := s.resolveAccount(key)
	if err != nil {
		return nil, err
	}

	results, err := s.gateway.SetReadFlags(ctx, account, ids, read)
	if err != nil {
		return nil, err
	}

	resp := &dto.BatchOperationResponse{
		TotalProcessed: len(results),
		Details:        make([]dto.BatchOperationDetail, 0, len(results)),
	}
	for _, res := range results {
		detail := dto.BatchOperationDetail{ID: res.ID, Status: "success"}
		if res.Err != nil {
			detail.Status = "error"
			detail.Error = res.Err.Error()
			resp.FailureCount++
		} else {
			resp.SuccessCount++
		}
		resp.Details = append(resp.Details, detail)
	}

	resp.Status = "success"
	if resp.FailureCount > 0 {
		resp.Status = "partial"
	}
	if resp.SuccessCount == 0 && resp.FailureCount > 0 {
		resp.Status = "error"
	}

	s.logger.Info("Batch flag operation finished",
		zap.String("key_id", key.KeyID),
		zap.Bool("read", read),
		zap.Int("success", resp.SuccessCount),
		zap.Int("failure", resp.FailureCount),
	)
	return resp, nil
}

// sanitizeSubject strips header-injection vectors from a subject line.
func sanitizeSubject(subject string) string {
	sanitized := strings.ReplaceAll(subject, "\n", " ")
	sanitized = strings.ReplaceAll(sanitized, "\r", " ")
	sanitized = strings.ReplaceAll(sanitized, "\x00", "")
	if len(sanitized) > 200 {
		sanitized = sanitized[:200]
	}
	return strings.TrimSpace(sanitized)
}
