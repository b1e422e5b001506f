package service

import (
	"errors"
	"testing"

	"github.com/makkenzo/email-gateway-api/internal/domain/apikey"
	"github.com/makkenzo/email-gateway-api/internal/handler/dto"
	"github.com/makkenzo/email-gateway-api/internal/ierr"
	"github.com/makkenzo/email-gateway-api/internal/secrets"
	"github.com/makkenzo/email-gateway-api/internal/storage/memstorage"
	"github.com/makkenzo/email-gateway-api/internal/util"
	"go.uber.org/zap"
)

func newTestAPIKeyService(t *testing.T) (*APIKeyService, *memstorage.APIKeyRepositoryMock, *secrets.Cipher) {
	t.Helper()

	key, err := secrets.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	cipher, err := secrets.NewCipher(key)
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}

	repo := memstorage.NewAPIKeyRepositoryMock()
	svc := NewAPIKeyService(repo, cipher, APIKeyDefaults{}, zap.NewNop())
	return svc, repo, cipher
}

func TestIssue_DefaultsApplied(t *testing.T) {
	t.Parallel()

	svc, repo, _ := newTestAPIKeyService(t)

	resp, err := svc.Issue(t.Context(), &dto.CreateAPIKeyRequest{Name: "defaults"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if resp.RateLimitPerMinute != 60 || resp.RateLimitPerHour != 1000 {
		t.Errorf("default limits = %d/min %d/hour, want 60/1000",
			resp.RateLimitPerMinute, resp.RateLimitPerHour)
	}
	if len(resp.Scopes) != 1 || resp.Scopes[0] != "read" {
		t.Errorf("default scopes = %v, want [read]", resp.Scopes)
	}

	stored, err := repo.FindByKeyID(t.Context(), resp.KeyID)
	if err != nil {
		t.Fatalf("FindByKeyID: %v", err)
	}
	if !stored.IsActive {
		t.Error("new key is not active")
	}
}

func TestIssue_SecretReturnedOnceAndOnlyHashStored(t *testing.T) {
	t.Parallel()

	svc, repo, _ := newTestAPIKeyService(t)

	resp, err := svc.Issue(t.Context(), &dto.CreateAPIKeyRequest{Name: "secret handling"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if resp.SecretKey == "" {
		t.Fatal("issue response carries no secret")
	}

	stored, err := repo.FindByKeyID(t.Context(), resp.KeyID)
	if err != nil {
		t.Fatalf("FindByKeyID: %v", err)
	}
	if stored.SecretHash == resp.SecretKey {
		t.Error("raw secret was stored instead of its hash")
	}
	if !util.VerifySecret(resp.SecretKey, stored.SecretHash) {
		t.Error("stored hash does not verify against the issued secret")
	}

	// The list surface must never expose secret material.
	listed, err := svc.List(t.Context())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for _, k := range listed {
		if k.KeyID == resp.KeyID {
			return
		}
	}
	t.Error("issued key missing from list")
}

func TestUpdate_RequiresAdminOrSelf(t *testing.T) {
	t.Parallel()

	svc, repo, _ := newTestAPIKeyService(t)

	target, err := svc.Issue(t.Context(), &dto.CreateAPIKeyRequest{Name: "target"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	other, err := svc.Issue(t.Context(), &dto.CreateAPIKeyRequest{Name: "other"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	otherKey, _ := repo.FindByKeyID(t.Context(), other.KeyID)
	targetKey, _ := repo.FindByKeyID(t.Context(), target.KeyID)

	name := "renamed"
	req := &dto.UpdateAPIKeyRequest{Name: &name}

	if err := svc.Update(t.Context(), otherKey, target.KeyID, req); !errors.Is(err, ierr.ErrForbidden) {
		t.Errorf("non-admin updating another key: err = %v, want ErrForbidden", err)
	}

	if err := svc.Update(t.Context(), targetKey, target.KeyID, req); err != nil {
		t.Errorf("key updating itself: %v", err)
	}

	adminKey := &apikey.APIKey{KeyID: "admin", Scopes: []apikey.Scope{apikey.ScopeAdmin}}
	if err := svc.Update(t.Context(), adminKey, other.KeyID, req); err != nil {
		t.Errorf("admin updating another key: %v", err)
	}
}

func TestUpdate_EncryptsMailCredentials(t *testing.T) {
	t.Parallel()

	svc, repo, cipher := newTestAPIKeyService(t)

	resp, err := svc.Issue(t.Context(), &dto.CreateAPIKeyRequest{Name: "mailbox"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	self, _ := repo.FindByKeyID(t.Context(), resp.KeyID)

	password := "app-password"
	err = svc.Update(t.Context(), self, resp.KeyID, &dto.UpdateAPIKeyRequest{
		MailCredentials: &dto.MailCredentialsRequest{
			Address:  "user@example.com",
			Password: password,
			SMTPHost: "smtp.example.com",
			SMTPPort: 587,
			IMAPHost: "imap.example.com",
			IMAPPort: 993,
		},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	stored, _ := repo.FindByKeyID(t.Context(), resp.KeyID)
	if stored.MailCredentials == nil {
		t.Fatal("mail credentials were not persisted")
	}
	if stored.MailCredentials.EncryptedPassword == password {
		t.Fatal("mailbox password stored in plaintext")
	}
	decrypted, err := cipher.Decrypt(stored.MailCredentials.EncryptedPassword)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if decrypted != password {
		t.Errorf("decrypted password = %q, want %q", decrypted, password)
	}
}

func TestDelete_MissingKey(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestAPIKeyService(t)

	if err := svc.Delete(t.Context(), "does-not-exist"); !errors.Is(err, ierr.ErrAPIKeyNotFound) {
		t.Errorf("Delete(missing) = %v, want ErrAPIKeyNotFound", err)
	}
}
