package security

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-carriers/core"
)

// EncryptedCredentialSource keeps carrier passwords sealed until the moment
// a token negotiation needs them. Usernames stay plain; only the password is
// an envelope.
type EncryptedCredentialSource struct {
	provider core.SecretProvider

	mu      sync.RWMutex
	records map[string]encryptedRecord
}

type encryptedRecord struct {
	username string
	password []byte
}

func NewEncryptedCredentialSource(provider core.SecretProvider) (*EncryptedCredentialSource, error) {
	if provider == nil {
		return nil, fmt.Errorf("security: secret provider is required")
	}
	return &EncryptedCredentialSource{
		provider: provider,
		records:  make(map[string]encryptedRecord),
	}, nil
}

// Seal encrypts a plaintext password and stores the credential pair for the
// carrier. Wiring code calls this once per carrier at startup.
func (s *EncryptedCredentialSource) Seal(ctx context.Context, carrierID, username, password string) error {
	if s == nil {
		return fmt.Errorf("security: credential source is not configured")
	}
	id, err := normalizeCarrierID(carrierID)
	if err != nil {
		return err
	}
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return fmt.Errorf("security: carrier %q: username and password are required", id)
	}
	sealed, err := s.provider.Encrypt(ctx, []byte(password))
	if err != nil {
		return fmt.Errorf("security: carrier %q: seal password: %w", id, err)
	}
	s.mu.Lock()
	s.records[id] = encryptedRecord{username: username, password: sealed}
	s.mu.Unlock()
	return nil
}

// SetSealed stores an already-encrypted password, e.g. one read from
// configuration that was sealed offline.
func (s *EncryptedCredentialSource) SetSealed(carrierID, username string, sealedPassword []byte) error {
	if s == nil {
		return fmt.Errorf("security: credential source is not configured")
	}
	id, err := normalizeCarrierID(carrierID)
	if err != nil {
		return err
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("security: carrier %q: username is required", id)
	}
	if !IsEncrypted(sealedPassword) {
		return fmt.Errorf("security: carrier %q: password value is not an envelope", id)
	}
	stored := make([]byte, len(sealedPassword))
	copy(stored, sealedPassword)
	s.mu.Lock()
	s.records[id] = encryptedRecord{username: username, password: stored}
	s.mu.Unlock()
	return nil
}

func (s *EncryptedCredentialSource) Credentials(ctx context.Context, carrierID string) (core.Credentials, error) {
	if s == nil {
		return core.Credentials{}, fmt.Errorf("security: credential source is not configured")
	}
	id, err := normalizeCarrierID(carrierID)
	if err != nil {
		return core.Credentials{}, err
	}
	s.mu.RLock()
	record, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return core.Credentials{}, fmt.Errorf("security: no credentials stored for carrier %q", id)
	}
	plaintext, err := s.provider.Decrypt(ctx, record.password)
	if err != nil {
		return core.Credentials{}, fmt.Errorf("security: carrier %q: unseal password: %w", id, err)
	}
	return core.Credentials{Username: record.username, Password: string(plaintext)}, nil
}

func normalizeCarrierID(carrierID string) (string, error) {
	id := strings.ToLower(strings.TrimSpace(carrierID))
	if id == "" {
		return "", fmt.Errorf("security: carrier id is required")
	}
	return id, nil
}

var _ core.CredentialSource = (*EncryptedCredentialSource)(nil)
