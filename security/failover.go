package security

import (
	"context"
	"fmt"

	"github.com/goliatone/go-carriers/core"
)

type FailoverOption func(*FailoverSecretProvider)

// FailoverSecretProvider chains providers for key rollover. Encryption
// always goes through the primary; decryption walks the chain in order so
// values sealed under a retired key keep working until they are re-sealed.
type FailoverSecretProvider struct {
	providers []core.SecretProvider
	logger    core.Logger
}

func WithFailoverLogger(logger core.Logger) FailoverOption {
	return func(provider *FailoverSecretProvider) {
		if logger != nil {
			provider.logger = logger
		}
	}
}

func NewFailoverSecretProvider(primary core.SecretProvider, fallbacks []core.SecretProvider, opts ...FailoverOption) (*FailoverSecretProvider, error) {
	if primary == nil {
		return nil, fmt.Errorf("security: primary secret provider is required")
	}
	chain := make([]core.SecretProvider, 0, len(fallbacks)+1)
	chain = append(chain, primary)
	for _, fallback := range fallbacks {
		if fallback != nil {
			chain = append(chain, fallback)
		}
	}
	provider := &FailoverSecretProvider{providers: chain}
	for _, opt := range opts {
		if opt != nil {
			opt(provider)
		}
	}
	return provider, nil
}

func (p *FailoverSecretProvider) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	if p == nil || len(p.providers) == 0 {
		return nil, fmt.Errorf("security: failover provider is not configured")
	}
	return p.providers[0].Encrypt(ctx, plaintext)
}

func (p *FailoverSecretProvider) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	if p == nil || len(p.providers) == 0 {
		return nil, fmt.Errorf("security: failover provider is not configured")
	}
	var lastErr error
	for i, provider := range p.providers {
		plaintext, err := provider.Decrypt(ctx, ciphertext)
		if err == nil {
			if i > 0 && p.logger != nil {
				p.logger.Warn("secret decrypted by fallback provider", "provider_index", i)
			}
			return plaintext, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("security: no provider in the chain could decrypt: %w", lastErr)
}

var _ core.SecretProvider = (*FailoverSecretProvider)(nil)
