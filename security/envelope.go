package security

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	envelopePrefix    = "carriers.secret.v1:"
	envelopeAlgorithm = "aes-256-gcm"
)

// envelope is the serialized ciphertext record. The prefix makes encrypted
// values self-describing, so a migration can tell an encrypted password from
// a legacy plaintext one by inspection.
type envelope struct {
	KeyID      string `json:"kid"`
	Version    int    `json:"ver"`
	Algorithm  string `json:"alg"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

func encodeEnvelope(env envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("security: encode envelope: %w", err)
	}
	return append([]byte(envelopePrefix), data...), nil
}

func decodeEnvelope(ciphertext []byte) (envelope, error) {
	payload := strings.TrimSpace(string(ciphertext))
	if payload == "" {
		return envelope{}, fmt.Errorf("security: ciphertext is required")
	}
	if !strings.HasPrefix(payload, envelopePrefix) {
		return envelope{}, fmt.Errorf("security: ciphertext is missing the %q prefix", envelopePrefix)
	}
	var env envelope
	if err := json.Unmarshal([]byte(strings.TrimPrefix(payload, envelopePrefix)), &env); err != nil {
		return envelope{}, fmt.Errorf("security: decode envelope: %w", err)
	}
	if env.Algorithm != "" && env.Algorithm != envelopeAlgorithm {
		return envelope{}, fmt.Errorf("security: unsupported envelope algorithm %q", env.Algorithm)
	}
	return env, nil
}

// IsEncrypted reports whether a stored value carries the envelope prefix.
func IsEncrypted(value []byte) bool {
	return strings.HasPrefix(strings.TrimSpace(string(value)), envelopePrefix)
}
