package profiles

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-carriers/core"
)

// carrierDocument is the YAML schema. Durations are strings in Go duration
// syntax ("30s", "2m") so the file stays readable.
type carrierDocument struct {
	Carriers []carrierRecord `yaml:"carriers"`
}

type carrierRecord struct {
	ID                  string  `yaml:"id"`
	Name                string  `yaml:"name"`
	TokenURL            string  `yaml:"token_url"`
	TransferURL         string  `yaml:"transfer_url"`
	RequiresConfirmFlag bool    `yaml:"requires_confirm_flag"`
	RequiresConsumerID  bool    `yaml:"requires_consumer_id"`
	ConsumerID          string  `yaml:"consumer_id"`
	MaxConcurrency      int     `yaml:"max_concurrency"`
	RequestTimeout      string  `yaml:"request_timeout"`
	RequestsPerSecond   float64 `yaml:"requests_per_second"`
	MaxResponseBytes    int64   `yaml:"max_response_bytes"`
}

func parseDocument(raw []byte) ([]core.CarrierProfile, error) {
	var doc carrierDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("profiles: parse yaml: %w", err)
	}
	if len(doc.Carriers) == 0 {
		return nil, fmt.Errorf("profiles: document declares no carriers")
	}
	out := make([]core.CarrierProfile, 0, len(doc.Carriers))
	for i, record := range doc.Carriers {
		profile, err := record.toProfile()
		if err != nil {
			return nil, fmt.Errorf("profiles: carrier #%d (%s): %w", i+1, record.label(), err)
		}
		out = append(out, profile)
	}
	return out, nil
}

func (r carrierRecord) label() string {
	if id := strings.TrimSpace(r.ID); id != "" {
		return id
	}
	return "unnamed"
}

func (r carrierRecord) toProfile() (core.CarrierProfile, error) {
	var timeout time.Duration
	if raw := strings.TrimSpace(r.RequestTimeout); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return core.CarrierProfile{}, fmt.Errorf("request_timeout %q: %w", raw, err)
		}
		timeout = parsed
	}
	return core.CarrierProfile{
		ID:                  r.ID,
		Name:                r.Name,
		TokenURL:            r.TokenURL,
		TransferURL:         r.TransferURL,
		RequiresConfirmFlag: r.RequiresConfirmFlag,
		RequiresConsumerID:  r.RequiresConsumerID,
		ConsumerID:          r.ConsumerID,
		MaxConcurrency:      r.MaxConcurrency,
		RequestTimeout:      timeout,
		RequestsPerSecond:   r.RequestsPerSecond,
		MaxResponseBytes:    r.MaxResponseBytes,
	}, nil
}
