package profiles

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-carriers/core"
)

const fixtureYAML = `
carriers:
  - id: "Acme"
    name: Acme Mutual
    token_url: https://sts.acme.test/token
    transfer_url: https://transfer.acme.test/soap
    requires_confirm_flag: true
    max_concurrency: 4
    request_timeout: 45s
    requests_per_second: 2.5
  - id: beta
    token_url: https://sts.beta.test/token
    transfer_url: https://transfer.beta.test/soap
    requires_consumer_id: true
    consumer_id: "046_11077"
`

func TestCatalog_LoadBytesRegistersProfiles(t *testing.T) {
	catalog := NewCatalog()
	if err := catalog.LoadBytes([]byte(fixtureYAML)); err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}

	ctx := context.Background()
	acme, err := catalog.Profile(ctx, "ACME")
	if err != nil {
		t.Fatalf("Profile lookup must normalize ids: %v", err)
	}
	if acme.Name != "Acme Mutual" || !acme.RequiresConfirmFlag {
		t.Fatalf("unexpected profile %+v", acme)
	}
	if acme.MaxConcurrency != 4 || acme.RequestTimeout != 45*time.Second {
		t.Fatalf("unexpected limits %+v", acme)
	}
	if acme.RequestsPerSecond != 2.5 {
		t.Fatalf("unexpected pacing %v", acme.RequestsPerSecond)
	}

	beta, err := catalog.Profile(ctx, "beta")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if !beta.RequiresConsumerID || beta.ConsumerID != "046_11077" {
		t.Fatalf("unexpected dialect flags %+v", beta)
	}
	if beta.MaxConcurrency != core.DefaultMaxConcurrency {
		t.Fatalf("expected defaulted concurrency, got %d", beta.MaxConcurrency)
	}

	all, err := catalog.Profiles(ctx)
	if err != nil {
		t.Fatalf("Profiles: %v", err)
	}
	if len(all) != 2 || all[0].ID != "acme" || all[1].ID != "beta" {
		t.Fatalf("expected sorted profiles, got %+v", all)
	}
}

func TestCatalog_LoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "carriers.yaml")
	if err := os.WriteFile(path, []byte(fixtureYAML), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	catalog := NewCatalog()
	if err := catalog.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if _, err := catalog.Profile(context.Background(), "acme"); err != nil {
		t.Fatalf("Profile: %v", err)
	}

	if err := catalog.LoadFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("expected missing file error")
	}
}

func TestCatalog_LoadBytesRejectsInvalidDocuments(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{name: "not yaml", raw: "carriers: [", want: "parse yaml"},
		{name: "empty document", raw: "carriers: []", want: "no carriers"},
		{
			name: "bad duration",
			raw: `
carriers:
  - id: acme
    token_url: https://sts.acme.test/token
    transfer_url: https://transfer.acme.test/soap
    request_timeout: soon
`,
			want: "request_timeout",
		},
		{
			name: "missing transfer url",
			raw: `
carriers:
  - id: acme
    token_url: https://sts.acme.test/token
`,
			want: "transfer url",
		},
		{
			name: "consumer id required",
			raw: `
carriers:
  - id: acme
    token_url: https://sts.acme.test/token
    transfer_url: https://transfer.acme.test/soap
    requires_consumer_id: true
`,
			want: "consumer id",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := NewCatalog().LoadBytes([]byte(tc.raw))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestCatalog_DuplicateRegistrationRejected(t *testing.T) {
	catalog := NewCatalog()
	profile := core.CarrierProfile{
		ID:          "acme",
		TokenURL:    "https://sts.acme.test/token",
		TransferURL: "https://transfer.acme.test/soap",
	}
	if err := catalog.Register(profile); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := catalog.Register(profile); err == nil {
		t.Fatal("expected duplicate rejection")
	}
	if _, err := catalog.Profile(context.Background(), "ghost"); !errors.Is(err, core.ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
}
