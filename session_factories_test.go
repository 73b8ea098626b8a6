package carriers

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-carriers/core"
	"github.com/goliatone/go-carriers/devkit"
)

type staticCredentials struct{}

func (staticCredentials) Credentials(context.Context, string) (core.Credentials, error) {
	return core.Credentials{Username: "agency-1", Password: "secret"}, nil
}

func TestNewSessionFactory_ValidatesInputs(t *testing.T) {
	registry := core.NewProfileRegistry()
	transport := devkit.NewFakeTransport("soap")

	if _, err := NewSessionFactory(DefaultConfig(), nil, staticCredentials{}, transport); err == nil {
		t.Fatalf("expected error for missing profile source")
	}
	if _, err := NewSessionFactory(DefaultConfig(), registry, nil, transport); err == nil {
		t.Fatalf("expected error for missing credential source")
	}
	if _, err := NewSessionFactory(DefaultConfig(), registry, staticCredentials{}, nil); err == nil {
		t.Fatalf("expected error for missing transport")
	}
}

func TestSessionFactory_SessionNegotiatesAndLists(t *testing.T) {
	ctx := context.Background()
	registry := core.NewProfileRegistry()
	if err := registry.Register(devkit.ProfileFixture("acme")); err != nil {
		t.Fatalf("register profile: %v", err)
	}

	issued := time.Now().UTC()
	transport := devkit.NewFakeTransport("soap",
		devkit.TransportScript{Response: core.TransportResponse{
			StatusCode: 200,
			Body:       devkit.STSIssueResponse("tok-1", issued, issued.Add(time.Hour)),
		}},
		devkit.TransportScript{Response: core.TransportResponse{
			StatusCode: 200,
			Body: devkit.ListShipmentsResponse(
				core.ShipmentDescriptor{ID: "shp-1", Category: "policy"},
			),
		}},
	)

	factory, err := NewSessionFactory(DefaultConfig(), registry, staticCredentials{}, transport,
		WithSessionArchive(devkit.NewMemoryArchive()),
		WithSessionJournal(core.NewMemoryJournalStore()),
	)
	if err != nil {
		t.Fatalf("new session factory: %v", err)
	}
	if err := factory.RegisterProfiles(ctx); err != nil {
		t.Fatalf("register profiles: %v", err)
	}

	session, err := factory.Session(ctx, "ACME")
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if session.Profile().ID != "acme" {
		t.Fatalf("expected normalized profile id, got %q", session.Profile().ID)
	}

	shipments, err := session.ListShipments(ctx)
	if err != nil {
		t.Fatalf("list shipments: %v", err)
	}
	if len(shipments) != 1 || shipments[0].ID != "shp-1" {
		t.Fatalf("unexpected shipments %+v", shipments)
	}

	requests := transport.Requests()
	if len(requests) != 2 {
		t.Fatalf("expected token then list request, got %d", len(requests))
	}
	if requests[0].URL != session.Profile().TokenURL {
		t.Fatalf("expected first call against token endpoint, got %q", requests[0].URL)
	}
	if requests[1].URL != session.Profile().TransferURL {
		t.Fatalf("expected second call against transfer endpoint, got %q", requests[1].URL)
	}
}

func TestSessionFactory_TokenIsSharedAcrossSessions(t *testing.T) {
	ctx := context.Background()
	registry := core.NewProfileRegistry()
	if err := registry.Register(devkit.ProfileFixture("acme")); err != nil {
		t.Fatalf("register profile: %v", err)
	}

	issued := time.Now().UTC()
	transport := devkit.NewFakeTransport("soap",
		devkit.TransportScript{Response: core.TransportResponse{
			StatusCode: 200,
			Body:       devkit.STSIssueResponse("tok-1", issued, issued.Add(time.Hour)),
		}},
		devkit.TransportScript{Response: core.TransportResponse{
			StatusCode: 200,
			Body:       devkit.ListShipmentsResponse(),
		}},
	)

	factory, err := NewSessionFactory(DefaultConfig(), registry, staticCredentials{}, transport)
	if err != nil {
		t.Fatalf("new session factory: %v", err)
	}

	first, err := factory.Session(ctx, "acme")
	if err != nil {
		t.Fatalf("first session: %v", err)
	}
	if _, err := first.Token(ctx); err != nil {
		t.Fatalf("first token: %v", err)
	}

	second, err := factory.Session(ctx, "acme")
	if err != nil {
		t.Fatalf("second session: %v", err)
	}
	token, err := second.Token(ctx)
	if err != nil {
		t.Fatalf("second token: %v", err)
	}
	if token.Value != "tok-1" {
		t.Fatalf("expected cached token, got %q", token.Value)
	}

	negotiations := 0
	for _, req := range transport.Requests() {
		if req.URL == first.Profile().TokenURL {
			negotiations++
		}
	}
	if negotiations != 1 {
		t.Fatalf("expected one shared negotiation, got %d", negotiations)
	}
}

type namedLoggerProvider struct {
	logger   core.Logger
	lastName string
}

func (p *namedLoggerProvider) GetLogger(name string) core.Logger {
	p.lastName = name
	return p.logger
}

type recordingLogger struct{}

func (recordingLogger) Trace(string, ...any)                      {}
func (recordingLogger) Debug(string, ...any)                      {}
func (recordingLogger) Info(string, ...any)                       {}
func (recordingLogger) Warn(string, ...any)                       {}
func (recordingLogger) Error(string, ...any)                      {}
func (recordingLogger) Fatal(string, ...any)                      {}
func (l recordingLogger) WithContext(context.Context) core.Logger { return l }

func TestSessionFactory_ResolvesComponentLoggers(t *testing.T) {
	registry := core.NewProfileRegistry()
	transport := devkit.NewFakeTransport("soap")
	provider := &namedLoggerProvider{logger: recordingLogger{}}

	factory, err := NewSessionFactory(DefaultConfig(), registry, staticCredentials{}, transport,
		WithSessionLoggerProvider(provider),
	)
	if err != nil {
		t.Fatalf("new session factory: %v", err)
	}

	if provider.lastName != "carriers" {
		t.Fatalf("expected resolution under the carriers name, got %q", provider.lastName)
	}
	if factory.logger == nil {
		t.Fatalf("expected resolved logger")
	}
	if factory.broker.Logger != factory.logger {
		t.Fatalf("expected broker to share the factory logger")
	}
	if factory.limiter.Logger != factory.logger {
		t.Fatalf("expected limiter to share the factory logger")
	}
	if factory.orchestrator.Logger != factory.logger {
		t.Fatalf("expected orchestrator to share the factory logger")
	}

	if factory.CarrierLogger("ACME") == nil {
		t.Fatalf("expected per-carrier logger")
	}
	if provider.lastName != "carriers.acme" {
		t.Fatalf("expected per-carrier logger name, got %q", provider.lastName)
	}

	bare, err := NewSessionFactory(DefaultConfig(), registry, staticCredentials{}, transport)
	if err != nil {
		t.Fatalf("new session factory: %v", err)
	}
	if bare.logger == nil {
		t.Fatalf("expected nop logger fallback when none is configured")
	}
}

func TestNewDefaultService_WiresFactoryRuntime(t *testing.T) {
	ctx := context.Background()
	registry := core.NewProfileRegistry()
	if err := registry.Register(devkit.ProfileFixture("acme")); err != nil {
		t.Fatalf("register profile: %v", err)
	}

	transport := devkit.NewFakeTransport("soap")
	factory, err := NewSessionFactory(DefaultConfig(), registry, staticCredentials{}, transport,
		WithSessionArchive(devkit.NewMemoryArchive()),
	)
	if err != nil {
		t.Fatalf("new session factory: %v", err)
	}

	service, err := NewDefaultService(DefaultConfig(), factory)
	if err != nil {
		t.Fatalf("new default service: %v", err)
	}

	profiles, err := service.Profiles(ctx)
	if err != nil {
		t.Fatalf("profiles: %v", err)
	}
	if len(profiles) != 1 || profiles[0].ID != "acme" {
		t.Fatalf("unexpected profiles %+v", profiles)
	}

	deps := service.Dependencies()
	if deps.BatchRunner == nil || deps.TokenSource == nil || deps.ConcurrencyGate == nil {
		t.Fatalf("expected factory runtime wired into service dependencies")
	}

	if _, err := NewDefaultService(DefaultConfig(), nil); err == nil {
		t.Fatalf("expected error for missing factory")
	}
}
