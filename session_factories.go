package carriers

import (
	"context"
	"fmt"

	"github.com/goliatone/go-carriers/adapters/gologger"
	"github.com/goliatone/go-carriers/core"
	"github.com/goliatone/go-carriers/download"
	"github.com/goliatone/go-carriers/ratelimit"
	"github.com/goliatone/go-carriers/token"
	"github.com/goliatone/go-carriers/transfer"
)

// SessionFactory assembles the per-carrier runtime from a profile source,
// a credential source, and a transport adapter: the token broker, the
// adaptive limiter, the request pacer, the transfer client, and the batch
// orchestrator all share one factory.
type SessionFactory struct {
	config      core.Config
	profiles    core.ProfileSource
	credentials core.CredentialSource
	transport   core.TransportAdapter

	archive        core.DocumentArchive
	journal        core.JournalStore
	stateStore     ratelimit.StateStore
	logger         core.Logger
	loggerProvider core.LoggerProvider
	metrics        core.MetricsRecorder

	broker       *token.Broker
	limiter      *ratelimit.AdaptiveLimiter
	pacer        *ratelimit.Pacer
	client       *transfer.Client
	orchestrator *download.Orchestrator
}

type SessionFactoryOption func(*SessionFactory)

func WithSessionArchive(archive core.DocumentArchive) SessionFactoryOption {
	return func(f *SessionFactory) {
		f.archive = archive
	}
}

func WithSessionJournal(store core.JournalStore) SessionFactoryOption {
	return func(f *SessionFactory) {
		f.journal = store
	}
}

// WithSessionStateStore persists limiter snapshots across restarts.
func WithSessionStateStore(store ratelimit.StateStore) SessionFactoryOption {
	return func(f *SessionFactory) {
		f.stateStore = store
	}
}

func WithSessionLogger(logger core.Logger) SessionFactoryOption {
	return func(f *SessionFactory) {
		f.logger = logger
	}
}

// WithSessionLoggerProvider resolves component loggers by name through the
// provider; it takes precedence over WithSessionLogger.
func WithSessionLoggerProvider(provider core.LoggerProvider) SessionFactoryOption {
	return func(f *SessionFactory) {
		f.loggerProvider = provider
	}
}

func WithSessionMetrics(recorder core.MetricsRecorder) SessionFactoryOption {
	return func(f *SessionFactory) {
		f.metrics = recorder
	}
}

func NewSessionFactory(
	cfg core.Config,
	profiles core.ProfileSource,
	credentials core.CredentialSource,
	transportAdapter core.TransportAdapter,
	opts ...SessionFactoryOption,
) (*SessionFactory, error) {
	if profiles == nil {
		return nil, fmt.Errorf("carriers: profile source is required")
	}
	if credentials == nil {
		return nil, fmt.Errorf("carriers: credential source is required")
	}
	if transportAdapter == nil {
		return nil, fmt.Errorf("carriers: transport adapter is required")
	}

	factory := &SessionFactory{
		config:      cfg,
		profiles:    profiles,
		credentials: credentials,
		transport:   transportAdapter,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(factory)
	}
	factory.loggerProvider, factory.logger = gologger.ResolveCarrier(factory.loggerProvider, factory.logger)

	negotiator := token.NewSTSClient(transportAdapter, credentials)
	factory.broker = token.NewBroker(negotiator, profiles, cfg.Token)
	factory.broker.Logger = factory.logger
	factory.broker.Metrics = factory.metrics

	factory.limiter = ratelimit.NewAdaptiveLimiter(cfg.Throttle)
	factory.limiter.Store = factory.stateStore
	factory.limiter.Logger = factory.logger
	factory.limiter.Metrics = factory.metrics

	factory.pacer = ratelimit.NewPacer()
	factory.client = transfer.NewClient(transportAdapter)

	factory.orchestrator = download.NewOrchestrator(factory.broker, factory.client, factory.limiter, factory.archive)
	factory.orchestrator.Pacer = factory.pacer
	factory.orchestrator.Journal = factory.journal
	factory.orchestrator.Logger = factory.logger
	factory.orchestrator.Metrics = factory.metrics
	factory.orchestrator.Retry = cfg.Retry

	return factory, nil
}

// RegisterProfiles seeds the limiter and pacer with every profile the source
// knows. Call again after profile changes; registration is idempotent.
func (f *SessionFactory) RegisterProfiles(ctx context.Context) error {
	if f == nil {
		return fmt.Errorf("carriers: session factory is nil")
	}
	profiles, err := f.profiles.Profiles(ctx)
	if err != nil {
		return err
	}
	for _, profile := range profiles {
		f.limiter.RegisterProfile(profile)
		f.pacer.RegisterProfile(profile)
	}
	return nil
}

// Session resolves the carrier's profile and binds it to the shared token
// broker and transfer client.
func (f *SessionFactory) Session(ctx context.Context, carrierID string) (*core.CarrierSession, error) {
	if f == nil {
		return nil, fmt.Errorf("carriers: session factory is nil")
	}
	profile, err := f.profiles.Profile(ctx, carrierID)
	if err != nil {
		return nil, err
	}
	return core.NewCarrierSession(profile, f.broker, f.client), nil
}

// CarrierLogger returns a logger named carriers.<id> for per-carrier
// collaborators such as completion notifiers.
func (f *SessionFactory) CarrierLogger(carrierID string) core.Logger {
	if f == nil {
		return gologger.ForCarrier(nil, nil, carrierID)
	}
	return gologger.ForCarrier(f.loggerProvider, f.logger, carrierID)
}

func (f *SessionFactory) TokenSource() core.TokenSource {
	if f == nil {
		return nil
	}
	return f.broker
}

func (f *SessionFactory) Limiter() *ratelimit.AdaptiveLimiter {
	if f == nil {
		return nil
	}
	return f.limiter
}

func (f *SessionFactory) Pacer() *ratelimit.Pacer {
	if f == nil {
		return nil
	}
	return f.pacer
}

func (f *SessionFactory) TransferService() core.TransferService {
	if f == nil {
		return nil
	}
	return f.client
}

func (f *SessionFactory) Orchestrator() *download.Orchestrator {
	if f == nil {
		return nil
	}
	return f.orchestrator
}

// ServiceOptions exposes the assembled runtime as service options so a host
// can do NewService(cfg, factory.ServiceOptions()...) and still append its
// own overrides.
func (f *SessionFactory) ServiceOptions() []core.Option {
	if f == nil {
		return nil
	}
	opts := []core.Option{
		core.WithProfileSource(f.profiles),
		core.WithCredentialSource(f.credentials),
		core.WithTransportAdapter(f.transport),
		core.WithTokenSource(f.broker),
		core.WithTransferService(f.client),
		core.WithConcurrencyGate(f.limiter),
		core.WithRequestPacer(f.pacer),
		core.WithBatchRunner(f.orchestrator),
	}
	if f.archive != nil {
		opts = append(opts, core.WithDocumentArchive(f.archive))
	}
	if f.journal != nil {
		opts = append(opts, core.WithJournalStore(f.journal))
	}
	return opts
}

// NewDefaultService builds a service on top of a fully assembled session
// factory. Extra options run after the factory's wiring and win conflicts.
func NewDefaultService(cfg Config, factory *SessionFactory, opts ...Option) (*Service, error) {
	if factory == nil {
		return nil, fmt.Errorf("carriers: session factory is required")
	}
	combined := append(factory.ServiceOptions(), opts...)
	return core.NewService(cfg, combined...)
}
