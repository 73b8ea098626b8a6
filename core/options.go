package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig     Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	secretProvider    SecretProvider
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	profileSource     ProfileSource
	credentialSource  CredentialSource
	tokenSource       TokenSource
	tokenNegotiator   TokenNegotiator
	transferService   TransferService
	batchRunner       BatchRunner
	transport         TransportAdapter
	archive           DocumentArchive
	journalStore      JournalStore
	batchStore        BatchStore
	activitySink      ActivitySink
	completionHandler CompletionHandler
	gate              ConcurrencyGate
	pacer             RequestPacer
	backoffScheduler  BackoffScheduler
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorFactory(factory ErrorFactory) Option {
	return func(b *serviceBuilder) {
		b.errorFactory = factory
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithSecretProvider(provider SecretProvider) Option {
	return func(b *serviceBuilder) {
		b.secretProvider = provider
	}
}

func WithPersistenceClient(client any) Option {
	return func(b *serviceBuilder) {
		b.persistenceClient = client
	}
}

func WithRepositoryFactory(factory any) Option {
	return func(b *serviceBuilder) {
		b.repositoryFactory = factory
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithProfileSource(source ProfileSource) Option {
	return func(b *serviceBuilder) {
		b.profileSource = source
	}
}

func WithCredentialSource(source CredentialSource) Option {
	return func(b *serviceBuilder) {
		b.credentialSource = source
	}
}

func WithTokenSource(source TokenSource) Option {
	return func(b *serviceBuilder) {
		b.tokenSource = source
	}
}

func WithTokenNegotiator(negotiator TokenNegotiator) Option {
	return func(b *serviceBuilder) {
		b.tokenNegotiator = negotiator
	}
}

func WithTransferService(service TransferService) Option {
	return func(b *serviceBuilder) {
		b.transferService = service
	}
}

func WithBatchRunner(runner BatchRunner) Option {
	return func(b *serviceBuilder) {
		b.batchRunner = runner
	}
}

func WithTransportAdapter(adapter TransportAdapter) Option {
	return func(b *serviceBuilder) {
		b.transport = adapter
	}
}

func WithDocumentArchive(archive DocumentArchive) Option {
	return func(b *serviceBuilder) {
		b.archive = archive
	}
}

func WithJournalStore(store JournalStore) Option {
	return func(b *serviceBuilder) {
		b.journalStore = store
	}
}

func WithBatchStore(store BatchStore) Option {
	return func(b *serviceBuilder) {
		b.batchStore = store
	}
}

func WithActivitySink(sink ActivitySink) Option {
	return func(b *serviceBuilder) {
		b.activitySink = sink
	}
}

func WithCompletionHandler(handler CompletionHandler) Option {
	return func(b *serviceBuilder) {
		b.completionHandler = handler
	}
}

func WithConcurrencyGate(gate ConcurrencyGate) Option {
	return func(b *serviceBuilder) {
		b.gate = gate
	}
}

func WithRequestPacer(pacer RequestPacer) Option {
	return func(b *serviceBuilder) {
		b.pacer = pacer
	}
}

func WithBackoffScheduler(scheduler BackoffScheduler) Option {
	return func(b *serviceBuilder) {
		b.backoffScheduler = scheduler
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("carriers", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorFactory:    goerrors.New,
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return carrierErrorMapper(err)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}

	token := map[string]any{}
	if includeZero || cfg.Token.SafetyMargin > 0 {
		token["safety_margin"] = cfg.Token.SafetyMargin
	}
	if includeZero || cfg.Token.NegotiationAttempts > 0 {
		token["negotiation_attempts"] = cfg.Token.NegotiationAttempts
	}
	if includeZero || cfg.Token.NegotiationBackoff > 0 {
		token["negotiation_backoff"] = cfg.Token.NegotiationBackoff
	}
	if includeZero || cfg.Token.NegotiationMaxBackoff > 0 {
		token["negotiation_max_backoff"] = cfg.Token.NegotiationMaxBackoff
	}
	if len(token) > 0 {
		layer["token"] = token
	}

	retry := map[string]any{}
	if includeZero || cfg.Retry.MaxAttempts > 0 {
		retry["max_attempts"] = cfg.Retry.MaxAttempts
	}
	if includeZero || cfg.Retry.InitialBackoff > 0 {
		retry["initial_backoff"] = cfg.Retry.InitialBackoff
	}
	if includeZero || cfg.Retry.MaxBackoff > 0 {
		retry["max_backoff"] = cfg.Retry.MaxBackoff
	}
	if includeZero || cfg.Retry.MaxThrottleRetries > 0 {
		retry["max_throttle_retries"] = cfg.Retry.MaxThrottleRetries
	}
	if len(retry) > 0 {
		layer["retry"] = retry
	}

	throttle := map[string]any{}
	if includeZero || cfg.Throttle.InitialBackoff > 0 {
		throttle["initial_backoff"] = cfg.Throttle.InitialBackoff
	}
	if includeZero || cfg.Throttle.MaxBackoff > 0 {
		throttle["max_backoff"] = cfg.Throttle.MaxBackoff
	}
	if includeZero || cfg.Throttle.SuccessStreakThreshold > 0 {
		throttle["success_streak_threshold"] = cfg.Throttle.SuccessStreakThreshold
	}
	if len(throttle) > 0 {
		layer["throttle"] = throttle
	}

	batch := map[string]any{}
	if includeZero || cfg.Batch.IncludeDelivered {
		batch["include_delivered"] = cfg.Batch.IncludeDelivered
	}
	if includeZero || cfg.Batch.MaxResponseBytes > 0 {
		batch["max_response_bytes"] = cfg.Batch.MaxResponseBytes
	}
	if len(batch) > 0 {
		layer["batch"] = batch
	}

	return layer
}
