package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
)

// Service is the composition root for carrier document retrieval. It owns
// profile resolution, batch lifecycle bookkeeping, and the journal; the
// per-request machinery (token negotiation, transfer calls, parsing, rate
// control) is injected behind the contracts in this package.
type Service struct {
	config            Config
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

type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	ErrorFactory      ErrorFactory
	ErrorMapper       ErrorMapper
	SecretProvider    SecretProvider
	PersistenceClient any
	RepositoryFactory any
	ConfigProvider    ConfigProvider
	OptionsResolver   OptionsResolver
	ProfileSource     ProfileSource
	CredentialSource  CredentialSource
	TokenSource       TokenSource
	TokenNegotiator   TokenNegotiator
	TransferService   TransferService
	BatchRunner       BatchRunner
	TransportAdapter  TransportAdapter
	DocumentArchive   DocumentArchive
	JournalStore      JournalStore
	BatchStore        BatchStore
	ActivitySink      ActivitySink
	CompletionHandler CompletionHandler
	ConcurrencyGate   ConcurrencyGate
	RequestPacer      RequestPacer
	BackoffScheduler  BackoffScheduler
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("carriers", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("carriers"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.profileSource == nil {
		builder.profileSource = NewProfileRegistry()
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if (builder.journalStore == nil || builder.batchStore == nil) && builder.repositoryFactory != nil {
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			storeProvider, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			if storeProvider != nil {
				if builder.journalStore == nil {
					builder.journalStore = storeProvider.JournalStore()
				}
				if builder.batchStore == nil {
					builder.batchStore = storeProvider.BatchStore()
				}
			}
		} else if storeProvider, ok := builder.repositoryFactory.(StoreProvider); ok {
			if builder.journalStore == nil {
				builder.journalStore = storeProvider.JournalStore()
			}
			if builder.batchStore == nil {
				builder.batchStore = storeProvider.BatchStore()
			}
		}
	}
	if builder.activitySink == nil && builder.repositoryFactory != nil {
		if provider, ok := builder.repositoryFactory.(interface{ ActivitySink() ActivitySink }); ok {
			builder.activitySink = provider.ActivitySink()
		}
	}
	if builder.journalStore == nil {
		builder.journalStore = NewMemoryJournalStore()
	}
	if builder.batchStore == nil {
		builder.batchStore = NewMemoryBatchStore()
	}
	if builder.backoffScheduler == nil {
		builder.backoffScheduler = ExponentialBackoffScheduler{
			Initial: finalConfig.Retry.InitialBackoff,
			Max:     finalConfig.Retry.MaxBackoff,
		}
	}

	return &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorFactory:      builder.errorFactory,
		errorMapper:       builder.errorMapper,
		secretProvider:    builder.secretProvider,
		persistenceClient: builder.persistenceClient,
		repositoryFactory: builder.repositoryFactory,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		profileSource:     builder.profileSource,
		credentialSource:  builder.credentialSource,
		tokenSource:       builder.tokenSource,
		tokenNegotiator:   builder.tokenNegotiator,
		transferService:   builder.transferService,
		batchRunner:       builder.batchRunner,
		transport:         builder.transport,
		archive:           builder.archive,
		journalStore:      builder.journalStore,
		batchStore:        builder.batchStore,
		activitySink:      builder.activitySink,
		completionHandler: builder.completionHandler,
		gate:              builder.gate,
		pacer:             builder.pacer,
		backoffScheduler:  builder.backoffScheduler,
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:            s.logger,
		LoggerProvider:    s.loggerProvider,
		MetricsRecorder:   s.metricsRecorder,
		ErrorFactory:      s.errorFactory,
		ErrorMapper:       s.errorMapper,
		SecretProvider:    s.secretProvider,
		PersistenceClient: s.persistenceClient,
		RepositoryFactory: s.repositoryFactory,
		ConfigProvider:    s.configProvider,
		OptionsResolver:   s.optionsResolver,
		ProfileSource:     s.profileSource,
		CredentialSource:  s.credentialSource,
		TokenSource:       s.tokenSource,
		TokenNegotiator:   s.tokenNegotiator,
		TransferService:   s.transferService,
		BatchRunner:       s.batchRunner,
		TransportAdapter:  s.transport,
		DocumentArchive:   s.archive,
		JournalStore:      s.journalStore,
		BatchStore:        s.batchStore,
		ActivitySink:      s.activitySink,
		CompletionHandler: s.completionHandler,
		ConcurrencyGate:   s.gate,
		RequestPacer:      s.pacer,
		BackoffScheduler:  s.backoffScheduler,
	}
}

// RegisterProfile adds a carrier profile to the configured source. The source
// must accept registrations; the YAML catalog and the in-memory registry both
// do.
func (s *Service) RegisterProfile(ctx context.Context, profile CarrierProfile) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"carrier_id": profile.ID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "register_profile", err, fields)
	}()

	if s == nil || s.profileSource == nil {
		err = fmt.Errorf("core: profile source unavailable")
		return err
	}
	registrar, ok := s.profileSource.(interface{ Register(CarrierProfile) error })
	if !ok {
		err = s.mapError(fmt.Errorf("core: profile source does not accept registrations"))
		return err
	}
	if err = registrar.Register(profile); err != nil {
		err = s.mapError(err)
		return err
	}
	return nil
}

func (s *Service) Profile(ctx context.Context, carrierID string) (CarrierProfile, error) {
	return s.resolveProfile(ctx, carrierID)
}

func (s *Service) Profiles(ctx context.Context) ([]CarrierProfile, error) {
	if s == nil || s.profileSource == nil {
		return nil, fmt.Errorf("core: profile source unavailable")
	}
	profiles, err := s.profileSource.Profiles(ctx)
	if err != nil {
		return nil, s.mapError(err)
	}
	return profiles, nil
}

// Session resolves the carrier profile and binds it to the shared token
// source and transfer service. Sessions are cheap; build one per unit of
// work rather than caching them.
func (s *Service) Session(ctx context.Context, carrierID string) (*CarrierSession, error) {
	profile, err := s.resolveProfile(ctx, carrierID)
	if err != nil {
		return nil, err
	}
	if s.tokenSource == nil {
		return nil, s.mapError(fmt.Errorf("core: token source is required"))
	}
	if s.transferService == nil {
		return nil, s.mapError(fmt.Errorf("core: transfer service is required"))
	}
	return NewCarrierSession(profile, s.tokenSource, s.transferService), nil
}

// ListShipments asks the carrier which shipments are waiting without
// downloading any of them.
func (s *Service) ListShipments(ctx context.Context, carrierID string) (shipments []ShipmentDescriptor, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"carrier_id": carrierID,
	}
	defer func() {
		fields["shipments"] = len(shipments)
		s.observeOperation(ctx, startedAt, "list_shipments", err, fields)
	}()

	session, err := s.Session(ctx, carrierID)
	if err != nil {
		return nil, err
	}
	shipments, err = session.ListShipments(ctx)
	if err != nil {
		err = s.mapError(err)
		return nil, err
	}
	return shipments, nil
}

type DownloadBatchRequest struct {
	CarrierID string
	BatchID   string
	Shipments []ShipmentDescriptor
	// IncludeDelivered forces shipments the journal already marks delivered
	// back into the run.
	IncludeDelivered bool
}

// DownloadBatch runs one batch against a carrier. Per-shipment failures land
// inside the result; the call itself errors only when the carrier is
// unusable as a whole, such as exhausted authentication or an unreachable
// endpoint.
func (s *Service) DownloadBatch(ctx context.Context, req DownloadBatchRequest) (result BatchResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"carrier_id": req.CarrierID,
	}
	defer func() {
		if result.BatchID != "" {
			fields["batch_id"] = result.BatchID
		}
		fields["succeeded"] = result.Succeeded
		fields["failed"] = result.Failed
		fields["skipped"] = result.Skipped
		s.observeOperation(ctx, startedAt, "download_batch", err, fields)
	}()

	profile, err := s.resolveProfile(ctx, req.CarrierID)
	if err != nil {
		return BatchResult{}, err
	}
	if s.batchRunner == nil {
		err = s.mapError(fmt.Errorf("core: batch runner is required"))
		return BatchResult{}, err
	}

	for _, shipment := range req.Shipments {
		if validateErr := shipment.Validate(); validateErr != nil {
			err = s.mapError(validateErr)
			return BatchResult{}, err
		}
	}

	batchID := strings.TrimSpace(req.BatchID)
	if batchID == "" {
		batchID = uuid.NewString()
	}

	batch := Batch{
		ID:        batchID,
		CarrierID: profile.ID,
		Status:    BatchStatusRunning,
		Shipments: len(req.Shipments),
		StartedAt: startedAt,
	}
	if s.batchStore != nil {
		created, createErr := s.batchStore.Create(ctx, batch)
		if createErr != nil {
			err = s.mapError(createErr)
			return BatchResult{}, err
		}
		batch = created
	}

	skipDelivered := !s.config.Batch.IncludeDelivered && !req.IncludeDelivered
	result, runErr := s.batchRunner.Run(ctx, BatchRunRequest{
		Profile:       profile,
		BatchID:       batchID,
		Shipments:     req.Shipments,
		SkipDelivered: skipDelivered,
	})
	if result.BatchID == "" {
		result.BatchID = batchID
	}
	if result.CarrierID == "" {
		result.CarrierID = profile.ID
	}

	s.persistBatchOutcome(ctx, batch, result, runErr)
	s.recordBatchActivity(ctx, result, runErr)

	if runErr != nil {
		err = s.mapError(runErr)
		return result, err
	}

	if s.completionHandler != nil {
		if notifyErr := s.completionHandler.OnBatchComplete(ctx, result); notifyErr != nil {
			s.logError(ctx, "batch completion notification failed", map[string]any{
				"carrier_id": result.CarrierID,
				"batch_id":   result.BatchID,
				"error":      notifyErr.Error(),
			})
		}
	}
	return result, nil
}

// AcknowledgeShipment confirms receipt of a shipment outside a batch run,
// typically to replay an acknowledgment that failed after a successful
// download.
func (s *Service) AcknowledgeShipment(ctx context.Context, carrierID string, shipmentID string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"carrier_id":  carrierID,
		"shipment_id": shipmentID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "acknowledge_shipment", err, fields)
	}()

	shipmentID = strings.TrimSpace(shipmentID)
	if shipmentID == "" {
		err = s.mapError(fmt.Errorf("core: shipment id is required"))
		return err
	}
	session, err := s.Session(ctx, carrierID)
	if err != nil {
		return err
	}
	if err = session.Acknowledge(ctx, shipmentID); err != nil {
		err = s.mapError(err)
		return err
	}

	if s.journalStore != nil {
		entry, getErr := s.journalStore.Get(ctx, session.Profile().ID, shipmentID)
		if getErr == nil {
			if _, upsertErr := s.journalStore.Upsert(ctx, UpsertJournalEntryInput{
				CarrierID:    entry.CarrierID,
				ShipmentID:   entry.ShipmentID,
				BatchID:      entry.BatchID,
				Category:     entry.Category,
				Status:       entry.Status,
				Attempts:     entry.Attempts,
				DocumentIDs:  entry.DocumentIDs,
				LastError:    entry.LastError,
				Acknowledged: true,
			}); upsertErr != nil {
				s.logError(ctx, "journal acknowledgment update failed", map[string]any{
					"carrier_id":  session.Profile().ID,
					"shipment_id": shipmentID,
					"error":       upsertErr.Error(),
				})
			}
		}
	}
	return nil
}

// DeliveryStatus reports the journal entry for one shipment.
func (s *Service) DeliveryStatus(ctx context.Context, carrierID string, shipmentID string) (JournalEntry, error) {
	if s == nil || s.journalStore == nil {
		return JournalEntry{}, fmt.Errorf("core: journal store unavailable")
	}
	entry, err := s.journalStore.Get(ctx, carrierID, shipmentID)
	if err != nil {
		return JournalEntry{}, s.mapError(err)
	}
	return entry, nil
}

// BatchJournal lists the journal entries written during one batch.
func (s *Service) BatchJournal(ctx context.Context, batchID string) ([]JournalEntry, error) {
	if s == nil || s.journalStore == nil {
		return nil, fmt.Errorf("core: journal store unavailable")
	}
	entries, err := s.journalStore.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, s.mapError(err)
	}
	return entries, nil
}

func (s *Service) Batch(ctx context.Context, batchID string) (Batch, error) {
	if s == nil || s.batchStore == nil {
		return Batch{}, fmt.Errorf("core: batch store unavailable")
	}
	batch, err := s.batchStore.Get(ctx, batchID)
	if err != nil {
		return Batch{}, s.mapError(err)
	}
	return batch, nil
}

func (s *Service) Batches(ctx context.Context, carrierID string, limit int) ([]Batch, error) {
	if s == nil || s.batchStore == nil {
		return nil, fmt.Errorf("core: batch store unavailable")
	}
	batches, err := s.batchStore.ListByCarrier(ctx, carrierID, limit)
	if err != nil {
		return nil, s.mapError(err)
	}
	return batches, nil
}

func (s *Service) Activity(ctx context.Context, filter ActivityFilter) (ActivityPage, error) {
	if s == nil || s.activitySink == nil {
		return ActivityPage{}, fmt.Errorf("core: activity sink unavailable")
	}
	page, err := s.activitySink.List(ctx, filter)
	if err != nil {
		return ActivityPage{}, s.mapError(err)
	}
	return page, nil
}

func (s *Service) persistBatchOutcome(ctx context.Context, batch Batch, result BatchResult, runErr error) {
	if s == nil || s.batchStore == nil {
		return
	}
	now := time.Now().UTC()

	status := result.Status
	if runErr != nil {
		status = BatchStatusAborted
	}
	if status == "" || status == BatchStatusRunning {
		status = BatchStatusAborted
	}
	if transitionErr := batch.TransitionTo(status, now); transitionErr != nil {
		s.logError(ctx, "batch status transition rejected", map[string]any{
			"batch_id": batch.ID,
			"status":   string(status),
			"error":    transitionErr.Error(),
		})
		return
	}

	batch.Shipments = len(result.Tasks) + result.Skipped
	batch.Succeeded = result.Succeeded
	batch.Failed = result.Failed
	batch.Cancelled = result.Cancelled
	batch.Skipped = result.Skipped
	switch {
	case runErr != nil:
		batch.LastError = runErr.Error()
	case len(result.Errors) > 0:
		batch.LastError = result.Errors[len(result.Errors)-1]
	default:
		batch.LastError = ""
	}

	finished := result.FinishedAt
	if finished.IsZero() {
		finished = now
	}
	batch.FinishedAt = &finished

	if _, updateErr := s.batchStore.Update(ctx, batch); updateErr != nil {
		s.logError(ctx, "batch record update failed", map[string]any{
			"batch_id": batch.ID,
			"error":    updateErr.Error(),
		})
	}
}

func (s *Service) recordBatchActivity(ctx context.Context, result BatchResult, runErr error) {
	if s == nil || s.activitySink == nil {
		return
	}
	status := ActivityStatusOK
	switch {
	case runErr != nil, result.Status == BatchStatusFailed, result.Status == BatchStatusAborted:
		status = ActivityStatusError
	case result.Status == BatchStatusPartiallyFailed, result.Status == BatchStatusCancelled, len(result.Warnings) > 0:
		status = ActivityStatusWarn
	}

	metadata := map[string]any{
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
		"cancelled": result.Cancelled,
		"skipped":   result.Skipped,
		"warnings":  len(result.Warnings),
	}
	if runErr != nil {
		metadata["error"] = runErr.Error()
	}

	if recordErr := s.activitySink.Record(ctx, ActivityEntry{
		CarrierID: result.CarrierID,
		BatchID:   result.BatchID,
		Action:    "download_batch",
		Status:    status,
		Metadata:  metadata,
	}); recordErr != nil {
		s.logError(ctx, "activity record failed", map[string]any{
			"carrier_id": result.CarrierID,
			"batch_id":   result.BatchID,
			"error":      recordErr.Error(),
		})
	}
}

func (s *Service) resolveProfile(ctx context.Context, carrierID string) (CarrierProfile, error) {
	if s == nil || s.profileSource == nil {
		return CarrierProfile{}, fmt.Errorf("core: profile source unavailable")
	}
	carrierID = strings.TrimSpace(carrierID)
	profile, err := s.profileSource.Profile(ctx, carrierID)
	if err == nil {
		return profile, nil
	}
	if errors.Is(err, ErrProfileNotFound) {
		wrapped := s.errorFactory(
			fmt.Sprintf("carrier %q is not configured", carrierID),
			goerrors.CategoryNotFound,
		).WithTextCode(CarrierErrorProfileNotFound)
		return CarrierProfile{}, wrapped.WithMetadata(map[string]any{"carrier_id": carrierID})
	}
	return CarrierProfile{}, s.mapError(err)
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}
