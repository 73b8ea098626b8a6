package carriers

import "github.com/goliatone/go-carriers/core"

type Config = core.Config

type TokenConfig = core.TokenConfig
type RetryConfig = core.RetryConfig
type ThrottleConfig = core.ThrottleConfig
type BatchConfig = core.BatchConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type ProfileSource = core.ProfileSource
type CredentialSource = core.CredentialSource
type TokenSource = core.TokenSource
type TokenNegotiator = core.TokenNegotiator
type TransferService = core.TransferService
type BatchRunner = core.BatchRunner
type TransportAdapter = core.TransportAdapter
type DocumentArchive = core.DocumentArchive
type JournalStore = core.JournalStore
type BatchStore = core.BatchStore
type ActivitySink = core.ActivitySink
type CompletionHandler = core.CompletionHandler
type ConcurrencyGate = core.ConcurrencyGate
type RequestPacer = core.RequestPacer
type SecretProvider = core.SecretProvider

type CarrierProfile = core.CarrierProfile
type SecurityToken = core.SecurityToken
type ShipmentDescriptor = core.ShipmentDescriptor
type DocumentMeta = core.DocumentMeta
type ShipmentPayload = core.ShipmentPayload
type Batch = core.Batch
type BatchResult = core.BatchResult
type TaskResult = core.TaskResult
type JournalEntry = core.JournalEntry
type ActivityEntry = core.ActivityEntry
type ActivityFilter = core.ActivityFilter
type ActivityPage = core.ActivityPage

type DownloadBatchRequest = core.DownloadBatchRequest

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorFactory      = core.WithErrorFactory
	WithErrorMapper       = core.WithErrorMapper
	WithSecretProvider    = core.WithSecretProvider
	WithPersistenceClient = core.WithPersistenceClient
	WithRepositoryFactory = core.WithRepositoryFactory
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithProfileSource     = core.WithProfileSource
	WithCredentialSource  = core.WithCredentialSource
	WithTokenSource       = core.WithTokenSource
	WithTokenNegotiator   = core.WithTokenNegotiator
	WithTransferService   = core.WithTransferService
	WithBatchRunner       = core.WithBatchRunner
	WithTransportAdapter  = core.WithTransportAdapter
	WithDocumentArchive   = core.WithDocumentArchive
	WithJournalStore      = core.WithJournalStore
	WithBatchStore        = core.WithBatchStore
	WithActivitySink      = core.WithActivitySink
	WithCompletionHandler = core.WithCompletionHandler
	WithConcurrencyGate   = core.WithConcurrencyGate
	WithRequestPacer      = core.WithRequestPacer
	WithBackoffScheduler  = core.WithBackoffScheduler
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
