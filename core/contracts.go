package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// TokenSource yields valid security tokens for a carrier. Acquire returns a
// cached token while it is still outside the safety margin and otherwise
// negotiates a fresh one; concurrent callers share a single negotiation.
type TokenSource interface {
	Acquire(ctx context.Context, carrierID string) (SecurityToken, error)
	Invalidate(carrierID string)
}

// TokenNegotiator performs one negotiation against a carrier STS.
type TokenNegotiator interface {
	Negotiate(ctx context.Context, profile CarrierProfile) (SecurityToken, error)
}

// Credentials are supplied by the secrets collaborator, never embedded in
// profiles.
type Credentials struct {
	Username string
	Password string
}

type CredentialSource interface {
	Credentials(ctx context.Context, carrierID string) (Credentials, error)
}

// TransferService is the SOAP transfer surface of a carrier backend.
type TransferService interface {
	ListShipments(ctx context.Context, token SecurityToken, profile CarrierProfile) ([]ShipmentDescriptor, error)
	GetShipment(ctx context.Context, token SecurityToken, profile CarrierProfile, shipmentID string) (raw []byte, boundary string, err error)
	AcknowledgeShipment(ctx context.Context, token SecurityToken, profile CarrierProfile, shipmentID string) error
}

// DocumentArchive is the downstream storage collaborator. Called once per
// successfully parsed shipment part.
type DocumentArchive interface {
	Store(ctx context.Context, binary []byte, meta DocumentMeta) (string, error)
}

type CallOutcome string

const (
	CallOutcomeSuccess   CallOutcome = "success"
	CallOutcomeThrottled CallOutcome = "throttled"
)

// ConcurrencyGate is the adaptive rate limiter surface the orchestrator
// drives. Prepare sizes the carrier's initial allowance for a batch, Permit
// blocks until a slot is free and any backoff window elapsed, and OnResult
// feeds explicit call outcomes back into the controller.
type ConcurrencyGate interface {
	Prepare(carrierID string, shipmentCount int)
	Permit(ctx context.Context, carrierID string) error
	Release(carrierID string)
	OnResult(ctx context.Context, carrierID string, outcome CallOutcome)
	Allowance(carrierID string) int
}

// RequestPacer optionally spaces requests to honor a carrier's
// requests-per-second ceiling. Implementations must be safe for concurrent
// use; a nil pacer means unpaced.
type RequestPacer interface {
	Wait(ctx context.Context, carrierID string) error
}

// ProfileSource supplies carrier profiles from configuration.
type ProfileSource interface {
	Profile(ctx context.Context, carrierID string) (CarrierProfile, error)
	Profiles(ctx context.Context) ([]CarrierProfile, error)
}

// CompletionHandler receives the batch result once a run finishes. Errors are
// logged, never propagated into the batch outcome.
type CompletionHandler interface {
	OnBatchComplete(ctx context.Context, result BatchResult) error
}

type BatchRunRequest struct {
	Profile       CarrierProfile
	BatchID       string
	Shipments     []ShipmentDescriptor
	SkipDelivered bool
}

// BatchRunner executes the download work for one batch: listing when the
// request carries no explicit shipments, fanning out fetches under the
// concurrency gate, and folding per-task outcomes into a BatchResult. It
// returns an error only when the whole run is unusable, not when individual
// shipments fail.
type BatchRunner interface {
	Run(ctx context.Context, req BatchRunRequest) (BatchResult, error)
}

type TransportRequest struct {
	Method               string
	URL                  string
	Headers              map[string]string
	Query                map[string]string
	Body                 []byte
	Metadata             map[string]any
	Timeout              time.Duration
	Idempotency          string
	MaxResponseBodyBytes int64
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

type CommandDispatcher interface {
	Dispatch(ctx context.Context, msg any) error
}

type UpsertJournalEntryInput struct {
	CarrierID    string
	ShipmentID   string
	BatchID      string
	Category     string
	Status       JournalStatus
	Attempts     int
	DocumentIDs  []string
	LastError    string
	Acknowledged bool
}

// JournalStore persists per-shipment delivery outcomes so repeated batches
// skip already-delivered shipments.
type JournalStore interface {
	Get(ctx context.Context, carrierID string, shipmentID string) (JournalEntry, error)
	Upsert(ctx context.Context, in UpsertJournalEntryInput) (JournalEntry, error)
	ListByBatch(ctx context.Context, batchID string) ([]JournalEntry, error)
}

// BatchStore persists batch bookkeeping records.
type BatchStore interface {
	Create(ctx context.Context, batch Batch) (Batch, error)
	Get(ctx context.Context, id string) (Batch, error)
	Update(ctx context.Context, batch Batch) (Batch, error)
	ListByCarrier(ctx context.Context, carrierID string, limit int) ([]Batch, error)
}

// ActivitySink records operational activity entries for auditing.
type ActivitySink interface {
	Record(ctx context.Context, entry ActivityEntry) error
	List(ctx context.Context, filter ActivityFilter) (ActivityPage, error)
}

// StoreProvider hands out persistence-backed stores. Repository factories
// either implement it directly or build one from a persistence client.
type StoreProvider interface {
	JournalStore() JournalStore
	BatchStore() BatchStore
}

type RepositoryStoreFactory interface {
	BuildStores(client any) (StoreProvider, error)
}

type JobExecutionMessage struct {
	JobID          string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}
