package adapters_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-command"
	job "github.com/goliatone/go-job"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-carriers/adapters/gocommand"
	"github.com/goliatone/go-carriers/adapters/gojob"
	"github.com/goliatone/go-carriers/adapters/gologger"
	carriercommand "github.com/goliatone/go-carriers/command"
	"github.com/goliatone/go-carriers/core"
)

func TestRuntimeCompatibility_GoJobGoCommandGoLogger(t *testing.T) {
	ctx := context.Background()

	logger := &compatLogger{}
	provider := &compatProvider{logger: logger}

	_, _, jobProvider, jobLogger := gologger.ResolveForJob("carriers", provider, nil)
	if jobProvider == nil || jobLogger == nil {
		t.Fatalf("expected go-job logger bridges")
	}

	enqueueProbe := &compatEnqueuer{}
	enqueueAdapter := gojob.NewEnqueuerAdapter(enqueueProbe)
	if err := enqueueAdapter.Enqueue(ctx, &core.JobExecutionMessage{
		JobID:          gojob.JobIDBatchDownload,
		Parameters:     map[string]any{"carrier_id": "acme"},
		IdempotencyKey: "idem_1",
		DedupPolicy:    "drop",
	}); err != nil {
		t.Fatalf("enqueue via gojob adapter: %v", err)
	}
	if enqueueProbe.last == nil || enqueueProbe.last.JobID != gojob.JobIDBatchDownload {
		t.Fatalf("expected go-job message mapping through enqueuer adapter")
	}

	queueRegistry := jobqueuecommand.NewRegistry()
	commandAdapter := gocommand.NewRegistryAdapter(command.NewRegistry())
	if err := commandAdapter.AddQueueResolver("queue", queueRegistry); err != nil {
		t.Fatalf("add queue resolver: %v", err)
	}
	if err := commandAdapter.RegisterCommand(command.CommandFunc[compatMessage](func(context.Context, compatMessage) error {
		return nil
	})); err != nil {
		t.Fatalf("register command: %v", err)
	}
	if err := commandAdapter.Initialize(); err != nil {
		t.Fatalf("initialize command registry: %v", err)
	}
	if _, ok := queueRegistry.Get("carriers.compat.command"); !ok {
		t.Fatalf("expected command resolver hook to mirror command into go-job queue registry")
	}
}

func TestRuntimeCompatibility_CarrierCommandsDispatchThroughWrappers(t *testing.T) {
	svc := &compatMutatingService{}
	tokens := &compatTokenInvalidator{}
	adapter := gocommand.NewRegistryAdapter(command.NewRegistry())

	ackSub, err := gocommand.RegisterAndSubscribe(adapter, carriercommand.NewAcknowledgeShipmentCommand(svc))
	if err != nil {
		t.Fatalf("register acknowledge wrapper: %v", err)
	}
	defer ackSub.Unsubscribe()

	tokenSub, err := gocommand.RegisterAndSubscribe(adapter, carriercommand.NewInvalidateTokenCommand(tokens))
	if err != nil {
		t.Fatalf("register token wrapper: %v", err)
	}
	defer tokenSub.Unsubscribe()

	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize adapter: %v", err)
	}

	if err := gocommand.Dispatch(context.Background(), carriercommand.AcknowledgeShipmentMessage{
		CarrierID:  "acme",
		ShipmentID: "shp-1",
	}); err != nil {
		t.Fatalf("dispatch acknowledge message: %v", err)
	}
	if svc.acknowledgeCalls != 1 || svc.lastCarrierID != "acme" || svc.lastShipmentID != "shp-1" {
		t.Fatalf("expected acknowledge wrapper invocation through dispatch")
	}

	if err := gocommand.Dispatch(context.Background(), carriercommand.InvalidateTokenMessage{
		CarrierID: "acme",
	}); err != nil {
		t.Fatalf("dispatch invalidate message: %v", err)
	}
	if tokens.invalidateCalls != 1 || tokens.lastCarrierID != "acme" {
		t.Fatalf("expected token wrapper invocation through dispatch")
	}
}

type compatMessage struct{}

func (compatMessage) Type() string { return "carriers.compat.command" }

type compatEnqueuer struct {
	last *job.ExecutionMessage
}

func (e *compatEnqueuer) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	e.last = msg
	return nil
}

type compatProvider struct {
	logger glog.Logger
}

func (p *compatProvider) GetLogger(string) glog.Logger {
	if p == nil || p.logger == nil {
		return glog.Nop()
	}
	return p.logger
}

type compatLogger struct{}

func (compatLogger) Trace(string, ...any)                    {}
func (compatLogger) Debug(string, ...any)                    {}
func (compatLogger) Info(string, ...any)                     {}
func (compatLogger) Warn(string, ...any)                     {}
func (compatLogger) Error(string, ...any)                    {}
func (compatLogger) Fatal(string, ...any)                    {}
func (compatLogger) WithContext(context.Context) glog.Logger { return compatLogger{} }

type compatMutatingService struct {
	acknowledgeCalls int
	lastCarrierID    string
	lastShipmentID   string
}

func (s *compatMutatingService) DownloadBatch(context.Context, core.DownloadBatchRequest) (core.BatchResult, error) {
	return core.BatchResult{}, nil
}

func (s *compatMutatingService) AcknowledgeShipment(_ context.Context, carrierID string, shipmentID string) error {
	s.acknowledgeCalls++
	s.lastCarrierID = carrierID
	s.lastShipmentID = shipmentID
	return nil
}

type compatTokenInvalidator struct {
	invalidateCalls int
	lastCarrierID   string
}

func (s *compatTokenInvalidator) Invalidate(carrierID string) {
	s.invalidateCalls++
	s.lastCarrierID = carrierID
}
