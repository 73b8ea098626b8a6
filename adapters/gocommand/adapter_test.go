package gocommand

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-command"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"

	carriercommand "github.com/goliatone/go-carriers/command"
	"github.com/goliatone/go-carriers/core"
	carrierquery "github.com/goliatone/go-carriers/query"
)

type okMessage struct{}

func (okMessage) Type() string { return "carriers.command.ok" }

type invalidMessage struct{}

func (invalidMessage) Type() string { return "" }

type failingMessage struct{}

func (failingMessage) Type() string { return "carriers.command.fail" }

func (failingMessage) Validate() error { return errors.New("invalid payload") }

type dispatchMessage struct {
	ID string
}

func (dispatchMessage) Type() string { return "carriers.command.test" }

type queueMessage struct{}

func (queueMessage) Type() string { return "carriers.command.queue" }

type foreignMessage struct{}

func (foreignMessage) Type() string { return "billing.command.charge" }

func TestValidateMessageContract(t *testing.T) {
	if err := ValidateMessageContract(okMessage{}); err != nil {
		t.Fatalf("expected valid message, got %v", err)
	}
	if err := ValidateMessageContract(invalidMessage{}); err == nil {
		t.Fatalf("expected empty type to fail contract validation")
	}
	if err := ValidateMessageContract(failingMessage{}); err == nil {
		t.Fatalf("expected Validate() failure to bubble")
	}
	if err := ValidateMessageContract(foreignMessage{}); err == nil {
		t.Fatalf("expected a type outside the carriers namespace to fail")
	}
	if err := ValidateMessageContract(carriercommand.InvalidateTokenMessage{CarrierID: "acme"}); err != nil {
		t.Fatalf("expected carrier command message to pass, got %v", err)
	}
}

func TestRegistryAndDispatchWiring(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	executed := 0
	customResolverCalled := 0

	cmd := command.CommandFunc[dispatchMessage](func(context.Context, dispatchMessage) error {
		executed++
		return nil
	})

	if _, err := RegisterAndSubscribe(adapter, cmd); err != nil {
		t.Fatalf("register and subscribe: %v", err)
	}
	if err := adapter.AddResolver("custom", func(any, command.CommandMeta, *command.Registry) error {
		customResolverCalled++
		return nil
	}); err != nil {
		t.Fatalf("add resolver: %v", err)
	}
	if !adapter.HasResolver("custom") {
		t.Fatalf("expected custom resolver to be registered")
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}
	if customResolverCalled == 0 {
		t.Fatalf("expected resolver hook to run during initialization")
	}

	if err := Dispatch(context.Background(), dispatchMessage{ID: "m1"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if executed != 1 {
		t.Fatalf("expected command execution count=1, got %d", executed)
	}
}

func TestQueueResolverHookWiring(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	queueRegistry := jobqueuecommand.NewRegistry()

	cmd := command.CommandFunc[queueMessage](func(context.Context, queueMessage) error { return nil })

	if err := adapter.AddQueueResolver("queue", queueRegistry); err != nil {
		t.Fatalf("add queue resolver: %v", err)
	}
	if err := adapter.RegisterCommand(cmd); err != nil {
		t.Fatalf("register command: %v", err)
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	if _, ok := queueRegistry.Get("carriers.command.queue"); !ok {
		t.Fatalf("expected command to be mirrored into queue registry")
	}
}

type carrierServiceStub struct {
	downloads []core.DownloadBatchRequest
	acked     []string
}

func (s *carrierServiceStub) DownloadBatch(_ context.Context, req core.DownloadBatchRequest) (core.BatchResult, error) {
	s.downloads = append(s.downloads, req)
	result := core.BatchResult{CarrierID: req.CarrierID, BatchID: req.BatchID}
	result.Finalize(false)
	return result, nil
}

func (s *carrierServiceStub) AcknowledgeShipment(_ context.Context, carrierID string, shipmentID string) error {
	s.acked = append(s.acked, carrierID+"/"+shipmentID)
	return nil
}

func (s *carrierServiceStub) Batch(_ context.Context, batchID string) (core.Batch, error) {
	return core.Batch{ID: batchID, CarrierID: "acme", Status: core.BatchStatusSucceeded}, nil
}

func (s *carrierServiceStub) Batches(context.Context, string, int) ([]core.Batch, error) {
	return nil, nil
}

func (s *carrierServiceStub) BatchJournal(context.Context, string) ([]core.JournalEntry, error) {
	return nil, nil
}

func (s *carrierServiceStub) DeliveryStatus(context.Context, string, string) (core.JournalEntry, error) {
	return core.JournalEntry{}, nil
}

func (s *carrierServiceStub) Profiles(context.Context) ([]core.CarrierProfile, error) {
	return []core.CarrierProfile{{ID: "acme"}}, nil
}

func (s *carrierServiceStub) Activity(context.Context, core.ActivityFilter) (core.ActivityPage, error) {
	return core.ActivityPage{}, nil
}

type tokenDropStub struct {
	dropped []string
}

func (s *tokenDropStub) Invalidate(carrierID string) {
	s.dropped = append(s.dropped, carrierID)
}

func TestMountCarrierHandlers(t *testing.T) {
	service := &carrierServiceStub{}
	tokens := &tokenDropStub{}
	adapter := NewRegistryAdapter(command.NewRegistry())
	queueRegistry := jobqueuecommand.NewRegistry()
	if err := adapter.AddDefaultQueueResolver(queueRegistry); err != nil {
		t.Fatalf("add default queue resolver: %v", err)
	}

	handlers := NewCarrierHandlers(service, tokens, core.NewMemoryActivitySink())
	if handlers.InvalidateToken == nil || handlers.RecordActivity == nil {
		t.Fatalf("expected optional handlers built when collaborators are present")
	}

	subscriptions, err := MountCarrierHandlers(adapter, handlers)
	if err != nil {
		t.Fatalf("mount carrier handlers: %v", err)
	}
	defer func() {
		for _, sub := range subscriptions {
			sub.Unsubscribe()
		}
	}()
	if len(subscriptions) != 10 {
		t.Fatalf("expected all handlers mounted, got %d subscriptions", len(subscriptions))
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	if err := Dispatch(context.Background(), carriercommand.AcknowledgeShipmentMessage{
		CarrierID:  "acme",
		ShipmentID: "shp-1",
	}); err != nil {
		t.Fatalf("dispatch acknowledge: %v", err)
	}
	if len(service.acked) != 1 || service.acked[0] != "acme/shp-1" {
		t.Fatalf("expected acknowledgment to reach the service, got %v", service.acked)
	}

	if err := Dispatch(context.Background(), carriercommand.InvalidateTokenMessage{CarrierID: "acme"}); err != nil {
		t.Fatalf("dispatch invalidate: %v", err)
	}
	if len(tokens.dropped) != 1 || tokens.dropped[0] != "acme" {
		t.Fatalf("expected token invalidation, got %v", tokens.dropped)
	}

	batch, err := Query[carrierquery.BatchStatusMessage, core.Batch](context.Background(), carrierquery.BatchStatusMessage{BatchID: "batch-1"})
	if err != nil {
		t.Fatalf("query batch status: %v", err)
	}
	if batch.ID != "batch-1" || batch.Status != core.BatchStatusSucceeded {
		t.Fatalf("unexpected batch %+v", batch)
	}

	if _, ok := queueRegistry.Get(carriercommand.TypeDownloadBatch); !ok {
		t.Fatalf("expected download command mirrored into the queue registry")
	}
}

func TestMountCarrierHandlers_RequiresAdapter(t *testing.T) {
	if _, err := MountCarrierHandlers(nil, CarrierHandlers{}); err == nil {
		t.Fatalf("expected nil adapter to fail")
	}
}
