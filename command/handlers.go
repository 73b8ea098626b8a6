package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-carriers/core"
)

// MutatingService is the slice of the carrier service the commands drive.
type MutatingService interface {
	DownloadBatch(ctx context.Context, req core.DownloadBatchRequest) (core.BatchResult, error)
	AcknowledgeShipment(ctx context.Context, carrierID string, shipmentID string) error
}

// TokenInvalidator drops a cached security token so the next carrier call
// negotiates a fresh one.
type TokenInvalidator interface {
	Invalidate(carrierID string)
}

type DownloadBatchCommand struct {
	service MutatingService
}

func NewDownloadBatchCommand(service MutatingService) *DownloadBatchCommand {
	return &DownloadBatchCommand{service: service}
}

func (c *DownloadBatchCommand) Execute(ctx context.Context, msg DownloadBatchMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: batch download service is required")
	}
	out, err := c.service.DownloadBatch(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type AcknowledgeShipmentCommand struct {
	service MutatingService
}

func NewAcknowledgeShipmentCommand(service MutatingService) *AcknowledgeShipmentCommand {
	return &AcknowledgeShipmentCommand{service: service}
}

func (c *AcknowledgeShipmentCommand) Execute(ctx context.Context, msg AcknowledgeShipmentMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: acknowledge service is required")
	}
	return c.service.AcknowledgeShipment(ctx, msg.CarrierID, msg.ShipmentID)
}

type InvalidateTokenCommand struct {
	tokens TokenInvalidator
}

func NewInvalidateTokenCommand(tokens TokenInvalidator) *InvalidateTokenCommand {
	return &InvalidateTokenCommand{tokens: tokens}
}

func (c *InvalidateTokenCommand) Execute(_ context.Context, msg InvalidateTokenMessage) error {
	if c == nil || c.tokens == nil {
		return commandDependencyError("command: token source is required")
	}
	c.tokens.Invalidate(msg.CarrierID)
	return nil
}

type RecordActivityCommand struct {
	sink core.ActivitySink
}

func NewRecordActivityCommand(sink core.ActivitySink) *RecordActivityCommand {
	return &RecordActivityCommand{sink: sink}
}

func (c *RecordActivityCommand) Execute(ctx context.Context, msg RecordActivityMessage) error {
	if c == nil || c.sink == nil {
		return commandDependencyError("command: activity sink is required")
	}
	return c.sink.Record(ctx, msg.Entry)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
