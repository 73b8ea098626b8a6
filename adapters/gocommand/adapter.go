package gocommand

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"

	carriercommand "github.com/goliatone/go-carriers/command"
	"github.com/goliatone/go-carriers/core"
	carrierquery "github.com/goliatone/go-carriers/query"
)

// MessageNamespace is the type prefix every message routed through this
// bridge must carry. Commands live under carriers.command.*, queries under
// carriers.query.*.
const MessageNamespace = "carriers."

// QueueResolverKey is where the go-job queue resolver mounts by default, so
// hosts that mirror carrier commands into a job queue agree on the name.
const QueueResolverKey = "queue"

// ValidateMessageContract enforces the Type() contract, the carriers.*
// namespace, and the optional Validate() hook.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	msgType := strings.TrimSpace(m.Type())
	if msgType == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	if !strings.HasPrefix(msgType, MessageNamespace) {
		return fmt.Errorf("gocommand: message type %q is outside the %s namespace", msgType, MessageNamespace)
	}
	return nil
}

type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *command.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(cmd)
}

func (a *RegistryAdapter) RegisterQuery(qry any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(qry)
}

func (a *RegistryAdapter) AddResolver(key string, resolver command.Resolver) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.AddResolver(strings.TrimSpace(key), resolver)
}

// AddQueueResolver mirrors registered carrier commands into a go-job queue
// registry under the given resolver key.
func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return a.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

// AddDefaultQueueResolver mounts the queue resolver under QueueResolverKey.
func (a *RegistryAdapter) AddDefaultQueueResolver(queueRegistry *jobqueuecommand.Registry) error {
	return a.AddQueueResolver(QueueResolverKey, queueRegistry)
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	if a == nil || a.registry == nil {
		return false
	}
	return a.registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

func SubscribeCommand[T any](cmd command.Commander[T], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
}

func SubscribeCommandFunc[T any](handler command.CommandFunc[T], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeCommand(handler, runnerOpts...)
}

func SubscribeQuery[T any, R any](qry command.Querier[T, R], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeQuery(qry, runnerOpts...)
}

func SubscribeQueryFunc[T any, R any](qry command.QueryFunc[T, R], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeQuery(qry, runnerOpts...)
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}

func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	subscription := SubscribeCommand(cmd, runnerOpts...)
	if err := adapter.RegisterCommand(cmd); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

func RegisterAndSubscribeQuery[T any, R any](
	adapter *RegistryAdapter,
	qry command.Querier[T, R],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if qry == nil {
		return nil, fmt.Errorf("gocommand: query is required")
	}
	subscription := SubscribeQuery(qry, runnerOpts...)
	if err := adapter.RegisterQuery(qry); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

// CarrierHandlers bundles the carrier command/query handlers a host wants
// mounted on the dispatcher. Nil fields are skipped, so a read-only host can
// mount queries alone.
type CarrierHandlers struct {
	DownloadBatch       *carriercommand.DownloadBatchCommand
	AcknowledgeShipment *carriercommand.AcknowledgeShipmentCommand
	InvalidateToken     *carriercommand.InvalidateTokenCommand
	RecordActivity      *carriercommand.RecordActivityCommand

	BatchStatus     *carrierquery.BatchStatusQuery
	ListBatches     *carrierquery.ListBatchesQuery
	ShipmentJournal *carrierquery.ShipmentJournalQuery
	DeliveryStatus  *carrierquery.DeliveryStatusQuery
	ListProfiles    *carrierquery.ListCarrierProfilesQuery
	ListActivity    *carrierquery.ListActivityQuery
}

// NewCarrierHandlers builds the full handler set over a mutating service.
// The token invalidator and activity sink are optional; their handlers are
// left nil when absent.
func NewCarrierHandlers(
	service interface {
		carriercommand.MutatingService
		carrierquery.BatchReader
		carrierquery.JournalReader
		carrierquery.ProfileReader
		carrierquery.ActivityReader
	},
	tokens carriercommand.TokenInvalidator,
	sink core.ActivitySink,
) CarrierHandlers {
	handlers := CarrierHandlers{
		DownloadBatch:       carriercommand.NewDownloadBatchCommand(service),
		AcknowledgeShipment: carriercommand.NewAcknowledgeShipmentCommand(service),
		BatchStatus:         carrierquery.NewBatchStatusQuery(service),
		ListBatches:         carrierquery.NewListBatchesQuery(service),
		ShipmentJournal:     carrierquery.NewShipmentJournalQuery(service),
		DeliveryStatus:      carrierquery.NewDeliveryStatusQuery(service),
		ListProfiles:        carrierquery.NewListCarrierProfilesQuery(service),
		ListActivity:        carrierquery.NewListActivityQuery(service),
	}
	if tokens != nil {
		handlers.InvalidateToken = carriercommand.NewInvalidateTokenCommand(tokens)
	}
	if sink != nil {
		handlers.RecordActivity = carriercommand.NewRecordActivityCommand(sink)
	}
	return handlers
}

// MountCarrierHandlers registers every non-nil handler with the adapter and
// subscribes it on the dispatcher. On any failure the subscriptions made so
// far are unsubscribed before the error returns.
func MountCarrierHandlers(
	adapter *RegistryAdapter,
	handlers CarrierHandlers,
	runnerOpts ...runner.Option,
) ([]commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}

	var subscriptions []commanddispatcher.Subscription
	fail := func(err error) ([]commanddispatcher.Subscription, error) {
		for _, sub := range subscriptions {
			if sub != nil {
				sub.Unsubscribe()
			}
		}
		return nil, err
	}

	if handlers.DownloadBatch != nil {
		sub, err := RegisterAndSubscribe[carriercommand.DownloadBatchMessage](adapter, handlers.DownloadBatch, runnerOpts...)
		if err != nil {
			return fail(err)
		}
		subscriptions = append(subscriptions, sub)
	}
	if handlers.AcknowledgeShipment != nil {
		sub, err := RegisterAndSubscribe[carriercommand.AcknowledgeShipmentMessage](adapter, handlers.AcknowledgeShipment, runnerOpts...)
		if err != nil {
			return fail(err)
		}
		subscriptions = append(subscriptions, sub)
	}
	if handlers.InvalidateToken != nil {
		sub, err := RegisterAndSubscribe[carriercommand.InvalidateTokenMessage](adapter, handlers.InvalidateToken, runnerOpts...)
		if err != nil {
			return fail(err)
		}
		subscriptions = append(subscriptions, sub)
	}
	if handlers.RecordActivity != nil {
		sub, err := RegisterAndSubscribe[carriercommand.RecordActivityMessage](adapter, handlers.RecordActivity, runnerOpts...)
		if err != nil {
			return fail(err)
		}
		subscriptions = append(subscriptions, sub)
	}
	if handlers.BatchStatus != nil {
		sub, err := RegisterAndSubscribeQuery[carrierquery.BatchStatusMessage, core.Batch](adapter, handlers.BatchStatus, runnerOpts...)
		if err != nil {
			return fail(err)
		}
		subscriptions = append(subscriptions, sub)
	}
	if handlers.ListBatches != nil {
		sub, err := RegisterAndSubscribeQuery[carrierquery.ListBatchesMessage, []core.Batch](adapter, handlers.ListBatches, runnerOpts...)
		if err != nil {
			return fail(err)
		}
		subscriptions = append(subscriptions, sub)
	}
	if handlers.ShipmentJournal != nil {
		sub, err := RegisterAndSubscribeQuery[carrierquery.ShipmentJournalMessage, []core.JournalEntry](adapter, handlers.ShipmentJournal, runnerOpts...)
		if err != nil {
			return fail(err)
		}
		subscriptions = append(subscriptions, sub)
	}
	if handlers.DeliveryStatus != nil {
		sub, err := RegisterAndSubscribeQuery[carrierquery.DeliveryStatusMessage, core.JournalEntry](adapter, handlers.DeliveryStatus, runnerOpts...)
		if err != nil {
			return fail(err)
		}
		subscriptions = append(subscriptions, sub)
	}
	if handlers.ListProfiles != nil {
		sub, err := RegisterAndSubscribeQuery[carrierquery.ListCarrierProfilesMessage, []core.CarrierProfile](adapter, handlers.ListProfiles, runnerOpts...)
		if err != nil {
			return fail(err)
		}
		subscriptions = append(subscriptions, sub)
	}
	if handlers.ListActivity != nil {
		sub, err := RegisterAndSubscribeQuery[carrierquery.ListActivityMessage, core.ActivityPage](adapter, handlers.ListActivity, runnerOpts...)
		if err != nil {
			return fail(err)
		}
		subscriptions = append(subscriptions, sub)
	}

	return subscriptions, nil
}
