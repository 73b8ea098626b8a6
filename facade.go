package carriers

import (
	"fmt"
	"reflect"

	carriercommand "github.com/goliatone/go-carriers/command"
	"github.com/goliatone/go-carriers/core"
	carrierquery "github.com/goliatone/go-carriers/query"
)

// CommandQueryService is the service surface the facade wraps: the mutating
// batch operations plus every read side the queries need.
type CommandQueryService interface {
	carriercommand.MutatingService
	carrierquery.BatchReader
	carrierquery.JournalReader
	carrierquery.ProfileReader
	carrierquery.ActivityReader
}

type Commands struct {
	DownloadBatch       *carriercommand.DownloadBatchCommand
	AcknowledgeShipment *carriercommand.AcknowledgeShipmentCommand
	InvalidateToken     *carriercommand.InvalidateTokenCommand
	RecordActivity      *carriercommand.RecordActivityCommand
}

type Queries struct {
	BatchStatus         *carrierquery.BatchStatusQuery
	ListBatches         *carrierquery.ListBatchesQuery
	ShipmentJournal     *carrierquery.ShipmentJournalQuery
	DeliveryStatus      *carrierquery.DeliveryStatusQuery
	ListCarrierProfiles *carrierquery.ListCarrierProfilesQuery
	ListActivity        *carrierquery.ListActivityQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	tokenInvalidator carriercommand.TokenInvalidator
	activitySink     core.ActivitySink
}

// WithTokenInvalidator supplies the token cache the InvalidateToken command
// drops entries from. Defaults to the service's token source when it
// supports invalidation.
func WithTokenInvalidator(invalidator carriercommand.TokenInvalidator) FacadeOption {
	return func(options *facadeOptions) {
		options.tokenInvalidator = invalidator
	}
}

// WithFacadeActivitySink supplies the sink the RecordActivity command writes
// to. Defaults to the service's configured activity sink.
func WithFacadeActivitySink(sink core.ActivitySink) FacadeOption {
	return func(options *facadeOptions) {
		options.activitySink = sink
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("carriers: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	invalidator := cfg.tokenInvalidator
	if invalidator == nil {
		invalidator = resolveTokenInvalidator(service)
	}
	sink := cfg.activitySink
	if sink == nil {
		sink = resolveActivitySink(service)
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		DownloadBatch:       carriercommand.NewDownloadBatchCommand(service),
		AcknowledgeShipment: carriercommand.NewAcknowledgeShipmentCommand(service),
		InvalidateToken:     carriercommand.NewInvalidateTokenCommand(invalidator),
		RecordActivity:      carriercommand.NewRecordActivityCommand(sink),
	}
	facade.queries = Queries{
		BatchStatus:         carrierquery.NewBatchStatusQuery(service),
		ListBatches:         carrierquery.NewListBatchesQuery(service),
		ShipmentJournal:     carrierquery.NewShipmentJournalQuery(service),
		DeliveryStatus:      carrierquery.NewDeliveryStatusQuery(service),
		ListCarrierProfiles: carrierquery.NewListCarrierProfilesQuery(service),
		ListActivity:        carrierquery.NewListActivityQuery(service),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

func resolveTokenInvalidator(service CommandQueryService) carriercommand.TokenInvalidator {
	if service == nil {
		return nil
	}
	if invalidator, ok := service.(carriercommand.TokenInvalidator); ok {
		return invalidator
	}
	provider, ok := service.(interface {
		Dependencies() core.ServiceDependencies
	})
	if !ok {
		return nil
	}
	deps := provider.Dependencies()
	if invalidator, ok := deps.TokenSource.(carriercommand.TokenInvalidator); ok {
		return invalidator
	}
	return nil
}

func resolveActivitySink(service CommandQueryService) core.ActivitySink {
	if service == nil {
		return nil
	}
	provider, ok := service.(interface {
		Dependencies() core.ServiceDependencies
	})
	if ok {
		deps := provider.Dependencies()
		if deps.ActivitySink != nil {
			return deps.ActivitySink
		}
		if sink := activitySinkFromFactory(deps.RepositoryFactory); sink != nil {
			return sink
		}
	}
	return nil
}

// activitySinkFromFactory probes a repository factory for an ActivityStore()
// accessor without binding the root package to the sql store.
func activitySinkFromFactory(factory any) core.ActivitySink {
	if factory == nil {
		return nil
	}
	factoryValue := reflect.ValueOf(factory)
	if !factoryValue.IsValid() {
		return nil
	}
	if factoryValue.Kind() == reflect.Ptr && factoryValue.IsNil() {
		return nil
	}
	method := factoryValue.MethodByName("ActivityStore")
	if !method.IsValid() || method.Type().NumIn() != 0 || method.Type().NumOut() != 1 {
		return nil
	}

	results, ok := safeReflectCall(method)
	if !ok || len(results) != 1 {
		return nil
	}
	candidate := results[0]
	if !candidate.IsValid() {
		return nil
	}
	if candidate.Kind() == reflect.Ptr && candidate.IsNil() {
		return nil
	}
	sink, ok := candidate.Interface().(core.ActivitySink)
	if !ok {
		return nil
	}
	return sink
}

func safeReflectCall(method reflect.Value) (_ []reflect.Value, ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return method.Call(nil), true
}
