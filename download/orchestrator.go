package download

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goliatone/go-carriers/core"
	"github.com/goliatone/go-carriers/mtom"
)

const (
	metricShipments        = "carriers.batch.shipments"
	metricShipmentDuration = "carriers.shipment.duration_ms"
)

const (
	defaultMaxAttempts        = 3
	defaultMaxThrottleRetries = 5
)

// Orchestrator is the batch runner. Pool size starts at
// min(ceiling, shipmentCount, limiter allowance); the limiter may shrink the
// effective allowance mid-batch, growth waits for the next batch.
type Orchestrator struct {
	Tokens   core.TokenSource
	Transfer core.TransferService
	Gate     core.ConcurrencyGate
	Pacer    core.RequestPacer
	Archive  core.DocumentArchive
	Journal  core.JournalStore
	Logger   core.Logger
	Metrics  core.MetricsRecorder
	Retry    core.RetryConfig
	Backoff  core.BackoffScheduler
	Now      func() time.Time
}

func NewOrchestrator(tokens core.TokenSource, transfer core.TransferService, gate core.ConcurrencyGate, archive core.DocumentArchive) *Orchestrator {
	return &Orchestrator{
		Tokens:   tokens,
		Transfer: transfer,
		Gate:     gate,
		Archive:  archive,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

type taskState struct {
	task     core.DownloadTask
	result   core.TaskResult
	duration time.Duration
}

// Run executes one batch. The returned error is non-nil only for
// authentication exhaustion or a failed shipment listing; per-shipment
// failures land inside the result.
func (o *Orchestrator) Run(ctx context.Context, req core.BatchRunRequest) (core.BatchResult, error) {
	if o == nil || o.Tokens == nil || o.Transfer == nil || o.Gate == nil || o.Archive == nil {
		return core.BatchResult{}, fmt.Errorf("download: orchestrator is missing dependencies")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	profile := req.Profile
	result := core.BatchResult{
		BatchID:   req.BatchID,
		CarrierID: profile.ID,
		StartedAt: o.now(),
	}
	session := core.NewCarrierSession(profile, o.Tokens, o.Transfer)

	shipments := req.Shipments
	if len(shipments) == 0 {
		listed, err := session.ListShipments(ctx)
		if err != nil {
			result.FinishedAt = o.now()
			return result, err
		}
		shipments = listed
	}
	pending, skipped := o.partitionDelivered(ctx, profile.ID, shipments, req.SkipDelivered)
	result.Skipped = skipped
	if len(pending) == 0 {
		result.Finalize(false)
		result.Skipped = skipped
		result.FinishedAt = o.now()
		return result, nil
	}

	type profileAware interface {
		RegisterProfile(core.CarrierProfile)
	}
	if aware, ok := o.Gate.(profileAware); ok {
		aware.RegisterProfile(profile)
	}
	if aware, ok := o.Pacer.(profileAware); ok {
		aware.RegisterProfile(profile)
	}
	o.Gate.Prepare(profile.ID, len(pending))

	allowance := o.Gate.Allowance(profile.ID)
	if allowance <= 0 {
		allowance = profile.MaxConcurrency
	}
	workers := min(profile.MaxConcurrency, len(pending), allowance)
	if workers < 1 {
		workers = 1
	}

	now := o.now()
	tasks := make([]*taskState, len(pending))
	for i, shipment := range pending {
		tasks[i] = &taskState{
			task: core.DownloadTask{
				ID:         fmt.Sprintf("%s/%s", req.BatchID, shipment.ID),
				BatchID:    req.BatchID,
				ShipmentID: shipment.ID,
				Category:   shipment.Category,
				Status:     core.TaskStatusPending,
				CreatedAt:  now,
				UpdatedAt:  now,
			},
		}
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	var (
		abortOnce sync.Once
		abortErr  error
	)
	abort := func(err error) {
		abortOnce.Do(func() {
			abortErr = err
			cancelRun()
		})
	}

	feed := make(chan *taskState)
	go func() {
		defer close(feed)
		for _, ts := range tasks {
			select {
			case feed <- ts:
			case <-runCtx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for ts := range feed {
				if runCtx.Err() != nil {
					o.transition(ts, core.TaskStatusCancelled)
					continue
				}
				o.runTask(runCtx, session, ts, abort)
			}
		}()
	}
	wg.Wait()

	for _, ts := range tasks {
		if !ts.task.Status.Terminal() {
			o.transition(ts, core.TaskStatusCancelled)
		}
		ts.result.ShipmentID = ts.task.ShipmentID
		ts.result.Category = ts.task.Category
		ts.result.Status = ts.task.Status
		ts.result.Attempts = ts.task.Attempts
		ts.result.Duration = ts.duration
		if ts.result.Error == "" {
			ts.result.Error = ts.task.LastError
		}
		result.Tasks = append(result.Tasks, ts.result)
	}

	cancelled := ctx.Err() != nil && abortErr == nil
	result.Finalize(cancelled)
	result.Skipped = skipped
	result.FinishedAt = o.now()
	o.recordBatchMetrics(ctx, result)

	if abortErr != nil {
		return result, abortErr
	}
	return result, nil
}

// runTask drives one shipment through the retry loop. Throttles feed the
// limiter and retry under its backoff window; transient failures retry with
// the scheduler's delays; everything else settles the task.
func (o *Orchestrator) runTask(ctx context.Context, session *core.CarrierSession, ts *taskState, abort func(error)) {
	profile := session.Profile()
	maxAttempts := o.Retry.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = defaultMaxAttempts
	}
	maxThrottleRetries := o.Retry.MaxThrottleRetries
	if maxThrottleRetries < 1 {
		maxThrottleRetries = defaultMaxThrottleRetries
	}
	scheduler := o.scheduler()

	startedAt := o.now()
	defer func() {
		ts.duration = o.now().Sub(startedAt)
	}()

	transientAttempts := 0
	throttleRetries := 0
	for {
		if ctx.Err() != nil {
			o.transition(ts, core.TaskStatusCancelled)
			return
		}
		ts.task.Attempts++
		o.transition(ts, core.TaskStatusInProgress)

		err := o.attempt(ctx, session, ts)
		if err == nil {
			o.transition(ts, core.TaskStatusSucceeded)
			o.journalOutcome(ctx, profile.ID, ts, core.JournalStatusDelivered)
			o.observeTask(ctx, profile.ID, ts, startedAt)
			return
		}
		if ctx.Err() != nil {
			o.transition(ts, core.TaskStatusCancelled)
			return
		}

		switch {
		case core.IsAuthError(err):
			o.failTask(ctx, profile.ID, ts, err, startedAt)
			abort(err)
			return
		case core.IsThrottled(err):
			throttleRetries++
			if throttleRetries > maxThrottleRetries {
				o.failTask(ctx, profile.ID, ts, err, startedAt)
				return
			}
			// the limiter's backoff window gates the retry; no extra sleep
			o.transition(ts, core.TaskStatusRetrying)
		case core.IsTransient(err):
			transientAttempts++
			if transientAttempts >= maxAttempts {
				o.failTask(ctx, profile.ID, ts, err, startedAt)
				return
			}
			o.transition(ts, core.TaskStatusRetrying)
			if waitErr := core.WaitWithContext(ctx, scheduler.NextDelay(transientAttempts)); waitErr != nil {
				o.transition(ts, core.TaskStatusCancelled)
				return
			}
		default:
			o.failTask(ctx, profile.ID, ts, err, startedAt)
			return
		}
	}
}

// attempt performs one pass of the task pipeline under a limiter permit. The
// carrier calls run on a context detached from batch cancellation so an
// in-flight call resolves within its request timeout even after a cancel.
func (o *Orchestrator) attempt(ctx context.Context, session *core.CarrierSession, ts *taskState) error {
	profile := session.Profile()
	if err := o.Gate.Permit(ctx, profile.ID); err != nil {
		return err
	}
	defer o.Gate.Release(profile.ID)
	if o.Pacer != nil {
		if err := o.Pacer.Wait(ctx, profile.ID); err != nil {
			return err
		}
	}

	callCtx := context.WithoutCancel(ctx)
	raw, boundary, err := session.FetchShipment(callCtx, ts.task.ShipmentID)
	if err != nil {
		if core.IsThrottled(err) {
			o.Gate.OnResult(ctx, profile.ID, core.CallOutcomeThrottled)
		}
		return err
	}
	o.Gate.OnResult(ctx, profile.ID, core.CallOutcomeSuccess)

	payload, err := mtom.Parse(raw, boundary)
	if err != nil {
		return core.NewMalformedResponseError(profile.ID, "shipment payload did not parse", err)
	}
	if len(payload.Parts) == 0 {
		return core.NewMalformedResponseError(profile.ID, "shipment payload carries no binary parts", nil)
	}

	documentIDs := make([]string, 0, len(payload.Parts))
	var warnings []core.Warning
	for _, part := range payload.Parts {
		documentID, storeErr := o.Archive.Store(callCtx, part.Content, core.DocumentMeta{
			CarrierID:   profile.ID,
			ShipmentID:  ts.task.ShipmentID,
			BatchID:     ts.task.BatchID,
			Category:    ts.task.Category,
			ContentID:   part.ContentID,
			ContentType: part.ContentType,
			Filename:    part.Filename,
			Size:        int64(len(part.Content)),
		})
		if storeErr != nil {
			return fmt.Errorf("download: archive part %q: %w", part.ContentID, storeErr)
		}
		documentIDs = append(documentIDs, documentID)
		warnings = append(warnings, part.Warnings...)
	}

	ts.result.DocumentIDs = documentIDs
	ts.result.Warnings = warnings

	if ackErr := session.Acknowledge(callCtx, ts.task.ShipmentID); ackErr != nil {
		// the download already succeeded; record and move on
		o.logWarn(ctx, "shipment acknowledge failed", map[string]any{
			"carrier_id":  profile.ID,
			"shipment_id": ts.task.ShipmentID,
			"error":       ackErr.Error(),
		})
		ts.result.Warnings = append(ts.result.Warnings, core.Warning{
			Code:      core.WarningCodeAcknowledge,
			ContentID: ts.task.ShipmentID,
			Message:   ackErr.Error(),
		})
		ts.result.Acknowledged = false
		return nil
	}
	ts.result.Acknowledged = true
	return nil
}

func (o *Orchestrator) partitionDelivered(ctx context.Context, carrierID string, shipments []core.ShipmentDescriptor, skipDelivered bool) ([]core.ShipmentDescriptor, int) {
	if !skipDelivered || o.Journal == nil {
		return shipments, 0
	}
	pending := make([]core.ShipmentDescriptor, 0, len(shipments))
	skipped := 0
	for _, shipment := range shipments {
		entry, err := o.Journal.Get(ctx, carrierID, shipment.ID)
		if err == nil && entry.Delivered() {
			skipped++
			continue
		}
		pending = append(pending, shipment)
	}
	return pending, skipped
}

func (o *Orchestrator) failTask(ctx context.Context, carrierID string, ts *taskState, err error, startedAt time.Time) {
	ts.task.LastError = err.Error()
	ts.result.Error = err.Error()
	o.transition(ts, core.TaskStatusFailed)
	o.journalOutcome(ctx, carrierID, ts, core.JournalStatusFailed)
	o.observeTask(ctx, carrierID, ts, startedAt)
}

func (o *Orchestrator) journalOutcome(ctx context.Context, carrierID string, ts *taskState, status core.JournalStatus) {
	if o.Journal == nil {
		return
	}
	if _, err := o.Journal.Upsert(ctx, core.UpsertJournalEntryInput{
		CarrierID:    carrierID,
		ShipmentID:   ts.task.ShipmentID,
		BatchID:      ts.task.BatchID,
		Category:     ts.task.Category,
		Status:       status,
		Attempts:     ts.task.Attempts,
		DocumentIDs:  ts.result.DocumentIDs,
		LastError:    ts.task.LastError,
		Acknowledged: ts.result.Acknowledged,
	}); err != nil {
		o.logWarn(ctx, "journal update failed", map[string]any{
			"carrier_id":  carrierID,
			"shipment_id": ts.task.ShipmentID,
			"error":       err.Error(),
		})
	}
}

func (o *Orchestrator) transition(ts *taskState, status core.TaskStatus) {
	if err := ts.task.TransitionTo(status, o.now()); err != nil {
		o.logWarn(context.Background(), "task transition rejected", map[string]any{
			"shipment_id": ts.task.ShipmentID,
			"from":        string(ts.task.Status),
			"to":          string(status),
		})
	}
}

func (o *Orchestrator) observeTask(ctx context.Context, carrierID string, ts *taskState, startedAt time.Time) {
	if o.Metrics == nil {
		return
	}
	tags := map[string]string{
		"carrier_id": carrierID,
		"status":     string(ts.task.Status),
	}
	o.Metrics.IncCounter(ctx, metricShipments, 1, tags)
	o.Metrics.ObserveHistogram(ctx, metricShipmentDuration, float64(o.now().Sub(startedAt).Milliseconds()), tags)
}

func (o *Orchestrator) recordBatchMetrics(ctx context.Context, result core.BatchResult) {
	if o.Metrics == nil {
		return
	}
	o.Metrics.IncCounter(ctx, metricShipments, int64(result.Cancelled), map[string]string{
		"carrier_id": result.CarrierID,
		"status":     string(core.TaskStatusCancelled),
	})
}

func (o *Orchestrator) scheduler() core.BackoffScheduler {
	if o.Backoff != nil {
		return o.Backoff
	}
	return core.ExponentialBackoffScheduler{
		Initial: o.Retry.InitialBackoff,
		Max:     o.Retry.MaxBackoff,
	}
}

func (o *Orchestrator) logWarn(ctx context.Context, message string, fields map[string]any) {
	if o == nil || o.Logger == nil {
		return
	}
	logger := o.Logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(core.FieldsLogger); ok {
		logger = fieldsLogger.WithFields(fields)
	}
	args := make([]any, 0, len(fields)*2)
	for _, key := range []string{"carrier_id", "shipment_id", "from", "to", "error"} {
		if value, ok := fields[key]; ok {
			args = append(args, key, value)
		}
	}
	logger.Warn(message, args...)
}

func (o *Orchestrator) now() time.Time {
	if o != nil && o.Now != nil {
		return o.Now().UTC()
	}
	return time.Now().UTC()
}

var _ core.BatchRunner = (*Orchestrator)(nil)
