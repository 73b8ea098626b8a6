package core

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

var (
	ErrInvalidCarrierProfile        = errors.New("core: invalid carrier profile")
	ErrInvalidTaskStatusTransition  = errors.New("core: invalid download task status transition")
	ErrInvalidBatchStatusTransition = errors.New("core: invalid batch status transition")
	ErrProfileNotFound              = errors.New("core: carrier profile not found")
	ErrBatchNotFound                = errors.New("core: batch not found")
	ErrJournalEntryNotFound         = errors.New("core: shipment journal entry not found")
)

const (
	DefaultRequestTimeout    = 30 * time.Second
	DefaultMaxConcurrency    = 4
	DefaultTokenSafetyMargin = time.Minute
)

// CarrierProfile is the static per-carrier configuration record. Dialect
// variation is carried entirely by its flags; request builders must never
// branch on carrier identity. Profiles are normalized once at load time and
// passed by value afterwards.
type CarrierProfile struct {
	ID                  string
	Name                string
	TokenURL            string
	TransferURL         string
	RequiresConfirmFlag bool
	RequiresConsumerID  bool
	ConsumerID          string
	MaxConcurrency      int
	RequestTimeout      time.Duration
	RequestsPerSecond   float64
	MaxResponseBytes    int64
}

func (p CarrierProfile) Normalize() CarrierProfile {
	out := p
	out.ID = strings.TrimSpace(strings.ToLower(p.ID))
	out.Name = strings.TrimSpace(p.Name)
	out.TokenURL = strings.TrimSpace(p.TokenURL)
	out.TransferURL = strings.TrimSpace(p.TransferURL)
	out.ConsumerID = strings.TrimSpace(p.ConsumerID)
	if out.Name == "" {
		out.Name = out.ID
	}
	if out.MaxConcurrency <= 0 {
		out.MaxConcurrency = DefaultMaxConcurrency
	}
	if out.RequestTimeout <= 0 {
		out.RequestTimeout = DefaultRequestTimeout
	}
	if out.RequestsPerSecond < 0 {
		out.RequestsPerSecond = 0
	}
	if out.MaxResponseBytes < 0 {
		out.MaxResponseBytes = 0
	}
	return out
}

func (p CarrierProfile) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidCarrierProfile)
	}
	if err := validateEndpoint(p.TokenURL); err != nil {
		return fmt.Errorf("%w: carrier %q token url: %v", ErrInvalidCarrierProfile, p.ID, err)
	}
	if err := validateEndpoint(p.TransferURL); err != nil {
		return fmt.Errorf("%w: carrier %q transfer url: %v", ErrInvalidCarrierProfile, p.ID, err)
	}
	if p.RequiresConsumerID && strings.TrimSpace(p.ConsumerID) == "" {
		return fmt.Errorf("%w: carrier %q requires a consumer id", ErrInvalidCarrierProfile, p.ID)
	}
	if p.MaxConcurrency < 1 {
		return fmt.Errorf("%w: carrier %q max concurrency must be at least 1", ErrInvalidCarrierProfile, p.ID)
	}
	if p.RequestTimeout <= 0 {
		return fmt.Errorf("%w: carrier %q request timeout must be positive", ErrInvalidCarrierProfile, p.ID)
	}
	return nil
}

func validateEndpoint(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return errors.New("url is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if !parsed.IsAbs() || parsed.Host == "" {
		return fmt.Errorf("url %q must be absolute", raw)
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return fmt.Errorf("url %q must use http(s)", raw)
	}
	return nil
}

// SecurityToken is the short-lived session token issued by a carrier STS.
// The value is opaque; only its lifetime is interpreted here.
type SecurityToken struct {
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ValidAt reports whether the token may still be attached to a request at
// the given instant. A token inside the safety margin counts as expired.
func (t SecurityToken) ValidAt(now time.Time, margin time.Duration) bool {
	if strings.TrimSpace(t.Value) == "" {
		return false
	}
	if margin < 0 {
		margin = 0
	}
	return now.Before(t.ExpiresAt.Add(-margin))
}

// ShipmentDescriptor identifies one carrier-offered delivery.
type ShipmentDescriptor struct {
	ID       string
	Category string
	SizeHint int64
}

func (d ShipmentDescriptor) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return errors.New("core: shipment id is required")
	}
	return nil
}

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusRetrying   TaskStatus = "retrying"
	TaskStatusSucceeded  TaskStatus = "succeeded"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusSucceeded, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

// DownloadTask tracks one shipment through a batch. Transitions only move
// forward; the Retrying loop back to InProgress is the single exception.
type DownloadTask struct {
	ID         string
	BatchID    string
	ShipmentID string
	Category   string
	Attempts   int
	Status     TaskStatus
	LastError  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (t *DownloadTask) TransitionTo(status TaskStatus, now time.Time) error {
	if t == nil {
		return nil
	}
	if t.Status == status {
		t.UpdatedAt = now
		return nil
	}
	if !taskTransitionAllowed(t.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTaskStatusTransition, t.Status, status)
	}
	t.Status = status
	t.UpdatedAt = now
	if status == TaskStatusSucceeded {
		t.LastError = ""
	}
	return nil
}

func taskTransitionAllowed(current, next TaskStatus) bool {
	allowed := map[TaskStatus]map[TaskStatus]struct{}{
		TaskStatusPending: {
			TaskStatusInProgress: {},
			TaskStatusCancelled:  {},
		},
		TaskStatusInProgress: {
			TaskStatusSucceeded: {},
			TaskStatusFailed:    {},
			TaskStatusRetrying:  {},
			TaskStatusCancelled: {},
		},
		TaskStatusRetrying: {
			TaskStatusInProgress: {},
			TaskStatusCancelled:  {},
		},
		TaskStatusSucceeded: {},
		TaskStatusFailed:    {},
		TaskStatusCancelled: {},
	}
	_, ok := allowed[current][next]
	return ok
}

type BatchStatus string

const (
	BatchStatusRunning         BatchStatus = "running"
	BatchStatusSucceeded       BatchStatus = "succeeded"
	BatchStatusPartiallyFailed BatchStatus = "partially_failed"
	BatchStatusFailed          BatchStatus = "failed"
	BatchStatusCancelled       BatchStatus = "cancelled"
	BatchStatusAborted         BatchStatus = "aborted"
)

// Batch is the persisted bookkeeping record for one orchestrator run.
type Batch struct {
	ID         string
	CarrierID  string
	Status     BatchStatus
	Shipments  int
	Succeeded  int
	Failed     int
	Cancelled  int
	Skipped    int
	LastError  string
	StartedAt  time.Time
	FinishedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (b *Batch) TransitionTo(status BatchStatus, now time.Time) error {
	if b == nil {
		return nil
	}
	if b.Status == status {
		b.UpdatedAt = now
		return nil
	}
	if !batchTransitionAllowed(b.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidBatchStatusTransition, b.Status, status)
	}
	b.Status = status
	b.UpdatedAt = now
	return nil
}

func batchTransitionAllowed(current, next BatchStatus) bool {
	allowed := map[BatchStatus]map[BatchStatus]struct{}{
		BatchStatusRunning: {
			BatchStatusSucceeded:       {},
			BatchStatusPartiallyFailed: {},
			BatchStatusFailed:          {},
			BatchStatusCancelled:       {},
			BatchStatusAborted:         {},
		},
		BatchStatusSucceeded:       {},
		BatchStatusPartiallyFailed: {},
		BatchStatusFailed:          {},
		BatchStatusCancelled:       {},
		BatchStatusAborted:         {},
	}
	_, ok := allowed[current][next]
	return ok
}

const (
	WarningCodeContentIntegrity = "content_integrity"
	WarningCodeAcknowledge      = "acknowledge_failed"
)

// Warning is a non-fatal observation attached to a part or task, such as a
// declared PDF whose bytes do not start with the PDF magic number.
type Warning struct {
	Code      string
	Message   string
	ContentID string
}

func (w Warning) String() string {
	if strings.TrimSpace(w.ContentID) == "" {
		return fmt.Sprintf("%s: %s", w.Code, w.Message)
	}
	return fmt.Sprintf("%s [%s]: %s", w.Code, w.ContentID, w.Message)
}

// DocumentMeta accompanies each binary handed to the DocumentArchive.
type DocumentMeta struct {
	CarrierID   string
	ShipmentID  string
	BatchID     string
	Category    string
	ContentID   string
	ContentType string
	Filename    string
	Size        int64
}

// PayloadPart is one decoded body extracted from a multipart shipment
// response. Content carries the transfer-decoded bytes exactly as the
// carrier produced them.
type PayloadPart struct {
	ContentID   string
	ContentType string
	Filename    string
	Content     []byte
	Warnings    []Warning
}

// ShipmentPayload is the parsed form of one shipment download: the root XML
// document plus the binary parts it references.
type ShipmentPayload struct {
	RootContentID string
	Root          []byte
	Parts         []PayloadPart
}

// Warnings collects part-level warnings in part order.
func (p ShipmentPayload) Warnings() []Warning {
	var all []Warning
	for _, part := range p.Parts {
		all = append(all, part.Warnings...)
	}
	return all
}

// TaskResult is the per-shipment slice of a BatchResult.
type TaskResult struct {
	ShipmentID   string
	Category     string
	Status       TaskStatus
	Attempts     int
	DocumentIDs  []string
	Acknowledged bool
	Error        string
	Warnings     []Warning
	Duration     time.Duration
}

// BatchResult summarizes one orchestrator run. The batch call itself only
// fails on authentication failure or total unreachability; everything else
// lands here as per-shipment outcomes.
type BatchResult struct {
	BatchID    string
	CarrierID  string
	Status     BatchStatus
	Tasks      []TaskResult
	Succeeded  int
	Failed     int
	Cancelled  int
	Skipped    int
	Errors     []string
	Warnings   []Warning
	StartedAt  time.Time
	FinishedAt time.Time
}

// Finalize recomputes counts, collects task errors and warnings, and derives
// the terminal batch status. Cancelled wins over partial failure so callers
// can distinguish an interrupted batch from a completed one with failures.
func (r *BatchResult) Finalize(cancelled bool) {
	if r == nil {
		return
	}
	r.Succeeded, r.Failed, r.Cancelled = 0, 0, 0
	r.Errors = r.Errors[:0]
	r.Warnings = r.Warnings[:0]
	for _, task := range r.Tasks {
		switch task.Status {
		case TaskStatusSucceeded:
			r.Succeeded++
		case TaskStatusFailed:
			r.Failed++
		case TaskStatusCancelled:
			r.Cancelled++
		}
		if strings.TrimSpace(task.Error) != "" {
			r.Errors = append(r.Errors, fmt.Sprintf("shipment %s: %s", task.ShipmentID, task.Error))
		}
		r.Warnings = append(r.Warnings, task.Warnings...)
	}
	switch {
	case cancelled:
		r.Status = BatchStatusCancelled
	case r.Failed == 0:
		r.Status = BatchStatusSucceeded
	case r.Succeeded == 0 && r.Skipped == 0:
		r.Status = BatchStatusFailed
	default:
		r.Status = BatchStatusPartiallyFailed
	}
}

type JournalStatus string

const (
	JournalStatusDelivered JournalStatus = "delivered"
	JournalStatusFailed    JournalStatus = "failed"
)

// JournalEntry records the durable outcome of one shipment so later batches
// can skip deliveries that already completed and acknowledgments can be
// audited.
type JournalEntry struct {
	ID             string
	CarrierID      string
	ShipmentID     string
	BatchID        string
	Category       string
	Status         JournalStatus
	Attempts       int
	DocumentIDs    []string
	LastError      string
	AcknowledgedAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (e JournalEntry) Delivered() bool {
	return e.Status == JournalStatusDelivered
}
