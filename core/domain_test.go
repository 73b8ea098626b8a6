package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestCarrierProfile_NormalizeAppliesDefaults(t *testing.T) {
	profile := CarrierProfile{
		ID:          "  ACME-01  ",
		TokenURL:    " https://sts.acme.test/token ",
		TransferURL: "https://transfer.acme.test/soap",
	}.Normalize()

	if profile.ID != "acme-01" {
		t.Fatalf("expected lowercased trimmed id, got %q", profile.ID)
	}
	if profile.Name != "acme-01" {
		t.Fatalf("expected name to default to id, got %q", profile.Name)
	}
	if profile.TokenURL != "https://sts.acme.test/token" {
		t.Fatalf("expected trimmed token url, got %q", profile.TokenURL)
	}
	if profile.MaxConcurrency != DefaultMaxConcurrency {
		t.Fatalf("expected default max concurrency, got %d", profile.MaxConcurrency)
	}
	if profile.RequestTimeout != DefaultRequestTimeout {
		t.Fatalf("expected default request timeout, got %v", profile.RequestTimeout)
	}
}

func TestCarrierProfile_Validate(t *testing.T) {
	valid := testProfile("acme")

	cases := []struct {
		name    string
		mutate  func(p CarrierProfile) CarrierProfile
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(p CarrierProfile) CarrierProfile { return p },
		},
		{
			name: "missing id",
			mutate: func(p CarrierProfile) CarrierProfile {
				p.ID = ""
				return p
			},
			wantErr: "id is required",
		},
		{
			name: "relative token url",
			mutate: func(p CarrierProfile) CarrierProfile {
				p.TokenURL = "/token"
				return p
			},
			wantErr: "token url",
		},
		{
			name: "unsupported transfer scheme",
			mutate: func(p CarrierProfile) CarrierProfile {
				p.TransferURL = "ftp://transfer.acme.test/soap"
				return p
			},
			wantErr: "transfer url",
		},
		{
			name: "consumer id required",
			mutate: func(p CarrierProfile) CarrierProfile {
				p.RequiresConsumerID = true
				p.ConsumerID = ""
				return p
			},
			wantErr: "consumer id",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.mutate(valid).Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("expected valid profile, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tc.wantErr)
			}
			if !errors.Is(err, ErrInvalidCarrierProfile) {
				t.Fatalf("expected ErrInvalidCarrierProfile, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestSecurityToken_ValidAtHonorsSafetyMargin(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	token := SecurityToken{
		Value:     "t",
		IssuedAt:  now.Add(-time.Minute),
		ExpiresAt: now.Add(90 * time.Second),
	}

	if !token.ValidAt(now, time.Minute) {
		t.Fatalf("expected token valid outside safety margin")
	}
	if token.ValidAt(now, 2*time.Minute) {
		t.Fatalf("expected token invalid inside safety margin")
	}
	if (SecurityToken{}).ValidAt(now, 0) {
		t.Fatalf("expected empty token to be invalid")
	}
}

func TestDownloadTask_TransitionTo(t *testing.T) {
	now := time.Now().UTC()
	task := &DownloadTask{Status: TaskStatusPending}

	steps := []TaskStatus{TaskStatusInProgress, TaskStatusRetrying, TaskStatusInProgress, TaskStatusSucceeded}
	for _, status := range steps {
		if err := task.TransitionTo(status, now); err != nil {
			t.Fatalf("transition to %s: %v", status, err)
		}
	}
	if !task.Status.Terminal() {
		t.Fatalf("expected terminal status, got %s", task.Status)
	}

	if err := task.TransitionTo(TaskStatusInProgress, now); !errors.Is(err, ErrInvalidTaskStatusTransition) {
		t.Fatalf("expected invalid transition out of terminal state, got %v", err)
	}

	fresh := &DownloadTask{Status: TaskStatusPending}
	if err := fresh.TransitionTo(TaskStatusSucceeded, now); !errors.Is(err, ErrInvalidTaskStatusTransition) {
		t.Fatalf("expected pending -> succeeded to be rejected, got %v", err)
	}
	if err := fresh.TransitionTo(TaskStatusCancelled, now); err != nil {
		t.Fatalf("expected pending -> cancelled to be allowed, got %v", err)
	}

	retrying := &DownloadTask{Status: TaskStatusRetrying}
	if err := retrying.TransitionTo(TaskStatusCancelled, now); err != nil {
		t.Fatalf("expected retrying -> cancelled to be allowed, got %v", err)
	}
}

func TestDownloadTask_SuccessClearsLastError(t *testing.T) {
	now := time.Now().UTC()
	task := &DownloadTask{Status: TaskStatusInProgress, LastError: "timeout"}
	if err := task.TransitionTo(TaskStatusSucceeded, now); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if task.LastError != "" {
		t.Fatalf("expected last error cleared on success, got %q", task.LastError)
	}
}

func TestBatch_TransitionTo(t *testing.T) {
	now := time.Now().UTC()
	batch := &Batch{Status: BatchStatusRunning}
	if err := batch.TransitionTo(BatchStatusPartiallyFailed, now); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if err := batch.TransitionTo(BatchStatusRunning, now); !errors.Is(err, ErrInvalidBatchStatusTransition) {
		t.Fatalf("expected terminal batch to reject transitions, got %v", err)
	}
}

func TestBatchResult_FinalizePartialFailure(t *testing.T) {
	result := BatchResult{BatchID: "b1", CarrierID: "acme"}
	for i := 0; i < 10; i++ {
		task := TaskResult{ShipmentID: string(rune('a' + i)), Status: TaskStatusSucceeded}
		if i == 4 {
			task.Status = TaskStatusFailed
			task.Error = "multipart boundary missing"
		}
		result.Tasks = append(result.Tasks, task)
	}

	result.Finalize(false)

	if result.Succeeded != 9 || result.Failed != 1 {
		t.Fatalf("expected 9 succeeded / 1 failed, got %d/%d", result.Succeeded, result.Failed)
	}
	if result.Status != BatchStatusPartiallyFailed {
		t.Fatalf("expected partially_failed, got %s", result.Status)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "boundary") {
		t.Fatalf("expected one collected error, got %#v", result.Errors)
	}
}

func TestBatchResult_FinalizeStatuses(t *testing.T) {
	allOK := BatchResult{Tasks: []TaskResult{{Status: TaskStatusSucceeded}, {Status: TaskStatusSucceeded}}}
	allOK.Finalize(false)
	if allOK.Status != BatchStatusSucceeded {
		t.Fatalf("expected succeeded, got %s", allOK.Status)
	}

	allFailed := BatchResult{Tasks: []TaskResult{{Status: TaskStatusFailed}, {Status: TaskStatusFailed}}}
	allFailed.Finalize(false)
	if allFailed.Status != BatchStatusFailed {
		t.Fatalf("expected failed, got %s", allFailed.Status)
	}

	cancelled := BatchResult{Tasks: []TaskResult{{Status: TaskStatusSucceeded}, {Status: TaskStatusCancelled}}}
	cancelled.Finalize(true)
	if cancelled.Status != BatchStatusCancelled {
		t.Fatalf("expected cancelled to win, got %s", cancelled.Status)
	}
	if cancelled.Cancelled != 1 {
		t.Fatalf("expected one cancelled task, got %d", cancelled.Cancelled)
	}

	skippedOnly := BatchResult{Skipped: 3}
	skippedOnly.Finalize(false)
	if skippedOnly.Status != BatchStatusSucceeded {
		t.Fatalf("expected skipped-only batch to succeed, got %s", skippedOnly.Status)
	}
}

func TestBatchResult_FinalizeAggregatesWarnings(t *testing.T) {
	result := BatchResult{
		Tasks: []TaskResult{
			{
				Status: TaskStatusSucceeded,
				Warnings: []Warning{
					{Code: WarningCodeContentIntegrity, Message: "declared pdf lacks magic number", ContentID: "cid-1"},
				},
			},
			{Status: TaskStatusSucceeded},
		},
	}
	result.Finalize(false)

	if len(result.Warnings) != 1 {
		t.Fatalf("expected one aggregated warning, got %d", len(result.Warnings))
	}
	if result.Status != BatchStatusSucceeded {
		t.Fatalf("expected warnings not to affect status, got %s", result.Status)
	}
	if got := result.Warnings[0].String(); !strings.Contains(got, "cid-1") {
		t.Fatalf("expected warning string to carry content id, got %q", got)
	}
}

func TestJournalEntry_Delivered(t *testing.T) {
	if (JournalEntry{Status: JournalStatusFailed}).Delivered() {
		t.Fatalf("failed entry must not count as delivered")
	}
	if !(JournalEntry{Status: JournalStatusDelivered}).Delivered() {
		t.Fatalf("delivered entry must count as delivered")
	}
}
