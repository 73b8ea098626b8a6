package command

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-carriers/core"
)

func TestDownloadBatchMessage_ValidateReturnsRichError(t *testing.T) {
	err := (DownloadBatchMessage{}).Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
	if rich.TextCode != core.CarrierErrorBadInput {
		t.Fatalf("expected %q text code, got %q", core.CarrierErrorBadInput, rich.TextCode)
	}
	validation := rich.AllValidationErrors()
	if len(validation) == 0 || validation[0].Field != "carrier_id" {
		t.Fatalf("expected carrier_id validation field, got %+v", validation)
	}
}

func TestDownloadBatchCommand_NilServiceReturnsRichError(t *testing.T) {
	var cmd *DownloadBatchCommand
	err := cmd.Execute(context.Background(), DownloadBatchMessage{})
	if err == nil {
		t.Fatalf("expected command dependency error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
	if rich.TextCode != core.CarrierErrorInternal {
		t.Fatalf("expected %q text code, got %q", core.CarrierErrorInternal, rich.TextCode)
	}
}
