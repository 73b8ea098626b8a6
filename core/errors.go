package core

import (
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	CarrierErrorBadInput          = "CARRIER_BAD_INPUT"
	CarrierErrorProfileNotFound   = "CARRIER_PROFILE_NOT_FOUND"
	CarrierErrorAuthFailed        = "CARRIER_AUTH_FAILED"
	CarrierErrorTokenRejected     = "CARRIER_TOKEN_REJECTED"
	CarrierErrorThrottled         = "CARRIER_THROTTLED"
	CarrierErrorTransientNetwork  = "CARRIER_TRANSIENT_NETWORK"
	CarrierErrorMalformedResponse = "CARRIER_MALFORMED_RESPONSE"
	CarrierErrorSOAPFault         = "CARRIER_SOAP_FAULT"
	CarrierErrorAckFailed         = "CARRIER_ACK_FAILED"
	CarrierErrorExternalFailure   = "CARRIER_EXTERNAL_FAILURE"
	CarrierErrorInternal          = "CARRIER_INTERNAL_ERROR"
)

const (
	errMetaCarrierID  = "carrier_id"
	errMetaShipmentID = "shipment_id"
	errMetaStatusCode = "status_code"
	errMetaRetryAfter = "retry_after"
)

// NewAuthError marks a carrier's token negotiation as exhausted. This is the
// one error class that aborts a whole batch.
func NewAuthError(carrierID string, message string, cause error) *goerrors.Error {
	return carrierErrorEnvelope(wrapOrNew(cause, goerrors.CategoryAuth, message).
		WithTextCode(CarrierErrorAuthFailed).
		WithMetadata(map[string]any{errMetaCarrierID: strings.TrimSpace(carrierID)}))
}

// NewTokenRejectedError reports a 401/403 on a transfer call. The orchestrator
// invalidates the cached token and retries exactly once.
func NewTokenRejectedError(carrierID string, statusCode int) *goerrors.Error {
	return carrierErrorEnvelope(goerrors.New("carrier rejected security token", goerrors.CategoryAuth).
		WithCode(statusCode).
		WithTextCode(CarrierErrorTokenRejected).
		WithMetadata(map[string]any{
			errMetaCarrierID:  strings.TrimSpace(carrierID),
			errMetaStatusCode: statusCode,
		}))
}

// NewThrottledError is the internal 429/503 signal consumed by the rate
// limiter. It never surfaces as a shipment failure.
func NewThrottledError(carrierID string, statusCode int, retryAfter time.Duration) *goerrors.Error {
	metadata := map[string]any{
		errMetaCarrierID:  strings.TrimSpace(carrierID),
		errMetaStatusCode: statusCode,
	}
	if retryAfter > 0 {
		metadata[errMetaRetryAfter] = retryAfter.String()
	}
	return carrierErrorEnvelope(goerrors.New("carrier throttled request", goerrors.CategoryRateLimit).
		WithCode(statusCode).
		WithTextCode(CarrierErrorThrottled).
		WithMetadata(metadata))
}

// NewTransientError wraps timeouts, connection resets, and 5xx responses.
func NewTransientError(carrierID string, op string, cause error) *goerrors.Error {
	message := "carrier call failed"
	if op = strings.TrimSpace(op); op != "" {
		message = "carrier " + op + " failed"
	}
	return carrierErrorEnvelope(wrapOrNew(cause, goerrors.CategoryExternal, message).
		WithTextCode(CarrierErrorTransientNetwork).
		WithMetadata(map[string]any{errMetaCarrierID: strings.TrimSpace(carrierID)}))
}

// NewMalformedResponseError reports an unparseable carrier response. It fails
// only the affected shipment.
func NewMalformedResponseError(carrierID string, detail string, cause error) *goerrors.Error {
	message := "carrier response is malformed"
	if detail = strings.TrimSpace(detail); detail != "" {
		message = "carrier response is malformed: " + detail
	}
	return carrierErrorEnvelope(wrapOrNew(cause, goerrors.CategoryExternal, message).
		WithTextCode(CarrierErrorMalformedResponse).
		WithMetadata(map[string]any{errMetaCarrierID: strings.TrimSpace(carrierID)}))
}

// NewSOAPFaultError carries a SOAP fault returned by the carrier.
func NewSOAPFaultError(carrierID string, faultCode string, faultString string) *goerrors.Error {
	message := "carrier returned soap fault"
	if faultString = strings.TrimSpace(faultString); faultString != "" {
		message = "carrier returned soap fault: " + faultString
	}
	return carrierErrorEnvelope(goerrors.New(message, goerrors.CategoryExternal).
		WithTextCode(CarrierErrorSOAPFault).
		WithMetadata(map[string]any{
			errMetaCarrierID: strings.TrimSpace(carrierID),
			"fault_code":     strings.TrimSpace(faultCode),
		}))
}

// NewAckError reports a failed acknowledgment after a successful download.
// Logged and recorded; it does not undo the download.
func NewAckError(carrierID string, shipmentID string, cause error) *goerrors.Error {
	return carrierErrorEnvelope(wrapOrNew(cause, goerrors.CategoryExternal, "carrier acknowledge failed").
		WithTextCode(CarrierErrorAckFailed).
		WithMetadata(map[string]any{
			errMetaCarrierID:  strings.TrimSpace(carrierID),
			errMetaShipmentID: strings.TrimSpace(shipmentID),
		}))
}

func IsAuthError(err error) bool {
	rich := asCarrierError(err)
	return rich != nil && (rich.Category == goerrors.CategoryAuth || rich.Category == goerrors.CategoryAuthz)
}

func IsTokenRejected(err error) bool {
	rich := asCarrierError(err)
	return rich != nil && rich.TextCode == CarrierErrorTokenRejected
}

func IsThrottled(err error) bool {
	rich := asCarrierError(err)
	return rich != nil && rich.Category == goerrors.CategoryRateLimit
}

func IsTransient(err error) bool {
	rich := asCarrierError(err)
	return rich != nil && rich.TextCode == CarrierErrorTransientNetwork
}

func IsMalformed(err error) bool {
	rich := asCarrierError(err)
	return rich != nil && rich.TextCode == CarrierErrorMalformedResponse
}

// RetryAfter extracts a carrier-provided retry hint, zero when absent.
func RetryAfter(err error) time.Duration {
	rich := asCarrierError(err)
	if rich == nil || len(rich.Metadata) == 0 {
		return 0
	}
	raw, ok := rich.Metadata[errMetaRetryAfter]
	if !ok {
		return 0
	}
	switch typed := raw.(type) {
	case time.Duration:
		return typed
	case string:
		parsed, parseErr := time.ParseDuration(strings.TrimSpace(typed))
		if parseErr == nil && parsed > 0 {
			return parsed
		}
	}
	return 0
}

func asCarrierError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich
	}
	return nil
}

func wrapOrNew(cause error, category goerrors.Category, message string) *goerrors.Error {
	if cause == nil {
		return goerrors.New(message, category)
	}
	// Wrap keeps a rich cause's category; the constructor's classification
	// must win so IsAuthError and friends see the outer intent.
	wrapped := goerrors.Wrap(cause, category, message)
	wrapped.Category = category
	return wrapped
}

// carrierErrorMapper normalizes arbitrary errors into the carrier envelope.
// Already-rich errors keep their classification; everything else is sniffed
// from the message before falling back to the default mappers.
func carrierErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return carrierErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "profile") && strings.Contains(msg, "not found"):
		return newCarrierError(err.Error(), goerrors.CategoryNotFound, CarrierErrorProfileNotFound)
	case strings.Contains(msg, "throttl"), strings.Contains(msg, "rate limit"):
		return newCarrierError(err.Error(), goerrors.CategoryRateLimit, CarrierErrorThrottled)
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"),
		strings.Contains(msg, "connection reset"), strings.Contains(msg, "connection refused"):
		return newCarrierError(err.Error(), goerrors.CategoryExternal, CarrierErrorTransientNetwork)
	case strings.Contains(msg, "boundary"), strings.Contains(msg, "multipart"), strings.Contains(msg, "malformed"):
		return newCarrierError(err.Error(), goerrors.CategoryExternal, CarrierErrorMalformedResponse)
	case strings.Contains(msg, "unauthorized"), strings.Contains(msg, "token"):
		return newCarrierError(err.Error(), goerrors.CategoryAuth, CarrierErrorTokenRejected)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newCarrierError(err.Error(), goerrors.CategoryBadInput, CarrierErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return carrierErrorEnvelope(mapped)
}

func newCarrierError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return carrierErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func carrierErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = carrierHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultCarrierTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultCarrierTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return CarrierErrorBadInput
	case goerrors.CategoryNotFound:
		return CarrierErrorProfileNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return CarrierErrorTokenRejected
	case goerrors.CategoryRateLimit:
		return CarrierErrorThrottled
	case goerrors.CategoryExternal, goerrors.CategoryOperation:
		return CarrierErrorExternalFailure
	default:
		return CarrierErrorInternal
	}
}

func carrierHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
