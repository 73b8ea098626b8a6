package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-carriers/core"
)

const (
	headerSignature = "X-Carriers-Signature"
	headerDelivery  = "X-Carriers-Delivery"
	headerTimestamp = "X-Carriers-Timestamp"
)

const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 500 * time.Millisecond
	defaultMaxBackoff     = 5 * time.Second
	defaultTimeout        = 10 * time.Second
)

type Option func(*HTTPNotifier)

// HTTPNotifier posts finished batch results to a callback endpoint. Delivery
// failures never fail the batch; the caller logs the returned error and
// moves on.
type HTTPNotifier struct {
	transport core.TransportAdapter
	endpoint  string
	secret    []byte

	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	timeout        time.Duration

	logger core.Logger
	now    func() time.Time
}

func WithNotifierLogger(logger core.Logger) Option {
	return func(n *HTTPNotifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

func WithMaxAttempts(attempts int) Option {
	return func(n *HTTPNotifier) {
		if attempts > 0 {
			n.maxAttempts = attempts
		}
	}
}

func WithBackoff(initial, max time.Duration) Option {
	return func(n *HTTPNotifier) {
		if initial > 0 {
			n.initialBackoff = initial
		}
		if max > 0 {
			n.maxBackoff = max
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(n *HTTPNotifier) {
		if timeout > 0 {
			n.timeout = timeout
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(n *HTTPNotifier) {
		if now != nil {
			n.now = now
		}
	}
}

func NewHTTPNotifier(transport core.TransportAdapter, endpoint string, secret []byte, opts ...Option) (*HTTPNotifier, error) {
	if transport == nil {
		return nil, fmt.Errorf("notify: transport adapter is required")
	}
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("notify: endpoint url is required")
	}
	if len(secret) == 0 {
		return nil, fmt.Errorf("notify: signing secret is required")
	}
	n := &HTTPNotifier{
		transport:      transport,
		endpoint:       endpoint,
		secret:         append([]byte(nil), secret...),
		maxAttempts:    defaultMaxAttempts,
		initialBackoff: defaultInitialBackoff,
		maxBackoff:     defaultMaxBackoff,
		timeout:        defaultTimeout,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	return n, nil
}

// OnBatchComplete delivers the batch result, retrying transient failures
// with exponential backoff. Non-2xx responses below 500 are treated as
// permanent: the receiver saw the payload and rejected it.
func (n *HTTPNotifier) OnBatchComplete(ctx context.Context, result core.BatchResult) error {
	if n == nil {
		return fmt.Errorf("notify: notifier is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("notify: encode batch result: %w", err)
	}

	deliveryID := uuid.NewString()
	timestamp := strconv.FormatInt(n.now().Unix(), 10)
	signature := n.sign(timestamp, body)

	scheduler := core.ExponentialBackoffScheduler{Initial: n.initialBackoff, Max: n.maxBackoff}
	var lastErr error
	for attempt := 1; attempt <= n.maxAttempts; attempt++ {
		resp, err := n.transport.Do(ctx, core.TransportRequest{
			Method: http.MethodPost,
			URL:    n.endpoint,
			Headers: map[string]string{
				"Content-Type":  "application/json",
				headerSignature: signature,
				headerDelivery:  deliveryID,
				headerTimestamp: timestamp,
			},
			Body:        body,
			Timeout:     n.timeout,
			Idempotency: deliveryID,
		})
		switch {
		case err != nil:
			lastErr = err
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("notify: endpoint returned status %d", resp.StatusCode)
		default:
			return fmt.Errorf("notify: endpoint rejected delivery %s with status %d", deliveryID, resp.StatusCode)
		}

		if attempt == n.maxAttempts {
			break
		}
		n.logRetry(ctx, deliveryID, attempt, lastErr)
		if waitErr := core.WaitWithContext(ctx, scheduler.NextDelay(attempt)); waitErr != nil {
			return waitErr
		}
	}
	return fmt.Errorf("notify: delivery %s failed after %d attempts: %w", deliveryID, n.maxAttempts, lastErr)
}

// sign computes sha256=<hex hmac> over "<timestamp>.<body>" so a replayed
// payload cannot reuse an old signature with a new timestamp.
func (n *HTTPNotifier) sign(timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, n.secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a received signature header against the payload.
// Receivers embed this to authenticate callbacks.
func VerifySignature(secret []byte, timestamp string, body []byte, signatureHeader string) bool {
	expected := strings.TrimPrefix(strings.TrimSpace(signatureHeader), "sha256=")
	raw, err := hex.DecodeString(expected)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), raw)
}

func (n *HTTPNotifier) logRetry(ctx context.Context, deliveryID string, attempt int, cause error) {
	if n.logger == nil || cause == nil {
		return
	}
	logger := n.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	logger.Warn("batch completion delivery retrying",
		"delivery_id", deliveryID,
		"attempt", attempt,
		"error", cause.Error(),
	)
}

var _ core.CompletionHandler = (*HTTPNotifier)(nil)
