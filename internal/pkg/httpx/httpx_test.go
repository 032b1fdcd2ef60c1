package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

type statusErr struct{ code int }

func (e *statusErr) Error() string       { return fmt.Sprintf("http %d", e.code) }
func (e *statusErr) HTTPStatusCode() int { return e.code }

func TestIsRetryableHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 599} {
		if !IsRetryableHTTPStatus(code) {
			t.Fatalf("status %d should be retryable", code)
		}
	}
	for _, code := range []int{200, 301, 400, 401, 403, 404, 409} {
		if IsRetryableHTTPStatus(code) {
			t.Fatalf("status %d should not be retryable", code)
		}
	}
}

func TestIsRetryableError(t *testing.T) {
	if IsRetryableError(nil) {
		t.Fatalf("nil error is not retryable")
	}
	if IsRetryableError(context.Canceled) {
		t.Fatalf("cancellation must never be retried")
	}
	if !IsRetryableError(context.DeadlineExceeded) {
		t.Fatalf("deadline exceeded is retryable")
	}
	if !IsRetryableError(&statusErr{code: 502}) {
		t.Fatalf("502 is retryable")
	}
	if IsRetryableError(&statusErr{code: 404}) {
		t.Fatalf("404 is not retryable")
	}
	if IsRetryableError(errors.New("opaque")) {
		t.Fatalf("unclassified errors are not retryable")
	}
}

func TestRetryAfterDuration(t *testing.T) {
	resp := &http.Response{Header: http.Header{"Retry-After": []string{"3"}}}
	if got := RetryAfterDuration(resp, time.Second, 10*time.Second); got != 3*time.Second {
		t.Fatalf("Retry-After header: want=3s got=%s", got)
	}
	if got := RetryAfterDuration(nil, time.Second, 10*time.Second); got != time.Second {
		t.Fatalf("fallback: want=1s got=%s", got)
	}
	resp = &http.Response{Header: http.Header{"Retry-After": []string{"120"}}}
	if got := RetryAfterDuration(resp, time.Second, 10*time.Second); got != 10*time.Second {
		t.Fatalf("cap: want=10s got=%s", got)
	}
}

func TestJitterSleepBounds(t *testing.T) {
	if got := JitterSleep(0); got != 0 {
		t.Fatalf("zero base: want=0 got=%s", got)
	}
	base := time.Second
	for i := 0; i < 50; i++ {
		got := JitterSleep(base)
		if got < 800*time.Millisecond || got > 1200*time.Millisecond {
			t.Fatalf("jitter out of bounds: %s", got)
		}
	}
}
