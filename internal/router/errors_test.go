package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

type timeoutNetErr struct{}

func (timeoutNetErr) Error() string   { return "dial tcp: i/o timeout" }
func (timeoutNetErr) Timeout() bool   { return true }
func (timeoutNetErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{
			name: "typed error keeps kind",
			err:  &Error{Kind: KindRateLimit, Provider: ProviderOpenAI},
			want: KindRateLimit,
		},
		{
			name: "wrapped typed error keeps kind",
			err:  fmt.Errorf("dispatch: %w", &Error{Kind: KindServerError}),
			want: KindServerError,
		},
		{
			name: "deadline exceeded",
			err:  context.DeadlineExceeded,
			want: KindTimeout,
		},
		{
			name: "wrapped deadline exceeded",
			err:  fmt.Errorf("call upstream: %w", context.DeadlineExceeded),
			want: KindTimeout,
		},
		{
			name: "network timeout",
			err:  timeoutNetErr{},
			want: KindTimeout,
		},
		{
			name: "plain error",
			err:  errors.New("connection refused"),
			want: KindUnknown,
		},
		{
			name: "context canceled",
			err:  context.Canceled,
			want: KindUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestErrorKind_Retryable(t *testing.T) {
	retryable := []ErrorKind{KindTimeout, KindRateLimit, KindServerError}
	for _, k := range retryable {
		if !k.Retryable() {
			t.Errorf("expected %s to be retryable", k)
		}
	}

	terminal := []ErrorKind{
		KindUnknown, KindValidation, KindPolicyViolation,
		KindCircuitOpen, KindNoProviders,
	}
	for _, k := range terminal {
		if k.Retryable() {
			t.Errorf("expected %s to be terminal", k)
		}
	}
}

func TestError_Message(t *testing.T) {
	e := &Error{Kind: KindServerError, Provider: ProviderAnthropic, Message: "upstream 503"}
	if got := e.Error(); got != "anthropic: server_error: upstream 503" {
		t.Errorf("unexpected message: %q", got)
	}

	e = &Error{Kind: KindNoProviders, Message: "no providers available"}
	if got := e.Error(); got != "no_providers: no providers available" {
		t.Errorf("unexpected message: %q", got)
	}

	// Falls back to the wrapped error when no message is set.
	e = &Error{Kind: KindUnknown, Provider: ProviderGemini, Err: errors.New("boom")}
	if got := e.Error(); !strings.Contains(got, "boom") {
		t.Errorf("expected wrapped cause in message, got %q", got)
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("tls handshake failed")
	e := &Error{Kind: KindUnknown, Err: cause}
	if !errors.Is(e, cause) {
		t.Error("expected errors.Is to reach the cause")
	}
}

func TestExhaustedError_PreservesAttemptOrder(t *testing.T) {
	e := &ExhaustedError{
		Operation: "draft_progress_note",
		Attempts: []ProviderFailure{
			{Provider: ProviderAnthropic, Kind: KindTimeout},
			{Provider: ProviderOpenAI, Kind: KindServerError},
			{Provider: ProviderGemini, Kind: KindValidation},
		},
	}

	msg := e.Error()
	ia := strings.Index(msg, "anthropic")
	io := strings.Index(msg, "openai")
	ig := strings.Index(msg, "gemini")
	if ia < 0 || io < 0 || ig < 0 || !(ia < io && io < ig) {
		t.Errorf("expected providers in failover order, got %q", msg)
	}
	if !strings.Contains(msg, "draft_progress_note") {
		t.Errorf("expected operation name in message, got %q", msg)
	}
}

func TestExhaustedError_UnwrapReachesCauses(t *testing.T) {
	cause := errors.New("upstream 500")
	e := &ExhaustedError{
		Operation: "summarize_session",
		Attempts: []ProviderFailure{
			{Provider: ProviderAnthropic, Kind: KindServerError, Err: &Error{Kind: KindServerError, Err: cause}},
		},
	}
	if !errors.Is(e, cause) {
		t.Error("expected errors.Is to traverse the failure chain")
	}

	var rerr *Error
	if !errors.As(e, &rerr) {
		t.Fatal("expected errors.As to find a routing error in the chain")
	}
	if rerr.Kind != KindServerError {
		t.Errorf("expected server_error, got %s", rerr.Kind)
	}
}
