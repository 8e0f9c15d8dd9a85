package tracing

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

func TestSafeAttributesDropsSensitiveKeys(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/api/donations"),
		attribute.String("donor_email", "a@example.org"),
		attribute.String("stripe_secret", "sk"),
	)
	if len(attrs) != 1 || attrs[0].Key != "http.route" {
		t.Fatalf("expected only http.route, got %v", attrs)
	}
}

type leakyError struct{ msg string }

func (e *leakyError) Error() string { return e.msg }

func TestSafeErrorHidesMessage(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &leakyError{msg: "donor a@example.org"})
	safe := SafeError(err)
	if strings.Contains(safe.Error(), "example.org") {
		t.Fatalf("expected message to be scrubbed, got %q", safe.Error())
	}
	if SafeError(nil) != nil {
		t.Fatal("expected nil for nil error")
	}
	if !strings.Contains(SafeError(errors.New("x")).Error(), "errorString") {
		t.Fatalf("expected type name, got %q", SafeError(errors.New("x")).Error())
	}
}

func TestNewProviderDisabled(t *testing.T) {
	provider, err := NewProvider(nil, Config{ServiceName: "givebox"}, zap.NewNop())
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	if provider == nil {
		t.Fatal("expected provider")
	}
}
