package otel

import (
	"context"
	"testing"

	"moneymarket/config"
)

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders(" x-api-key = abc ,broken,=empty, tenant=mm ")
	if len(got) != 2 || got["x-api-key"] != "abc" || got["tenant"] != "mm" {
		t.Fatalf("unexpected headers %v", got)
	}
}

func TestInitDisabledIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), "lendingd", "test", config.Telemetry{})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestInitRequiresServiceName(t *testing.T) {
	if _, err := Init(context.Background(), " ", "", config.Telemetry{}); err == nil {
		t.Fatalf("expected error for empty service name")
	}
}
