package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"sort"
	"testing"
)

func TestSetupMasksSensitiveAttributes(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	var buf bytes.Buffer
	logger := setup(&buf, "lendingd", "test", "debug")
	logger.Debug("request", "api_token", "secret-value", "asset", "mmasset1")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line["api_token"] != RedactedValue {
		t.Fatalf("expected token to be redacted, got %v", line["api_token"])
	}
	if line["asset"] != "mmasset1" {
		t.Fatalf("expected asset to pass through, got %v", line["asset"])
	}
	if line["severity"] != "DEBUG" || line["service"] != "lendingd" || line["env"] != "test" {
		t.Fatalf("unexpected envelope %v", line)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for input, want := range cases {
		if got := ParseLevel(input); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestIsSensitive(t *testing.T) {
	for _, key := range []string{"Authorization", "event_store_dsn", "otel_headers"} {
		if !IsSensitive(key) {
			t.Fatalf("expected %s to be sensitive", key)
		}
	}
	for _, key := range []string{"error", "asset", "status"} {
		if IsSensitive(key) {
			t.Fatalf("expected %s to pass through", key)
		}
	}
}

func TestRedactionAllowlist(t *testing.T) {
	keys := RedactionAllowlist()
	if !sort.StringsAreSorted(keys) {
		t.Fatalf("allowlist not sorted: %v", keys)
	}
	for _, key := range keys {
		if IsSensitive(key) {
			t.Fatalf("allowlisted key %s reported sensitive", key)
		}
	}
}

func TestMaskField(t *testing.T) {
	if attr := MaskField("dsn", "postgres://lending:pw@db/lending"); attr.Value.String() != RedactedValue {
		t.Fatalf("expected dsn to be masked, got %s", attr.Value.String())
	}
	if attr := MaskField("component", "lending-api"); attr.Value.String() != "lending-api" {
		t.Fatalf("expected allowlisted key to pass through, got %s", attr.Value.String())
	}
	if attr := MaskField("dsn", " "); attr.Value.String() != " " {
		t.Fatalf("expected blank value to stay blank, got %q", attr.Value.String())
	}
}
