package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

// TestLogger_IncludesCallFields verifies call fields are present in log output.
func TestLogger_IncludesCallFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	meta := CallMeta{
		Operation: "listCampaigns",
		Method:    "GET",
		Path:      "/rest/v1/campaigns",
	}

	callLogger := logger.WithCall(meta)
	callLogger.Info(context.Background(), "test message")

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log output as JSON: %v\nOutput: %s", err, buf.String())
	}

	if v, ok := logEntry["call.operation"].(string); !ok || v != "listCampaigns" {
		t.Errorf("expected call.operation='listCampaigns', got %v", logEntry["call.operation"])
	}
	if v, ok := logEntry["call.method"].(string); !ok || v != "GET" {
		t.Errorf("expected call.method='GET', got %v", logEntry["call.method"])
	}
	if v, ok := logEntry["call.path"].(string); !ok || v != "/rest/v1/campaigns" {
		t.Errorf("expected call.path='/rest/v1/campaigns', got %v", logEntry["call.path"])
	}
}

// TestLogger_LevelFiltering verifies messages below the level are dropped.
func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("warn", &buf)
	ctx := context.Background()

	logger.Debug(ctx, "dropped")
	logger.Info(ctx, "dropped too")
	logger.Warn(ctx, "kept")
	logger.Error(ctx, "kept as well")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "kept") {
		t.Errorf("first kept line = %s", lines[0])
	}
}

// TestLogger_RedactsCredentialFields verifies sensitive fields are redacted.
func TestLogger_RedactsCredentialFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.Info(context.Background(), "credential refresh",
		Field{Key: "api_key", Value: "super-secret"},
		Field{Key: "attempt", Value: 1},
	)

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}

	if v := logEntry["api_key"]; v != "[REDACTED]" {
		t.Errorf("api_key = %v, want [REDACTED]", v)
	}
	if v := logEntry["attempt"]; v != float64(1) {
		t.Errorf("attempt = %v, want 1", v)
	}
	if strings.Contains(buf.String(), "super-secret") {
		t.Error("raw credential leaked into log output")
	}
}

// TestLogger_ErrorLevel verifies error log level and error field.
func TestLogger_ErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	callLogger := logger.WithCall(CallMeta{Operation: "createCampaign"})
	callLogger.Error(context.Background(), "api call failed",
		Field{Key: "error", Value: "connection timeout"},
	)

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}

	if v, ok := logEntry["level"].(string); !ok || v != "error" {
		t.Errorf("expected level='error', got %v", logEntry["level"])
	}
	if v, ok := logEntry["error"].(string); !ok || v != "connection timeout" {
		t.Errorf("expected error='connection timeout', got %v", logEntry["error"])
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLogLevel(tt.in); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()
	// Must not panic, and WithCall must keep returning a usable logger.
	logger.WithCall(CallMeta{Operation: "x"}).Info(context.Background(), "discarded")
}
