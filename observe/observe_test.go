package observe

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{
			name:    "missing service name",
			cfg:     Config{},
			wantErr: ErrMissingServiceName,
		},
		{
			name: "valid minimal",
			cfg:  Config{ServiceName: "relaykit"},
		},
		{
			name: "bad tracing exporter",
			cfg: Config{
				ServiceName: "relaykit",
				Tracing:     TracingConfig{Enabled: true, Exporter: "zipkin"},
			},
			wantErr: ErrInvalidTracingExporter,
		},
		{
			name: "bad sample pct",
			cfg: Config{
				ServiceName: "relaykit",
				Tracing:     TracingConfig{Enabled: true, Exporter: "none", SamplePct: 1.5},
			},
			wantErr: ErrInvalidSamplePct,
		},
		{
			name: "bad metrics exporter",
			cfg: Config{
				ServiceName: "relaykit",
				Metrics:     MetricsConfig{Enabled: true, Exporter: "statsd"},
			},
			wantErr: ErrInvalidMetricsExporter,
		},
		{
			name: "bad log level",
			cfg: Config{
				ServiceName: "relaykit",
				Logging:     LoggingConfig{Enabled: true, Level: "trace"},
			},
			wantErr: ErrInvalidLogLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewObserver_DisabledSubsystemsAreNoop(t *testing.T) {
	ctx := context.Background()
	obs, err := NewObserver(ctx, Config{ServiceName: "relaykit"})
	if err != nil {
		t.Fatalf("NewObserver error = %v", err)
	}
	defer obs.Shutdown(ctx)

	// All primitives must be usable without panicking.
	_, span := obs.Tracer().Start(ctx, "noop-span")
	span.End()
	obs.Logger().Info(ctx, "discarded")

	if err := obs.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown error = %v", err)
	}
}

func TestNewObserver_WithNoneExporters(t *testing.T) {
	ctx := context.Background()
	obs, err := NewObserver(ctx, Config{
		ServiceName: "relaykit",
		Version:     "test",
		Tracing:     TracingConfig{Enabled: true, Exporter: "none", SamplePct: 1.0},
		Metrics:     MetricsConfig{Enabled: true, Exporter: "none"},
		Logging:     LoggingConfig{Enabled: true, Level: "error"},
	})
	if err != nil {
		t.Fatalf("NewObserver error = %v", err)
	}

	mw, err := MiddlewareFromObserver(obs)
	if err != nil {
		t.Fatalf("MiddlewareFromObserver error = %v", err)
	}

	called := false
	fn := mw.Wrap(func(ctx context.Context, meta CallMeta) (any, error) {
		called = true
		return "ok", nil
	})

	result, err := fn(ctx, CallMeta{Operation: "listCampaigns", Method: "GET", Path: "/campaigns"})
	if err != nil {
		t.Errorf("wrapped call error = %v", err)
	}
	if !called || result != "ok" {
		t.Errorf("wrapped call = (%v, called=%v), want (\"ok\", true)", result, called)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := obs.Shutdown(shutdownCtx); err != nil {
		t.Errorf("Shutdown error = %v", err)
	}
}

func TestMiddleware_PropagatesErrorUnchanged(t *testing.T) {
	obs, err := NewObserver(context.Background(), Config{ServiceName: "relaykit"})
	if err != nil {
		t.Fatalf("NewObserver error = %v", err)
	}

	mw, err := MiddlewareFromObserver(obs)
	if err != nil {
		t.Fatalf("MiddlewareFromObserver error = %v", err)
	}

	wantErr := errors.New("upstream 503")
	fn := mw.Wrap(func(ctx context.Context, meta CallMeta) (any, error) {
		return nil, wantErr
	})

	_, err = fn(context.Background(), CallMeta{Operation: "createCampaign"})
	if !errors.Is(err, wantErr) {
		t.Errorf("wrapped error = %v, want %v unchanged", err, wantErr)
	}
}

func TestCallMeta_SpanName(t *testing.T) {
	meta := CallMeta{Operation: "listCampaigns"}
	if got := meta.SpanName(); got != "api.call.listCampaigns" {
		t.Errorf("SpanName() = %q, want api.call.listCampaigns", got)
	}
}
