package otel

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// Init configures the global tracer provider with an OTLP exporter and
// returns its shutdown function. Tracing never blocks startup: with
// OTEL_SDK_DISABLED=true, or when the exporter cannot be built, the
// provider stays a no-op and only the propagator is installed.
func Init(ctx context.Context, loc *time.Location) (func(context.Context) error, error) {
	setPropagator()

	if os.Getenv("OTEL_SDK_DISABLED") == "true" {
		logEvent(loc, "info", "tracing_configured", map[string]any{
			"tracing_enabled": false,
		})
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(envOr("OTEL_SERVICE_NAME", "docstore")),
		),
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	protocol := envOr("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")

	var exporter *otlptrace.Exporter
	var expErr error
	switch protocol {
	case "grpc":
		exporter, expErr = otlptracegrpc.New(ctx)
	case "http/protobuf":
		exporter, expErr = otlptracehttp.New(ctx)
	default:
		expErr = fmt.Errorf("unsupported OTLP protocol: %s", protocol)
	}
	if expErr != nil {
		logEvent(loc, "error", "tracing_init_failed", map[string]any{
			"error_message": expErr.Error(),
		})
		return func(context.Context) error { return nil }, nil
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(samplerFromEnv()),
	)
	otel.SetTracerProvider(tp)

	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT")
	if endpoint == "" {
		endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}

	logEvent(loc, "info", "tracing_configured", map[string]any{
		"tracing_enabled": true,
		"otlp_protocol":   protocol,
		"otlp_endpoint":   endpoint,
		"sampler":         envOr("OTEL_TRACES_SAMPLER", "parentbased_traceidratio"),
		"sampler_arg":     envOr("OTEL_TRACES_SAMPLER_ARG", "1.0"),
	})

	return tp.Shutdown, nil
}

func setPropagator() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

// samplerFromEnv follows the OTEL_TRACES_SAMPLER / _ARG conventions;
// anything unrecognized falls back to parent-based always-on.
func samplerFromEnv() trace.Sampler {
	ratio := 1.0
	if arg := os.Getenv("OTEL_TRACES_SAMPLER_ARG"); arg != "" {
		if parsed, err := strconv.ParseFloat(arg, 64); err == nil {
			ratio = parsed
		}
	}

	switch os.Getenv("OTEL_TRACES_SAMPLER") {
	case "always_on":
		return trace.AlwaysSample()
	case "always_off":
		return trace.NeverSample()
	case "traceidratio":
		return trace.TraceIDRatioBased(ratio)
	case "parentbased_always_on":
		return trace.ParentBased(trace.AlwaysSample())
	case "parentbased_always_off":
		return trace.ParentBased(trace.NeverSample())
	case "parentbased_traceidratio":
		return trace.ParentBased(trace.TraceIDRatioBased(ratio))
	default:
		return trace.ParentBased(trace.AlwaysSample())
	}
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

// logEvent emits one-line JSON, matching the rest of the codebase.
func logEvent(loc *time.Location, level, event string, fields map[string]any) {
	data := map[string]any{
		"component": "tracing",
		"event":     event,
		"level":     level,
		"ts":        time.Now().In(loc).Format(time.RFC3339Nano),
	}
	for k, v := range fields {
		data[k] = v
	}
	b, err := json.Marshal(data)
	if err != nil {
		return
	}
	log.SetFlags(0)
	log.Println(string(b))
}
