package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/signalsfoundry/globedraw/internal/logging"
)

const (
	DefaultServiceName  = "globedraw"
	DefaultOTLPEndpoint = "localhost:4317"

	shutdownTimeout = 5 * time.Second
)

// TracingConfig selects where the draw.Finish, modify.Commit and
// tiles.LoadTile spans go.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"serviceName"`
	// Exporter is stdout or otlp.
	Exporter string `yaml:"exporter"`
	// Endpoint is the OTLP gRPC collector address.
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sampleRatio"`
	// Output receives stdout spans; defaults to os.Stdout.
	Output io.Writer `yaml:"-"`
}

// DefaultTracingConfig is tracing disabled with a stdout exporter ready.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: DefaultServiceName,
		Exporter:    "stdout",
		SampleRatio: 1,
	}
}

// WithEnv returns c with every GLOBEDRAW_TRACING_* variable that is set
// applied on top. Ratios outside [0,1] are ignored.
func (c TracingConfig) WithEnv() TracingConfig {
	if v, ok := os.LookupEnv("GLOBEDRAW_TRACING_ENABLED"); ok {
		c.Enabled = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("GLOBEDRAW_TRACING_EXPORTER"); v != "" {
		c.Exporter = strings.ToLower(v)
	}
	if v := os.Getenv("GLOBEDRAW_TRACING_SERVICE_NAME"); v != "" {
		c.ServiceName = v
	}
	if v := os.Getenv("GLOBEDRAW_TRACING_SAMPLE_RATIO"); v != "" {
		if r, err := strconv.ParseFloat(v, 64); err == nil && r >= 0 && r <= 1 {
			c.SampleRatio = r
		}
	}
	if v := os.Getenv("GLOBEDRAW_OTLP_ENDPOINT"); v != "" {
		c.Endpoint = v
	}
	return c
}

// InitTracing installs the global tracer provider the engines start their
// spans from and returns the function that flushes it. Disabled tracing
// installs a noop provider.
func InitTracing(ctx context.Context, cfg TracingConfig, log logging.Logger) (func(context.Context) error, error) {
	log = logging.OrNoop(log)
	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		otel.SetTextMapPropagator(propagation.TraceContext{})
		log.Debug(ctx, "tracing disabled")
		return func(context.Context) error { return nil }, nil
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = DefaultServiceName
	}

	tp, err := newTracerProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	log.Info(ctx, "tracing enabled",
		logging.String("exporter", cfg.Exporter),
		logging.String("service_name", cfg.ServiceName),
		logging.Float64("sample_ratio", cfg.SampleRatio),
	)
	return tp.Shutdown, nil
}

func newTracerProvider(ctx context.Context, cfg TracingConfig) (*sdktrace.TracerProvider, error) {
	exp, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.namespace", "globedraw"),
	))
	if err != nil {
		return nil, fmt.Errorf("tracing resource: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	), nil
}

func newExporter(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	switch strings.ToLower(cfg.Exporter) {
	case "", "stdout":
		out := cfg.Output
		if out == nil {
			out = os.Stdout
		}
		return stdouttrace.New(stdouttrace.WithWriter(out), stdouttrace.WithPrettyPrint(), stdouttrace.WithoutTimestamps())
	case "otlp", "otlpgrpc":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = DefaultOTLPEndpoint
		}
		return otlptrace.New(ctx, otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		))
	}
	return nil, fmt.Errorf("tracing exporter %q: want stdout or otlp", cfg.Exporter)
}

// ShutdownWithTimeout flushes spans through shutdown, giving up after five
// seconds. Failures are logged, not returned.
func ShutdownWithTimeout(ctx context.Context, shutdown func(context.Context) error, log logging.Logger) {
	if shutdown == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logging.OrNoop(log).Warn(ctx, "tracing shutdown failed", logging.Err(err))
	}
}
