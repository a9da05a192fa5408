package otel

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	ServiceMatchingEngine = "matching-engine"
	ServicePublisher      = "trade-publisher"

	instrumentationName = "github.com/erain9/matchbook/pkg/otel"
)

var (
	matchingEngineTracer    trace.Tracer
	publisherTracer         trace.Tracer
	matchingTracerProvider  *sdktrace.TracerProvider
	publisherTracerProvider *sdktrace.TracerProvider
	meterProvider           *sdkmetric.MeterProvider
)

// Config holds the OpenTelemetry configuration
type Config struct {
	ServiceName      string
	ServiceVersion   string
	Endpoint         string
	ConnectTimeout   time.Duration
	CollectorEnabled bool
	RuntimeMetrics   bool
}

// Init initializes OpenTelemetry with the given configuration. Without a
// collector the global no-op providers stay in place and spans are free.
func Init(cfg Config) (func(), error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = ServiceMatchingEngine
	}
	if cfg.ServiceVersion == "" {
		cfg.ServiceVersion = "0.1.0"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}

	var cleanup []func()
	shutdown := func(name string, fn func(context.Context) error) func() {
		return func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
			defer cancel()
			if err := fn(ctx); err != nil {
				log.Error().Err(err).Str("provider", name).Msg("OpenTelemetry shutdown failed")
			}
		}
	}

	if cfg.CollectorEnabled {
		matchingTP, err := initTracerProvider(cfg, initResource(cfg.ServiceName, cfg.ServiceVersion))
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize matching engine tracer provider")
		} else {
			matchingTracerProvider = matchingTP
			cleanup = append(cleanup, shutdown(ServiceMatchingEngine, matchingTP.Shutdown))
		}

		publisherTP, err := initTracerProvider(cfg, initResource(ServicePublisher, cfg.ServiceVersion))
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize publisher tracer provider")
		} else {
			publisherTracerProvider = publisherTP
			cleanup = append(cleanup, shutdown(ServicePublisher, publisherTP.Shutdown))
		}

		mp, err := initMeterProvider(cfg, initResource(cfg.ServiceName, cfg.ServiceVersion))
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize meter provider, continuing without metrics")
		} else {
			meterProvider = mp
			cleanup = append(cleanup, shutdown("meter", mp.Shutdown))
		}

		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	}

	if matchingTracerProvider != nil {
		matchingEngineTracer = matchingTracerProvider.Tracer(ServiceMatchingEngine)
		otel.SetTracerProvider(matchingTracerProvider)
	}
	if publisherTracerProvider != nil {
		publisherTracer = publisherTracerProvider.Tracer(ServicePublisher)
	}

	if cfg.RuntimeMetrics {
		if err := StartRuntimeMetrics(); err != nil {
			log.Warn().Err(err).Msg("Failed to start runtime metrics")
		}
	}

	return func() {
		for _, fn := range cleanup {
			fn()
		}
	}, nil
}

func initResource(serviceName, serviceVersion string) *sdkresource.Resource {
	extraResources, err := sdkresource.New(
		context.Background(),
		sdkresource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
		sdkresource.WithOS(),
		sdkresource.WithProcess(),
		sdkresource.WithHost(),
	)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create resource")
		return sdkresource.Default()
	}

	resource, err := sdkresource.Merge(
		sdkresource.Default(),
		extraResources,
	)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to merge resources")
		return sdkresource.Default()
	}

	return resource
}

func dialCollector(cfg Config) (*grpc.ClientConn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	return grpc.DialContext(ctx, cfg.Endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
}

func initTracerProvider(cfg Config, resource *sdkresource.Resource) (*sdktrace.TracerProvider, error) {
	conn, err := dialCollector(cfg)
	if err != nil {
		return nil, err
	}

	exporter, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithGRPCConn(conn),
	)
	if err != nil {
		return nil, err
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource),
		sdktrace.WithSampler(sdktrace.ParentBased(
			sdktrace.TraceIDRatioBased(1),
		)),
	), nil
}

func initMeterProvider(cfg Config, resource *sdkresource.Resource) (*sdkmetric.MeterProvider, error) {
	conn, err := dialCollector(cfg)
	if err != nil {
		return nil, err
	}

	exporter, err := otlpmetricgrpc.New(context.Background(),
		otlpmetricgrpc.WithGRPCConn(conn),
	)
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(5*time.Second))),
		sdkmetric.WithResource(resource),
	)

	otel.SetMeterProvider(mp)

	return mp, nil
}

// GetMatchingEngineTracer returns the tracer for the matching engine
func GetMatchingEngineTracer() trace.Tracer {
	if matchingEngineTracer == nil {
		return otel.Tracer(ServiceMatchingEngine)
	}
	return matchingEngineTracer
}

// GetPublisherTracer returns the tracer for trade publishing
func GetPublisherTracer() trace.Tracer {
	if publisherTracer == nil {
		return otel.Tracer(ServicePublisher)
	}
	return publisherTracer
}

// GetMeterProvider returns the configured meter provider, or the global one
func GetMeterProvider() metric.MeterProvider {
	if meterProvider == nil {
		return otel.GetMeterProvider()
	}
	return meterProvider
}

// ResetForTesting resets the global variables for testing
func ResetForTesting() {
	matchingEngineTracer = nil
	publisherTracer = nil
	matchingTracerProvider = nil
	publisherTracerProvider = nil
	meterProvider = nil
}

// InitForTesting installs the given tracer for both services
func InitForTesting(tracer trace.Tracer) {
	matchingEngineTracer = tracer
	publisherTracer = tracer
}
