package observability

import (
	"os"
	"strconv"
	"strings"

	"github.com/smallbiznis/spotlight/internal/config"
)

// Config is the logging and OpenTelemetry configuration shared by the
// logger, tracing and metrics providers.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

// LoadConfig layers the OTEL_* and LOG_* variables over the app config.
// OTEL_EXPORTER_OTLP_TRACES_PROTOCOL wins over the generic protocol.
func LoadConfig(app config.Config) Config {
	env := envLookup(os.Getenv)

	protocol := env.lower("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	if traces := env.lower("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", ""); traces != "" {
		protocol = traces
	}

	service := strings.TrimSpace(app.AppName)
	if service == "" {
		service = "spotlight"
	}

	return Config{
		ServiceName:          service,
		Environment:          env.str("DEPLOYMENT_ENV", app.Environment),
		Version:              env.str("SERVICE_VERSION", app.AppVersion),
		LogLevel:             env.lower("LOG_LEVEL", "info"),
		LogFormat:            env.lower("LOG_FORMAT", "json"),
		OtelEnabled:          env.boolean("OTEL_ENABLED", true),
		OtelExporterEndpoint: env.str("OTEL_EXPORTER_OTLP_ENDPOINT", app.OTLPEndpoint),
		OtelExporterProtocol: protocol,
		OtelSamplingRatio:    env.float("OTEL_SAMPLING_RATIO", 0.1),
	}
}

// Debug is true for debug logging or any non-production environment.
func (c Config) Debug() bool {
	if strings.EqualFold(strings.TrimSpace(c.LogLevel), "debug") {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

type envLookup func(string) string

func (e envLookup) str(key, def string) string {
	if v := strings.TrimSpace(e(key)); v != "" {
		return v
	}
	return strings.TrimSpace(def)
}

func (e envLookup) lower(key, def string) string {
	return strings.ToLower(e.str(key, def))
}

func (e envLookup) boolean(key string, def bool) bool {
	v, err := strconv.ParseBool(e.str(key, ""))
	if err != nil {
		return def
	}
	return v
}

func (e envLookup) float(key string, def float64) float64 {
	v, err := strconv.ParseFloat(e.str(key, ""), 64)
	if err != nil {
		return def
	}
	return v
}
