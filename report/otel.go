package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"dirdiff/config"
	"dirdiff/diff"
	"dirdiff/logger"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	otelLog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
)

// Exporter forwards comparison records as OTLP log records.
type Exporter struct {
	provider *sdklog.LoggerProvider
	logger   otelLog.Logger
	timeout  time.Duration
	endpoint string
	policy   otelPolicy
}

type otelPolicy struct {
	includePaths bool
}

// NewExporter returns nil without error when no endpoint is configured.
func NewExporter(cfg *config.Config) (*Exporter, error) {
	if cfg == nil {
		return nil, nil
	}
	endpoint := resolveOtelEndpoint(cfg)
	if endpoint == "" {
		return nil, nil
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return nil, fmt.Errorf("otel endpoint must include scheme (http or https)")
	}

	opts := []otlploghttp.Option{otlploghttp.WithEndpointURL(endpoint)}
	if len(cfg.OtelHeaders) > 0 {
		opts = append(opts, otlploghttp.WithHeaders(cfg.OtelHeaders))
	}
	if cfg.OtelTimeout > 0 {
		opts = append(opts, otlploghttp.WithTimeout(cfg.OtelTimeout))
	}

	exp, err := otlploghttp.New(context.Background(), opts...)
	if err != nil {
		return nil, err
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(cfg.OtelServiceName),
	)
	provider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exp)),
		sdklog.WithResource(res),
	)

	return &Exporter{
		provider: provider,
		logger:   provider.Logger("dirdiff"),
		timeout:  cfg.OtelTimeout,
		endpoint: endpoint,
		policy:   otelPolicy{includePaths: cfg.OtelExportPaths},
	}, nil
}

func resolveOtelEndpoint(cfg *config.Config) string {
	if cfg == nil {
		return ""
	}
	if endpoint := strings.TrimSpace(cfg.OtelEndpoint); endpoint != "" {
		return endpoint
	}
	if !cfg.OtelFromEnv {
		return ""
	}
	if endpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_LOGS_ENDPOINT")); endpoint != "" {
		return endpoint
	}
	return strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
}

func (e *Exporter) Endpoint() string {
	if e == nil {
		return ""
	}
	return e.endpoint
}

// Export emits a comparison record, one record per outcome and a summary.
func (e *Exporter) Export(rep diff.Report, opts Options, m *Metrics) {
	if e == nil {
		return
	}
	e.Emit("comparison", comparisonPayload{From: opts.From, To: opts.To, Algorithm: opts.Algorithm})
	for _, o := range rep.Outcomes() {
		if o.Kind == diff.Identical && !opts.ShowIdentical {
			continue
		}
		e.Emit("file", newFilePayload(o))
	}
	e.Emit("summary", newSummary(rep, m))
}

func (e *Exporter) Emit(recordType string, payload interface{}) {
	if e == nil || e.logger == nil {
		return
	}
	safePayload := sanitizePayload(recordType, payload, e.policy)

	var rec otelLog.Record
	rec.SetTimestamp(time.Now())
	rec.SetObservedTimestamp(time.Now())
	rec.SetEventName("dirdiff.record")
	rec.AddAttributes(
		otelLog.String("record_type", recordType),
		otelLog.String("schema_version", SchemaVersion),
	)
	if attrs := semanticAttributes(recordType, safePayload, e.policy); len(attrs) > 0 {
		rec.AddAttributes(attrs...)
	}

	value := toLogValue(safePayload)
	if value.Kind() == otelLog.KindEmpty {
		if data, err := json.Marshal(safePayload); err == nil {
			rec.SetBody(otelLog.StringValue(string(data)))
		}
	} else {
		rec.SetBody(value)
	}

	e.logger.Emit(context.Background(), rec)
}

// Shutdown flushes pending records within the configured timeout.
func (e *Exporter) Shutdown() {
	if e == nil || e.provider == nil {
		return
	}
	timeout := e.timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := e.provider.Shutdown(ctx); err != nil {
		logger.Debugf("OTEL shutdown failed: %v", err)
	}
}

// sanitizePayload converts payload to a map and drops paths unless the policy
// allows them.
func sanitizePayload(recordType string, payload interface{}, policy otelPolicy) interface{} {
	data := payloadToMap(payload)
	if len(data) == 0 {
		return payload
	}
	if policy.includePaths {
		return data
	}

	sanitized := cloneMap(data)
	switch recordType {
	case "file":
		delete(sanitized, "path")
	case "comparison":
		delete(sanitized, "from")
		delete(sanitized, "to")
	}
	return sanitized
}

func cloneMap(src map[string]interface{}) map[string]interface{} {
	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func toLogValue(value interface{}) otelLog.Value {
	switch v := value.(type) {
	case nil:
		return otelLog.Value{}
	case string:
		return otelLog.StringValue(v)
	case bool:
		return otelLog.BoolValue(v)
	case int:
		return otelLog.IntValue(v)
	case int64:
		return otelLog.Int64Value(v)
	case float64:
		return otelLog.Float64Value(v)
	case map[string]interface{}:
		return otelLog.MapValue(toLogKeyValues(v)...)
	case []string:
		values := make([]otelLog.Value, 0, len(v))
		for _, item := range v {
			values = append(values, otelLog.StringValue(item))
		}
		return otelLog.SliceValue(values...)
	case []interface{}:
		values := make([]otelLog.Value, 0, len(v))
		for _, item := range v {
			values = append(values, toLogValue(item))
		}
		return otelLog.SliceValue(values...)
	default:
		return otelLog.Value{}
	}
}

func toLogKeyValues(values map[string]interface{}) []otelLog.KeyValue {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	kvs := make([]otelLog.KeyValue, 0, len(values))
	for _, key := range keys {
		kvs = append(kvs, otelLog.KeyValue{Key: key, Value: toLogValue(values[key])})
	}
	return kvs
}

func semanticAttributes(recordType string, payload interface{}, policy otelPolicy) []otelLog.KeyValue {
	data := payloadToMap(payload)
	if len(data) == 0 {
		return nil
	}

	switch recordType {
	case "file":
		return fileSemanticAttributes(data, policy)
	case "comparison":
		return comparisonSemanticAttributes(data, policy)
	case "summary":
		return summarySemanticAttributes(data)
	default:
		return nil
	}
}

func fileSemanticAttributes(data map[string]interface{}, policy otelPolicy) []otelLog.KeyValue {
	var kvs []otelLog.KeyValue

	kvs = appendStringAttr(kvs, "dirdiff.kind", getStringField(data, "kind"))
	key := getStringField(data, "path")
	if policy.includePaths && key != "" {
		kvs = append(kvs, otelLog.String(string(semconv.FilePathKey), key))
		kvs = append(kvs, otelLog.String(string(semconv.FileNameKey), path.Base(key)))
		if dir := path.Dir(key); dir != "." {
			kvs = append(kvs, otelLog.String(string(semconv.FileDirectoryKey), dir))
		}
		if ext := strings.TrimPrefix(path.Ext(key), "."); ext != "" {
			kvs = append(kvs, otelLog.String(string(semconv.FileExtensionKey), ext))
		}
	}
	if size, ok := getInt64Field(data, "size"); ok {
		kvs = append(kvs, otelLog.Int64(string(semconv.FileSizeKey), size))
	}
	if size, ok := getInt64Field(data, "from_size"); ok {
		kvs = append(kvs, otelLog.Int64("dirdiff.from_size", size))
	}
	if size, ok := getInt64Field(data, "to_size"); ok {
		kvs = append(kvs, otelLog.Int64("dirdiff.to_size", size))
	}
	return kvs
}

func comparisonSemanticAttributes(data map[string]interface{}, policy otelPolicy) []otelLog.KeyValue {
	var kvs []otelLog.KeyValue
	kvs = appendStringAttr(kvs, "dirdiff.algorithm", getStringField(data, "algorithm"))
	if policy.includePaths {
		kvs = appendStringAttr(kvs, "dirdiff.from", getStringField(data, "from"))
		kvs = appendStringAttr(kvs, "dirdiff.to", getStringField(data, "to"))
	}
	return kvs
}

func summarySemanticAttributes(data map[string]interface{}) []otelLog.KeyValue {
	var kvs []otelLog.KeyValue
	for _, key := range []string{"added", "removed", "modified", "identical", "total"} {
		if value, ok := getInt64Field(data, key); ok {
			kvs = append(kvs, otelLog.Int64("dirdiff.summary."+key, value))
		}
	}
	if value, ok := data["no_differences"].(bool); ok {
		kvs = append(kvs, otelLog.Bool("dirdiff.summary.no_differences", value))
	}
	if metrics, ok := data["metrics"].(map[string]interface{}); ok {
		kvs = appendStringAttr(kvs, "dirdiff.metrics.start_time", getStringField(metrics, "start_time"))
		kvs = appendStringAttr(kvs, "dirdiff.metrics.end_time", getStringField(metrics, "end_time"))
		if value, ok := getInt64Field(metrics, "duration_ms"); ok {
			kvs = append(kvs, otelLog.Int64("dirdiff.metrics.duration_ms", value))
		}
	}
	return kvs
}

func payloadToMap(payload interface{}) map[string]interface{} {
	switch v := payload.(type) {
	case map[string]interface{}:
		return v
	default:
		data, err := json.Marshal(payload)
		if err != nil {
			return nil
		}
		var decoded map[string]interface{}
		if err := json.Unmarshal(data, &decoded); err != nil {
			return nil
		}
		return decoded
	}
}

func getStringField(values map[string]interface{}, key string) string {
	value, ok := values[key]
	if !ok || value == nil {
		return ""
	}
	if str, ok := value.(string); ok {
		return str
	}
	return fmt.Sprint(value)
}

func getInt64Field(values map[string]interface{}, key string) (int64, bool) {
	value, ok := values[key]
	if !ok || value == nil {
		return 0, false
	}
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case uint64:
		return int64(v), true
	case float64:
		return int64(v), true
	case json.Number:
		if parsed, err := v.Int64(); err == nil {
			return parsed, true
		}
	}
	return 0, false
}

func appendStringAttr(kvs []otelLog.KeyValue, key, value string) []otelLog.KeyValue {
	if value == "" {
		return kvs
	}
	return append(kvs, otelLog.String(key, value))
}
