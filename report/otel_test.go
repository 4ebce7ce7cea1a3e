package report

import (
	"testing"

	"dirdiff/config"
	"dirdiff/diff"

	otelLog "go.opentelemetry.io/otel/log"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
)

func findAttr(kvs []otelLog.KeyValue, key string) (otelLog.Value, bool) {
	for _, kv := range kvs {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return otelLog.Value{}, false
}

func TestResolveOtelEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_LOGS_ENDPOINT", "https://logs.example.test/v1/logs")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "https://fallback.example.test")

	cfg := &config.Config{OtelEndpoint: "  https://explicit.example.test  ", OtelFromEnv: true}
	if got := resolveOtelEndpoint(cfg); got != "https://explicit.example.test" {
		t.Fatalf("expected explicit endpoint, got %q", got)
	}

	cfg = &config.Config{OtelFromEnv: true}
	if got := resolveOtelEndpoint(cfg); got != "https://logs.example.test/v1/logs" {
		t.Fatalf("expected logs env endpoint, got %q", got)
	}

	t.Setenv("OTEL_EXPORTER_OTLP_LOGS_ENDPOINT", "")
	cfg = &config.Config{OtelFromEnv: true}
	if got := resolveOtelEndpoint(cfg); got != "https://fallback.example.test" {
		t.Fatalf("expected fallback env endpoint, got %q", got)
	}

	cfg = &config.Config{OtelFromEnv: false}
	if got := resolveOtelEndpoint(cfg); got != "" {
		t.Fatalf("expected empty endpoint when env fallback disabled, got %q", got)
	}
}

func TestSanitizePayloadDropsPaths(t *testing.T) {
	file := newFilePayload(diff.Outcome{Kind: diff.Added, Path: "secret/plan.txt", Size: 4, ToSize: 4})
	sanitized, ok := sanitizePayload("file", file, otelPolicy{}).(map[string]interface{})
	if !ok {
		t.Fatal("expected sanitized file payload map")
	}
	if _, ok := sanitized["path"]; ok {
		t.Fatal("expected path to be stripped")
	}
	if sanitized["kind"] != "added" {
		t.Fatalf("expected kind to survive, got %#v", sanitized["kind"])
	}

	comparison := comparisonPayload{From: "/srv/a", To: "/srv/b", Algorithm: "md5"}
	sanitized, ok = sanitizePayload("comparison", comparison, otelPolicy{}).(map[string]interface{})
	if !ok {
		t.Fatal("expected sanitized comparison payload map")
	}
	if _, ok := sanitized["from"]; ok {
		t.Fatal("expected FROM root to be stripped")
	}
	if sanitized["algorithm"] != "md5" {
		t.Fatalf("expected algorithm to survive, got %#v", sanitized["algorithm"])
	}

	kept := sanitizePayload("file", file, otelPolicy{includePaths: true}).(map[string]interface{})
	if kept["path"] != "secret/plan.txt" {
		t.Fatalf("expected path when allowed, got %#v", kept["path"])
	}
}

func TestFileSemanticAttributes(t *testing.T) {
	payload := payloadToMap(newFilePayload(diff.Outcome{Kind: diff.Modified, Path: "dir/report.txt", FromSize: 10, ToSize: 42}))

	attrs := fileSemanticAttributes(payload, otelPolicy{includePaths: true})
	if value, ok := findAttr(attrs, string(semconv.FilePathKey)); !ok || value.AsString() != "dir/report.txt" {
		t.Fatalf("expected file path attribute, got %#v", value)
	}
	if value, ok := findAttr(attrs, string(semconv.FileNameKey)); !ok || value.AsString() != "report.txt" {
		t.Fatalf("expected file name attribute, got %#v", value)
	}
	if value, ok := findAttr(attrs, string(semconv.FileExtensionKey)); !ok || value.AsString() != "txt" {
		t.Fatalf("expected extension attribute, got %#v", value)
	}
	if value, ok := findAttr(attrs, "dirdiff.to_size"); !ok || value.AsInt64() != 42 {
		t.Fatalf("expected to_size attribute, got %#v", value)
	}
	if value, ok := findAttr(attrs, "dirdiff.kind"); !ok || value.AsString() != "modified" {
		t.Fatalf("expected kind attribute, got %#v", value)
	}

	noPaths := fileSemanticAttributes(payload, otelPolicy{})
	if _, ok := findAttr(noPaths, string(semconv.FilePathKey)); ok {
		t.Fatal("did not expect file path attribute when paths are disabled")
	}
}

func TestSummarySemanticAttributes(t *testing.T) {
	rep := diff.Report{Added: []diff.Entry{{Path: "a", Size: 1}}}
	payload := payloadToMap(newSummary(rep, &Metrics{StartTime: "2026-02-18T00:00:00Z", DurationMs: 12}))

	attrs := summarySemanticAttributes(payload)
	if value, ok := findAttr(attrs, "dirdiff.summary.added"); !ok || value.AsInt64() != 1 {
		t.Fatalf("expected added count, got %#v", value)
	}
	if value, ok := findAttr(attrs, "dirdiff.summary.no_differences"); !ok || value.AsBool() {
		t.Fatalf("expected no_differences=false, got %#v", value)
	}
	if value, ok := findAttr(attrs, "dirdiff.metrics.duration_ms"); !ok || value.AsInt64() != 12 {
		t.Fatalf("expected duration attribute, got %#v", value)
	}
}

func TestToLogKeyValuesSortedOrder(t *testing.T) {
	kvs := toLogKeyValues(map[string]interface{}{"zeta": 1, "alpha": 2, "middle": 3})
	if len(kvs) != 3 {
		t.Fatalf("expected 3 key values, got %d", len(kvs))
	}
	if kvs[0].Key != "alpha" || kvs[1].Key != "middle" || kvs[2].Key != "zeta" {
		t.Fatalf("expected sorted keys, got %q, %q, %q", kvs[0].Key, kvs[1].Key, kvs[2].Key)
	}
}

func TestToLogValueUnsupported(t *testing.T) {
	if empty := toLogValue(struct{}{}); empty.Kind() != otelLog.KindEmpty {
		t.Fatalf("expected empty kind for unsupported type, got %v", empty.Kind())
	}
	if v := toLogValue([]interface{}{"a", 1.5}); v.Kind() != otelLog.KindSlice || len(v.AsSlice()) != 2 {
		t.Fatalf("unexpected slice value: %v", v)
	}
}

func TestNewExporterValidation(t *testing.T) {
	var nilExporter *Exporter
	if got := nilExporter.Endpoint(); got != "" {
		t.Fatalf("expected empty endpoint for nil exporter, got %q", got)
	}
	nilExporter.Export(diff.Report{}, Options{}, nil)
	nilExporter.Shutdown()

	exp, err := NewExporter(nil)
	if err != nil || exp != nil {
		t.Fatalf("expected nil exporter for nil config, got %v %v", exp, err)
	}
	exp, err = NewExporter(&config.Config{})
	if err != nil || exp != nil {
		t.Fatalf("expected nil exporter without endpoint, got %v %v", exp, err)
	}

	_, err = NewExporter(&config.Config{
		OtelEndpoint:    "localhost:4318",
		OtelServiceName: "dirdiff",
		OtelTimeout:     1,
	})
	if err == nil {
		t.Fatal("expected validation error for endpoint without scheme")
	}
}

func TestExporterLifecycle(t *testing.T) {
	exp, err := NewExporter(&config.Config{
		OtelEndpoint:    "http://127.0.0.1:1/v1/logs",
		OtelServiceName: "dirdiff",
		OtelTimeout:     1,
	})
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}
	if exp.Endpoint() != "http://127.0.0.1:1/v1/logs" {
		t.Fatalf("unexpected endpoint %q", exp.Endpoint())
	}
	rep := diff.Report{Identical: []diff.Entry{{Path: "same", Size: 1}}}
	exp.Export(rep, Options{ShowIdentical: true}, nil)
	exp.Shutdown()
}
