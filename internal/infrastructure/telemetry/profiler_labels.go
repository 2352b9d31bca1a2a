package telemetry

import (
	"context"
	"sort"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// Profiling label keys
const (
	ProfilingLabelOperation = "operation"
	ProfilingLabelDocType   = "document_type"
	ProfilingLabelRegion    = "region"
)

// MaxLabelValueLength caps label values to keep cardinality bounded
const MaxLabelValueLength = 128

// highCardinalityLabels never become profiling labels
var highCardinalityLabels = map[string]bool{
	"invoice_id":     true,
	"credit_note_id": true,
	"client_id":      true,
	"number":         true,
	"trace_id":       true,
	"span_id":        true,
}

// WithProfilingLabels runs fn with the given pprof labels attached, so CPU
// samples taken inside fn can be sliced by them in Pyroscope
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(labels)
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// OperationLabels labels a service operation on a document type
func OperationLabels(operation, docType string) map[string]string {
	return map[string]string{
		ProfilingLabelOperation: operation,
		ProfilingLabelDocType:   docType,
	}
}

// sanitizeLabels returns key/value pairs sorted by sanitized key, with empty,
// oversized and high-cardinality entries dropped. When two raw keys sanitize
// to the same key the one sorting first wins.
func sanitizeLabels(labels map[string]string) []string {
	raw := make([]string, 0, len(labels))
	for k := range labels {
		raw = append(raw, k)
	}
	sort.Strings(raw)

	clean := make(map[string]string, len(labels))
	for _, k := range raw {
		v := labels[k]
		key := sanitizeLabelKey(k)
		if key == "" || v == "" || highCardinalityLabels[key] {
			continue
		}
		if _, seen := clean[key]; seen {
			continue
		}
		if len(v) > MaxLabelValueLength {
			v = v[:MaxLabelValueLength]
		}
		clean[key] = v
	}

	keys := make([]string, 0, len(clean))
	for k := range clean {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		pairs = append(pairs, k, clean[k])
	}
	return pairs
}

// sanitizeLabelKey lowercases key and keeps [a-z0-9_]
func sanitizeLabelKey(key string) string {
	key = strings.ToLower(key)
	var b strings.Builder
	for _, c := range key {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '_':
			b.WriteRune(c)
		case c == ' ' || c == '-' || c == '.':
			b.WriteByte('_')
		}
	}
	return b.String()
}
