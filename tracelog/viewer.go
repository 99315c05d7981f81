package tracelog

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/kbukum/workloadops/redis"
)

// Viewer reads records written by a Sink.
type Viewer struct {
	client *redis.Client
	prefix string
}

// NewViewer creates a viewer for keys under prefix ("" means "traces").
func NewViewer(client *redis.Client, prefix string) *Viewer {
	if prefix == "" {
		prefix = "traces"
	}
	return &Viewer{client: client, prefix: prefix}
}

// ByApp returns every record of app in time order.
func (v *Viewer) ByApp(ctx context.Context, app string) ([]Record, error) {
	members, err := v.client.ZRangeByScore(ctx, Key(v.prefix, app), "-inf", "+inf")
	if err != nil {
		return nil, fmt.Errorf("tracelog: read %s: %w", app, err)
	}
	records := make([]Record, 0, len(members))
	for _, m := range members {
		var rec Record
		if err := json.Unmarshal([]byte(m), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].Timestamp.Before(records[j].Timestamp) })
	return records, nil
}

// BySpanName returns the records of app logged inside spans named span.
func (v *Viewer) BySpanName(ctx context.Context, app, span string) ([]Record, error) {
	return v.filter(ctx, app, func(r Record) bool { return r.SpanName == span })
}

// ByTrace returns the records of app that belong to traceID.
func (v *Viewer) ByTrace(ctx context.Context, app, traceID string) ([]Record, error) {
	return v.filter(ctx, app, func(r Record) bool { return r.TraceID == traceID })
}

func (v *Viewer) filter(ctx context.Context, app string, keep func(Record) bool) ([]Record, error) {
	all, err := v.ByApp(ctx, app)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, r := range all {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out, nil
}
