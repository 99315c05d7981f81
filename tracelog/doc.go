// Package tracelog ships log records to Redis so they can be read back per
// application, trace or span.
//
// Attach a Sink to a logger with logger.Hook. Records carry the trace id,
// span id and span name of the span active in the event's context, which
// logger.WithContext attaches:
//
//	sink, _ := tracelog.NewSink(client, tracelog.Config{App: "workloadctl"}, log)
//	log = log.Hook(sink)
//	defer sink.Close(ctx)
package tracelog
