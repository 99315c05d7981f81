// Package observability owns the OpenTelemetry pipeline used to instrument
// every workload operation.
//
// A Pipeline holds its own TracerProvider and MeterProvider. Nothing is
// installed process-wide unless Config.SetGlobal is true, so several
// pipelines can coexist in one test binary.
//
//	p, err := observability.NewPipeline(ctx, cfg)
//	defer func() {
//	    if err := p.Shutdown(5 * time.Second); err != nil {
//	        log.Warn("telemetry flush failed", logger.Fields("error", err.Error()))
//	    }
//	}()
//
//	ctx, op := p.StartOperation(ctx, "describe", observability.RefAttributes("cluster", "ns1", "job-7")...)
//	defer op.End(err)
//
// Spans leave through a batch processor and metrics through a periodic
// reader. The OTLP transport is chosen by Config.Protocol.
package observability
