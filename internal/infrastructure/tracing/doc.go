/*
Package tracing provides lightweight request tracing for the HTTP API.

Each request gets a span whose ids are taken from, and echoed back in,
the X-Trace-ID and X-Span-ID headers. Finished spans are buffered and
written to the structured log by a single collector goroutine.

# Usage

	tracer := tracing.New("sessionhub", logger.Logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "restore")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()

Spans are dropped rather than blocking when the buffer is full.
*/
package tracing
