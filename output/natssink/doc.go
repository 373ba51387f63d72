// Package natssink publishes pump batches to NATS.
//
// Each batch becomes one JSON Envelope carrying a UUID, the configured
// source, the send time and the items:
//
//	{"id":"7f0c...","source":"ringstream","sent_at":"2026-01-02T15:04:05Z","count":2,"items":[...]}
//
// Connect dials the server with retry and owns the connection; New wraps an
// existing *nats.Conn (or any Publisher) that the caller manages.
//
//	sink, err := natssink.Connect[Sample](ctx, cfg,
//	    natssink.WithLogger(logger),
//	    natssink.WithMetrics(registry),
//	)
//	if err != nil {
//	    return err
//	}
//	defer sink.Close()
//
// Setting cfg.TLS.Enabled dials with a client tls.Config built by
// pkg/tlsutil (extra CA files, optional client certificate). Health maps the
// owned connection's state to a health.Status for the health endpoint.
//
// Write flushes after every publish, so a nil error means the server has the
// envelope. Returned errors are classified for the pump's retry policy.
package natssink
