// Package health reports component health for the pipeline.
//
// Components register a Checker with a Monitor. Checks are pulled: nothing
// is cached, and each call to Aggregate or each request to Handler runs
// every checker and combines the results.
//
//	mon := health.NewMonitor()
//	mon.Register("buffer", func() health.Status {
//	    if rb.HasOverrun() {
//	        return health.NewDegraded("buffer", "overrun occurred")
//	    }
//	    return health.NewHealthy("buffer", "ok")
//	})
//	server.Handle("/health", mon.Handler("ringstream"))
//
// The aggregate is unhealthy if any component is unhealthy, degraded if any
// is degraded, and healthy otherwise. Unhealthy answers HTTP 503; healthy and
// degraded answer 200.
//
// Messages built with FromError are sanitized: URLs, IP addresses and
// credential assignments are replaced before they reach the endpoint.
package health
