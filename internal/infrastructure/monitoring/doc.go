/*
Package monitoring provides Prometheus metrics for the session registry,
the listener hub, the pop-up queue and the API surface.

# Usage

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

All recording methods accept a nil receiver so components can run
without metrics in tests.
*/
package monitoring
