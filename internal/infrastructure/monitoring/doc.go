/*
Package monitoring provides Prometheus metrics for the bridge.

# Overview

Metrics implements bridge.Recorder, so the dispatcher and every streaming
pipeline report into it directly. It owns a private registry instead of the
global default, which keeps tests isolated.

# Metrics

  - bridge_calls_total{channel,action,status}
  - bridge_call_duration_seconds{channel,action}
  - bridge_sessions_active{channel}
  - bridge_sessions_total{channel,outcome}
  - bridge_port_messages_total{channel,direction}
  - bridge_channel_install_failures_total{channel}
  - bridge_http_requests_total and bridge_http_request_duration_seconds

# Usage

	metrics := monitoring.NewMetrics()
	dispatcher := bridge.NewDispatcher(reg, bridge.WithRecorder(metrics))

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
*/
package monitoring
