// Package control
// Author: momentics <momentics@gmail.com>
//
// Monitoring, health and runtime control for running transports.
//
// Provides:
//   - Probe sinks exporting transport and connection notifications to
//     Prometheus and OpenTelemetry metrics
//   - A health handler reporting readiness while a transport is STARTED
//   - Debug probes dumping transport state
//   - A reloader applying configuration changes to registered transports
package control
