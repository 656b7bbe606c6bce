// Package api hosts the operational HTTP endpoint served while a crawl runs:
//   - GET /healthz for liveness probes.
//   - GET /metrics for Prometheus scraping.
package api
