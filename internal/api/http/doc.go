// Package httpapi exposes the controller over a small JSON HTTP API together
// with the health and Prometheus endpoints.
package httpapi
