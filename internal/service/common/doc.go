// Package common holds helpers shared by the server and the control tool.
//
// It provides a gRPC client wrapper with per-call timeouts, detection of the
// current system actor (hostname/username) for audit logs, and a guard that
// keeps a second server instance from starting.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
