// Package integration holds end-to-end tests that run the real server and
// drive it through the public clients.
package integration
