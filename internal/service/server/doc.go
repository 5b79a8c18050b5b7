// Package server runs the catpoint security server: it wires storage, the
// image analyzer and the controller together and serves them over gRPC, HTTP,
// MQTT and the camera folder watcher until the context is canceled.
package server
