// Package client implements the catpoint-ctl commands on top of the gRPC client.
package client
