// Package mqtt wraps the paho MQTT client with the connection handling the
// server needs: a retained online/offline status with last will, automatic
// reconnects that restore subscriptions, and timeouts on every token.
package mqtt
