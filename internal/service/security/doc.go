// Package security implements the security controller: the rules that move
// the alarm status in response to sensor changes, camera verdicts and arming
// changes, and the fan-out of status notifications to listeners.
//
// The controller keeps no durable state. Sensors, the alarm status and the
// arming status live in a repository; the only transient field is the most
// recent cat-detection verdict, consulted when the system is armed at home.
package security
