// Package security contains core domain types for the home security controller.
//
// It defines Sensor (a named binary device), the ArmingStatus and AlarmStatus
// enumerations, and Actor (who requested a change) together with their text
// encodings used by storage and transport.
package security
