// Package config defines the settings used by the catpoint binaries and
// provides helpers to load, validate and save them in YAML format.
//
// Validate fills in defaults, so a Config returned by Load is ready to use.
package config
