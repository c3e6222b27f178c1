// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// Beyond the ports, services only use the lexical analyser, the
// OpenTelemetry API and gocron for the background reaper.
package services
