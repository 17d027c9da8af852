// Package services implements the driving port interfaces.
// Services contain the core business logic: the ingest pipeline state
// machine, the gist context window, and the read-only library facade.
//
// Services depend only on domain types and driven ports.
package services
