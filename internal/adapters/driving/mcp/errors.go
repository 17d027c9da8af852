// Package mcp provides an MCP (Model Context Protocol) server adapter
// for docstash. It serves a finished store read-only so AI assistants
// can browse ingested documents, pages, figures and tables.
package mcp

import "errors"

// ErrMissingLibrary is returned when the library service is not provided.
var ErrMissingLibrary = errors.New("mcp: library service is required")

// ErrResourceTooLarge is returned when a blob exceeds the configured
// size limit.
var ErrResourceTooLarge = errors.New("mcp: resource exceeds size limit")
