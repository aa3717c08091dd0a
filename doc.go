// Package hexy composes object graphs for hexagonal applications.
//
// It offers:
// - tokens identifying contracts by Go type, name or unique handle
// - providers (value, factory, recipe) with singleton or transient lifetime
// - lazy, dependency-first resolution with cycle detection along the active path
// - singleflight deduplication of concurrent singleton builds
// - modules with explicit exports, re-exports and layer tags
// - reverse-construction-order teardown
// - dependency graph validation and DOT/Mermaid export
package hexy
