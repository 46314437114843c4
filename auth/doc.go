// Package auth authenticates callers of the depguard HTTP surface.
//
// Two schemes are supported: static API keys, stored as SHA-256 hashes, and
// HS256 bearer tokens. Probe endpoints stay open; the orchestrator wraps the
// status and annotate routes with Middleware when authentication is enabled.
package auth
