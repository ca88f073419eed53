// Package main provides the entry point for the insite application server.
// It starts a Fiber web service whose core is the authentication,
// authorization, and per-session rights cache of a multi-tenant geospatial
// server: incoming requests are authenticated against an ordered chain of
// credential engines, identities are mapped to roles, and every operation
// is gated against a cached, configuration-version-pinned snapshot of the
// applications, layers, and feature types the user's roles confer.
package main
