// Package models defines the persistent data model of the insite server.
//
// The authorization core reads this model: users acquire the union of
// rights of their roles; a permission grants one right within one
// application, optionally narrowed by a restriction; applications bind
// layers, layers bind feature types, and feature types carry the field,
// filter, search-rule and query metadata the rights snapshot
// materialises.
//
// All administrative mutation (user management, the configuration
// editor) happens outside this core; the core only reads.
package models
