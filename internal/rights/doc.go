// Package rights materialises and caches what a set of roles may
// access at a given configuration version.
//
// A Snapshot is built once per (config version, sorted role set) key
// and shared, immutable, across every concurrent session with that
// key. It bundles the accessible applications, layers, tile layers,
// layer groups, networks and datasources, the feature-type descriptors
// with the user's effective filter predicates, and the per-application
// granted rights including editFeatures restrictions.
//
// The Cache guarantees single-flight builds: when N concurrent callers
// ask for an absent key, the builder runs exactly once and everyone
// shares the result. Failed builds release the in-progress marker so
// later callers can retry.
package rights
