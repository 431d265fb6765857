// Package strata builds an incremental, content-addressed archive of
// generated artifacts, one immutable git tree per upstream version.
//
// Every version of an ordered sequence becomes a commit on a single linear
// branch and an annotated tag named after the version id. The tag message
// carries a ledger: the schema version each artifact kind was generated
// with. A run rebuilds the branch from scratch, reusing every tree whose
// ledger is still current and regenerating only the kinds whose schema
// version moved. Reruns over the same inputs reproduce the same commits.
//
// Philosophy:
//
// The producer, usually a decompiler run through Gradle, is the expensive
// part. Strata treats its output as a cache keyed by version and kind, and
// git as the cache's storage and index, so a schema bump for one kind never
// pays for the others.
//
// Usage:
//
//	// Write strata.toml and create the repository
//	path, err := strata.Init("./workspace")
//
//	// Archive every version the manifest lists
//	report, err := strata.Run(ctx, path, strata.WithLogger(logger))
//
//	// Inspect without writing anything
//	statuses, err := strata.Status(ctx, path)
package strata
