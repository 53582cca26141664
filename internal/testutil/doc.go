// Package testutil holds deterministic helpers shared by package tests:
// commit builders, generated commit histories with known batch structure,
// and fixed replacements for the engine's sequence and run ID sources.
package testutil
