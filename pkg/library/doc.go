// Package library describes the libraries ghdisco searches for and how each
// target language expresses a dependency on them.
//
// A [Signature] names a library, the languages it targets, its artifact
// names and its import or usage strings. [Queries] turns a signature into the
// code-search queries the planner starts from, and a [Matcher] checks fetched
// file content against the per-language regex templates in [Languages].
//
// Signatures load from TOML or CSV seed files:
//
//	[[library]]
//	name = "guava"
//	languages = ["java"]
//	artifacts = ["com.google.guava:guava"]
//	imports_usages = ["com.google.common"]
package library
