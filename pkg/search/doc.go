// Package search enumerates every code-search match for a query despite the
// API returning at most 1000 results per query.
//
// # Partitioning
//
// A [Task] is one query over a file-size range. When a task reports more
// matches than can be retrieved, the [Planner] narrows it:
//
//  1. bisect the size range while it still spans more than one size
//  2. once the range is a single size and holds at most twice the cap,
//     re-run it in the opposite sort order to reach the tail
//  3. otherwise append one more lexical term (a-z, 0-9) to the query text,
//     up to four characters
//
// A range that re-delivers a match it already returned on an earlier page
// is also truncated and gets bisected.
//
// # Bookkeeping
//
// A [Ledger] remembers which size ranges produced each match so no match is
// emitted twice for one library. An [ExcludeCache] remembers lexical terms
// whose single-size queries were fully enumerable so longer terms containing
// them are skipped.
//
// Both are created per library by [Planner.Run] and dropped afterwards.
package search
