// Package fallback serves annotation requests through a fixed chain of
// tiers.
//
// A chain has up to three tiers, always tried in this order:
//
//   - TierPrimary: the main dependency, rate limited and instrumented.
//   - TierSecondary: an alternate dependency, rate limited and instrumented.
//   - TierStatic: a dependency-free heuristic such as a PatternTable.
//
// Any failure advances to the next tier, whether the limiter denied the call,
// the dependency returned an error, the tier timed out, or the lifecycle
// manager reports the dependency unavailable. Only when every tier fails does
// Execute return an error, and that error matches ErrAllTiersFailed and
// carries each tier's *TierError.
//
// Every tier returns the same []Annotation shape, so callers do not need to
// know which tier answered. Outcome.Tier says which one did.
//
// # Caching
//
// With WithCache, results from the primary and secondary tiers are cached by
// request. Static results are never cached, so a recovered dependency is
// used again on the next request.
package fallback
