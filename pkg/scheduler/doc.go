/*
Package scheduler implements the Fair Scheduler and its tag-based rate
limiter: selecting runnable steps across worker scopes, reclaiming leases
abandoned by crashed workers, and throttling how many steps of a given tag
may be dispatched before usage decays back down.

# Ordering

Candidates are ordered by (scopeRank, -priority, epoch): steps whose scope
comes earlier in the caller's scopes slice come first, then higher priority
within a scope, then earlier epoch (first-come-first-served among equally
prioritized steps).

# Rate Limiting

Each tag has an optional configured velocity (a types.TagRow stored by
pkg/stepstore). A
step's tag usage is checked against its velocity at admission time and
incremented on admission; RunRateLimiter decrements every tag's usage once
a second, floored at zero, so capacity frees up over time rather than
staying saturated once a burst fills it.

# Lease Reclamation

A step left in working past the configured lease duration is treated as
abandoned (its worker likely crashed or was killed) and becomes selectable
again, alongside pending steps, in the next SelectReady call.
*/
package scheduler
