// Package publisher schedules and executes social content publishing jobs.
//
// A job pins one approved content item to one destination account on one
// platform at a scheduled time. Jobs move through a fixed state machine
// (pending, queued, processing, published, failed, cancelled, skipped); every
// transition is validated centrally and persisted with optimistic version
// checks, so concurrent workers and operator overrides cannot corrupt a job.
//
// The moving parts:
//
//   - JobStore persists jobs with compare-and-set semantics. MemoryStore
//     backs tests, PostgresStore backs production.
//   - ClaimManager grants exclusive execution rights: exactly one of N
//     concurrent claimants wins a job.
//   - Dispatcher runs one publish attempt end to end and routes failures
//     through the RetryPolicy into a scheduled retry or a terminal failure
//     with an operator alert.
//   - Sweep is the clock: on an interval it reclaims claims from crashed
//     workers and dispatches due jobs, parallel across accounts and ordered
//     within each.
//   - OverrideService is the human escape hatch: cancel, retry now, dispatch
//     now, or record a manual publish.
//   - QueryService serves dashboard listings and counters.
//
// Minimal usage:
//
//	store := publisher.NewMemoryStore()
//	claims, _ := publisher.NewClaimManager(store)
//	policy := publisher.NewRetryPolicy(nil)
//	d, _ := publisher.NewDispatcher(store, claims, policy, contentStore)
//	d.RegisterAdapter(publisher.PlatformMeta, metaAdapter)
//	sweep, _ := publisher.NewSweep(store, d, policy)
//	_ = sweep.Start(ctx)
//	defer sweep.Stop()
package publisher
