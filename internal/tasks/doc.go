// Package tasks runs the sync workers.
//
// # Dispatch
//
// [Dispatcher] looks up the [handlers.ActionPair] bound to a change event's trigger, builds the handler
// [handlers.Env] and pushes it once. An event without a bound handler is a configuration error.
//
// # Orchestration
//
// [Orchestrator] is the sequential worker of one integration. Each change event moves through
//
//	Detected → Dispatched → {Succeeded, FailedRetryable, FailedFatal}
//
// Outcomes are classified as follows:
//   - success: the handler result, if any, is applied to the mapping store in one transaction
//   - remote or storage failure: retried with [RetryPolicy] when transient, fatal otherwise
//   - unmapped id: retried when retry_unmapped is set, fatal otherwise
//   - local outdated: nothing to push; the event succeeds without a mapping change
//   - configuration error: fatal
//
// Delete-class handlers that report a missing local row, a missing mapping of their own, or a remote
// item that no longer exists have achieved their delete: any mapping for the key is removed and the
// event succeeds.
//
// A fatal failure is recorded in the failures table and halts that worker only.
//
// # Progress Reporting
//
// Every transition is sent as an [Update] on an optional channel. Sends use select with default
// so a slow reader never blocks a worker.
//
// # Concurrency
//
// [Service] runs the workers of all configured integrations concurrently with an errgroup and
// joins the errors of the workers that halted.
package tasks
