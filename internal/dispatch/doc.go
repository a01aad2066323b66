// Package dispatch drives consumer groups over the partitioned event log.
// Each Dispatcher owns one group: a worker per partition reads batches from
// that partition, hands them to the group's Handler, and commits the durable
// cursor only after the handler succeeds or the batch is dead-lettered.
//
// Delivery is at-least-once. A crash between a successful handle and the
// cursor commit redelivers the batch, so handlers are expected to be
// idempotent. Transient handler errors are retried with the group's backoff
// policy; permanent errors and exhausted retries route the batch to the
// group's dead letter log and the cursor advances past it.
//
// Example:
//
//	d, _ := dispatch.New(dispatch.Options{
//	    Group:       "persist",
//	    Handler:     sinkHandler,
//	    Logs:        logs,
//	    DeadLetters: dlqs,
//	})
//	d.Start(ctx)
//	defer d.Stop()
package dispatch
