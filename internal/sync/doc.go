// Package sync renders changed source documents into the static mirror.
//
// Each candidate document goes through a short state machine:
//
//	candidate -> skipped (already current, unless forced)
//	          -> skipped (no URL mapping)
//	          -> failed  (render service unavailable)
//	          -> failed  (fetch or write error)
//	          -> succeeded, then an optional best-effort commit
//
// Every failed or succeeded document is recorded in the ledger; skips are
// not. Documents are processed one at a time in the given order.
//
// # Service availability
//
// The render service is checked, and started if needed, before the first
// fetch of a run. When it cannot be reached every remaining document of that
// run fails without another start attempt.
//
// # Auto mode
//
// Auto runs the engine with commits enabled and then pushes the mirror:
//
//	res, err := engine.Auto(ctx, docs, sync.Options{Remote: "origin", Branch: "main"})
package sync
