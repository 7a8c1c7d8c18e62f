// Package mutation applies user edits to cached server state before the
// server has confirmed them.
//
// A Coordinator writes the proposed value into the cache, issues the remote
// write, and once the write settles either keeps the optimistic value or puts
// back the value it replaced. Every submit ends in exactly one notification.
//
// Per submit, the states are:
//
//	Idle -> OptimisticApplied -> SettledOK
//	                          -> SettledRolledBack
//
// OptimisticApplied is entered before Start returns and is the only state in
// which the cache may disagree with the server.
//
// Two submits to the same key may race under PolicyConcurrent: each one only
// restores the value it captured, so a failing older submit can overwrite the
// optimistic value of a newer one still in flight. PolicySerialized runs
// submits to the same key one at a time instead.
package mutation
