// Package state owns the durable document that describes one otto run.
//
// A run's state lives at <artifactRoot>/states/run-<id>.json. It records the
// run's immutable identity (ticket, worktree, paths) and the mutable
// [Workflow] section that phases update as they progress. Every mutation goes
// through [Store.Update] or [Store.Save], which rewrite the whole document
// atomically (temp file plus rename), so a crash always leaves either the
// previous or the next complete document on disk.
//
// Documents written by older releases used an "ask" section and "ask-*"
// phase names. [Load] migrates both to the ticket vocabulary.
package state
