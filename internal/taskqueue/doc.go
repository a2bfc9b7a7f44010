// Package taskqueue holds the ordered list of task files a run still has
// to execute.
//
// The persisted workflow state is the source of truth. The run directory is
// scanned only when the queue is empty or a reload is forced; the scan
// keeps, for each base task without an outcome, the newest remediation
// file (or the base task itself when it has none), ordered by task number
// then remediation number.
//
// Every mutation is written through the state store before it returns, so
// a crash never loses or duplicates queue entries.
//
// Usage:
//
//	q := taskqueue.New(store, logger)
//	if _, err := q.Load(runDir, false); err != nil { ... }
//	for q.HasMore() {
//	    task, _ := q.Current()
//	    // ... execute task ...
//	    _ = q.RemoveCurrent()
//	}
package taskqueue
