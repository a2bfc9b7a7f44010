// Package logging provides structured logging for otto runs.
//
// This package wraps Go's log/slog to write JSON-formatted logs that can be
// read after a run stops. Every workflow component takes a [Logger] and
// attaches the run, phase, task or agent role it is working on so that a
// single log file can be filtered per run.
//
// # Features
//
//   - JSON-formatted structured logging via slog
//   - Configurable log levels (DEBUG, INFO, WARN, ERROR)
//   - Context propagation (run ID, phase, task, role)
//   - Size-based rollover of the log file when a logger is opened
//
// # Thread Safety
//
// [Logger] is safe for concurrent use. Child loggers created via With*
// methods share the underlying writer.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/repo/.otto/logs", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	runLogger := logger.WithRun("2026-02-01-add-caching").WithPhase("execution")
//	runLogger.Info("task accepted", "task", "task-1-add-cache.md")
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"task accepted","run_id":"2026-02-01-add-caching","phase":"execution","task":"task-1-add-cache.md"}
package logging
