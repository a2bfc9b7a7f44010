package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Iron-Ham/otto/internal/artifacts"
	"github.com/Iron-Ham/otto/internal/errors"
	"github.com/Iron-Ham/otto/internal/event"
	"github.com/Iron-Ham/otto/internal/taskqueue"
	"github.com/Iron-Ham/otto/internal/util"
)

// runTaskLoop drains the task queue. Each task is executed, checked,
// reviewed, summarized and then decided on by the lead.
func (rt *Runtime) runTaskLoop(ctx context.Context) error {
	if _, err := rt.queue.Load(rt.RunDir(), false); err != nil {
		return fmt.Errorf("failed to load task queue: %w", err)
	}

	for rt.queue.HasMore() {
		if err := ctx.Err(); err != nil {
			return err
		}
		taskFile, ok := rt.queue.Current()
		if !ok {
			break
		}
		log := rt.logger.WithTask(filepath.Base(taskFile))
		log.Info("task started", "remaining", len(rt.queue.Tasks()))
		rt.publish(event.NewTaskStartedEvent(taskFile, len(rt.queue.Tasks())))

		reportPath, ok, err := rt.executeTask(ctx, taskFile)
		if err != nil {
			return err
		}
		if !ok {
			return errors.NewWorkflowError("Task execution failed: "+taskFile, nil)
		}

		qualityPassed, err := rt.checkTaskQuality(ctx, taskFile, reportPath)
		if err != nil {
			return err
		}

		reviewPath, ok, err := rt.reviewTask(ctx, taskFile, reportPath)
		if err != nil {
			return err
		}
		if !ok {
			return errors.NewWorkflowError("Task review failed: "+taskFile, nil)
		}

		tr := taskResult{
			reportPath:    reportPath,
			reviewPath:    reviewPath,
			reportSummary: rt.summarize(ctx, reportPath, reportSummary),
			reviewSummary: rt.summarize(ctx, reviewPath, reviewSummary),
			qualityPassed: qualityPassed,
		}

		d, err := rt.decide(ctx, taskFile, tr)
		if err != nil {
			return err
		}
		if d == nil {
			retry, err := rt.confirm(ctx, "Tech lead decision failed. Retry?", true)
			if err != nil {
				return err
			}
			if !retry {
				return errors.NewWorkflowError("Tech lead decision failed.", nil)
			}
			continue
		}

		log.Info("task decided", "decision", string(d.verdict), "output", d.output)
		rt.publish(event.NewTaskDecidedEvent(taskFile, string(d.verdict), d.output))

		if err := rt.applyDecision(ctx, taskFile, d); err != nil {
			return err
		}
	}
	return nil
}

func (rt *Runtime) applyDecision(ctx context.Context, taskFile string, d *decision) error {
	switch d.verdict {
	case artifacts.DecisionRemediation:
		if err := rt.queue.RemoveCurrent(); err != nil {
			return err
		}
		return rt.queue.AddToFront(d.output)

	case artifacts.DecisionFailed:
		marker := "otto:auto-stash:" + rt.State().RunID + ":" +
			strconv.FormatInt(rt.now().UnixMilli(), 10) + ":discard-uncommitted"
		if err := rt.git.DiscardUncommitted(ctx, rt.worktreePath(), marker); err != nil {
			return err
		}
		if err := rt.queue.RemoveCurrent(); err != nil {
			return err
		}
		if err := rt.resetBaseTask(d.output); err != nil {
			return err
		}
		return rt.queue.AddToFront(d.output)

	default:
		msg := "Accept task " + filepath.Base(taskFile)
		if _, err := rt.git.CommitAll(ctx, rt.worktreePath(), msg); err != nil {
			return err
		}
		if err := rt.queue.RemoveCurrent(); err != nil {
			return err
		}
		return rt.clearTaskSessions(taskFile)
	}
}

// resetBaseTask prepares a failed base task to run again from scratch:
// its artifacts and every remediation spawned from it are removed.
func (rt *Runtime) resetBaseTask(basePath string) error {
	runDir := rt.RunDir()
	if err := artifacts.ClearTaskArtifacts(runDir, basePath); err != nil {
		return err
	}
	base, ok := taskqueue.ParseTaskName(filepath.Base(basePath))
	if !ok {
		return nil
	}
	entries, err := os.ReadDir(runDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		name, ok := taskqueue.ParseTaskName(e.Name())
		if !ok || name.Remediation == 0 || name.BaseKey() != base.BaseKey() {
			continue
		}
		file := filepath.Join(runDir, e.Name())
		if err := artifacts.ClearTaskArtifacts(runDir, file); err != nil {
			return err
		}
		if err := util.RemoveIfExists(artifacts.OutcomePath(runDir, file)); err != nil {
			return err
		}
		if err := util.RemoveIfExists(file); err != nil {
			return err
		}
		rt.logger.Info("removed stale remediation", "task", e.Name())
	}
	return nil
}

func (rt *Runtime) clearTaskSessions(taskFile string) error {
	if err := rt.setSession(taskSlot(taskFile), ""); err != nil {
		return err
	}
	return rt.setSession(reviewerSlot(taskFile), "")
}
