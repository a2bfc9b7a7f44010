package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Iron-Ham/otto/internal/errors"
	"github.com/Iron-Ham/otto/internal/runs"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

var activeWatch bool

var activeCmd = &cobra.Command{
	Use:   "active",
	Short: "List active runs",
	Long: `List runs whose lock is held by a live process. Stale locks left by
crashed runs are removed. With --watch the list is reprinted whenever a
run starts or stops.`,
	Args: cobra.NoArgs,
	RunE: withApp(runActive),
}

func init() {
	rootCmd.AddCommand(activeCmd)
	activeCmd.Flags().BoolVarP(&activeWatch, "watch", "w", false, "Keep watching for runs starting and stopping")
}

func runActive(ctx context.Context, a *app, _ []string) error {
	last, err := a.printActive("")
	if err != nil || !activeWatch {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}
	defer watcher.Close()
	for _, dir := range []string{a.paths.Locks, a.paths.States} {
		if err := watcher.Add(dir); err != nil {
			return errors.Wrapf(err, "failed to watch %s", dir)
		}
	}

	debounce := time.NewTimer(0)
	<-debounce.C // drain initial timer

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Ext(ev.Name) != ".json" {
				continue
			}
			// Lock writes are atomic renames, so several events arrive per change.
			debounce.Reset(200 * time.Millisecond)

		case <-debounce.C:
			if last, err = a.printActive(last); err != nil {
				return err
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.logger.Warn("watch error", "error", err)
		}
	}
}

// printActive prints the active runs unless the listing equals previous.
// It returns the listing it compared against.
func (a *app) printActive(previous string) (string, error) {
	all, err := runs.List(a.paths.Root, runs.ListOptions{Logger: a.logger})
	if err != nil {
		return previous, err
	}
	listing := formatActive(runs.Active(all))
	if listing != previous {
		a.printf("%s", listing)
	}
	return listing, nil
}

func formatActive(active []runs.Run) string {
	if len(active) == 0 {
		return "No active runs.\n"
	}
	var b strings.Builder
	b.WriteString(headingStyle.Render("Active runs:") + "\n")
	for _, r := range active {
		fmt.Fprintf(&b, "- %s %s\n", r.State.RunID,
			mutedStyle.Render(fmt.Sprintf("(pid %d, %s)", r.Lock.PID, r.State.Workflow.Phase)))
	}
	return b.String()
}
