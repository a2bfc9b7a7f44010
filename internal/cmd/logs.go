package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/Iron-Ham/otto/internal/errors"
	"github.com/Iron-Ham/otto/internal/logging"
	"github.com/Iron-Ham/otto/internal/util"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var logsCmd = &cobra.Command{
	Use:   "logs [run]",
	Short: "View otto logs",
	Long: `View and filter otto's structured log.

By default, shows the last 50 entries across all runs. Pass a run id to
see only that run's entries.

Examples:
  # Show the last 50 entries
  otto logs

  # Show every entry of one run
  otto logs 2026-02-01-add-response-caching -n 0

  # Follow logs in real-time
  otto logs -f

  # Only warnings and errors from the last hour
  otto logs --level warn --since 1h

  # Search for specific patterns
  otto logs --grep "merge|conflict"`,
	Args: cobra.MaximumNArgs(1),
	RunE: withApp(runLogs),
}

var (
	logsTail   int
	logsFollow bool
	logsLevel  string
	logsSince  string
	logsGrep   string
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of entries to show (0 for all)")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output (like tail -f)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Filter by minimum level (debug/info/warn/error)")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since duration ago (e.g., 1h, 30m)")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "Filter logs matching pattern (regex)")
}

// logEntry is one parsed JSON log line.
type logEntry struct {
	Time  time.Time      `json:"time"`
	Level string         `json:"level"`
	Msg   string         `json:"msg"`
	RunID string         `json:"run_id,omitempty"`
	Phase string         `json:"phase,omitempty"`
	Task  string         `json:"task,omitempty"`
	Role  string         `json:"role,omitempty"`
	Extra map[string]any `json:"-"`
}

// UnmarshalJSON captures fields beyond the known ones in Extra.
func (e *logEntry) UnmarshalJSON(data []byte) error {
	type alias logEntry
	if err := json.Unmarshal(data, (*alias)(e)); err != nil {
		return err
	}

	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, k := range []string{"time", "level", "msg", "run_id", "phase", "task", "role"} {
		delete(all, k)
	}
	if len(all) > 0 {
		e.Extra = all
	}
	return nil
}

// logFilter selects entries for display.
type logFilter struct {
	runID    string
	minLevel int
	since    time.Time
	grep     *regexp.Regexp
}

func (f logFilter) match(e *logEntry) bool {
	if f.runID != "" && e.RunID != f.runID {
		return false
	}
	if f.minLevel >= 0 && levelPriority(e.Level) < f.minLevel {
		return false
	}
	if !f.since.IsZero() && e.Time.Before(f.since) {
		return false
	}
	if f.grep != nil {
		text := e.Msg
		for _, v := range e.Extra {
			text += " " + fmt.Sprintf("%v", v)
		}
		if !f.grep.MatchString(text) {
			return false
		}
	}
	return true
}

var (
	logTimeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	logKeyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#22D3EE"))
	levelStyles  = map[string]lipgloss.Style{
		logging.LevelDebug: lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")),
		logging.LevelInfo:  lipgloss.NewStyle().Foreground(lipgloss.Color("#60A5FA")),
		logging.LevelWarn:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FBBF24")),
		logging.LevelError: lipgloss.NewStyle().Foreground(lipgloss.Color("#F87171")),
	}
)

// levelPriority returns the priority of a log level for filtering
func levelPriority(level string) int {
	switch strings.ToUpper(level) {
	case logging.LevelDebug:
		return 0
	case logging.LevelInfo:
		return 1
	case logging.LevelWarn:
		return 2
	case logging.LevelError:
		return 3
	default:
		return -1
	}
}

// maxLogValueLen caps each rendered field value; runner output can be long.
const maxLogValueLen = 200

// formatLogEntry renders an entry as one terminal line. Extra fields are
// sorted so repeated views line up.
func formatLogEntry(e *logEntry) string {
	level := strings.ToUpper(e.Level)
	style, ok := levelStyles[level]
	if !ok {
		style = lipgloss.NewStyle()
	}

	var sb strings.Builder
	sb.WriteString(logTimeStyle.Render("[" + e.Time.Format("15:04:05.000") + "]"))
	sb.WriteString(" ")
	sb.WriteString(style.Render("[" + level + "]"))
	sb.WriteString(" ")
	sb.WriteString(e.Msg)

	field := func(k string, v any) {
		sb.WriteString(" ")
		sb.WriteString(logKeyStyle.Render(k + "="))
		sb.WriteString(util.TruncateString(fmt.Sprintf("%v", v), maxLogValueLen))
	}
	for _, kv := range [][2]string{{"run_id", e.RunID}, {"phase", e.Phase}, {"task", e.Task}, {"role", e.Role}} {
		if kv[1] != "" {
			field(kv[0], kv[1])
		}
	}
	keys := make([]string, 0, len(e.Extra))
	for k := range e.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		field(k, e.Extra[k])
	}
	return sb.String()
}

// parseLogFilter builds the filter for the logs command from its flags.
func parseLogFilter(args []string, level, since, grep string) (logFilter, error) {
	filter := logFilter{minLevel: -1}
	if len(args) > 0 {
		filter.runID = strings.TrimSpace(args[0])
	}
	if level != "" {
		if !slices.Contains(logging.ValidLevels(), strings.ToUpper(level)) {
			return filter, errors.NewValidationError(fmt.Sprintf("invalid log level %q (expected debug, info, warn or error)", level)).
				WithField("level").
				WithValue(level)
		}
		filter.minLevel = levelPriority(logging.ParseLevel(level))
	}
	if since != "" {
		d, err := time.ParseDuration(since)
		if err != nil {
			return filter, errors.NewValidationError("invalid duration format: " + err.Error()).WithField("since").WithCause(err)
		}
		filter.since = time.Now().Add(-d)
	}
	if grep != "" {
		re, err := regexp.Compile(grep)
		if err != nil {
			return filter, errors.NewValidationError("invalid grep pattern: " + err.Error()).WithField("grep").WithCause(err)
		}
		filter.grep = re
	}
	return filter, nil
}

func runLogs(ctx context.Context, a *app, args []string) error {
	filter, err := parseLogFilter(args, logsLevel, logsSince, logsGrep)
	if err != nil {
		return err
	}

	logPath := filepath.Join(a.paths.Logs, logging.LogFileName)
	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		a.printf("No logs found.\nLogs are stored at: %s\n", logPath)
		return nil
	}

	if logsFollow {
		return followLogs(ctx, a.out, logPath, filter)
	}
	return displayLogs(a.out, logPath, logsTail, filter)
}

// displayLogs prints the last tail matching entries.
func displayLogs(out io.Writer, logPath string, tail int, filter logFilter) error {
	file, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line, ok := renderLogLine(scanner.Text(), filter); ok {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading log file: %w", err)
	}

	if tail > 0 && len(lines) > tail {
		lines = lines[len(lines)-tail:]
	}
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
	if len(lines) == 0 {
		fmt.Fprintln(out, "No matching log entries found.")
	}
	return nil
}

// followLogs prints entries appended to the log until ctx is done.
func followLogs(ctx context.Context, out io.Writer, logPath string, filter logFilter) error {
	file, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}
	fmt.Fprintf(out, "Following logs... (Ctrl+C to stop)\n\n")

	reader := bufio.NewReader(file)
	var pending string
	for {
		chunk, err := reader.ReadString('\n')
		pending += chunk
		if err == io.EOF {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("error reading log file: %w", err)
		}
		raw := pending
		pending = ""
		if line, ok := renderLogLine(raw, filter); ok {
			fmt.Fprintln(out, line)
		}
	}
}

// renderLogLine formats raw when it passes filter. Lines that are not JSON
// are shown as-is unless a run filter is set.
func renderLogLine(raw string, filter logFilter) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	var e logEntry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return raw, filter.runID == ""
	}
	if !filter.match(&e) {
		return "", false
	}
	return formatLogEntry(&e), true
}
