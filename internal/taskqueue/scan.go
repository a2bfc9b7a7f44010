package taskqueue

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/gobwas/glob"
)

var (
	// taskGlob is a cheap prefilter before the regex parse.
	taskGlob    = glob.MustCompile("task-*.md")
	taskPattern = regexp.MustCompile(`^task-(\d+)-(.+?)(?:-remediation-(\d+))?\.md$`)
)

// TaskName is a parsed task file name.
type TaskName struct {
	File        string
	Number      int
	Desc        string
	Remediation int
}

// BaseKey identifies the base task shared by a task and its remediations.
func (n TaskName) BaseKey() string {
	return strconv.Itoa(n.Number) + "-" + n.Desc
}

// ParseTaskName parses task-<n>-<desc>[-remediation-<k>].md.
func ParseTaskName(file string) (TaskName, bool) {
	if !taskGlob.Match(file) {
		return TaskName{}, false
	}
	m := taskPattern.FindStringSubmatch(file)
	if m == nil {
		return TaskName{}, false
	}
	num, err := strconv.Atoi(m[1])
	if err != nil {
		return TaskName{}, false
	}
	rem := 0
	if m[3] != "" {
		rem, _ = strconv.Atoi(m[3])
	}
	return TaskName{File: file, Number: num, Desc: m[2], Remediation: rem}, true
}

// Scan returns the runnable task files in runDir. A base task is skipped
// when an outcome exists for it or for any of its remediations; otherwise
// only its highest remediation (or the base file) is kept.
func Scan(runDir string) ([]string, error) {
	entries, err := os.ReadDir(runDir)
	if err != nil {
		return nil, err
	}

	names := make(map[string]bool, len(entries))
	var tasks []TaskName
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names[e.Name()] = true
		if t, ok := ParseTaskName(e.Name()); ok {
			tasks = append(tasks, t)
		}
	}

	closed := make(map[string]bool)
	latest := make(map[string]TaskName)
	for _, t := range tasks {
		key := t.BaseKey()
		if names["outcome-"+t.File] {
			closed[key] = true
		}
		if cur, ok := latest[key]; !ok || t.Remediation > cur.Remediation {
			latest[key] = t
		}
	}

	runnable := make([]TaskName, 0, len(latest))
	for key, t := range latest {
		if !closed[key] {
			runnable = append(runnable, t)
		}
	}
	sort.Slice(runnable, func(i, j int) bool {
		a, b := runnable[i], runnable[j]
		if a.Number != b.Number {
			return a.Number < b.Number
		}
		if a.Remediation != b.Remediation {
			return a.Remediation < b.Remediation
		}
		return a.File < b.File
	})

	out := make([]string, len(runnable))
	for i, t := range runnable {
		out[i] = filepath.Join(runDir, t.File)
	}
	return out, nil
}

// NextTaskNumber returns one more than the highest task number in runDir,
// or 1 when there are none or the directory cannot be read.
func NextTaskNumber(runDir string) int {
	entries, err := os.ReadDir(runDir)
	if err != nil {
		return 1
	}
	highest := 0
	for _, e := range entries {
		if t, ok := ParseTaskName(e.Name()); ok && t.Number > highest {
			highest = t.Number
		}
	}
	return highest + 1
}
