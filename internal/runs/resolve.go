package runs

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/Iron-Ham/otto/internal/errors"
	"github.com/Iron-Ham/otto/internal/state"
)

// StateFilePath maps a command-line argument to a state file. Arguments
// that look like paths are resolved against the working directory; anything
// else is treated as a run id.
func StateFilePath(root, arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", errors.NewValidationError("Run id or state file is required.").WithField("run")
	}
	if strings.ContainsAny(arg, `/\`) || strings.HasSuffix(arg, ".json") {
		return filepath.Abs(arg)
	}
	return state.FilePathFor(root, arg)
}

// Resolve loads the run named by arg.
func Resolve(root, arg string) (*state.State, error) {
	path, err := StateFilePath(root, arg)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, errors.NewNotFoundError("run", arg).WithCause(errors.ErrRunNotFound)
	}
	return state.Load(path)
}
