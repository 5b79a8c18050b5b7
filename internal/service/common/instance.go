//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-ps"
)

// ErrAlreadyRunning is returned when another process runs the same executable.
var ErrAlreadyRunning = errors.New("another instance is already running")

// EnsureSingleInstance fails if another process with the current executable
// name is alive.
func EnsureSingleInstance() error {
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	processList, err := ps.Processes()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	return findOtherInstance(processList, os.Getpid(), filepath.Base(executable))
}

// findOtherInstance looks for a process other than self named processName.
func findOtherInstance(processList []ps.Process, self int, processName string) error {
	for _, process := range processList {
		if process.Pid() == self {
			continue
		}

		if process.Executable() != processName {
			continue
		}

		return fmt.Errorf("%w: %s (pid %d)", ErrAlreadyRunning, processName, process.Pid())
	}

	return nil
}
