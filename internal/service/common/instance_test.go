//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"testing"

	"github.com/mitchellh/go-ps"
	"github.com/stretchr/testify/require"
)

type fakeProcess struct {
	pid        int
	executable string
}

func (p fakeProcess) Pid() int           { return p.pid }
func (p fakeProcess) PPid() int          { return 1 }
func (p fakeProcess) Executable() string { return p.executable }

// TestFindOtherInstance ignores the current process and unrelated ones.
func TestFindOtherInstance(t *testing.T) {
	t.Parallel()

	processList := []ps.Process{
		fakeProcess{pid: 10, executable: "catpoint-server"},
		fakeProcess{pid: 11, executable: "sshd"},
	}

	require.NoError(t, findOtherInstance(processList, 10, "catpoint-server"))

	processList = append(processList, fakeProcess{pid: 12, executable: "catpoint-server"})

	err := findOtherInstance(processList, 10, "catpoint-server")
	require.ErrorIs(t, err, ErrAlreadyRunning)
	require.Contains(t, err.Error(), "pid 12")
}

// TestEnsureSingleInstance passes when only the test binary runs.
func TestEnsureSingleInstance(t *testing.T) {
	t.Parallel()

	require.NoError(t, EnsureSingleInstance())
}
