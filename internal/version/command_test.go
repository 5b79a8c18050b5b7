package version

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// TestAttachCobraVersionCommand prints the full and the short version.
func TestAttachCobraVersionCommand(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		args []string
		want string
	}{
		{args: []string{"version"}, want: Full() + "\n"},
		{args: []string{"version", "--short"}, want: Short() + "\n"},
	} {
		root := &cobra.Command{Use: "catpoint-test"}
		AttachCobraVersionCommand(root)

		var out bytes.Buffer

		root.SetOut(&out)
		root.SetArgs(tt.args)

		require.NoError(t, root.Execute())
		require.Equal(t, tt.want, out.String())
	}
}
