package tool

import (
	"github.com/spf13/cobra"

	"github.com/alpacahq/streamspy/cmd/tool/capture"
	"github.com/alpacahq/streamspy/cmd/tool/inspect"
)

const (
	toolUsage     = "tool"
	toolShortDesc = "Executes tools as subcommands"
	toolLongDesc  = "This command executes the specified diagnostic tool"
	toolExample   = "streamspy tool inspect <streams file>"
)

var (
	// Cmd is the tool command.
	Cmd = &cobra.Command{
		Use:        toolUsage,
		Short:      toolShortDesc,
		Long:       toolLongDesc,
		SuggestFor: []string{"inspect", "capture"},
		Example:    toolExample,
	}
)

// nolint:gochecknoinits // cobra's standard way to initialize flags
func init() {
	Cmd.AddCommand(inspect.Cmd)
	Cmd.AddCommand(capture.Cmd)
}
