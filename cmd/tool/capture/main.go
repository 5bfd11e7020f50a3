package capture

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/alpacahq/streamspy/capture"
)

const (
	captureUsage     = "capture <capture file>"
	captureShortDesc = "Print the frames recorded in a capture file"
	captureLongDesc  = "This command prints every frame recorded by the log command's --capture option"
	captureExample   = "streamspy tool capture frames.zst --payload"
)

var (
	// Cmd is the capture command.
	Cmd = &cobra.Command{
		Use:     captureUsage,
		Short:   captureShortDesc,
		Long:    captureLongDesc,
		Example: captureExample,
		Args:    cobra.ExactArgs(1),
		RunE:    executeCapture,
	}
	showPayload bool
)

// nolint:gochecknoinits // cobra's standard way to initialize flags
func init() {
	Cmd.Flags().BoolVar(&showPayload, "payload", false, "also print each payload as hex")
}

func executeCapture(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	return printCapture(cmd.OutOrStdout(), args[0], showPayload)
}

func printCapture(out io.Writer, path string, payload bool) error {
	r, err := capture.OpenReader(path)
	if err != nil {
		return err
	}
	defer r.Close()

	for n := 0; ; n++ {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			fmt.Fprintf(out, "%d records\n", n)
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "[%02d] [0x%016x] [%s] 0x%08x length=%d\n",
			rec.Index, rec.Timestamp, rec.Ring, uint32(rec.TypeID), len(rec.Payload))
		if payload {
			fmt.Fprintf(out, "  %x\n", rec.Payload)
		}
	}
}
