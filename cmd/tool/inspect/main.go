package inspect

import (
	"fmt"
	"io"

	"code.cloudfoundry.org/bytefmt"
	"github.com/spf13/cobra"

	"github.com/alpacahq/streamspy/layouts"
	"github.com/alpacahq/streamspy/spy"
)

const (
	inspectUsage     = "inspect <streams file>..."
	inspectShortDesc = "Print the header and ring positions of streams files"
	inspectLongDesc  = "This command attaches read-only to each streams file and prints its capacities, the producer and consumer positions of both rings and their backlog"
	inspectExample   = "streamspy tool inspect /var/run/streams/data0"
)

var (
	// Cmd is the inspect command.
	Cmd = &cobra.Command{
		Use:     inspectUsage,
		Short:   inspectShortDesc,
		Long:    inspectLongDesc,
		Example: inspectExample,
		Args:    cobra.MinimumNArgs(1),
		RunE:    executeInspect,
	}
)

func executeInspect(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	out := cmd.OutOrStdout()
	for _, path := range args {
		if err := inspect(out, path); err != nil {
			return err
		}
	}
	return nil
}

func inspect(out io.Writer, path string) error {
	l, err := layouts.NewStreamsLayout(layouts.StreamsConfig{Path: path, Readonly: true, SpyAt: spy.ZERO})
	if err != nil {
		return err
	}
	defer l.Close()

	fmt.Fprintf(out, "%s\n", path)
	printRing(out, "streams", l.StreamsBuffer())
	printRing(out, "throttle", l.ThrottleBuffer())
	return nil
}

func printRing(out io.Writer, name string, ring *spy.OneToOneRingBufferSpy) {
	producer := ring.ProducerPosition()
	consumer := ring.ConsumerPosition()
	fmt.Fprintf(out, "  %-8s capacity=%s producer=%d consumer=%d backlog=%d\n",
		name, bytefmt.ByteSize(uint64(ring.Capacity())), producer, consumer, producer-consumer)
}
