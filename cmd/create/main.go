// Package create lays out new streams files for writers and tests.
package create

import (
	"fmt"

	"code.cloudfoundry.org/bytefmt"
	"github.com/spf13/cobra"

	"github.com/alpacahq/streamspy/layouts"
	"github.com/alpacahq/streamspy/utils/log"
)

const (
	usage   = "create <path>"
	short   = "Creates a new streams file"
	long    = "This command creates a zero filled streams file with a streams ring and a throttle ring of the given capacities"
	example = "streamspy create /var/run/streams/data0 --streams 1M --throttle 64K"

	defaultCapacity = "64K"
)

var (
	// Cmd is the create command.
	Cmd = &cobra.Command{
		Use:        usage,
		Short:      short,
		Long:       long,
		SuggestFor: []string{"init", "new"},
		Example:    example,
		Args:       cobra.ExactArgs(1),
		RunE:       executeCreate,
	}
	streamsCapacity  string
	throttleCapacity string
)

// nolint:gochecknoinits // cobra's standard way to initialize flags
func init() {
	Cmd.Flags().StringVarP(&streamsCapacity, "streams", "s", defaultCapacity, "capacity of the streams ring, a power of two such as 1M")
	Cmd.Flags().StringVarP(&throttleCapacity, "throttle", "t", defaultCapacity, "capacity of the throttle ring, a power of two such as 64K")
}

// executeCreate implements the create command.
func executeCreate(cmd *cobra.Command, args []string) error {
	cs, err := bytefmt.ToBytes(streamsCapacity)
	if err != nil {
		return fmt.Errorf("streams capacity %q: %w", streamsCapacity, err)
	}
	ct, err := bytefmt.ToBytes(throttleCapacity)
	if err != nil {
		return fmt.Errorf("throttle capacity %q: %w", throttleCapacity, err)
	}
	cmd.SilenceUsage = true

	l, err := layouts.NewStreamsLayout(layouts.StreamsConfig{
		Path:             args[0],
		StreamsCapacity:  int64(cs),
		ThrottleCapacity: int64(ct),
	})
	if err != nil {
		return err
	}
	log.Info("created %s: streams %s, throttle %s, %s on disk", args[0],
		bytefmt.ByteSize(cs), bytefmt.ByteSize(ct),
		bytefmt.ByteSize(uint64(layouts.FileSize(int64(cs), int64(ct)))))
	return l.Close()
}
