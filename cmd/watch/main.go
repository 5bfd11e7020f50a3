package watch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/pprof"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/alpacahq/streamspy/executor"
	"github.com/alpacahq/streamspy/metrics"
	"github.com/alpacahq/streamspy/spy"
	"github.com/alpacahq/streamspy/utils"
	"github.com/alpacahq/streamspy/utils/log"
)

const (
	usage   = "log [directory]"
	short   = "Print the frames flowing through streams files"
	long    = "This command attaches read-only to every data<N> streams file under a directory and prints their frames without disturbing the writer or the reader"
	example = "streamspy log /var/run/streams --affinity 0x3 --position live --follow"

	configDesc         = "set the path for the YAML configuration file"
	directoryDesc      = "directory holding the data<N> streams files"
	affinityDesc       = "bit mask of streams file indices to attach to, decimal or 0x hex"
	positionDesc       = "where to start reading: start, live or tail"
	followDesc         = "keep polling for new frames until interrupted"
	verboseDesc        = "print each discovered streams file"
	unorderedDesc      = "print frames as read instead of in timestamp order"
	frameTypesDesc     = "glob patterns of frame type names to print"
	extensionTypesDesc = "glob patterns of extension type names to print"
	captureDesc        = "also record printed frames to this capture file"
	metricsListenDesc  = "serve prometheus metrics on this address"
	logLevelDesc       = "log level: debug, info, warning, error or fatal"

	metricsShutdownTimeout = 5 * time.Second
)

var (
	// Cmd is the log command.
	Cmd = &cobra.Command{
		Use:        usage,
		Short:      short,
		Long:       long,
		Aliases:    []string{"watch"},
		SuggestFor: []string{"tail", "follow", "dump"},
		Example:    example,
		Args:       cobra.MaximumNArgs(1),
		RunE:       executeLog,
	}

	configFilePath string
	flags          struct {
		directory      string
		affinity       string
		position       string
		follow         bool
		verbose        bool
		unordered      bool
		frameTypes     []string
		extensionTypes []string
		capture        string
		metricsListen  string
		logLevel       string
	}
)

// nolint:gochecknoinits // cobra's standard way to initialize flags
func init() {
	f := Cmd.Flags()
	f.StringVarP(&configFilePath, "config", "c", "", configDesc)
	f.StringVarP(&flags.directory, "directory", "d", "", directoryDesc)
	f.StringVarP(&flags.affinity, "affinity", "a", "", affinityDesc)
	f.StringVarP(&flags.position, "position", "p", "", positionDesc)
	f.BoolVarP(&flags.follow, "follow", "f", false, followDesc)
	f.BoolVar(&flags.verbose, "verbose", false, verboseDesc)
	f.BoolVar(&flags.unordered, "unordered", false, unorderedDesc)
	f.StringSliceVarP(&flags.frameTypes, "frame-type", "t", nil, frameTypesDesc)
	f.StringSliceVarP(&flags.extensionTypes, "extension-type", "e", nil, extensionTypesDesc)
	f.StringVar(&flags.capture, "capture", "", captureDesc)
	f.StringVar(&flags.metricsListen, "metrics-listen", "", metricsListenDesc)
	f.StringVar(&flags.logLevel, "log-level", "", logLevelDesc)
}

// loadConfig reads the optional config file and lets explicitly set flags and
// the directory argument override it.
func loadConfig(cmd *cobra.Command, args []string) (*utils.SpyConfig, error) {
	config := utils.DefaultConfig()
	if configFilePath != "" {
		data, err := os.ReadFile(configFilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file error: %w", err)
		}
		if config, err = utils.ParseConfig(data); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file error: %w", err)
		}
		log.Info("using %v for configuration", configFilePath)
	}

	f := cmd.Flags()
	var err error
	if f.Changed("directory") {
		config.Directory = flags.directory
	}
	if len(args) == 1 {
		config.Directory = args[0]
	}
	if f.Changed("affinity") {
		if config.Affinity, err = utils.ParseAffinity(flags.affinity); err != nil {
			return nil, err
		}
	}
	if f.Changed("position") {
		if config.Position, err = spy.ParseSpyPosition(flags.position); err != nil {
			return nil, err
		}
	}
	if f.Changed("follow") {
		config.Continuous = flags.follow
	}
	if f.Changed("verbose") {
		config.Verbose = flags.verbose
	}
	if f.Changed("unordered") {
		config.Unordered = flags.unordered
	}
	if f.Changed("frame-type") {
		config.FrameTypes = flags.frameTypes
	}
	if f.Changed("extension-type") {
		config.ExtensionTypes = flags.extensionTypes
	}
	if f.Changed("capture") {
		config.CaptureFile = flags.capture
	}
	if f.Changed("metrics-listen") {
		config.MetricsListen = flags.metricsListen
	}
	if f.Changed("log-level") {
		config.LogLevel = log.ParseLevel(flags.logLevel)
	}
	if err = config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// executeLog implements the log command.
func executeLog(cmd *cobra.Command, args []string) error {
	config, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	// Don't output command usage once the arguments are known to be correct.
	cmd.SilenceUsage = true
	log.SetLevel(config.LogLevel)

	h, err := executor.NewHarness(executor.HarnessConfig{
		Directory:      config.Directory,
		Affinity:       config.Affinity,
		Position:       config.Position,
		Continuous:     config.Continuous,
		Verbose:        config.Verbose,
		Unordered:      config.Unordered,
		FrameTypes:     config.FrameTypes,
		ExtensionTypes: config.ExtensionTypes,
		TypeNames:      config.TypeNames,
		MaxSpins:       config.Idle.MaxSpins,
		MaxYields:      config.Idle.MaxYields,
		MinPark:        config.Idle.MinPark,
		MaxPark:        config.Idle.MaxPark,
		CaptureFile:    config.CaptureFile,
	}, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer func() {
		if err2 := h.Close(); err2 != nil {
			log.Error("failed to close streams files: %v", err2)
		}
	}()

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	stopSignals := handleSignals(cancel)
	defer stopSignals()

	var wg sync.WaitGroup
	// the monitor reads mapped memory, so it must stop before h.Close
	defer wg.Wait()
	defer cancel()

	if config.MetricsListen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			metrics.StartBacklogMonitor(ctx, metrics.ConsumerBacklogBytes, metrics.SpyLagBytes,
				h.Rings(), config.BacklogInterval)
		}()

		srv := &http.Server{Addr: config.MetricsListen, Handler: metricsHandler()}
		log.Info("launching prometheus metrics server on %s...", config.MetricsListen)
		go func() {
			if err2 := srv.ListenAndServe(); err2 != nil && !errors.Is(err2, http.ErrServerClosed) {
				log.Error("metrics server error: %v", err2)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
			defer shutdownCancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	log.Info("spying on %s from %s", config.Directory, config.Position)
	return h.Run(ctx)
}

func metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// handleSignals cancels on SIGINT or SIGTERM and dumps goroutines on SIGUSR1.
func handleSignals(cancel context.CancelFunc) (stop func()) {
	const defaultSignalChanLen = 10
	signalChan := make(chan os.Signal, defaultSignalChanLen)
	signal.Notify(signalChan, syscall.SIGUSR1, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case s := <-signalChan:
				switch s {
				case syscall.SIGUSR1:
					log.Info("dumping stack traces due to SIGUSR1 request")
					if err := pprof.Lookup("goroutine").WriteTo(os.Stderr, 1); err != nil {
						log.Error("failed to write goroutine pprof: %v", err)
					}
				default:
					log.Info("stopping due to '%v' request", s)
					cancel()
				}
			}
		}
	}()

	return func() {
		signal.Stop(signalChan)
		close(done)
	}
}
