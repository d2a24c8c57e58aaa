package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"github.com/giantswarm/enginectl"
)

// Process exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// usageError marks errors caused by how the command was invoked.
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// app carries what every subcommand needs.
type app struct {
	out    io.Writer
	errOut io.Writer
	lookup func(string) (string, bool)
	// newSupervisor is replaced in tests.
	newSupervisor func(enginectl.Settings, ...enginectl.Option) (enginectl.Supervisor, error)

	configPath string
	settings   enginectl.Settings
}

func newApp(out, errOut io.Writer) *app {
	return &app{
		out:           out,
		errOut:        errOut,
		lookup:        os.LookupEnv,
		newSupervisor: enginectl.New,
	}
}

func (a *app) supervisor() (enginectl.Supervisor, error) {
	return a.newSupervisor(a.settings)
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...) //nolint:errcheck
}

// execute runs the command line args and returns the process exit code.
func execute(ctx context.Context, args []string, a *app) int {
	root := newRootCmd(a)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	fmt.Fprintln(a.errOut, "Error:", err) //nolint:errcheck
	var uerr usageError
	if errors.As(err, &uerr) || strings.HasPrefix(err.Error(), "unknown command") {
		return exitUsage
	}
	return exitError
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "enginectl",
		Short: "Launch and stop an inference engine",
		Long: `enginectl starts an inference engine (by default the vLLM OpenAI-compatible
server) as a detached background process and stops it again.

The engine is configured through environment variables such as MODEL_NAME,
TENSOR_PARALLEL_SIZE, HOST, PORT, GPU_MEMORY_UTILIZATION, DTYPE and
EXTRA_PARAMS, optionally layered over a YAML file given with --config.
Its output is appended to $LOG_PATH/app_$POD_NAME_$POD_IP.log.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger := klog.Background()
			enginectl.SetLogger(slog.New(logr.ToSlogHandler(logger)))
			cmd.Flags().VisitAll(func(f *pflag.Flag) {
				logger.V(1).Info("Flag", "name", f.Name, "value", f.Value.String())
			})
			settings, err := enginectl.LoadSettings(a.configPath, a.lookup)
			if err != nil {
				return err
			}
			a.settings = settings
			return nil
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err: err}
	})

	addKlogFlags(root.PersistentFlags())
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML settings file; environment variables take precedence")

	root.AddCommand(
		newLaunchCmd(a),
		newStopCmd(a),
		newStatusCmd(a),
		newRunCmd(a),
		newVersionCmd(a),
	)
	return root
}

// noArgs rejects positional arguments as a usage error.
func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return usageError{err: err}
	}
	return nil
}

// addKlogFlags registers klog's flags (-v, --logtostderr, ...) on fs.
func addKlogFlags(fs *pflag.FlagSet) {
	klogFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(klogFlags)
	fs.AddGoFlagSet(klogFlags)
}
