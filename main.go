package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/aurashell/rendererbuild/internal/command"
	"github.com/aurashell/rendererbuild/internal/config"
	"github.com/aurashell/rendererbuild/internal/console"
	"github.com/aurashell/rendererbuild/internal/failure"
	"github.com/aurashell/rendererbuild/internal/pipeline"
)

var version = "dev"

func init() {
	log.SetOutput(os.Stderr)
	log.SetLevel(log.InfoLevel)
	log.SetFormatter(&log.TextFormatter{
		DisableColors: !term.IsTerminal(int(os.Stderr.Fd())),
	})
}

// newRootCmd builds the command line. Every external tool runs through
// runner and operator messages go to stdout.
func newRootCmd(runner command.Runner, stdout io.Writer) *cobra.Command {
	var (
		cfg        config.BuildConfig
		configFile string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "rendererbuild",
		Short: "Build and run the renderer",
		Long: `rendererbuild - build and run the renderer

Checks native development packages on Linux, configures the project with
CMake, builds it and runs the result when a display is available.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				log.SetLevel(log.DebugLevel)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(configFile, cmd.Flags().Changed("config"))
			if err != nil {
				return err
			}
			log.WithFields(log.Fields{"Config": configFile, "BuildDir": settings.BuildDir}).Debug("Loaded settings")

			p := pipeline.New(cfg, settings, runner, console.New(stdout), runtime.GOOS == "windows")
			return p.Run(cmd.Context())
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&cfg.Debug, "debug", false, "build in Debug mode")
	flags.BoolVar(&cfg.Clean, "clean", false, "clean the build directory first")
	flags.BoolVar(&cfg.SkipDeps, "skip-deps", false, "skip the dependency check on Linux")
	flags.BoolVar(&cfg.NoRun, "no-run", false, "build without running the program")
	flags.StringVar(&configFile, "config", config.DefaultFile, "settings file")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	cmd.SetOut(stdout)
	return cmd
}

// run executes the command line and returns the process exit status,
// printing the failure to stderr.
func run(ctx context.Context, args []string, runner command.Runner, stdout, stderr io.Writer) int {
	cmd := newRootCmd(runner, stdout)
	cmd.SetArgs(args)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		console.New(stderr).Error("%v", err)
		return failure.ExitStatus(err)
	}
	return 0
}

func main() {
	// Variables already in the environment win over .env.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	status := run(ctx, os.Args[1:], command.NewExecRunner(), os.Stdout, os.Stderr)
	stop()

	os.Exit(status)
}
