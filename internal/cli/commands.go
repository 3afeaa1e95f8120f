package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/uparkt/parkadmin/internal/app"
	"github.com/uparkt/parkadmin/internal/common/logtrace"
	"github.com/uparkt/parkadmin/internal/config"
	"github.com/uparkt/parkadmin/internal/guard"
)

var (
	// Global flags
	jsonOutput bool
	configFile string
)

// ErrAlreadyHandled is returned by commands that have already told the user
// what went wrong.
var ErrAlreadyHandled = errors.New("already handled")

var okLabel = color.New(color.FgGreen)
var errorLabel = color.New(color.FgRed)
var hintLabel = color.New(color.FgYellow)

// current holds the runtime of the command being executed.
var current struct {
	rt         *app.Runtime
	redirected bool
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	jsonOutput = false
	configFile = ""

	rootCmd := &cobra.Command{
		Use:   "parkadmin [command] [flags]",
		Short: "parkadmin - administer the uParkt parking service",
		Long: `parkadmin is a command line client for the uParkt parking administration API.
It manages users, their cars and parking listings, and the support chat.

Examples:
  # Point the client at a server and log in
  parkadmin config --server server.uparkt.ru
  parkadmin login --login admin

  # List the second page of users matching a search
  parkadmin users list --search ivan --page 2

  # Follow the support chat
  parkadmin chats watch`,
		SilenceErrors: true, // Execute prints errors
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "", "", "Path to configuration file to override default")
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output in JSON format")

	rootCmd.AddCommand(
		newVersionCmd(),
		newConfigCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newStatusCmd(),
		newMeCmd(),
		newUsersCmd(),
		newCarsCmd(),
		newParkingsCmd(),
		newChatsCmd(),
		newServicesCmd(),
	)
	return rootCmd
}

// Execute runs the command line and exits with a non-zero status on failure.
// This is called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	closeRuntime()
	if err == nil || errors.Is(err, ErrAlreadyHandled) {
		return err
	}
	if jsonOutput {
		printJSON(stdout, map[string]string{"error": err.Error()})
	} else {
		errorLabel.Fprintf(stderr, "Error: %v\n", err)
	}
	return err
}

// runtimeFor loads the configuration and builds the runtime once per execution.
func runtimeFor(cmd *cobra.Command) (*app.Runtime, error) {
	if current.rt != nil {
		return current.rt, nil
	}
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, err
	}
	level := cfg.Log.Level
	if level == "" {
		level = "warn"
	}
	logtrace.InitLogger(level)

	errOut := cmd.ErrOrStderr()
	rt, err := app.New(cfg, app.Options{
		Navigator: guard.NavigatorFunc(func(_ context.Context, to guard.Location) {
			if current.redirected {
				return
			}
			current.redirected = true
			hintLabel.Fprintln(errOut, "Not logged in or session expired.")
			if to.Redirect != "" {
				fmt.Fprintf(errOut, "Log in with \"parkadmin login\" to open %s\n", to.Redirect)
			} else {
				fmt.Fprintln(errOut, "Log in with \"parkadmin login\"")
			}
		}),
	})
	if err != nil {
		return nil, err
	}
	current.rt = rt
	return rt, nil
}

func closeRuntime() {
	if current.rt != nil {
		current.rt.Close()
	}
	current.rt = nil
	current.redirected = false
}

// newVersionCmd creates and returns a new version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of parkadmin",
		Run: func(cmd *cobra.Command, args []string) {
			configPath := configFile
			if configPath == "" {
				var err error
				if configPath, err = config.GetDefaultConfigPath(); err != nil {
					configPath = "unknown"
				}
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				printJSON(out, map[string]string{
					"version":     getCLIVersion(),
					"config_file": configPath,
				})
				return
			}
			fmt.Fprintf(out, "parkadmin %s\n", getCLIVersion())
			fmt.Fprintf(out, "Config file: %s\n", configPath)
		},
	}
}

// getCLIVersion returns the current CLI version
func getCLIVersion() string {
	return "v0.1.0"
}
