// Package cli provides the command-line interface for transferctl.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/s3transfer/transferctl/internal/logging"
	"github.com/s3transfer/transferctl/internal/version"
)

var (
	// Global flags
	cfgFile    string
	apiBaseURL string
	statePath  string
	logFile    string
	verbose    bool
	debug      bool

	// Proxy and retry overrides
	proxyMode  string
	proxyHost  string
	proxyPort  int
	maxRetries int

	pollInterval time.Duration

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "transferctl",
		Short: "transferctl - move files between S3 buckets through the transfer service",
		Long: `transferctl ` + version.Version + ` - Built: ` + version.BuildTime + `
Command-line client for the S3 transfer service.

List, upload and download bucket files, start server-side transfers between
buckets and follow them until they finish. Run 'transferctl dashboard' for an
interactive session.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.NewLogger(logging.Options{
				Out:     cmd.ErrOrStderr(),
				LogFile: logFile,
				Verbose: verbose || debug,
			})
			if verbose || debug {
				logging.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Close()
			}
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&apiBaseURL, "api-url", "", "Transfer service base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&statePath, "state", "", "Client state file (recent buckets, login token)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write logs to this file (rotated)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output (same as --verbose)")

	rootCmd.PersistentFlags().StringVar(&proxyMode, "proxy-mode", "", "Proxy mode: no-proxy, system, basic, ntlm")
	rootCmd.PersistentFlags().StringVar(&proxyHost, "proxy-host", "", "Proxy host")
	rootCmd.PersistentFlags().IntVar(&proxyPort, "proxy-port", 0, "Proxy port")
	rootCmd.PersistentFlags().IntVar(&maxRetries, "max-retries", -1, "Retries for failed requests (0-10, default from config)")
	rootCmd.PersistentFlags().DurationVar(&pollInterval, "poll-interval", 0, "Transfer status polling period (default from config, 2s)")

	rootCmd.Version = version.Version + " (" + version.BuildTime + ")"

	rootCmd.AddCommand(newCompletionCmd(rootCmd))
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	return rootCmd
}

// newCompletionCmd replaces cobra's default completion command with one
// subcommand per shell.
func newCompletionCmd(rootCmd *cobra.Command) *cobra.Command {
	completionCmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Enable tab-completion for transferctl commands",
		Long: `Generate shell completion scripts for transferctl.

QUICK START:

  bash:
    transferctl completion bash | sudo tee /etc/bash_completion.d/transferctl

  zsh:
    transferctl completion zsh > "${fpath[1]}/_transferctl"

  fish:
    transferctl completion fish > ~/.config/fish/completions/transferctl.fish

  PowerShell:
    transferctl completion powershell >> $PROFILE`,
	}

	completionCmd.AddCommand(&cobra.Command{
		Use:   "bash",
		Short: "Generate bash completion script",
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootCmd.GenBashCompletion(cmd.OutOrStdout())
		},
	})
	completionCmd.AddCommand(&cobra.Command{
		Use:   "zsh",
		Short: "Generate zsh completion script",
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootCmd.GenZshCompletion(cmd.OutOrStdout())
		},
	})
	completionCmd.AddCommand(&cobra.Command{
		Use:   "fish",
		Short: "Generate fish completion script",
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootCmd.GenFishCompletion(cmd.OutOrStdout(), true)
		},
	})
	completionCmd.AddCommand(&cobra.Command{
		Use:   "powershell",
		Short: "Generate PowerShell completion script",
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootCmd.GenPowerShellCompletion(cmd.OutOrStdout())
		},
	})

	return completionCmd
}

// Execute runs the CLI.
func Execute() error {
	// Create a context that can be cancelled by signals
	rootContext, cancelFunc = context.WithCancel(context.Background())
	defer cancelFunc()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Loop so repeated Ctrl+C presses are drained.
	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\nReceived signal %v, cancelling operations...\n", sig)
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.ExecuteContext(rootContext)

	signal.Stop(sigChan)
	close(sigChan)

	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newBucketsCmd())
	rootCmd.AddCommand(newFilesCmd())
	rootCmd.AddCommand(newTransferCmd())
	rootCmd.AddCommand(newAdminCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newDashboardCmd())

	AddShortcuts(rootCmd)
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetContext returns the global CLI context with signal handling.
// This context will be cancelled when the user presses Ctrl+C.
func GetContext() context.Context {
	if rootContext == nil {
		// Fallback to background context if called before Execute()
		return context.Background()
	}
	return rootContext
}
