package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/s3transfer/transferctl/internal/api"
	"github.com/s3transfer/transferctl/internal/config"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage transferctl configuration",
		Long: `Configuration management commands for transferctl.

Commands:
  init  - Interactive configuration setup
  show  - Display current configuration
  test  - Test the connection to the transfer service
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigTestCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup for transferctl.

The configuration is saved as an INI file under the user config directory
(see 'transferctl config path'). Use --force to overwrite it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			out := cmd.OutOrStdout()

			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Fprintf(out, "Configuration already exists at: %s\n", path)
					fmt.Fprintln(out, "Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			fmt.Fprintln(out, "transferctl Configuration Setup")
			fmt.Fprintln(out, "===============================")
			fmt.Fprintln(out)

			reader := bufferedStdin(cmd)
			cfg := config.NewConfig()

			var err error
			if cfg.APIBaseURL, err = promptLine(reader, out, "Transfer service URL", cfg.APIBaseURL); err != nil {
				return err
			}

			retries, err := promptLine(reader, out, "Retries for failed requests (0-10)", strconv.Itoa(cfg.MaxRetries))
			if err != nil {
				return err
			}
			if v, convErr := strconv.Atoi(retries); convErr == nil {
				cfg.MaxRetries = v
			}

			if cfg.DesktopNotifications, err = promptYesNo(reader, out, "Desktop notifications", false); err != nil {
				return err
			}

			fmt.Fprintln(out)
			useProxy, err := promptYesNo(reader, out, "Configure proxy?", false)
			if err != nil {
				return err
			}
			if useProxy {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Proxy modes: no-proxy, system, basic, ntlm")
				if cfg.ProxyMode, err = promptLine(reader, out, "Proxy mode", config.ProxyModeSystem); err != nil {
					return err
				}
				if cfg.ProxyMode == config.ProxyModeBasic || cfg.ProxyMode == config.ProxyModeNTLM {
					if cfg.ProxyHost, err = promptLine(reader, out, "Proxy host", ""); err != nil {
						return err
					}
					port, err := promptLine(reader, out, "Proxy port", "8080")
					if err != nil {
						return err
					}
					if v, convErr := strconv.Atoi(port); convErr == nil && v > 0 {
						cfg.ProxyPort = v
					}
					if cfg.ProxyUser, err = promptLine(reader, out, "Proxy user (password is asked per run)", ""); err != nil {
						return err
					}
				}
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := config.Save(cfg, path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			GetLogger().Info().Str("path", path).Msg("Configuration saved")

			fmt.Fprintln(out)
			fmt.Fprintf(out, "✓ Configuration saved to: %s\n", path)
			fmt.Fprintln(out, "Log in with: transferctl login")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")

	return cmd
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the effective configuration, merged from:
  1. Configuration file
  2. Environment variables (TRANSFERCTL_API_URL, TRANSFERCTL_PROXY)
  3. Command-line flags (--api-url, --proxy-mode, ...)

Priority: flags > environment > config file > defaults`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			printConfig(cmd, cfg)
			return nil
		},
	}
}

func printConfig(cmd *cobra.Command, cfg *config.Config) {
	out := cmd.OutOrStdout()
	path := configPath()

	fmt.Fprintln(out, "Current Configuration")
	fmt.Fprintln(out, "=====================")
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Service:")
	fmt.Fprintf(out, "  API Base URL:    %s\n", cfg.APIBaseURL)
	fmt.Fprintf(out, "  Request Timeout: %s\n", cfg.RequestTimeout)
	fmt.Fprintf(out, "  Max Retries:     %d\n", cfg.MaxRetries)
	fmt.Fprintf(out, "  Poll Interval:   %s\n", cfg.PollInterval)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Proxy Settings:")
	fmt.Fprintf(out, "  Proxy Mode: %s\n", cfg.ProxyMode)
	if cfg.ProxyHost != "" {
		fmt.Fprintf(out, "  Proxy Host: %s\n", cfg.ProxyHost)
		fmt.Fprintf(out, "  Proxy Port: %d\n", cfg.ProxyPort)
	}
	if cfg.ProxyUser != "" {
		fmt.Fprintf(out, "  Proxy User: %s\n", cfg.ProxyUser)
	}
	if cfg.NoProxy != "" {
		fmt.Fprintf(out, "  No Proxy:   %s\n", cfg.NoProxy)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Client:")
	fmt.Fprintf(out, "  State File:            %s\n", cfg.StatePath)
	fmt.Fprintf(out, "  Desktop Notifications: %t\n", cfg.DesktopNotifications)
	if cfg.LogFile != "" {
		fmt.Fprintf(out, "  Log File:              %s\n", cfg.LogFile)
	}
	fmt.Fprintln(out)

	fmt.Fprintf(out, "Configuration file: %s\n", path)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintln(out, "  (file does not exist - using defaults)")
	}
}

// newConfigTestCmd creates the 'config test' command.
func newConfigTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Test the connection to the transfer service",
		Long: `Send one request to the transfer service with the current configuration.

Any HTTP answer, including 401 when not logged in, proves the service is
reachable through the configured proxy.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "API URL: %s\n", a.client.BaseURL())
			fmt.Fprintln(out, "Testing connection...")

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			_, err = a.client.ListCredentials(ctx)
			var statusErr *api.StatusError
			switch {
			case err == nil:
				fmt.Fprintln(out, "✓ Connection SUCCESSFUL (logged in)")
			case errors.Is(err, api.ErrUnauthorized):
				fmt.Fprintln(out, "✓ Connection SUCCESSFUL (not logged in)")
			case errors.As(err, &statusErr):
				fmt.Fprintf(out, "✓ Service reachable (status %d)\n", statusErr.StatusCode)
			default:
				a.logger.Error().Err(err).Msg("Connection test failed")
				fmt.Fprintln(out, "✗ Connection FAILED")
				fmt.Fprintf(out, "  Error: %v\n", err)
				return fmt.Errorf("connection test failed")
			}
			return nil
		},
	}
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			path := configPath()
			if cfgFile == "" {
				fmt.Fprintln(out, "Default configuration path:")
			} else {
				fmt.Fprintln(out, "Configuration path (from --config flag):")
			}
			fmt.Fprintf(out, "  %s\n", path)
			fmt.Fprintln(out)

			if info, err := os.Stat(path); err == nil {
				fmt.Fprintln(out, "Status: ✓ File exists")
				fmt.Fprintf(out, "Size:   %d bytes\n", info.Size())
				fmt.Fprintf(out, "Modified: %s\n", info.ModTime().Format("2006-01-02 15:04:05"))
			} else {
				fmt.Fprintln(out, "Status: File does not exist")
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Create a configuration file with: transferctl config init")
			}
			return nil
		},
	}
}
