package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"github.com/uparkt/parkadmin/internal/config"
	"github.com/uparkt/parkadmin/internal/session"
)

// configPath returns the --config value or the default location.
func configPath() (string, error) {
	if configFile != "" {
		return configFile, nil
	}
	path, err := config.GetDefaultConfigPath()
	if err != nil {
		return "", fmt.Errorf("failed to get default config path: %w", err)
	}
	return path, nil
}

func newConfigCmd() *cobra.Command {
	var server, sessionPath, apiVersion string

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long:  `Manage CLI configuration settings like the server connection and the session file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if server == "" && sessionPath == "" && apiVersion == "" {
				cmd.Help()
				return nil
			}
			return updateConfig(cmd, server, sessionPath, apiVersion)
		},
	}
	configCmd.Flags().StringVar(&server, "server", "", "Set the server URL (e.g., server.uparkt.ru)")
	configCmd.Flags().StringVar(&sessionPath, "session-path", "", "Set the file that holds the session token")
	configCmd.Flags().StringVar(&apiVersion, "api-version", "", "Set the REST API version (e.g., 1.0)")

	configShowCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configFile)
			if err != nil {
				return err
			}
			return printValue(cmd.OutOrStdout(), map[string]any{
				"server":              cfg.Server.URL,
				"api_prefix":          cfg.APIPrefix(),
				"websocket":           cfg.WSOrigin(),
				"session_path":        cfg.Session.Path,
				"revalidate_interval": cfg.Session.GetRevalidateIntervalOrDefault().String(),
				"stale_time":          cfg.Cache.GetStaleTimeOrDefault().String(),
				"retries":             cfg.Cache.Retries,
			})
		},
	}

	configClearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Forget the stored session",
		Long: `Remove the stored session token without contacting the server.
Use "parkadmin logout" to also end the session on the server.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configFile)
			if err != nil {
				return err
			}
			store := session.NewFileStore(cfg.Session.Path, session.NewSealer(cfg.Session.Passphrase))
			if err := store.Clear(ctxOf(cmd)); err != nil {
				return fmt.Errorf("failed to clear session: %w", err)
			}
			if jsonOutput {
				printJSON(cmd.OutOrStdout(), map[string]int{"result": 1})
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Session cleared. Log in again with \"parkadmin login\"")
			}
			return nil
		},
	}

	configCmd.AddCommand(configShowCmd, configClearCmd)
	return configCmd
}

// updateConfig merges the given settings into the config file, creating it
// from the defaults when it does not exist yet.
func updateConfig(cmd *cobra.Command, server, sessionPath, apiVersion string) error {
	path, err := configPath()
	if err != nil {
		return err
	}

	cfg := config.Default()
	if _, statErr := os.Stat(path); statErr == nil {
		if cfg, err = config.LoadConfig(path); err != nil {
			return err
		}
	} else if !errors.Is(statErr, fs.ErrNotExist) {
		return fmt.Errorf("unable to read config file: %w", statErr)
	}

	if server != "" {
		cfg.Server.URL = config.MorphServer(server)
	}
	if sessionPath != "" {
		cfg.Session.Path = sessionPath
	}
	if apiVersion != "" {
		cfg.Server.APIVersion = apiVersion
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return err
	}
	if err := cfg.WriteConfig(path); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, map[string]any{"result": 1, "config_file": path, "server": cfg.Server.URL})
	}
	fmt.Fprintf(out, "Configuration saved to %s\n", path)
	fmt.Fprintf(out, "Server: %s\n", cfg.Server.URL)
	return nil
}
