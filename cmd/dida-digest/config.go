package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Jayphen/dida-digest/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long:  `Manage dida-digest configuration files.`,
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long:  `Display the merged configuration from all sources, with secrets masked.`,
		RunE:  runConfigShow,
	}
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create example configuration file",
		Long: `Create an example configuration file at ~/.config/dida-digest/config.yaml.

The generated file contains all available options with their default values.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing config file")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file paths",
		Long:  `Display the paths where configuration files are searched.`,
		RunE:  runConfigPath,
	}
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	out, err := yaml.Marshal(cfg.Redacted())
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}

	fmt.Println("# Current configuration")
	fmt.Print(string(out))

	if err := cfg.Validate(); err != nil {
		fmt.Println()
		fmt.Printf("# Not ready to send: %v\n", err)
	}
	return nil
}

func runConfigInit(force bool) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, ".config", "dida-digest", "config.yaml")

	// Check if file exists
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", configPath)
	}

	if err := config.WriteExample(configPath); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Created config file at: %s\n", configPath)
	fmt.Println()
	fmt.Println("Fill in client_id, client_secret and wecom.bot_key, then run")
	fmt.Println("'dida-digest auth login' to authorize.")

	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	fmt.Println("Configuration file search paths (in priority order):")
	fmt.Println()

	paths := config.ConfigPaths()
	for i, p := range paths {
		exists := "not found"
		if _, err := os.Stat(p); err == nil {
			exists = "found"
		}
		fmt.Printf("  %d. %s (%s)\n", i+1, p, exists)
	}

	fmt.Println()
	fmt.Printf("Variables in %s and the environment override file settings.\n", config.DefaultEnvFile)
	fmt.Println("Supported env vars:")
	fmt.Println("  DIDA_DIGEST_CLIENT_ID (or CLIENT_ID)")
	fmt.Println("  DIDA_DIGEST_CLIENT_SECRET (or CLIENT_SECRET)")
	fmt.Println("  DIDA_DIGEST_REDIRECT_URI (or REDIRECT_URI)")
	fmt.Println("  DIDA_DIGEST_WECHAT_BOT_KEY (or WECHAT_BOT_KEY)")
	fmt.Println("  DIDA_DIGEST_WEBHOOK_URL")
	fmt.Println("  DIDA_DIGEST_MESSAGE_TYPE")
	fmt.Println("  DIDA_DIGEST_API_BASE_URL")
	fmt.Println("  DIDA_DIGEST_SOURCE")
	fmt.Println("  DIDA_DIGEST_TIMEZONE")
	fmt.Println("  DIDA_DIGEST_TIMEOUT")
	fmt.Println("  DIDA_DIGEST_SKIP_EMPTY")
	fmt.Println("  DIDA_DIGEST_TOKEN_STORE")
	fmt.Println("  DIDA_DIGEST_TOKEN_PATH")
	fmt.Println("  DIDA_DIGEST_REDIS_URL (or REDIS_URL)")
	fmt.Println("  DIDA_DIGEST_SCHEDULE_TIMES")
	fmt.Println("  DIDA_DIGEST_SCHEDULE_INTERVAL")
	fmt.Println("  DIDA_DIGEST_LISTEN_ADDR")
	fmt.Println("  DIDA_DIGEST_RUN_TOKEN")
	fmt.Println("  DIDA_DIGEST_LOG_LEVEL")
	fmt.Println("  DIDA_DIGEST_LOG_FILE")
	fmt.Println("  DIDA_DIGEST_LOG_JSON")

	return nil
}
