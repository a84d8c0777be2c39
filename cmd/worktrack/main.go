package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"worktrack/internal/app"
	"worktrack/internal/category"
	"worktrack/internal/config"
)

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file named by the application defaults.
func loadConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// newApp reads the config and creates a WorkTrackApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Start", "Serve").
func newApp(cmd *cobra.Command, operation string) (*app.WorkTrackApp, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	opts := []app.Option{}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		opts = append(opts, app.WithConsole(os.Stderr), app.WithLogLevel(slog.LevelDebug))
	}

	a, err := app.NewWorkTrackApp(cfg, operation, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, cfg, nil
}

// userID returns the --user flag, or the configured default user.
func userID(cmd *cobra.Command, cfg *config.Config) int64 {
	if id, _ := cmd.Flags().GetInt64("user"); id != 0 {
		return id
	}
	return cfg.DefaultUserID
}

var rootCmd = &cobra.Command{
	Use:          "worktrack",
	Short:        "Personal work session tracker",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		hostID := uuid.New().String()
		cfg := config.NewConfig(hostID, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		if _, err := os.Stat(cfg.Categories.Path); os.IsNotExist(err) {
			if err := os.MkdirAll(cfg.BaseDir, 0755); err != nil {
				return fmt.Errorf("creating base directory: %w", err)
			}
			if err := category.WriteFile(cfg.Categories.Path, category.DefaultCategories); err != nil {
				return err
			}
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Host ID:    %s\n", hostID)
		fmt.Printf("Base Dir:   %s\n", defaults["base_dir"])
		fmt.Printf("Categories: %s\n", cfg.Categories.Path)
		fmt.Println("Run 'worktrack db migrate' to create the database.")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Host ID:      %s\n", cfg.HostID)
		fmt.Printf("Base Dir:     %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:      %s\n", cfg.LogDir)
		fmt.Printf("Timezone:     %s\n", cfg.Timezone)
		fmt.Printf("Default User: %d\n", cfg.DefaultUserID)
		fmt.Printf("Database:     %s %s\n", cfg.Database.Type, cfg.Database.DataDir)
		fmt.Printf("Categories:   %s (checked every %s)\n", cfg.Categories.Path, cfg.CategoryCheckInterval())
		fmt.Printf("Vault:        %s (%s)\n", cfg.Archive.Vault.Name, cfg.Archive.Vault.Type)
		return nil
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the session database",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		status, err := app.MigrateDatabase(cfg)
		if err != nil {
			return fmt.Errorf("migrating database: %w", err)
		}
		fmt.Printf("Database at schema version %d\n", status.Current)
		return nil
	},
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path, status, err := app.DatabaseStatus(cfg)
		if err != nil {
			return fmt.Errorf("reading database status: %w", err)
		}
		fmt.Printf("Database: %s\n", path)
		fmt.Printf("Version:  %d of %d", status.Current, status.Latest)
		if status.Dirty {
			fmt.Print(" (dirty)")
		}
		fmt.Println()
		if n := status.Pending(); n > 0 {
			fmt.Printf("%d migration(s) pending, run 'worktrack db migrate'\n", n)
		}
		return nil
	},
}

var dbSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the applied schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		schema, err := app.DatabaseSchema(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		fmt.Print(schema)
		return nil
	},
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List work categories",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := newApp(cmd, "Categories")
		if err != nil {
			return err
		}
		defer a.Close()

		for _, c := range a.Categories() {
			fmt.Println(c)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Int64P("user", "u", 0, "User id to act for (default from config)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Write debug logs to stderr")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbStatusCmd)
	dbCmd.AddCommand(dbSchemaCmd)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(categoriesCmd)
}
