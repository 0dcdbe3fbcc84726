package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"scenedeck/internal/app"
	"scenedeck/internal/config"
	"scenedeck/internal/deck"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer a.Close().
// operation identifies the CLI command being run (e.g. "Import", "Push").
func newApp(cmd *cobra.Command, operation string) (*app.App, error) {
	paths, err := app.DefaultPaths()
	if err != nil {
		return nil, fmt.Errorf("resolving paths: %w", err)
	}

	cfg, err := config.ReadFromFile(paths.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	level := slog.LevelWarn
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}

	a, err := app.NewApp(cfg, operation, app.Options{StderrLevel: level})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var rootCmd = &cobra.Command{
	Use:          "deck",
	Short:        "Storyboard vault tool",
	Version:      version,
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
		paths, err := app.DefaultPaths()
		if err != nil {
			return fmt.Errorf("failed to resolve paths: %w", err)
		}

		cfg := config.NewConfig(paths.BaseDir)
		if err := config.Init(paths.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", paths.ConfigPath)
		fmt.Printf("Base Dir: %s\n", paths.BaseDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := app.DefaultPaths()
		if err != nil {
			return fmt.Errorf("failed to resolve paths: %w", err)
		}

		cfg, err := config.ReadFromFile(paths.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", paths.ConfigPath)
		fmt.Printf("Base Dir:        %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:         %s\n", cfg.LogDir)
		fmt.Printf("Database:        %s %s\n", cfg.Database.Type, cfg.Database.DataDir)
		fmt.Printf("Trash Retention: %d days (0 = per vault)\n", cfg.Trash.RetentionDays)
		fmt.Printf("Autosave:        fast %s/%s, slow %s/%s\n",
			cfg.Autosave.FastDebounce, cfg.Autosave.FastMaxWait,
			cfg.Autosave.SlowDebounce, cfg.Autosave.SlowMaxWait)
		backup := cfg.Backup.Type
		if backup == "" {
			backup = "none"
		}
		fmt.Printf("Backup:          %s (encrypt=%t)\n", backup, cfg.Backup.Encrypt)
		return nil
	},
}

// import command
var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import a media file into a vault",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vault, _ := cmd.Flags().GetString("vault")
		id, _ := cmd.Flags().GetString("id")

		a, err := newApp(cmd, "Import")
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Import(args[0], vault, id)
		if err != nil {
			return err
		}
		return reportImport(res)
	},
}

var importDataURLCmd = &cobra.Command{
	Use:   "import-data-url",
	Short: "Import a base64 image data URL read from stdin",
	RunE: func(cmd *cobra.Command, args []string) error {
		vault, _ := cmd.Flags().GetString("vault")
		id, _ := cmd.Flags().GetString("id")

		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}

		a, err := newApp(cmd, "ImportDataURL")
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.ImportDataURL(strings.TrimSpace(string(data)), vault, id)
		if err != nil {
			return err
		}
		return reportImport(res)
	},
}

func reportImport(res deck.ImportResult) error {
	if err := printJSON(res); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("import failed: %s", res.Error)
	}
	return nil
}

// trash command
var trashCmd = &cobra.Command{
	Use:   "trash",
	Short: "Manage a vault's trash",
}

var trashMoveCmd = &cobra.Command{
	Use:   "move FILE",
	Short: "Move a vault file to the trash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vault, _ := cmd.Flags().GetString("vault")
		assetID, _ := cmd.Flags().GetString("asset-id")
		reason, _ := cmd.Flags().GetString("reason")

		a, err := newApp(cmd, "MoveToTrash")
		if err != nil {
			return err
		}
		defer a.Close()

		dest, err := a.MoveToTrash(args[0], vault, deck.TrashMeta{AssetID: assetID, Reason: reason})
		if err != nil {
			return fmt.Errorf("moving to trash: %w", err)
		}
		fmt.Printf("Moved to %s\n", dest)
		return nil
	},
}

var trashListCmd = &cobra.Command{
	Use:   "list",
	Short: "List trashed files",
	RunE: func(cmd *cobra.Command, args []string) error {
		vault, _ := cmd.Flags().GetString("vault")

		a, err := newApp(cmd, "ListTrash")
		if err != nil {
			return err
		}
		defer a.Close()

		items, err := a.ListTrash(vault)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("Trash is empty.")
			return nil
		}
		for _, item := range items {
			fmt.Printf("%s  %s  %-30s  %s\n", item.ID, item.DeletedAt, item.Filename, item.Reason)
		}
		return nil
	},
}

var trashPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete trashed files past retention",
	RunE: func(cmd *cobra.Command, args []string) error {
		vault, _ := cmd.Flags().GetString("vault")

		a, err := newApp(cmd, "PurgeTrash")
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.PurgeTrash(vault)
		if err != nil {
			return err
		}
		fmt.Printf("Purged %d file(s)\n", n)
		return nil
	},
}

var trashRestoreCmd = &cobra.Command{
	Use:   "restore ID",
	Short: "Move a trashed file back into the vault",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vault, _ := cmd.Flags().GetString("vault")

		a, err := newApp(cmd, "RestoreFromTrash")
		if err != nil {
			return err
		}
		defer a.Close()

		dest, err := a.RestoreFromTrash(vault, args[0])
		if err != nil {
			return fmt.Errorf("restoring from trash: %w", err)
		}
		fmt.Printf("Restored to %s\n", dest)
		return nil
	},
}

// index command
var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Inspect a vault's asset index",
}

var indexVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Compare the asset index with the assets directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		vault, _ := cmd.Flags().GetString("vault")

		a, err := newApp(cmd, "VerifyAssets")
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.VerifyAssets(vault)
		if err != nil {
			return err
		}
		for _, name := range report.Missing {
			fmt.Printf("missing   %s\n", name)
		}
		for _, name := range report.Orphaned {
			fmt.Printf("orphaned  %s\n", name)
		}
		if len(report.Missing) > 0 {
			return fmt.Errorf("%d indexed asset(s) missing", len(report.Missing))
		}
		if len(report.Orphaned) == 0 {
			fmt.Println("Asset index is consistent.")
		}
		return nil
	},
}

var indexSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh usage refs and storyline order from the project file",
	RunE: func(cmd *cobra.Command, args []string) error {
		vault, _ := cmd.Flags().GetString("vault")

		a, err := newApp(cmd, "SyncIndex")
		if err != nil {
			return err
		}
		defer a.Close()

		changed, err := a.SyncIndex(vault)
		if err != nil {
			return err
		}
		if changed {
			fmt.Println("Asset index updated.")
		} else {
			fmt.Println("Asset index already up to date.")
		}
		return nil
	},
}

// project command
var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Save and load project files",
}

var projectSaveCmd = &cobra.Command{
	Use:   "save PATH",
	Short: "Write project JSON read from stdin to PATH",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}

		a, err := newApp(cmd, "SaveProject")
		if err != nil {
			return err
		}
		defer a.Close()

		path, err := a.SaveProject(args[0], data)
		if err != nil {
			return fmt.Errorf("saving project: %w", err)
		}
		fmt.Printf("Saved %s\n", path)
		return nil
	},
}

var projectLoadCmd = &cobra.Command{
	Use:   "load PATH",
	Short: "Print a project file in normalized form",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "LoadProject")
		if err != nil {
			return err
		}
		defer a.Close()

		payload, err := a.LoadProject(args[0])
		if err != nil {
			return fmt.Errorf("loading project: %w", err)
		}
		return printJSON(payload)
	},
}

// recent command
var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List recently saved projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd, "RecentProjects")
		if err != nil {
			return err
		}
		defer a.Close()

		recent, err := a.RecentProjects(limit)
		if err != nil {
			return err
		}
		if len(recent) == 0 {
			fmt.Println("No recent projects.")
			return nil
		}
		for _, p := range recent {
			fmt.Printf("%s  %-20s  %s\n", p.SavedAt.Local().Format("2006-01-02 15:04:05"), p.Name, p.Path)
		}
		return nil
	},
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve vault operations and autosave over JSON lines on stdin/stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		projectPath, _ := cmd.Flags().GetString("project")

		a, err := newApp(cmd, "Serve")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return a.Serve(ctx, os.Stdin, os.Stdout, projectPath)
	},
}

// mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve vault tools to MCP clients over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "MCP")
		if err != nil {
			return err
		}
		defer a.Close()

		return a.ServeMCP(version)
	},
}

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Copy vault snapshots to offsite storage",
}

var backupPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Upload a snapshot of a vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		vault, _ := cmd.Flags().GetString("vault")

		a, err := newApp(cmd, "Push")
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Push(cmd.Context(), vault)
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}

		fmt.Printf("Snapshot %s: %d file(s), %d uploaded, %d already stored\n",
			res.Manifest.SnapshotID, len(res.Manifest.Files), res.Uploaded, res.Reused)
		for _, name := range res.Missing {
			fmt.Printf("missing   %s (not backed up)\n", name)
		}
		return nil
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore [SNAPSHOT]",
	Short: "Restore a snapshot into a new vault directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dest, _ := cmd.Flags().GetString("dest")
		snapshot := "latest"
		if len(args) > 0 {
			snapshot = args[0]
		}

		a, err := newApp(cmd, "Restore")
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase := ""
		if a.EncryptsBackups() {
			passphrase, err = readPassphrase("Passphrase: ")
			if err != nil {
				return err
			}
		}

		manifest, err := a.Restore(cmd.Context(), snapshot, dest, passphrase)
		if err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}
		fmt.Printf("Restored snapshot %s (%d file(s)) to %s\n", manifest.SnapshotID, len(manifest.Files), dest)
		return nil
	},
}

var backupHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "View backup operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd, "BackupHistory")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.BackupHistory(limit)
		if err != nil {
			return err
		}
		if len(ops) == 0 {
			fmt.Println("No backup operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt != nil {
				duration = op.FinishedAt.Sub(op.StartedAt).Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-8s  %s  %-8s  %-36s  %s\n",
				op.ID,
				op.Operation,
				op.StartedAt.Local().Format("2006-01-02 15:04:05"),
				op.Status,
				op.SnapshotID,
				duration,
			)
		}
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage backup encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the backup key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "InitKeys")
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase, err := readNewPassphrase()
		if err != nil {
			return err
		}
		if err := a.InitKeys(passphrase); err != nil {
			return err
		}
		fmt.Println("Backup keys created.")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Echo debug logs to stderr")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// import commands
	for _, c := range []*cobra.Command{importCmd, importDataURLCmd} {
		c.Flags().String("vault", ".", "Vault directory")
		c.Flags().String("id", "", "Asset id (generated when empty)")
	}

	// trash subcommands
	trashCmd.AddCommand(trashMoveCmd)
	trashCmd.AddCommand(trashListCmd)
	trashCmd.AddCommand(trashPurgeCmd)
	trashCmd.AddCommand(trashRestoreCmd)
	trashCmd.PersistentFlags().String("vault", ".", "Vault directory")
	trashMoveCmd.Flags().String("asset-id", "", "Retire this asset's index entry")
	trashMoveCmd.Flags().String("reason", "", "Why the file was trashed")

	// index subcommands
	indexCmd.AddCommand(indexVerifyCmd)
	indexCmd.AddCommand(indexSyncCmd)
	indexCmd.PersistentFlags().String("vault", ".", "Vault directory")

	// project subcommands
	projectCmd.AddCommand(projectSaveCmd)
	projectCmd.AddCommand(projectLoadCmd)

	// backup subcommands
	backupCmd.AddCommand(backupPushCmd)
	backupCmd.AddCommand(backupRestoreCmd)
	backupCmd.AddCommand(backupHistoryCmd)
	backupPushCmd.Flags().String("vault", ".", "Vault directory")
	backupRestoreCmd.Flags().String("dest", "", "New vault directory to restore into")
	backupRestoreCmd.MarkFlagRequired("dest")
	backupHistoryCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")

	keysCmd.AddCommand(keysInitCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(importDataURLCmd)
	rootCmd.AddCommand(trashCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(recentCmd)
	recentCmd.Flags().IntP("limit", "n", 10, "Maximum number of projects to show")
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("project", "", "Project file to autosave (default: <vault>/project.sdp)")
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(keysCmd)
}
