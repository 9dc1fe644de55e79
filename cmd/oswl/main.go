package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"oswl-go/internal/app"
	"oswl-go/internal/config"
	"oswl-go/internal/encryption"
	"oswl-go/internal/render"
	"oswl-go/internal/snapshot"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// readConfig loads the config file from the default location.
func readConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// newApp reads the config and creates an OSWLApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Save", "Export").
func newApp(ctx context.Context, operation string) (*app.OSWLApp, error) {
	cfg, err := readConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewOSWLApp(ctx, cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// readPassphrase prompts on the terminal without echo. When stdin is not a
// terminal it reads one line instead.
func readPassphrase(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

func pairFlags(cmd *cobra.Command) (group, kind string, err error) {
	group, _ = cmd.Flags().GetString("group")
	kind, _ = cmd.Flags().GetString("kind")
	if group == "" || kind == "" {
		return "", "", fmt.Errorf("--group and --kind are required")
	}
	return group, kind, nil
}

var rootCmd = &cobra.Command{
	Use:          "oswl",
	Short:        "Track workload resource inventories day by day",
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

		cfg := config.NewConfig(defaults.BaseDir)
		if err := config.Init(defaults.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Printf("Base Dir: %s\n", defaults.BaseDir)
		fmt.Println("Next: `oswl db migrate` and `oswl keys init`")
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

		cfg, err := config.ReadFromFile(defaults.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults.ConfigPath)
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Database:   %s\n", cfg.Database.Type)
		fmt.Printf("Encryption: %s\n", cfg.Encryption.Type)
		for _, v := range cfg.Vaults {
			fmt.Printf("Vault:      %s (%s)\n", v.Name, v.Type)
		}
		fmt.Printf("Batch:      %d\n", cfg.BatchLimit())
		return nil
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the record database",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}
		if err := app.MigrateDatabase(cmd.Context(), cfg); err != nil {
			return err
		}
		fmt.Println("Database is up to date.")
		return nil
	},
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}
		if err := app.CheckDatabase(cmd.Context(), cfg); err != nil {
			return err
		}
		fmt.Println("Database is up to date.")
		return nil
	},
}

// save command
var saveCmd = &cobra.Command{
	Use:   "save [FILE]",
	Short: "Record a snapshot (reads stdin when FILE is omitted or -)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		group, kind, err := pairFlags(cmd)
		if err != nil {
			return err
		}

		path := "-"
		if len(args) > 0 {
			path = args[0]
		}

		format := snapshot.FormatFromPath(path)
		if f, _ := cmd.Flags().GetString("format"); f != "" {
			if format, err = snapshot.ParseFormat(f); err != nil {
				return err
			}
		}

		var r io.Reader = os.Stdin
		if path != "-" {
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("opening snapshot: %w", err)
			}
			defer f.Close()
			r = f
		}

		a, err := newApp(cmd.Context(), "Save")
		if err != nil {
			return err
		}
		defer a.Close()

		outcome, err := a.Save(cmd.Context(), group, kind, r, format)
		if err != nil {
			return fmt.Errorf("saving snapshot: %w", err)
		}

		fmt.Printf("%s/%s: %s\n", group, kind, outcome)
		return nil
	},
}

// show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the changelog of one day",
	RunE: func(cmd *cobra.Command, args []string) error {
		group, kind, err := pairFlags(cmd)
		if err != nil {
			return err
		}
		date, _ := cmd.Flags().GetString("date")
		diff, _ := cmd.Flags().GetBool("diff")

		a, err := newApp(cmd.Context(), "Show")
		if err != nil {
			return err
		}
		defer a.Close()

		rec, err := a.Record(cmd.Context(), group, kind, date)
		if err != nil {
			return err
		}
		if rec == nil {
			fmt.Println("No record found.")
			return nil
		}
		return render.Record(os.Stdout, rec, diff)
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List daily records, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		group, kind, err := pairFlags(cmd)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context(), "History")
		if err != nil {
			return err
		}
		defer a.Close()

		recs, err := a.History(cmd.Context(), group, kind, limit)
		if err != nil {
			return err
		}

		if len(recs) == 0 {
			fmt.Println("No records.")
			return nil
		}

		for _, rec := range recs {
			d := rec.ResourceData
			sent := ""
			if rec.IsSent {
				sent = "  [sent]"
			}
			fmt.Printf("%s  %-15s  %4d resources  +%d -%d ~%d  %s%s\n",
				rec.CreatedDate,
				rec.UpdatedTime,
				len(d.Current),
				len(d.Added),
				len(d.Removed),
				len(d.Modified),
				rec.ResourceChecksum[:12],
				sent,
			)
		}
		return nil
	},
}

// query command
var queryCmd = &cobra.Command{
	Use:   "query RULE",
	Short: "Print the resources matching a JsonLogic rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		group, kind, err := pairFlags(cmd)
		if err != nil {
			return err
		}
		date, _ := cmd.Flags().GetString("date")

		a, err := newApp(cmd.Context(), "Query")
		if err != nil {
			return err
		}
		defer a.Close()

		matches, err := a.Query(cmd.Context(), group, kind, date, args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(matches)
	},
}

// export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write unsent records to the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context(), "Export")
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Export(cmd.Context(), limit)
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		if res.Exported == 0 {
			fmt.Println("Nothing to export.")
			return nil
		}
		fmt.Printf("Exported %d record(s) to %s (%d marked sent)\n", res.Exported, res.Name, res.Marked)
		return nil
	},
}

// reports command
var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Inspect exported reports",
}

var reportsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ListReports")
		if err != nil {
			return err
		}
		defer a.Close()

		names, err := a.ListReports()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Println("No reports.")
			return nil
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	},
}

var reportsGetCmd = &cobra.Command{
	Use:   "get NAME",
	Short: "Print a stored report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "FetchReport")
		if err != nil {
			return err
		}
		defer a.Close()

		var passphrase string
		if a.NeedsPassphrase(args[0]) {
			if passphrase, err = readPassphrase("Passphrase: "); err != nil {
				return err
			}
		}

		report, err := a.FetchReport(args[0], passphrase)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage report encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the report encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}

		passphrase, err := readPassphrase("New passphrase: ")
		if err != nil {
			return err
		}
		if term.IsTerminal(int(os.Stdin.Fd())) {
			confirm, err := readPassphrase("Confirm passphrase: ")
			if err != nil {
				return err
			}
			if confirm != passphrase {
				return fmt.Errorf("passphrases do not match")
			}
		}

		if err := app.SetupKeys(cfg, passphrase); err != nil {
			if errors.Is(err, encryption.ErrKeysExist) {
				return fmt.Errorf("keys already exist at %s", cfg.Encryption.PublicKeyPath)
			}
			return fmt.Errorf("generating keys: %w", err)
		}

		fmt.Printf("Public key:  %s\n", cfg.Encryption.PublicKeyPath)
		fmt.Printf("Private key: %s (passphrase protected)\n", cfg.Encryption.PrivateKeyPath)
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// db subcommands
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbStatusCmd)

	// reports subcommands
	reportsCmd.AddCommand(reportsListCmd)
	reportsCmd.AddCommand(reportsGetCmd)

	// keys subcommands
	keysCmd.AddCommand(keysInitCmd)

	for _, c := range []*cobra.Command{saveCmd, showCmd, historyCmd, queryCmd} {
		c.Flags().StringP("group", "g", "", "Entity group key")
		c.Flags().StringP("kind", "k", "", "Resource kind")
	}
	saveCmd.Flags().StringP("format", "f", "", "Input format: json or yaml (default from file extension)")
	showCmd.Flags().StringP("date", "d", "", "Record date YYYY-MM-DD (default latest)")
	showCmd.Flags().Bool("diff", false, "Show a diff for every modification")
	queryCmd.Flags().StringP("date", "d", "", "Record date YYYY-MM-DD (default latest)")
	historyCmd.Flags().IntP("limit", "n", 30, "Maximum number of records to show")
	exportCmd.Flags().IntP("limit", "n", 0, "Maximum records per report (default from config)")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(reportsCmd)
	rootCmd.AddCommand(keysCmd)
}
