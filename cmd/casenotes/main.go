package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"casenotes/pkg/cache"
	"casenotes/pkg/config"
	"casenotes/pkg/dashboard"
	"casenotes/pkg/export"
	"casenotes/pkg/sheets"
	"casenotes/pkg/table"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configFile string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "casenotes",
		Short: "Read GRIT and IPE referral data from the command line",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				log.SetLevel(log.DebugLevel)
			}
			log.SetFormatter(&log.TextFormatter{
				FullTimestamp: true,
			})
		},
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "casenotes.toml", "Path to the TOML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	rootCmd.AddCommand(
		newMetricsCmd(),
		newNotesCmd(),
		newExportCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newMetricsCmd() *cobra.Command {
	var program string

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Print the dashboard summary of a program",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := loadProgram(cmd.Context(), program)
			if err != nil {
				return err
			}
			printSummary(dashboard.Summarize(snap, time.Now()))
			return nil
		},
	}

	cmd.Flags().StringVar(&program, "program", "GRIT", "Program to summarize (GRIT or IPE)")
	return cmd
}

func newNotesCmd() *cobra.Command {
	var program, client string

	cmd := &cobra.Command{
		Use:   "notes",
		Short: "List the case notes of one client",
		Long: `List the case notes of one client in date order, with the sheet row of each.

Example: casenotes notes --program IPE --client "Jane Doe"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if client == "" {
				return fmt.Errorf("--client is required")
			}
			snap, err := loadProgram(cmd.Context(), program)
			if err != nil {
				return err
			}
			notes := snap.NotesFor(client)
			if len(notes) == 0 {
				fmt.Printf("No case notes found for %s\n", client)
				return nil
			}
			for _, n := range notes {
				fmt.Printf("%5d  %s\n", n.Row, n.Label)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&program, "program", "GRIT", "Program the client belongs to (GRIT or IPE)")
	cmd.Flags().StringVar(&client, "client", "", "Client name")
	return cmd
}

func newExportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write both program sheets to an Excel workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			snaps, err := loadSnapshots(cmd.Context())
			if err != nil {
				return err
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := export.WriteWorkbook(f, snaps.GRIT, snaps.IPE); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			log.Infof("Wrote %d GRIT and %d IPE rows to %s", snaps.GRIT.Len(), snaps.IPE.Len(), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "casenotes.xlsx", "Output workbook path")
	return cmd
}

func loadSnapshots(ctx context.Context) (cache.Snapshots, error) {
	config.LoadEnv()
	cfg, err := config.New(configFile)
	if err != nil {
		return cache.Snapshots{}, fmt.Errorf("loading config: %w", err)
	}
	s := cfg.Settings
	store, err := sheets.NewSheetClient(ctx, s.CredentialsFile, s.SpreadsheetID, s.SpreadsheetName)
	if err != nil {
		return cache.Snapshots{}, err
	}
	return cache.New(store, cfg.CacheTTL()).Get(ctx)
}

func loadProgram(ctx context.Context, program string) (*table.Snapshot, error) {
	schema, ok := table.SchemaFor(program)
	if !ok {
		return nil, fmt.Errorf("unknown program %q", program)
	}
	snaps, err := loadSnapshots(ctx)
	if err != nil {
		return nil, err
	}
	return snaps.For(schema), nil
}

func printSummary(s dashboard.Summary) {
	fmt.Printf("%s referrals\n", s.Program)
	fmt.Printf("  total:      %d\n", s.TotalReferrals)
	fmt.Printf("  past year:  %d\n", s.ReferralsPastYear)
	fmt.Printf("  past month: %d\n", s.ReferralsPastMonth)
	fmt.Printf("\n%-10s %9s %6s\n", fmt.Sprint(s.Year), "referrals", "notes")
	for i, m := range s.MonthlyReferrals {
		notes := 0
		if i < len(s.MonthlyNotes) {
			notes = s.MonthlyNotes[i].Count
		}
		fmt.Printf("%-10s %9d %6d\n", m.Name, m.Count, notes)
	}
}
