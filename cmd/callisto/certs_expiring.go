package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"mercator-hq/callisto/pkg/certstore"
	"mercator-hq/callisto/pkg/cli"
	"mercator-hq/callisto/pkg/config"
	"mercator-hq/callisto/pkg/inventory"
)

var expiringFlags struct {
	days   int
	format string
}

var certsExpiringCmd = &cobra.Command{
	Use:   "expiring",
	Short: "List certificates nearing expiry",
	Long: `List certificates whose validity window ends soon.

When the inventory is enabled the answer comes from the observation
history: the certificates recorded by the most recent index build,
without touching the certificate tree. Without the inventory the
command scans the tree once and reports from the fresh index.

Examples:
  # Certificates expiring within 30 days
  callisto certs expiring

  # Tighter window
  callisto certs expiring --days 7

  # JSON output for alerting pipelines
  callisto certs expiring --days 14 --format json

  # CSV export for renewal tracking
  callisto certs expiring --days 90 --format csv > renewals.csv`,
	RunE: listExpiringCertificates,
}

func init() {
	certsCmd.AddCommand(certsExpiringCmd)

	certsExpiringCmd.Flags().IntVar(&expiringFlags.days, "days", 30, "expiry window in days")
	certsExpiringCmd.Flags().StringVar(&expiringFlags.format, "format", "text", "output format: text, json, csv")
}

// expiringReport is the JSON rendering of an expiry query.
type expiringReport struct {
	Source       string          `json:"source"`
	WindowDays   int             `json:"window_days"`
	Certificates []expiringEntry `json:"certificates"`
}

type expiringEntry struct {
	Path          string              `json:"path"`
	Identities    map[string][]string `json:"identities"`
	NotAfter      time.Time           `json:"not_after"`
	ExpiresInDays int                 `json:"expires_in_days"`
}

func (r expiringReport) CSVHeader() []string {
	return []string{"path", "identities", "not_after", "expires_in_days"}
}

func (r expiringReport) CSVRecords() [][]string {
	records := make([][]string, 0, len(r.Certificates))
	for _, entry := range r.Certificates {
		names := make([]string, 0, len(entry.Identities))
		for name := range entry.Identities {
			names = append(names, name)
		}
		sort.Strings(names)
		records = append(records, []string{
			entry.Path,
			strings.Join(names, " "),
			entry.NotAfter.Format(time.RFC3339),
			fmt.Sprintf("%d", entry.ExpiresInDays),
		})
	}
	return records
}

func listExpiringCertificates(cmd *cobra.Command, args []string) error {
	if expiringFlags.days < 0 {
		return fmt.Errorf("--days must not be negative")
	}

	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()

	window := time.Duration(expiringFlags.days) * 24 * time.Hour
	report, err := buildExpiringReport(cfg, window)
	if err != nil {
		return cli.NewCommandError("expiring", err)
	}
	report.WindowDays = expiringFlags.days

	switch expiringFlags.format {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	case "csv":
		return cli.NewFormatter(cli.FormatCSV).FormatTo(os.Stdout, report)
	default:
		printExpiringText(report)
		return nil
	}
}

// buildExpiringReport answers the expiry query from the inventory when
// it is enabled, falling back to a one-off scan of the certificate
// tree otherwise. Results are sorted soonest-expiring first.
func buildExpiringReport(cfg *config.Config, window time.Duration) (expiringReport, error) {
	var report expiringReport

	if cfg.Inventory.Enabled {
		report.Source = "inventory"

		invConfig := inventory.DefaultConfig()
		invConfig.Path = cfg.ResolvePath(cfg.Inventory.Path)
		if cfg.Inventory.MaxOpenConns > 0 {
			invConfig.MaxOpenConns = cfg.Inventory.MaxOpenConns
		}
		if cfg.Inventory.MaxIdleConns > 0 {
			invConfig.MaxIdleConns = cfg.Inventory.MaxIdleConns
		}
		invConfig.WALMode = cfg.Inventory.WALMode
		if cfg.Inventory.BusyTimeout > 0 {
			invConfig.BusyTimeout = cfg.Inventory.BusyTimeout
		}
		invConfig.RetentionDays = cfg.Inventory.RetentionDays

		store, err := inventory.Open(invConfig)
		if err != nil {
			return report, fmt.Errorf("failed to open inventory: %w", err)
		}
		defer store.Close()

		observations, err := store.ExpiringWithin(context.Background(), window)
		if err != nil {
			return report, fmt.Errorf("inventory query failed: %w", err)
		}

		for _, obs := range observations {
			report.Certificates = append(report.Certificates, expiringEntry{
				Path:          obs.Path,
				Identities:    obs.Identities,
				NotAfter:      obs.NotAfter,
				ExpiresInDays: int(time.Until(obs.NotAfter).Hours() / 24),
			})
		}
	} else {
		report.Source = "scan"

		var opts []certstore.Option
		if cfg.Certificates.DepthLimit > 0 {
			opts = append(opts, certstore.WithDepth(cfg.Certificates.DepthLimit))
		}
		store := certstore.NewStore(cfg.CertRoot(), opts...)
		idx := store.Rebuild("expiring")

		for _, entry := range idx.ExpiringWithin(window) {
			identities := make(map[string][]string, len(entry.Identities))
			for name, scopes := range entry.Identities {
				identities[name] = scopes.List()
			}
			report.Certificates = append(report.Certificates, expiringEntry{
				Path:          entry.Path,
				Identities:    identities,
				NotAfter:      entry.NotAfter,
				ExpiresInDays: int(time.Until(entry.NotAfter).Hours() / 24),
			})
		}
	}

	sort.Slice(report.Certificates, func(i, j int) bool {
		return report.Certificates[i].NotAfter.Before(report.Certificates[j].NotAfter)
	})
	return report, nil
}

func printExpiringText(report expiringReport) {
	if len(report.Certificates) == 0 {
		fmt.Printf("✓ No certificates expire within %d days\n", report.WindowDays)
		return
	}

	fmt.Printf("%d certificate(s) expire within %d days (source: %s):\n",
		len(report.Certificates), report.WindowDays, report.Source)

	for _, entry := range report.Certificates {
		fmt.Println()

		marker := "⚠ "
		status := fmt.Sprintf("expires in %d days", entry.ExpiresInDays)
		if entry.ExpiresInDays < 0 {
			marker = "✗"
			status = fmt.Sprintf("EXPIRED %d days ago", -entry.ExpiresInDays)
		}
		fmt.Printf("%s %s\n", marker, entry.Path)

		names := make([]string, 0, len(entry.Identities))
		for name := range entry.Identities {
			names = append(names, name)
		}
		sort.Strings(names)
		if len(names) > 0 {
			fmt.Printf("  Identities: %s\n", strings.Join(names, ", "))
		}
		fmt.Printf("  Not After: %s (%s)\n", entry.NotAfter.Format("2006-01-02"), status)
	}
}
