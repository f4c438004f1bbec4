package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"mercator-hq/callisto/pkg/certstore"
	"mercator-hq/callisto/pkg/cli"
	"mercator-hq/callisto/pkg/config"
)

var scanFlags struct {
	root   string
	format string
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the certificate tree and print the index",
	Long: `Build the certificate index once and print what was found.

The scan walks the configured certificate root (or the directory given
with --root), parses every certificate file, and prints the identities
each file asserts together with its validity window. Files that fail
to parse or have already expired are counted as skipped.

Examples:
  # Scan the configured certificate root
  callisto scan

  # Scan an arbitrary directory
  callisto scan --root /etc/ssl/private

  # JSON output for tooling
  callisto scan --format json`,
	RunE: scanCertificates,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVar(&scanFlags.root, "root", "", "certificate directory (overrides config)")
	scanCmd.Flags().StringVar(&scanFlags.format, "format", "text", "output format: text, json")
}

// scanReport is the JSON rendering of one index build.
type scanReport struct {
	Root         string      `json:"root"`
	BuildID      string      `json:"build_id"`
	BuiltAt      time.Time   `json:"built_at"`
	DurationMs   int64       `json:"duration_ms"`
	Certificates int         `json:"certificates"`
	Skipped      int         `json:"skipped"`
	Entries      []scanEntry `json:"entries"`
}

type scanEntry struct {
	Path          string              `json:"path"`
	Identities    map[string][]string `json:"identities"`
	NotBefore     time.Time           `json:"not_before"`
	NotAfter      time.Time           `json:"not_after"`
	ExpiresInDays int                 `json:"expires_in_days"`
}

func scanCertificates(cmd *cobra.Command, args []string) error {
	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()

	root := cfg.CertRoot()
	if scanFlags.root != "" {
		abs, err := filepath.Abs(scanFlags.root)
		if err != nil {
			return fmt.Errorf("invalid root %q: %w", scanFlags.root, err)
		}
		root = abs
	}

	var opts []certstore.Option
	if cfg.Certificates.DepthLimit > 0 {
		opts = append(opts, certstore.WithDepth(cfg.Certificates.DepthLimit))
	}

	store := certstore.NewStore(root, opts...)
	idx := store.Rebuild("scan")

	if scanFlags.format == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(buildScanReport(idx))
	}

	printScanText(idx)
	return nil
}

func buildScanReport(idx *certstore.Index) scanReport {
	report := scanReport{
		Root:         idx.Root,
		BuildID:      idx.ID,
		BuiltAt:      idx.BuiltAt,
		DurationMs:   idx.Duration.Milliseconds(),
		Certificates: idx.Len(),
		Skipped:      idx.Skipped(),
		Entries:      make([]scanEntry, 0, idx.Len()),
	}

	for _, entry := range idx.Entries() {
		identities := make(map[string][]string, len(entry.Identities))
		for name, scopes := range entry.Identities {
			identities[name] = scopes.List()
		}
		report.Entries = append(report.Entries, scanEntry{
			Path:          entry.Path,
			Identities:    identities,
			NotBefore:     entry.NotBefore,
			NotAfter:      entry.NotAfter,
			ExpiresInDays: int(time.Until(entry.NotAfter).Hours() / 24),
		})
	}

	return report
}

func printScanText(idx *certstore.Index) {
	fmt.Printf("Scanning %s...\n\n", idx.Root)
	fmt.Printf("✓ Index built: %d certificates, %d skipped (%s)\n",
		idx.Len(), idx.Skipped(), idx.Duration.Round(time.Millisecond))

	expiringSoon := 0
	for _, entry := range idx.Entries() {
		fmt.Println()

		path := entry.Path
		if rel, err := filepath.Rel(idx.Root, entry.Path); err == nil {
			path = rel
		}
		fmt.Println(path)

		names := make([]string, 0, len(entry.Identities))
		for name := range entry.Identities {
			names = append(names, name)
		}
		sort.Strings(names)

		rendered := make([]string, 0, len(names))
		for _, name := range names {
			rendered = append(rendered, fmt.Sprintf("%s (%s)", name, strings.Join(entry.Identities[name].List(), ", ")))
		}
		fmt.Printf("  Identities: %s\n", strings.Join(rendered, ", "))

		days := int(time.Until(entry.NotAfter).Hours() / 24)
		fmt.Printf("  Valid: %s to %s (%d days remaining)\n",
			entry.NotBefore.Format("2006-01-02"), entry.NotAfter.Format("2006-01-02"), days)

		if entry.ExpiresWithin(30 * 24 * time.Hour) {
			expiringSoon++
		}
	}

	if expiringSoon > 0 {
		fmt.Printf("\n⚠  %d certificate(s) expire within 30 days\n", expiringSoon)
	}
}
