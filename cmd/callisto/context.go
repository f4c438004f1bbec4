package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"mercator-hq/callisto/pkg/certstore"
	"mercator-hq/callisto/pkg/cli"
	"mercator-hq/callisto/pkg/config"
	"mercator-hq/callisto/pkg/tlsconfig"
)

var contextFlags struct {
	mode   string
	format string
}

var contextCmd = &cobra.Command{
	Use:   "context <identity>",
	Short: "Dry-run a TLS context and print the resolved options",
	Long: `Build a TLS context for an identity without serving anything.

The command merges the option layers exactly as the engine would
(defaults, discovered credentials, mode, global configuration, and the
identity's own override layer), loads the credential files, and prints
the resolved options. Failures print the operator diagnostic with the
failing file, the failure class, and a remediation hint.

Examples:
  # Build a server context for a host
  callisto context chat.example.com

  # Build a client context
  callisto context upstream.example.net --mode client

  # JSON output for tooling
  callisto context chat.example.com --format json`,
	Args: cobra.ExactArgs(1),
	RunE: buildContextDryRun,
}

func init() {
	rootCmd.AddCommand(contextCmd)

	contextCmd.Flags().StringVar(&contextFlags.mode, "mode", "server", "handshake side: server, client")
	contextCmd.Flags().StringVar(&contextFlags.format, "format", "text", "output format: text, json")
}

// contextReport is the JSON rendering of one context build.
type contextReport struct {
	Identity     string            `json:"identity"`
	Mode         string            `json:"mode"`
	Built        bool              `json:"built"`
	Options      map[string]any    `json:"options,omitempty"`
	Certificates int               `json:"certificates,omitempty"`
	Diagnostic   *diagnosticReport `json:"diagnostic,omitempty"`
}

type diagnosticReport struct {
	File       string `json:"file,omitempty"`
	Path       string `json:"path,omitempty"`
	Reason     string `json:"reason"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

func buildContextDryRun(cmd *cobra.Command, args []string) error {
	var mode tlsconfig.Mode
	switch contextFlags.mode {
	case "server":
		mode = tlsconfig.ModeServer
	case "client":
		mode = tlsconfig.ModeClient
	default:
		return fmt.Errorf("invalid mode %q (must be server or client)", contextFlags.mode)
	}

	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()

	var opts []certstore.Option
	if cfg.Certificates.DepthLimit > 0 {
		opts = append(opts, certstore.WithDepth(cfg.Certificates.DepthLimit))
	}

	store := certstore.NewStore(cfg.CertRoot(), opts...)
	store.Rebuild("context")
	resolver := certstore.NewResolver(store, cfg)
	builder := tlsconfig.NewBuilder(cfg, resolver)

	identity := certstore.NormalizeHost(args[0])

	var overrides []tlsconfig.Layer
	if hc, ok := cfg.Hosts[identity]; ok && len(hc.TLS) > 0 {
		overrides = append(overrides, tlsconfig.Layer(hc.TLS))
	}

	tlsCtx, resolved, err := builder.BuildContext(identity, mode, overrides...)

	report := contextReport{
		Identity: identity,
		Mode:     string(mode),
		Built:    err == nil,
	}
	if resolved != nil {
		report.Options = maskedOptions(resolved.Options)
	}
	if tlsCtx != nil {
		report.Certificates = len(tlsCtx.Config.Certificates)
	}
	if err != nil {
		var diag *tlsconfig.Diagnostic
		if errors.As(err, &diag) {
			report.Diagnostic = &diagnosticReport{
				File:       diag.File,
				Path:       diag.Path,
				Reason:     string(diag.Reason),
				Message:    diag.Message,
				Suggestion: diag.Suggestion,
			}
		} else {
			report.Diagnostic = &diagnosticReport{
				Reason:  string(tlsconfig.ReasonUnknown),
				Message: err.Error(),
			}
		}
	}

	if contextFlags.format == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if encErr := encoder.Encode(report); encErr != nil {
			return encErr
		}
	} else {
		printContextText(report)
	}

	if err != nil {
		return cli.NewCommandError("context", err)
	}
	return nil
}

// maskedOptions copies the option map with secret values hidden.
func maskedOptions(options tlsconfig.Layer) map[string]any {
	masked := make(map[string]any, len(options))
	for key, value := range options {
		if key == "password" {
			masked[key] = "(set)"
			continue
		}
		masked[key] = value
	}
	return masked
}

func printContextText(report contextReport) {
	if report.Built {
		fmt.Printf("✓ Context built for %s (%s)\n", report.Identity, report.Mode)
	} else {
		fmt.Printf("✗ Context build failed for %s (%s)\n", report.Identity, report.Mode)
	}

	if len(report.Options) > 0 {
		fmt.Println("\nResolved options:")
		keys := make([]string, 0, len(report.Options))
		for key := range report.Options {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Printf("  %s: %s\n", key, renderOptionValue(report.Options[key]))
		}
	}

	if report.Built {
		fmt.Printf("\nCertificates loaded: %d\n", report.Certificates)
	}

	if diag := report.Diagnostic; diag != nil {
		fmt.Println()
		if diag.File != "" {
			fmt.Printf("  File:   %s\n", diag.File)
		}
		if diag.Path != "" {
			fmt.Printf("  Path:   %s\n", diag.Path)
		}
		fmt.Printf("  Reason: %s\n", diag.Reason)
		fmt.Printf("  Detail: %s\n", diag.Message)
		if diag.Suggestion != "" {
			fmt.Printf("  Hint:   %s\n", diag.Suggestion)
		}
	}
}

func renderOptionValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case bool, int, int64, float64:
		return fmt.Sprintf("%v", v)
	default:
		if data, err := json.Marshal(v); err == nil {
			return string(data)
		}
		return fmt.Sprintf("%v", v)
	}
}
