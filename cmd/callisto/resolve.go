package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"mercator-hq/callisto/pkg/certstore"
	"mercator-hq/callisto/pkg/cli"
	"mercator-hq/callisto/pkg/config"
)

var resolveFlags struct {
	service string
	port    int
	format  string
}

var resolveCmd = &cobra.Command{
	Use:   "resolve [host]",
	Short: "Find the credentials serving a host or service",
	Long: `Resolve a host or service to its certificate and key on disk.

Resolution follows the same path the engine uses at runtime: per-host
and per-service configuration first, then the certificate index, then
the filesystem naming conventions, climbing the domain hierarchy for
parent-domain and wildcard coverage.

Absence is reported, not invented: when nothing covers the name the
command prints that and exits non-zero.

Examples:
  # Resolve a host
  callisto resolve chat.example.com

  # Resolve a service at a port
  callisto resolve --service xmpp-server --port 5269

  # JSON output for tooling
  callisto resolve chat.example.com --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: resolveCredentials,
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().StringVar(&resolveFlags.service, "service", "", "resolve a service instead of a host")
	resolveCmd.Flags().IntVar(&resolveFlags.port, "port", 443, "service port")
	resolveCmd.Flags().StringVar(&resolveFlags.format, "format", "text", "output format: text, json")
}

// resolveResult is the JSON rendering of one resolution.
type resolveResult struct {
	Host        string `json:"host,omitempty"`
	Service     string `json:"service,omitempty"`
	Port        int    `json:"port,omitempty"`
	Found       bool   `json:"found"`
	Certificate string `json:"certificate,omitempty"`
	Key         string `json:"key,omitempty"`
	Combined    bool   `json:"combined,omitempty"`
}

func resolveCredentials(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && resolveFlags.service == "" {
		return fmt.Errorf("either a host argument or --service must be given")
	}
	if len(args) > 0 && resolveFlags.service != "" {
		return fmt.Errorf("a host argument and --service are mutually exclusive")
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
	store.Rebuild("resolve")
	resolver := certstore.NewResolver(store, cfg)

	result := resolveResult{Port: resolveFlags.port}

	var pair *certstore.CredentialPair
	var found bool
	if resolveFlags.service != "" {
		result.Service = resolveFlags.service
		pair, found = resolver.FindForService(resolveFlags.service, resolveFlags.port)
	} else {
		result.Host = certstore.NormalizeHost(args[0])
		result.Port = 0
		pair, found = resolver.FindForHost(args[0])
	}

	result.Found = found
	if found {
		result.Certificate = pair.Certificate
		result.Key = pair.Key
		result.Combined = pair.Combined()
	}

	if resolveFlags.format == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(result); err != nil {
			return err
		}
	} else {
		printResolveText(result)
	}

	if !found {
		target := result.Host
		if target == "" {
			target = fmt.Sprintf("%s:%d", result.Service, resolveFlags.port)
		}
		return cli.NewCommandError("resolve", fmt.Errorf("no credentials found for %s", target))
	}
	return nil
}

func printResolveText(result resolveResult) {
	target := result.Host
	if target == "" {
		target = fmt.Sprintf("%s (port %d)", result.Service, result.Port)
	}

	if !result.Found {
		fmt.Printf("✗ No credentials found for %s\n", target)
		return
	}

	fmt.Printf("✓ Credentials for %s\n", target)
	if result.Combined {
		fmt.Printf("  Certificate and key: %s (combined)\n", result.Certificate)
	} else {
		fmt.Printf("  Certificate: %s\n", result.Certificate)
		fmt.Printf("  Key:         %s\n", result.Key)
	}
}
