package main

import (
	"github.com/spf13/cobra"
)

var certsCmd = &cobra.Command{
	Use:   "certs",
	Short: "Inspect and manage TLS certificates",
	Long: `Inspect and manage TLS certificates for Callisto.

The certs command provides utilities for working with the certificate
files Callisto discovers and serves. This includes validation,
inspection, expiry reporting, and generation of certificates for
testing.

Subcommands:
  validate - Validate certificate and key pair
  info     - Display certificate details
  expiring - List certificates nearing expiry
  generate - Generate self-signed certificate for testing

Examples:
  # Validate certificate and key
  callisto certs validate --cert server.crt --key server.key

  # Display certificate information
  callisto certs info server.crt

  # List certificates expiring within 14 days
  callisto certs expiring --days 14

  # Generate self-signed certificate for testing
  callisto certs generate --host localhost`,
}

func init() {
	rootCmd.AddCommand(certsCmd)
}
