/*
Package cli provides shared helpers for the callisto command line.

Output formatting:

Commands render results as text, JSON, or CSV. CSV is available for
results that implement Tabular:

	formatter := cli.NewFormatter(cli.FormatCSV)
	if err := formatter.FormatTo(os.Stdout, report); err != nil {
		return err
	}

Errors:

ConfigError and CommandError carry enough context for the root command
to print a usable message and pick the exit code:

	return cli.NewCommandError("resolve", err)

Signal handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx := cli.SetupSignalHandler()
	// ctx is canceled when a shutdown signal arrives
*/
package cli
