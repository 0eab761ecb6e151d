/*
Package cli provides command-line interface utilities for Forseti.

The cli package includes output formatters, signal handling, and typed
errors used by the forseti command.

Output Formatting:

Command results can be rendered as plain text or JSON:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, result); err != nil {
		return err
	}

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx := cli.SetupSignalHandler()
	// Use ctx for sessions that should stop on shutdown
*/
package cli
