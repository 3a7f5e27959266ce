// Package main is the entry point for the twinlink CLI.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "twinlink",
	Short: "TWIN linkage verification service",
	Long: `Verifies the linkage between TWIN identifiers and organizational
credentials: vLEI issuance chains anchored at a configured root of trust,
and DID-configuration proofs hosted on linked web domains. Successful
verifications are attested on the ledger.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger builds the process logger. Pretty output is for humans at a
// terminal; the default is structured JSON on stderr.
func newLogger(pretty bool) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	var out io.Writer = os.Stderr
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr}
	}
	return zerolog.New(out).With().Timestamp().Logger()
}
