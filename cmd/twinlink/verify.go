package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/twinlabs/twinlink/internal/config"
	"github.com/twinlabs/twinlink/pkg/linkage"
)

var (
	flagVerifyPath string
	flagVerifyJSON bool
	flagVerifyMint bool
)

func init() {
	verifyCmd.Flags().StringVar(&flagVerifyPath, "path", "credential-chain", "Verification path (credential-chain or domain-proof)")
	verifyCmd.Flags().BoolVar(&flagVerifyJSON, "json", false, "Output the result as JSON")
	verifyCmd.Flags().BoolVar(&flagVerifyMint, "mint", false, "Mint an attestation when verification succeeds")

	rootCmd.AddCommand(verifyCmd)
}

var verifyCmd = &cobra.Command{
	Use:   "verify <did>",
	Short: "Verify a single identifier and print the result",
	Long: `Run one verification against the configured ledger and artifact
source. By default nothing is minted; pass --mint to attest a successful
verification on the ledger.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config.LoadDotEnv()
		cfg, err := config.FromEnv()
		if err != nil {
			return err
		}
		log := newLogger(true).Level(zerolog.WarnLevel)

		// 1. Run the pipeline
		router := buildRouter(cmd.Context(), cfg, log, nil, flagVerifyMint)
		res := router.Verify(cmd.Context(), args[0], flagVerifyPath)

		// 2. Output
		if flagVerifyJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(res); err != nil {
				return err
			}
			if res.Status != linkage.StatusVerified {
				os.Exit(1)
			}
			return nil
		}

		if res.Status == linkage.StatusVerified {
			fmt.Println("✅ LINKAGE VERIFIED")
		} else {
			fmt.Println("❌ LINKAGE NOT VERIFIED")
		}
		fmt.Printf("Status: %s\n", res.Status)
		if res.Reason != "" {
			fmt.Printf("Reason: %s\n", res.Reason)
		}
		if res.LinkedDID != "" {
			fmt.Printf("Linked DID: %s\n", res.LinkedDID)
		}
		if res.LinkedOrigin != "" {
			fmt.Printf("Linked origin: %s\n", res.LinkedOrigin)
		}
		if res.AttestationDID != "" {
			fmt.Printf("Attestation: %s", res.AttestationDID)
			if res.TokenID != "" {
				fmt.Printf(" (token %s)", res.TokenID)
			}
			fmt.Println()
		}
		if res.Details != nil && len(res.Details.Steps) > 0 {
			fmt.Println("\nCompleted steps:")
			for _, step := range res.Details.Steps {
				fmt.Printf("  - %s\n", step)
			}
		}
		if res.Details != nil && len(res.Details.Chain) > 0 {
			fmt.Println("\nIssuance chain:")
			for _, node := range res.Details.Chain {
				fmt.Printf("  %-12s %s (%s)\n", node.Level, node.AID, node.CredentialType)
			}
		}

		if res.Status != linkage.StatusVerified {
			os.Exit(1)
		}
		return nil
	},
}
