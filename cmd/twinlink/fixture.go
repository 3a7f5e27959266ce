package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/twinlabs/twinlink/internal/fixture"
)

var (
	flagFixtureDir    string
	flagFixtureDID    string
	flagFixtureOrigin string
	flagFixtureLEI    string
)

func init() {
	fixtureCmd.Flags().StringVar(&flagFixtureDir, "dir", "./artifacts", "Output directory for the artifact tree")
	fixtureCmd.Flags().StringVar(&flagFixtureDID, "did", "", "Identifier the leaf credential designates (required)")
	fixtureCmd.Flags().StringVar(&flagFixtureOrigin, "origin", "", "Linked web origin for the domain-proof path")
	fixtureCmd.Flags().StringVar(&flagFixtureLEI, "lei", "", "LEI embedded in the leaf credential")
	_ = fixtureCmd.MarkFlagRequired("did")

	rootCmd.AddCommand(fixtureCmd)
}

var fixtureCmd = &cobra.Command{
	Use:   "fixture",
	Short: "Generate a verifiable artifact tree for development",
	Long: `Generate a complete artifact tree: a three-level identity
hierarchy with signed inception events, the credentials linking it to the
given DID, private keys for re-issuing, and optionally the
did-configuration.json for a linked origin.

Point ARTIFACT_DIR at the output and set TRUST_ANCHOR_AID to the printed
root AID to verify against it. Register identity-document.json at the
ledger gateway to complete the setup.`,
	Example: `  # Chain-of-trust artifacts only
  twinlink fixture --did did:twin:0x6b175474e89094c44da98b954eedeac495271d0f

  # Including a domain-proof configuration
  twinlink fixture --did did:twin:0x6b17... --origin https://example.com --lei 5493001KJTIIGC8Y1R12`,
	RunE: func(_ *cobra.Command, _ []string) error {
		set, err := fixture.Generate(flagFixtureDir, fixture.Params{
			DID:    flagFixtureDID,
			Origin: flagFixtureOrigin,
			LEI:    flagFixtureLEI,
		})
		if err != nil {
			return fmt.Errorf("generating fixture: %w", err)
		}

		fmt.Printf("Artifact tree written to %s\n\n", flagFixtureDir)
		fmt.Printf("Root AID:          %s\n", set.RootAID)
		fmt.Printf("Intermediary AID:  %s\n", set.IntermediaryAID)
		fmt.Printf("Legal entity AID:  %s\n", set.LegalEntityAID)
		fmt.Printf("Credential SAID:   %s\n", set.CredentialSAID)
		if flagFixtureOrigin != "" {
			fmt.Printf("Linked origin:     %s\n", flagFixtureOrigin)
			fmt.Println("\nHost did-configuration.json at <origin>/.well-known/did-configuration.json")
		}
		fmt.Println("\nEnvironment for verification:")
		fmt.Printf("  ARTIFACT_DIR=%s\n", flagFixtureDir)
		fmt.Printf("  TRUST_ANCHOR_AID=%s\n", set.RootAID)
		return nil
	},
}
