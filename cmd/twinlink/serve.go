package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/twinlabs/twinlink/internal/config"
	"github.com/twinlabs/twinlink/internal/metrics"
	"github.com/twinlabs/twinlink/internal/server"
	"github.com/twinlabs/twinlink/pkg/artifact"
	"github.com/twinlabs/twinlink/pkg/attest"
	"github.com/twinlabs/twinlink/pkg/domainproof"
	"github.com/twinlabs/twinlink/pkg/keri"
	"github.com/twinlabs/twinlink/pkg/ledger"
	"github.com/twinlabs/twinlink/pkg/verify"
	"github.com/twinlabs/twinlink/pkg/vlei"
)

var flagServePretty bool

func init() {
	serveCmd.Flags().BoolVar(&flagServePretty, "pretty", false, "Human-readable log output")

	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the verification service",
	Long:  `Start the HTTP verification service. Configuration comes from the environment; a .env file in the working directory is honored.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		config.LoadDotEnv()
		cfg, err := config.FromEnv()
		if err != nil {
			return err
		}
		log := newLogger(flagServePretty)

		// 1. Pipeline
		m := metrics.New()
		router := buildRouter(cmd.Context(), cfg, log, m, true)

		// 2. HTTP front
		srv := server.New(router, server.Config{
			TrustAnchorConfigured: cfg.TrustAnchorAID != "",
		}, log, m)
		httpSrv := server.NewHTTPServer(cfg.Addr, srv.Handler())

		log.Info().
			Str("addr", cfg.Addr).
			Bool("trust_anchor_configured", cfg.TrustAnchorAID != "").
			Msg("starting twinlink")

		errCh := make(chan error, 1)
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()

		// 3. Graceful shutdown
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		select {
		case err := <-errCh:
			return err
		case <-quit:
		}

		log.Info().Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(ctx)
	},
}

// buildRouter assembles the verification pipeline from the resolved
// configuration. With mint false the router runs as a pure check and
// never touches the attestation side of the ledger.
func buildRouter(ctx context.Context, cfg config.Config, log zerolog.Logger, m *metrics.Metrics, mint bool) *verify.Router {
	// 1. Artifact source
	var src artifact.Source
	if cfg.ArtifactDir != "" {
		src = artifact.NewDirSource(cfg.ArtifactDir)
	} else {
		httpSrc := artifact.NewHTTPSource(cfg.ArtifactBaseURL)
		httpSrc.SetClient(&http.Client{Timeout: cfg.HTTPTimeout})
		httpSrc.SetRetry(cfg.FetchAttempts, cfg.FetchBackoff)
		src = httpSrc
	}

	// 2. Key state. Seeding is an optimization; the store resolves
	// unknown AIDs lazily.
	keys := keri.NewStore(src)
	if err := keys.Seed(ctx); err != nil {
		log.Warn().Err(err).Msg("key-state seeding failed, resolving lazily")
	}

	// 3. Path verifiers
	chain := vlei.NewVerifier(src, keys, vlei.Config{TrustAnchorAID: cfg.TrustAnchorAID})
	domain := domainproof.NewVerifier()
	domain.SetClient(&http.Client{Timeout: cfg.HTTPTimeout})
	domain.SetRetry(cfg.FetchAttempts, cfg.FetchBackoff)

	// 4. Ledger and attestation
	led := ledger.NewGatewayClient(cfg.GatewayURL)
	led.Client = &http.Client{Timeout: cfg.HTTPTimeout}
	deps := verify.Deps{
		Resolver: led,
		Chain:    chain,
		Domain:   domain,
		Logger:   log,
	}
	if mint {
		minter := attest.NewMinter(led, log)
		minter.SetIssuerAddress(cfg.IssuerAddress)
		if m != nil {
			minter.SetFailureHook(m.AttestationFailure)
		}
		deps.Minter = minter
	}

	return verify.NewRouter(verify.Config{DIDPrefix: cfg.DIDPrefix}, deps)
}
