package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/vitalvas/signgate/internal/campaign"
	"github.com/vitalvas/signgate/internal/config"
	"github.com/vitalvas/signgate/internal/logger"
	"github.com/vitalvas/signgate/internal/metrics"
	"github.com/vitalvas/signgate/internal/server"
	"github.com/vitalvas/signgate/querysig"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server",
	Long: `The serve command loads configuration from the config file, SIGNGATE_*
environment variables and flags, then serves the API until SIGINT or SIGTERM.
The public key may also be given as RSA_PUBLIC_KEY_BASE64.`,
	RunE: runServe,
}

func init() {
	config.RegisterFlags(serveCmd.Flags())
}

func runServe(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return err
	}

	log, err := logger.New(&cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	key, err := querysig.ParsePublicKey(cfg.Auth.PublicKey)
	if err != nil {
		log.Fatal("failed to load public key", "error", err)
	}

	verifier, err := querysig.NewVerifier(key)
	if err != nil {
		log.Fatal("failed to create verifier", "error", err)
	}

	m, err := metrics.New()
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, closeSource, err := openStakeSource(ctx, &cfg.Campaign)
	if err != nil {
		return err
	}
	defer closeSource()

	log.Info("stake source ready", "source", source.Name(), "min_stake", cfg.Campaign.MinStake)

	svc, err := campaign.NewService(source, cfg.Campaign.MinStakeWei(), m)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, server.Deps{
		Logger:   log,
		Metrics:  m,
		Verifier: verifier,
		Campaign: svc,
	})
	if err != nil {
		return err
	}

	return srv.Run(ctx)
}

func openStakeSource(ctx context.Context, cfg *config.CampaignConfig) (campaign.StakeSource, func(), error) {
	switch cfg.Source {
	case config.SourceSubgraph:
		db, err := campaign.OpenSubgraph(cfg.Subgraph.Driver, cfg.Subgraph.DSN, cfg.Subgraph.MaxOpenConns)
		if err != nil {
			return nil, nil, err
		}

		closeDB := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}

		source, err := campaign.NewSubgraphSource(db, cfg.Subgraph.Table)
		if err != nil {
			closeDB()
			return nil, nil, err
		}

		return source, closeDB, nil

	default:
		source, client, err := campaign.DialContractSource(ctx, cfg.RPC.URL,
			common.HexToAddress(cfg.RPC.ContractAddress), cfg.RPC.Timeout)
		if err != nil {
			return nil, nil, err
		}

		return source, client.Close, nil
	}
}
