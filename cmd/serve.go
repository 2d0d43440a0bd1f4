package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/verita-sec/verita/internal/api"
	"github.com/verita-sec/verita/internal/config"
	"github.com/verita-sec/verita/internal/core"
	"github.com/verita-sec/verita/internal/keyset"
	"github.com/verita-sec/verita/internal/roles"
	"github.com/verita-sec/verita/internal/sharing"
	"github.com/verita-sec/verita/internal/store"
	"github.com/verita-sec/verita/internal/token"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Verita server",
	RunE: func(cmd *cobra.Command, args []string) error {
		configFile, _ := cmd.Flags().GetString("config")
		addr, _ := cmd.Flags().GetString("addr")

		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if addr == "" {
			addr = cfg.Server.Addr
		}

		log.Info().Str("issuer", cfg.Auth.IssuerURL).Msg("Initializing key set cache...")
		fetcher := keyset.NewFetcher(cfg.Auth.IssuerURL, cfg.Auth.FetchTimeout)
		var cacheOpts []keyset.CacheOption
		if cfg.Auth.KeySetTTL > 0 {
			cacheOpts = append(cacheOpts, keyset.WithTTL(cfg.Auth.KeySetTTL))
		}
		if cfg.Auth.KeySetMaxStale > 0 {
			cacheOpts = append(cacheOpts, keyset.WithMaxStale(cfg.Auth.KeySetMaxStale))
		}
		cache := keyset.NewCache(fetcher.Fetch, cacheOpts...)

		var legacySecret []byte
		if cfg.Auth.LegacySecret != "" {
			log.Warn().Msg("legacy HS256 token scheme is enabled")
			legacySecret = []byte(cfg.Auth.LegacySecret)
		}
		verifier := token.NewVerifier(cache, legacySecret)

		var issuer *token.Issuer
		if cfg.Identity != nil {
			log.Info().Str("kid", cfg.Identity.KID).Msg("Initializing token issuer...")
			issuer, err = buildIssuer(cfg)
			if err != nil {
				return err
			}
		}

		resolver := roles.NewResolver(
			roles.NewDirectory(cfg.Roles.URL, cfg.Roles.APIKey, cfg.Roles.Timeout))

		requestStore, err := buildRequestStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		srv, err := api.NewServer(
			verifier,
			issuer,
			resolver,
			sharing.NewManager(requestStore),
			cache,
			cfg.Protection,
		)
		if err != nil {
			return fmt.Errorf("building server: %w", err)
		}

		server := &http.Server{
			Addr:    addr,
			Handler: srv.Routes(),
		}

		go func() {
			log.Info().Msgf("Starting server on %s...", addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal().Err(err).Msg("Server crashed")
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info().Msg("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		log.Info().Msg("Server exited")
		return nil
	},
}

func buildIssuer(cfg *config.Config) (*token.Issuer, error) {
	pemBytes, err := os.ReadFile(cfg.Identity.SigningKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading signing key: %w", err)
	}
	key, err := token.ParsePrivateKey(pemBytes)
	if err != nil {
		return nil, err
	}
	return token.NewIssuer(
		key,
		cfg.Identity.KID,
		cfg.Auth.IssuerURL,
		cfg.Identity.Audience,
		cfg.Identity.TokenTTL,
	), nil
}

func buildRequestStore(ctx context.Context, cfg *config.Config) (core.RequestStore, error) {
	switch cfg.Requests.Store.Type {
	case "memory":
		log.Warn().Msg("using in-memory request store, requests do not survive restarts")
		return store.NewMemory(), nil
	case "redis":
		rc, err := cfg.Requests.Store.DecodeRedis()
		if err != nil {
			return nil, err
		}
		client := redis.NewClient(&redis.Options{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connecting to redis at %s: %w", rc.Addr, err)
		}
		log.Info().Str("addr", rc.Addr).Msg("using redis request store")
		return store.NewRedis(client, rc.TTL), nil
	default:
		return nil, fmt.Errorf("unknown request store type %q", cfg.Requests.Store.Type)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "verita.yaml", "service configuration file")
	serveCmd.Flags().String("addr", "", "address to listen on (overrides config)")
}
