package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/verita-sec/verita/internal/core"
	"github.com/verita-sec/verita/internal/token"
)

// issueCmd signs a token locally from a PEM private key. Useful for
// bootstrapping and for development setups without a running identity
// provider.
var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Sign a bearer token locally",
	RunE: func(cmd *cobra.Command, args []string) error {
		keyPath, _ := cmd.Flags().GetString("key")
		kid, _ := cmd.Flags().GetString("kid")
		issuerURL, _ := cmd.Flags().GetString("issuer-url")
		audience, _ := cmd.Flags().GetString("audience")
		subject, _ := cmd.Flags().GetString("subject")
		customer, _ := cmd.Flags().GetString("customer")
		superAdmin, _ := cmd.Flags().GetBool("super-admin")
		scope, _ := cmd.Flags().GetString("scope")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		if customer == "" && subject == "" {
			return fmt.Errorf("at least one of --customer or --subject is required")
		}

		pemBytes, err := os.ReadFile(keyPath)
		if err != nil {
			return fmt.Errorf("reading signing key: %w", err)
		}
		key, err := token.ParsePrivateKey(pemBytes)
		if err != nil {
			return err
		}

		issuer := token.NewIssuer(key, kid, issuerURL, audience, ttl)
		signed, err := issuer.Issue(core.TokenClaims{
			Subject:      subject,
			CustomerID:   customer,
			IsSuperAdmin: superAdmin,
			Scope:        scope,
		})
		if err != nil {
			return err
		}

		log.Info().Msgf("%s token issued (expires in %s)", greenCheck, ttl)
		fmt.Println(signed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(issueCmd)

	issueCmd.Flags().StringP("key", "k", "", "PEM-encoded RSA private key file")
	issueCmd.Flags().String("kid", "default", "key id placed in the token header")
	issueCmd.Flags().String("issuer-url", "http://localhost:8080", "issuer claim")
	issueCmd.Flags().String("audience", "verita", "audience claim")
	issueCmd.Flags().String("subject", "", "subject claim")
	issueCmd.Flags().String("customer", "", "customer id claim")
	issueCmd.Flags().Bool("super-admin", false, "mark the principal as super-admin")
	issueCmd.Flags().String("scope", "", "scope claim")
	issueCmd.Flags().Duration("ttl", time.Hour, "token lifetime")
	_ = issueCmd.MarkFlagRequired("key")
}
