package main

import (
	"fmt"
	"time"

	"github.com/jmerrifield20/ConfidenceLedger/internal/identity"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	tokenSubject    string
	tokenRole       string
	tokenTTL        time.Duration
	tokenSigningKey string
	tokenIssuer     string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an actor token with the deployment's signing key",
	Long: `token signs an actor token locally. It needs the same signing key and
issuer as ledgerd (identity.signing_key / identity.issuer), read from the
flags, the config file or LEDGERCTL_IDENTITY_SIGNING_KEY.

  export LEDGERCTL_TOKEN=$(ledgerctl token --subject analyst@example.com)`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key := tokenSigningKey
		if key == "" {
			key = viper.GetString("identity.signing_key")
		}
		issuer := tokenIssuer
		if issuer == "" {
			issuer = viper.GetString("identity.issuer")
		}
		if issuer == "" {
			issuer = "ledgerd"
		}

		role, err := identity.ParseRole(tokenRole)
		if err != nil {
			return err
		}
		tokens, err := identity.NewActorTokenIssuer([]byte(key), issuer, tokenTTL)
		if err != nil {
			return err
		}
		signed, err := tokens.Issue(tokenSubject, role)
		if err != nil {
			return fmt.Errorf("issue token: %w", err)
		}
		fmt.Println(signed)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "Identity recorded on entries written with this token (required)")
	tokenCmd.Flags().StringVar(&tokenRole, "role", string(identity.RoleUser), "user or admin")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", identity.DefaultTokenTTL, "Token lifetime")
	tokenCmd.Flags().StringVar(&tokenSigningKey, "signing-key", "", "HMAC signing key (default identity.signing_key)")
	tokenCmd.Flags().StringVar(&tokenIssuer, "issuer", "", "Token issuer (default identity.issuer or ledgerd)")
	_ = tokenCmd.MarkFlagRequired("subject")
}
