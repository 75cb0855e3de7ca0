package cmd

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/example/hotel-call-scheduler/internal/auth"
	"github.com/spf13/cobra"
)

func newKeysCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	c := &cobra.Command{
		Use:   "keys",
		Short: "Generate trigger credentials and CALLREF signing keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := randomBytes(32)
			if err != nil {
				return err
			}
			hash, err := randomBytes(32)
			if err != nil {
				return err
			}
			block, err := randomBytes(32)
			if err != nil {
				return err
			}
			secret, err := randomBytes(32)
			if err != nil {
				return err
			}

			plain := hex.EncodeToString(token)
			hashed, err := auth.HashToken(plain)
			if err != nil {
				return err
			}
			jwtSecret := hex.EncodeToString(secret)

			w := os.Stdout
			fmt.Fprintf(w, "export TRIGGER_TOKEN=%s\n", plain)
			fmt.Fprintf(w, "export TRIGGER_TOKEN_BCRYPT='%s'\n", hashed)
			fmt.Fprintf(w, "export TRIGGER_JWT_SECRET=%s\n", jwtSecret)
			fmt.Fprintf(w, "export CALLREF_HASH_KEY=%s\n", base64.StdEncoding.EncodeToString(hash))
			fmt.Fprintf(w, "export CALLREF_BLOCK_KEY=%s\n", base64.StdEncoding.EncodeToString(block))

			if subject != "" {
				tok, err := auth.IssueJWT([]byte(jwtSecret), subject, ttl)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "# bearer token for %s, valid %s\n%s\n", subject, ttl, tok)
			}
			return nil
		},
	}
	c.Flags().StringVar(&subject, "jwt-subject", "", "also issue a JWT for this subject (e.g. the cron job name)")
	c.Flags().DurationVar(&ttl, "jwt-ttl", 365*24*time.Hour, "JWT lifetime")
	return c
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}
