package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	httptransport "github.com/example/vetclinic-scheduler/internal/http"
)

type tokenOptions struct {
	subject  string
	email    string
	role     string
	clinicID string
	ttl      time.Duration
}

// tokenCmd mints a bearer token signed with the configured secret, for local
// environments without an identity provider.
func tokenCmd() *cobra.Command {
	opts := tokenOptions{}
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed development bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadRuntime()
			if err != nil {
				return err
			}
			claims, err := opts.claims(time.Now(), cfg.JWTIssuer, cfg.JWTAudience)
			if err != nil {
				return err
			}
			token, err := httptransport.SignToken([]byte(cfg.JWTSecret), claims)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.subject, "sub", "", "Subject (user id) of the token")
	cmd.Flags().StringVar(&opts.email, "email", "", "Email claim")
	cmd.Flags().StringVar(&opts.role, "role", "clinic_staff", "Role: owner or clinic_staff")
	cmd.Flags().StringVar(&opts.clinicID, "clinic", "", "Clinic id of a clinic_staff principal")
	cmd.Flags().DurationVar(&opts.ttl, "ttl", 12*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("sub")
	return cmd
}

func (o tokenOptions) claims(now time.Time, issuer, audience string) (httptransport.Claims, error) {
	role := strings.ToLower(strings.TrimSpace(o.role))
	switch role {
	case "owner", "clinic_staff":
	default:
		return httptransport.Claims{}, fmt.Errorf("unknown role %q", o.role)
	}
	if strings.TrimSpace(o.subject) == "" {
		return httptransport.Claims{}, fmt.Errorf("subject is required")
	}
	if o.ttl <= 0 {
		return httptransport.Claims{}, fmt.Errorf("ttl must be positive")
	}

	claims := httptransport.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   o.subject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(o.ttl)),
		},
		Email:    o.email,
		Role:     role,
		ClinicID: o.clinicID,
	}
	if audience != "" {
		claims.Audience = jwt.ClaimStrings{audience}
	}
	return claims, nil
}
