package http

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/vetclinic-scheduler/internal/application"
)

// ErrInvalidToken is returned when a bearer token cannot be verified.
var ErrInvalidToken = errors.New("http: invalid token")

// TokenVerifier turns a bearer token into the acting principal.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (application.Principal, error)
}

// JWTConfig configures HS256 token verification.
type JWTConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
}

// Claims are the token claims understood by the scheduler.
type Claims struct {
	jwt.RegisteredClaims
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	IsDrSaulo bool   `json:"is_dr_saulo,omitempty"`
	ClinicID  string `json:"clinic_id,omitempty"`
}

// Principal maps the claims onto the scheduler roles. The legacy is_dr_saulo flag and
// the owner role are equivalent.
func (c Claims) Principal() application.Principal {
	principal := application.Principal{UserID: c.Subject, Role: application.RoleClinicStaff}
	switch strings.ToLower(strings.TrimSpace(c.Role)) {
	case string(application.RoleOwner), "dr_saulo":
		principal.Role = application.RoleOwner
	}
	if c.IsDrSaulo {
		principal.Role = application.RoleOwner
	}
	if clinicID := strings.TrimSpace(c.ClinicID); clinicID != "" {
		principal.ClinicID = &clinicID
	}
	return principal
}

// JWTVerifier validates HS256 bearer tokens.
type JWTVerifier struct {
	secret  []byte
	options []jwt.ParserOption
}

// NewJWTVerifier builds a verifier. Issuer and audience are only enforced when set.
func NewJWTVerifier(cfg JWTConfig) (*JWTVerifier, error) {
	if len(cfg.Secret) == 0 {
		return nil, fmt.Errorf("jwt secret is required")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return &JWTVerifier{secret: cfg.Secret, options: opts}, nil
}

// VerifyToken implements TokenVerifier.
func (v *JWTVerifier) VerifyToken(_ context.Context, token string) (application.Principal, error) {
	if v == nil {
		return application.Principal{}, fmt.Errorf("JWTVerifier is nil")
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, v.options...)
	if err != nil {
		return application.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return application.Principal{}, ErrInvalidToken
	}
	return claims.Principal(), nil
}

// SignToken issues an HS256 token for claims. It is used by the CLI and tests to mint
// tokens for local environments.
func SignToken(secret []byte, claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
