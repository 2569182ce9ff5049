package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/notdp/franxx-store-sub000/internal/config"
	"github.com/notdp/franxx-store-sub000/internal/logger"
)

// Claims is the subset of a Supabase access token the API relies on.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Phone string `json:"phone"`
	Role  string `json:"role"`
}

// Verifier turns a raw access token into trusted claims.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (*Claims, error)
}

// HS256Verifier checks tokens signed with the project's shared JWT secret.
type HS256Verifier struct {
	Secret []byte
}

func (v *HS256Verifier) Verify(_ context.Context, rawToken string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(rawToken, claims, func(*jwt.Token) (interface{}, error) {
		return v.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: subject claim not found in token", ErrInvalidToken)
	}
	return claims, nil
}

// JWKSVerifier checks asymmetric tokens against the project's published key set.
type JWKSVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewJWKSVerifier fetches keys lazily from <projectURL>/auth/v1/.well-known/jwks.json.
func NewJWKSVerifier(ctx context.Context, projectURL string) *JWKSVerifier {
	issuer := projectURL + "/auth/v1"
	keySet := oidc.NewRemoteKeySet(ctx, issuer+"/.well-known/jwks.json")
	return &JWKSVerifier{
		verifier: oidc.NewVerifier(issuer, keySet, &oidc.Config{
			SkipClientIDCheck:    true,
			SupportedSigningAlgs: []string{oidc.RS256, oidc.ES256},
		}),
	}
}

func (v *JWKSVerifier) Verify(ctx context.Context, rawToken string) (*Claims, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims := &Claims{}
	if err := idToken.Claims(claims); err != nil {
		return nil, fmt.Errorf("%w: failed to parse claims: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		claims.Subject = idToken.Subject
	}
	return claims, nil
}

// UnverifiedVerifier only decodes the token. It exists for local setups without
// a JWT secret and must not be used in production.
type UnverifiedVerifier struct {
	now func() time.Time
}

func (v *UnverifiedVerifier) Verify(_ context.Context, rawToken string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(rawToken, claims); err != nil {
		return nil, fmt.Errorf("%w: failed to parse token: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: subject claim not found in token", ErrInvalidToken)
	}
	now := time.Now
	if v.now != nil {
		now = v.now
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(now()) {
		return nil, fmt.Errorf("%w: token is expired", ErrInvalidToken)
	}
	return claims, nil
}

// NewVerifier picks JWKS, then the shared secret, then unverified decoding.
func NewVerifier(ctx context.Context, cfg config.SupabaseConfig, log *logger.Logger) Verifier {
	switch {
	case cfg.JWKSEnabled && cfg.URL != "":
		log.Info("AUTH", fmt.Sprintf("Verifying access tokens against %s/auth/v1 JWKS", cfg.URL))
		return NewJWKSVerifier(ctx, cfg.URL)
	case cfg.JWTSecret != "":
		log.Info("AUTH", "Verifying access tokens with SUPABASE_JWT_SECRET (HS256)")
		return &HS256Verifier{Secret: []byte(cfg.JWTSecret)}
	default:
		log.LogSecurity("AUTH", "No SUPABASE_JWT_SECRET or JWKS configured, access tokens are NOT verified")
		return &UnverifiedVerifier{}
	}
}
