package server

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/kbukum/workloadops/errors"
)

// minSecretLen is the shortest HS256 secret accepted.
const minSecretLen = 32

// ContextKeySubject is the gin context key holding the authenticated token subject.
const ContextKeySubject = "subject"

// AuthConfig configures bearer token authentication for the workload routes.
// An empty Secret disables authentication, which Config.Validate only
// allows on a loopback host.
type AuthConfig struct {
	Secret   string `yaml:"secret" mapstructure:"secret"`
	Issuer   string `yaml:"issuer" mapstructure:"issuer"`
	Audience string `yaml:"audience" mapstructure:"audience"`
}

// Enabled reports whether a signing secret is configured.
func (c AuthConfig) Enabled() bool { return c.Secret != "" }

// Validate checks the secret length.
func (c AuthConfig) Validate() error {
	if c.Enabled() && len(c.Secret) < minSecretLen {
		return fmt.Errorf("server.auth.secret must be at least %d bytes", minSecretLen)
	}
	return nil
}

// isLoopback reports whether host only accepts local connections.
// An empty host listens on every interface.
func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Tokens issues and verifies HS256 bearer tokens for the HTTP front.
type Tokens struct {
	cfg AuthConfig
}

// NewTokens validates cfg and returns a Tokens for it.
func NewTokens(cfg AuthConfig) (*Tokens, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("server.auth.secret is required to issue tokens")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Tokens{cfg: cfg}, nil
}

// Issue signs a token for subject that expires after ttl.
func (t *Tokens) Issue(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := gojwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    t.cfg.Issuer,
		IssuedAt:  gojwt.NewNumericDate(now),
		ExpiresAt: gojwt.NewNumericDate(now.Add(ttl)),
	}
	if t.cfg.Audience != "" {
		claims.Audience = gojwt.ClaimStrings{t.cfg.Audience}
	}
	signed, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString([]byte(t.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies the signature, expiry, issuer and audience of token.
func (t *Tokens) Parse(token string) (*gojwt.RegisteredClaims, error) {
	opts := []gojwt.ParserOption{
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithExpirationRequired(),
	}
	if t.cfg.Issuer != "" {
		opts = append(opts, gojwt.WithIssuer(t.cfg.Issuer))
	}
	if t.cfg.Audience != "" {
		opts = append(opts, gojwt.WithAudience(t.cfg.Audience))
	}
	claims := &gojwt.RegisteredClaims{}
	parsed, err := gojwt.ParseWithClaims(token, claims, func(*gojwt.Token) (any, error) {
		return []byte(t.cfg.Secret), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("parse token: invalid")
	}
	return claims, nil
}

// Auth rejects requests without a valid "Bearer" token with 401
// UNAUTHORIZED. Paths with one of the skip prefixes pass through.
func Auth(tokens *Tokens, skipPaths ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skip := range skipPaths {
			if strings.HasPrefix(path, skip) {
				c.Next()
				return
			}
		}

		header := c.GetHeader("Authorization")
		if header == "" {
			RespondWithError(c, errors.Unauthorized("authorization header required"))
			return
		}
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || scheme != "Bearer" || token == "" {
			RespondWithError(c, errors.Unauthorized("invalid authorization header format"))
			return
		}
		claims, err := tokens.Parse(token)
		if err != nil {
			RespondWithError(c, errors.Unauthorized("invalid token"))
			return
		}
		c.Set(ContextKeySubject, claims.Subject)
		c.Next()
	}
}
