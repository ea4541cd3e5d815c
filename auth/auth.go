// Package auth resolves caller identity for streamhub from JWT bearer tokens.
//
// The hub itself never authenticates; it receives an identity (or none) from
// this package via the server's auth middleware. Whether a missing identity
// is an error is deployment policy, configured per endpoint.
package auth

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// Claims carries the identity streamhub cares about.
type Claims struct {
	gojwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// Config configures the JWT token service.
type Config struct {
	// Secret is the HMAC signing key.
	Secret string `yaml:"secret" mapstructure:"secret"`
	// Issuer is the "iss" claim (optional).
	Issuer string `yaml:"issuer" mapstructure:"issuer"`
	// TokenTTL is the lifetime of issued tokens.
	TokenTTL time.Duration `yaml:"token_ttl" mapstructure:"token_ttl"`
	// RequiredForStream controls whether GET stream requests must be authenticated.
	RequiredForStream bool `yaml:"required_for_stream" mapstructure:"required_for_stream"`
	// RequiredForPublish controls whether POST notification requests must be authenticated.
	RequiredForPublish bool `yaml:"required_for_publish" mapstructure:"required_for_publish"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.TokenTTL == 0 {
		c.TokenTTL = 15 * time.Minute
	}
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.Secret == "" && (c.RequiredForStream || c.RequiredForPublish) {
		return errors.New("auth: secret is required when authentication is enforced")
	}
	return nil
}

// Service provides JWT token generation and parsing.
type Service struct {
	cfg Config
}

// NewService creates a new JWT service.
func NewService(cfg *Config) (*Service, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Service{cfg: *cfg}, nil
}

// Generate creates a signed token for the given user.
func (s *Service) Generate(userID string) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
		},
		UserID: userID,
	}
	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Parse validates and parses a token string into Claims.
func (s *Service) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	opts := []gojwt.ParserOption{
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
	}
	if s.cfg.Issuer != "" {
		opts = append(opts, gojwt.WithIssuer(s.cfg.Issuer))
	}
	token, err := gojwt.ParseWithClaims(tokenString, claims, s.keyFunc, opts...)
	if err != nil {
		return nil, fmt.Errorf("auth: parse token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("auth: invalid token")
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	return claims, nil
}

// ValidatorFunc bridges the typed service with generic middleware.
func (s *Service) ValidatorFunc() func(string) (*Claims, error) {
	return s.Parse
}

func (s *Service) keyFunc(token *gojwt.Token) (interface{}, error) {
	if token.Method.Alg() != gojwt.SigningMethodHS256.Alg() {
		return nil, fmt.Errorf("auth: unexpected signing method: %s", token.Method.Alg())
	}
	return []byte(s.cfg.Secret), nil
}
