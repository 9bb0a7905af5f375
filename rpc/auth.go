package rpc

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

var errExactlyOneParam = errors.New("exactly one parameter object expected")

// AuthConfig captures the JWT policy protecting mutating RPC methods. An empty
// secret disables authentication, which is only sensible for local dev nodes.
type AuthConfig struct {
	HMACSecret string
	Issuer     string
	Audience   string
	ClockSkew  time.Duration
}

// Authenticator validates bearer tokens on mutating JSON-RPC methods.
type Authenticator struct {
	cfg    AuthConfig
	secret []byte
}

// NewAuthenticator builds an authenticator from the supplied policy.
func NewAuthenticator(cfg AuthConfig) *Authenticator {
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = 2 * time.Minute
	}
	return &Authenticator{cfg: cfg, secret: []byte(strings.TrimSpace(cfg.HMACSecret))}
}

// Enabled reports whether a secret is configured.
func (a *Authenticator) Enabled() bool {
	return a != nil && len(a.secret) > 0
}

// requireAuth validates the Authorization header for a mutating method.
func (s *Server) requireAuth(r *http.Request) *RPCError {
	if !s.auth.Enabled() {
		return nil
	}
	tokenString := extractBearer(r.Header.Get("Authorization"))
	if tokenString == "" {
		return &RPCError{Code: codeUnauthorized, Message: "unauthorized", Data: "missing bearer token"}
	}
	if err := s.auth.validate(tokenString); err != nil {
		s.logger.Warn("auth: token validation failed", "error", err)
		return &RPCError{Code: codeUnauthorized, Message: "unauthorized", Data: "invalid token"}
	}
	return nil
}

func (a *Authenticator) validate(tokenString string) error {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(a.cfg.ClockSkew),
	}
	if a.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.cfg.Issuer))
	}
	if a.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(a.cfg.Audience))
	}
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return err
	}
	if !token.Valid {
		return fmt.Errorf("token rejected")
	}
	return nil
}

func extractBearer(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
