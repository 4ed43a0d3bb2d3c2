// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package ceremony

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jeremyhahn/go-passkey/pkg/account"
)

// TokenIssuer mints JWTs for accounts that completed an authentication
// ceremony, for handing off to downstream services.
type TokenIssuer struct {
	privateKey crypto.PrivateKey
	publicKey  crypto.PublicKey
	method     jwt.SigningMethod
	issuer     string
	audience   []string
	expiresIn  time.Duration
	keyID      string
}

// TokenIssuerConfig contains configuration for the token issuer.
type TokenIssuerConfig struct {
	// PrivateKey is the key used to sign tokens (required). ECDSA, RSA and
	// Ed25519 keys are supported.
	PrivateKey crypto.PrivateKey
	// Issuer is the JWT issuer claim (default: "go-passkey")
	Issuer string
	// Audience is the JWT audience claim (default: ["go-passkey"])
	Audience []string
	// ExpiresIn is how long tokens are valid (default: 1 hour)
	ExpiresIn time.Duration
	// KeyID is the key identifier for the kid header (optional)
	KeyID string
}

// NewTokenIssuer creates a token issuer with the given configuration.
func NewTokenIssuer(config *TokenIssuerConfig) (*TokenIssuer, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if config.PrivateKey == nil {
		return nil, fmt.Errorf("private key is required")
	}

	method, publicKey, err := signingMethodFor(config.PrivateKey)
	if err != nil {
		return nil, err
	}

	issuer := config.Issuer
	if issuer == "" {
		issuer = "go-passkey"
	}
	audience := config.Audience
	if len(audience) == 0 {
		audience = []string{"go-passkey"}
	}
	expiresIn := config.ExpiresIn
	if expiresIn == 0 {
		expiresIn = time.Hour
	}

	return &TokenIssuer{
		privateKey: config.PrivateKey,
		publicKey:  publicKey,
		method:     method,
		issuer:     issuer,
		audience:   audience,
		expiresIn:  expiresIn,
		keyID:      config.KeyID,
	}, nil
}

// Issue creates a JWT for the authenticated account.
func (t *TokenIssuer) Issue(user *account.User) (string, error) {
	now := time.Now()

	claims := jwt.MapClaims{
		"iss": t.issuer,
		"aud": t.audience,
		"sub": string(user.Handle()),
		"iat": now.Unix(),
		"exp": now.Add(t.expiresIn).Unix(),
		"nbf": now.Unix(),
		// Custom claims
		"name":     user.DisplayName,
		"username": user.Username,
	}

	token := jwt.NewWithClaims(t.method, claims)
	if t.keyID != "" {
		token.Header["kid"] = t.keyID
	}
	return token.SignedString(t.privateKey)
}

// Verify validates a JWT issued by Issue and returns its claims.
func (t *TokenIssuer) Verify(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != t.method.Alg() {
				return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
			}
			return t.publicKey, nil
		},
		jwt.WithIssuer(t.issuer),
		jwt.WithAudience(t.audience[0]),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid claims type")
	}
	return claims, nil
}

// PublicKey returns the public key for token verification.
func (t *TokenIssuer) PublicKey() crypto.PublicKey {
	return t.publicKey
}

// signingMethodFor picks the JWT signing method matching the key type.
func signingMethodFor(key crypto.PrivateKey) (jwt.SigningMethod, crypto.PublicKey, error) {
	switch k := key.(type) {
	case *ecdsa.PrivateKey:
		return jwt.SigningMethodES256, k.Public(), nil
	case *rsa.PrivateKey:
		return jwt.SigningMethodRS256, k.Public(), nil
	case ed25519.PrivateKey:
		return jwt.SigningMethodEdDSA, k.Public(), nil
	default:
		return nil, nil, fmt.Errorf("unsupported key type %T", key)
	}
}
