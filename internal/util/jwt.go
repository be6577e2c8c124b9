package util

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var ErrMissingSubject = errors.New("token has no subject")

// Claims are the Supabase access-token claims the gate relies on.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// ValidateJWT verifies tokenString against keyMaterial. HMAC tokens use keyMaterial
// as the shared secret; RSA and ECDSA tokens expect a PEM-encoded public key.
func ValidateJWT(tokenString, keyMaterial string) (*Claims, error) {
	alg, err := tokenAlgorithm(tokenString)
	if err != nil {
		return nil, err
	}
	key, err := verificationKey(alg, keyMaterial)
	if err != nil {
		return nil, err
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(*jwt.Token) (any, error) { return key, nil },
		jwt.WithValidMethods([]string{alg}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to validate token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}
	return claims, nil
}

func tokenAlgorithm(tokenString string) (string, error) {
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, &Claims{})
	if err != nil {
		return "", fmt.Errorf("failed to parse token header: %w", err)
	}
	alg, ok := token.Header["alg"].(string)
	if !ok {
		return "", errors.New("token header missing 'alg' field")
	}
	return alg, nil
}

func verificationKey(alg, keyMaterial string) (any, error) {
	switch alg {
	case "HS256", "HS384", "HS512":
		// A public key must never double as an HMAC secret.
		if block, _ := pem.Decode([]byte(keyMaterial)); block != nil {
			return nil, fmt.Errorf("%s token presented but a public key is configured", alg)
		}
		return []byte(keyMaterial), nil
	case "RS256", "RS384", "RS512", "ES256", "ES384", "ES512":
		block, _ := pem.Decode([]byte(keyMaterial))
		if block == nil {
			return nil, errors.New("failed to decode PEM block containing public key")
		}
		pub, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse public key: %w", err)
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("unsupported signing algorithm: %s", alg)
	}
}
