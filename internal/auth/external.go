package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

const defaultLeeway = 30 * time.Second

// ExternalIdentity - личность из токена внешнего IdP
type ExternalIdentity struct {
	Subject string
	Email   string
	Name    string
}

// ExternalVerifier проверяет RS256 токены внешнего IdP по JWKS
type ExternalVerifier struct {
	keyfunc keyfunc.Keyfunc
	parser  *jwt.Parser
}

func NewExternalVerifier(ctx context.Context, jwksURL, issuer, audience string) (*ExternalVerifier, error) {
	if jwksURL == "" {
		return nil, errors.New("jwks url must be set")
	}

	kf, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to init JWKS keyfunc: %w", err)
	}
	return newExternalVerifier(kf, issuer, audience), nil
}

func newExternalVerifier(kf keyfunc.Keyfunc, issuer, audience string) *ExternalVerifier {
	opts := []jwt.ParserOption{
		jwt.WithLeeway(defaultLeeway),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Name, jwt.SigningMethodRS384.Name, jwt.SigningMethodRS512.Name}),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}
	return &ExternalVerifier{keyfunc: kf, parser: jwt.NewParser(opts...)}
}

func (v *ExternalVerifier) Verify(tokenStr string) (*ExternalIdentity, error) {
	token, err := v.parser.Parse(tokenStr, v.keyfunc.Keyfunc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	identity := &ExternalIdentity{
		Subject: readString(mapClaims, "sub"),
		Email:   strings.ToLower(readString(mapClaims, "email")),
		Name:    readString(mapClaims, "name"),
	}
	if identity.Subject == "" {
		return nil, fmt.Errorf("%w: token missing sub", ErrInvalidToken)
	}
	return identity, nil
}

func readString(claims jwt.MapClaims, key string) string {
	if s, ok := claims[key].(string); ok {
		return s
	}
	return ""
}
