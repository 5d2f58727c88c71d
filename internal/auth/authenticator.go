package auth

import (
	"context"
	"errors"
)

// ExternalResolver сопоставляет внешнюю личность с магазином (и создаёт его при первом входе)
type ExternalResolver func(ctx context.Context, identity *ExternalIdentity) (userID, role string, err error)

// Principal - аутентифицированный вызывающий
type Principal struct {
	UserID   string
	Role     string
	External bool
}

// Authenticator принимает собственные токены, а при настроенном JWKS - и токены внешнего IdP
type Authenticator struct {
	tokens   *TokenManager
	external *ExternalVerifier
	resolve  ExternalResolver
}

func NewAuthenticator(tokens *TokenManager) *Authenticator {
	return &Authenticator{tokens: tokens}
}

// WithExternal включает вход через внешний IdP
func (a *Authenticator) WithExternal(v *ExternalVerifier, resolve ExternalResolver) *Authenticator {
	a.external = v
	a.resolve = resolve
	return a
}

func (a *Authenticator) Authenticate(ctx context.Context, tokenStr string) (*Principal, error) {
	claims, err := a.tokens.Parse(tokenStr)
	if err == nil {
		return &Principal{UserID: claims.UserID, Role: claims.Role}, nil
	}
	if a.external == nil || a.resolve == nil {
		return nil, err
	}

	identity, extErr := a.external.Verify(tokenStr)
	if extErr != nil {
		return nil, errors.Join(err, extErr)
	}

	userID, role, resolveErr := a.resolve(ctx, identity)
	if resolveErr != nil {
		return nil, resolveErr
	}
	return &Principal{UserID: userID, Role: role, External: true}, nil
}
