// Package ciba implementa el flujo de autenticación backchannel: creación
// de transacciones a partir de un hint de usuario, verificadores previos
// enchufables, y las transiciones authorize/deny que maneja el dispositivo
// de autenticación.
package ciba

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gatehouse-id/gatehouse/internal/domain/repository"
	"github.com/gatehouse-id/gatehouse/internal/domain/types"
)

var errUnresolvableHint = errors.New("ciba: hint does not resolve to a user")

// HintResolver convierte un tipo de hint de usuario en un usuario concreto.
type HintResolver interface {
	Type() types.UserHintType
	Resolve(ctx context.Context, tenantID, hint string) (*types.User, error)
}

// loginHintResolver trata el login_hint como un username.
type loginHintResolver struct {
	users repository.UserRepository
}

func NewLoginHintResolver(users repository.UserRepository) HintResolver {
	return &loginHintResolver{users: users}
}

func (r *loginHintResolver) Type() types.UserHintType { return types.HintLoginHint }

func (r *loginHintResolver) Resolve(ctx context.Context, tenantID, hint string) (*types.User, error) {
	user, err := r.users.FindByUsername(ctx, tenantID, hint)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errUnresolvableHint
		}
		return nil, err
	}
	return user, nil
}

// tokenHintResolver cubre id_token_hint y login_hint_token: ambos llevan
// el subject en el claim sub. El id_token_hint lo firmó este servidor en su
// momento; el lookup del subject restablece que el usuario existe, que es
// todo lo que la creación de la transacción necesita.
type tokenHintResolver struct {
	hintType types.UserHintType
	users    repository.UserRepository
}

func NewIDTokenHintResolver(users repository.UserRepository) HintResolver {
	return &tokenHintResolver{hintType: types.HintIDTokenHint, users: users}
}

func NewLoginHintTokenResolver(users repository.UserRepository) HintResolver {
	return &tokenHintResolver{hintType: types.HintLoginHintToken, users: users}
}

func (r *tokenHintResolver) Type() types.UserHintType { return r.hintType }

func (r *tokenHintResolver) Resolve(ctx context.Context, tenantID, hint string) (*types.User, error) {
	sub, err := subjectOf(hint)
	if err != nil || sub == "" {
		return nil, errUnresolvableHint
	}
	user, err := r.users.FindByID(ctx, tenantID, sub)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errUnresolvableHint
		}
		return nil, err
	}
	return user, nil
}

func subjectOf(compact string) (string, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(compact, claims); err != nil {
		return "", fmt.Errorf("ciba: parse hint token: %w", err)
	}
	sub, _ := claims["sub"].(string)
	return sub, nil
}
