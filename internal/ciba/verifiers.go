package ciba

import (
	"context"

	"github.com/gatehouse-id/gatehouse/internal/domain/types"
	"github.com/gatehouse-id/gatehouse/internal/security/password"
)

// VerifyInput es lo que ve un verificador adicional antes de crear una
// transacción.
type VerifyInput struct {
	Client *types.ClientConfiguration
	Server *types.ServerConfiguration
	User   *types.User
	Params types.Parameters
}

// AdditionalVerifier es un chequeo previo enchufable. El primer fallo
// corta la creación de la transacción con su propio error code.
type AdditionalVerifier interface {
	Verify(ctx context.Context, in VerifyInput) *types.DirectError
}

// userActiveVerifier rechaza usuarios bloqueados.
type userActiveVerifier struct{}

func NewUserActiveVerifier() AdditionalVerifier { return userActiveVerifier{} }

func (userActiveVerifier) Verify(ctx context.Context, in VerifyInput) *types.DirectError {
	if !in.User.Active() {
		return types.NewDirectError(types.ErrAccessDenied, "the user cannot authenticate")
	}
	return nil
}

// userCodeVerifier aplica el chequeo de user_code como password para
// clientes registrados con backchannel_user_code_parameter.
type userCodeVerifier struct{}

func NewUserCodeVerifier() AdditionalVerifier { return userCodeVerifier{} }

func (userCodeVerifier) Verify(ctx context.Context, in VerifyInput) *types.DirectError {
	if !in.Client.BackchannelUserCodeParameter {
		return nil
	}
	code := in.Params.Get(types.KeyUserCode)
	if code == "" {
		return types.NewDirectError(types.ErrInvalidUserCode, "user_code is required")
	}
	if in.User.UserCodeHash == "" || !password.Verify(code, in.User.UserCodeHash) {
		return types.NewDirectError(types.ErrInvalidUserCode, "user_code is incorrect")
	}
	return nil
}
