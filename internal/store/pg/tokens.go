package pg

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gatehouse-id/gatehouse/internal/domain/repository"
	"github.com/gatehouse-id/gatehouse/internal/domain/types"
	tokens "github.com/gatehouse-id/gatehouse/internal/security/token"
)

// Tokens implementa repository.TokenRepository. Access y refresh se
// indexan por hash para soportar lookup por cualquiera de los dos valores.
type Tokens struct{ s *Store }

func (s *Store) Tokens() *Tokens { return &Tokens{s: s} }

func (t *Tokens) Save(ctx context.Context, token *types.OAuthToken) error {
	payload, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("pg: marshal token: %w", err)
	}
	const q = `
		INSERT INTO oauth_token (tenant_id, id, access_hash, refresh_hash, refresh_expires_at, payload)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)`
	refreshHash := ""
	if token.RefreshToken != "" {
		refreshHash = tokens.SHA256Base64URL(token.RefreshToken)
	}
	_, err = t.s.pool.Exec(ctx, q,
		token.TenantID, token.ID, tokens.SHA256Base64URL(token.AccessToken),
		refreshHash, token.RefreshExpiresAt, payload)
	if err != nil {
		return fmt.Errorf("pg: insert token: %w", err)
	}
	return nil
}

func (t *Tokens) FindByAccessToken(ctx context.Context, tenantID, accessToken string) (*types.OAuthToken, error) {
	const q = `
		SELECT payload FROM oauth_token
		WHERE tenant_id = $1 AND access_hash = $2`
	return t.scan(t.s.pool.QueryRow(ctx, q, tenantID, tokens.SHA256Base64URL(accessToken)), repository.ErrNotFound)
}

// ConsumeRefreshToken rota: el DELETE condicional revoca el par completo y
// devuelve el registro a exactamente un redentor.
func (t *Tokens) ConsumeRefreshToken(ctx context.Context, tenantID, refreshToken string) (*types.OAuthToken, error) {
	const q = `
		DELETE FROM oauth_token
		WHERE tenant_id = $1 AND refresh_hash = $2
		RETURNING payload`
	return t.scan(t.s.pool.QueryRow(ctx, q, tenantID, tokens.SHA256Base64URL(refreshToken)), repository.ErrConsumed)
}

func (t *Tokens) DeleteByID(ctx context.Context, tenantID, id string) error {
	const q = `DELETE FROM oauth_token WHERE tenant_id = $1 AND id = $2`
	tag, err := t.s.pool.Exec(ctx, q, tenantID, id)
	if err != nil {
		return fmt.Errorf("pg: delete token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (t *Tokens) scan(row interface{ Scan(...any) error }, missing error) (*types.OAuthToken, error) {
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if noRows(err) {
			return nil, missing
		}
		return nil, fmt.Errorf("pg: token query: %w", err)
	}
	var token types.OAuthToken
	if err := json.Unmarshal(payload, &token); err != nil {
		return nil, fmt.Errorf("pg: unmarshal token: %w", err)
	}
	return &token, nil
}
