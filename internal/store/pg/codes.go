package pg

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gatehouse-id/gatehouse/internal/domain/repository"
	"github.com/gatehouse-id/gatehouse/internal/domain/types"
	tokens "github.com/gatehouse-id/gatehouse/internal/security/token"
)

// Codes implementa repository.CodeGrantRepository. El code se indexa por
// su hash SHA-256, nunca en claro.
type Codes struct{ s *Store }

func (s *Store) Codes() *Codes { return &Codes{s: s} }

func (c *Codes) Save(ctx context.Context, grant *types.AuthorizationCodeGrant) error {
	payload, err := json.Marshal(grant)
	if err != nil {
		return fmt.Errorf("pg: marshal code grant: %w", err)
	}
	const q = `
		INSERT INTO authorization_code (tenant_id, code_hash, expires_at, payload)
		VALUES ($1, $2, $3, $4)`
	hash := tokens.SHA256Base64URL(grant.Code)
	if _, err := c.s.pool.Exec(ctx, q, grant.TenantID, hash, grant.ExpiresAt, payload); err != nil {
		return fmt.Errorf("pg: insert code grant: %w", err)
	}
	return nil
}

// Consume es el DELETE ... RETURNING que garantiza el single-use del code.
func (c *Codes) Consume(ctx context.Context, tenantID, code string) (*types.AuthorizationCodeGrant, error) {
	const q = `
		DELETE FROM authorization_code
		WHERE tenant_id = $1 AND code_hash = $2
		RETURNING payload`
	var payload []byte
	if err := c.s.pool.QueryRow(ctx, q, tenantID, tokens.SHA256Base64URL(code)).Scan(&payload); err != nil {
		if noRows(err) {
			return nil, repository.ErrConsumed
		}
		return nil, fmt.Errorf("pg: consume code grant: %w", err)
	}
	var grant types.AuthorizationCodeGrant
	if err := json.Unmarshal(payload, &grant); err != nil {
		return nil, fmt.Errorf("pg: unmarshal code grant: %w", err)
	}
	return &grant, nil
}
