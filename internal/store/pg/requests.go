package pg

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gatehouse-id/gatehouse/internal/domain/repository"
	"github.com/gatehouse-id/gatehouse/internal/domain/types"
)

// Requests implementa repository.AuthorizationRequestRepository.
type Requests struct{ s *Store }

func (s *Store) Requests() *Requests { return &Requests{s: s} }

func (r *Requests) Save(ctx context.Context, req *types.AuthorizationRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("pg: marshal authorization request: %w", err)
	}
	const q = `
		INSERT INTO authorization_request (tenant_id, id, expires_at, payload)
		VALUES ($1, $2, $3, $4)`
	if _, err := r.s.pool.Exec(ctx, q, req.TenantID, req.ID, req.ExpiresAt, payload); err != nil {
		return fmt.Errorf("pg: insert authorization request: %w", err)
	}
	return nil
}

func (r *Requests) FindByID(ctx context.Context, tenantID, id string) (*types.AuthorizationRequest, error) {
	const q = `
		SELECT payload FROM authorization_request
		WHERE tenant_id = $1 AND id = $2`
	return r.scan(r.s.pool.QueryRow(ctx, q, tenantID, id), repository.ErrNotFound)
}

// Consume borra y devuelve el request en una sola sentencia: de N llamadas
// concurrentes solo una recibe la fila.
func (r *Requests) Consume(ctx context.Context, tenantID, id string) (*types.AuthorizationRequest, error) {
	const q = `
		DELETE FROM authorization_request
		WHERE tenant_id = $1 AND id = $2
		RETURNING payload`
	return r.scan(r.s.pool.QueryRow(ctx, q, tenantID, id), repository.ErrConsumed)
}

func (r *Requests) scan(row interface{ Scan(...any) error }, missing error) (*types.AuthorizationRequest, error) {
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if noRows(err) {
			return nil, missing
		}
		return nil, fmt.Errorf("pg: authorization request query: %w", err)
	}
	var req types.AuthorizationRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("pg: unmarshal authorization request: %w", err)
	}
	return &req, nil
}
