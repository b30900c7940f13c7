package pg

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gatehouse-id/gatehouse/internal/domain/repository"
	"github.com/gatehouse-id/gatehouse/internal/domain/types"
)

// Transactions implementa repository.BackchannelAuthRepository. El estado
// vive en su propia columna para que las transiciones sean UPDATEs
// condicionales; el payload jsonb guarda el resto del registro.
type Transactions struct{ s *Store }

func (s *Store) Transactions() *Transactions { return &Transactions{s: s} }

func (t *Transactions) Save(ctx context.Context, req *types.BackchannelAuthenticationRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("pg: marshal transaction: %w", err)
	}
	const q = `
		INSERT INTO backchannel_transaction
			(tenant_id, auth_req_id, status, subject, last_polled_at, expires_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = t.s.pool.Exec(ctx, q,
		req.TenantID, req.AuthReqID, string(req.Status), req.Subject,
		req.LastPolledAt, req.ExpiresAt, payload)
	if err != nil {
		return fmt.Errorf("pg: insert transaction: %w", err)
	}
	return nil
}

func (t *Transactions) FindByAuthReqID(ctx context.Context, tenantID, authReqID string) (*types.BackchannelAuthenticationRequest, error) {
	const q = `
		SELECT status, subject, last_polled_at, payload
		FROM backchannel_transaction
		WHERE tenant_id = $1 AND auth_req_id = $2`
	var (
		status, subject string
		lastPolled      time.Time
		payload         []byte
	)
	if err := t.s.pool.QueryRow(ctx, q, tenantID, authReqID).Scan(&status, &subject, &lastPolled, &payload); err != nil {
		if noRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("pg: transaction query: %w", err)
	}
	tx, err := unmarshalTx(payload)
	if err != nil {
		return nil, err
	}
	tx.Status = types.CibaStatus(status)
	tx.Subject = subject
	tx.LastPolledAt = lastPolled
	return tx, nil
}

// UpdateStatus aplica la transición solo si el estado actual coincide con
// from; si otro proceso ganó la carrera devuelve ErrConflict.
func (t *Transactions) UpdateStatus(ctx context.Context, tenantID, authReqID string, from, to types.CibaStatus) error {
	const q = `
		UPDATE backchannel_transaction
		SET status = $4
		WHERE tenant_id = $1 AND auth_req_id = $2 AND status = $3`
	tag, err := t.s.pool.Exec(ctx, q, tenantID, authReqID, string(from), string(to))
	if err != nil {
		return fmt.Errorf("pg: transaction status update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if exists, err := t.exists(ctx, tenantID, authReqID); err == nil && !exists {
			return repository.ErrNotFound
		}
		return repository.ErrConflict
	}
	return nil
}

func (t *Transactions) SetSubject(ctx context.Context, tenantID, authReqID, subject string) error {
	const q = `
		UPDATE backchannel_transaction
		SET subject = $3
		WHERE tenant_id = $1 AND auth_req_id = $2`
	tag, err := t.s.pool.Exec(ctx, q, tenantID, authReqID, subject)
	if err != nil {
		return fmt.Errorf("pg: transaction subject update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (t *Transactions) TouchPolled(ctx context.Context, tenantID, authReqID string, at time.Time) error {
	const q = `
		UPDATE backchannel_transaction
		SET last_polled_at = $3
		WHERE tenant_id = $1 AND auth_req_id = $2`
	tag, err := t.s.pool.Exec(ctx, q, tenantID, authReqID, at)
	if err != nil {
		return fmt.Errorf("pg: transaction poll update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ConsumeAuthorized es la transición atómica authorized -> issued que
// garantiza una sola emisión por auth_req_id.
func (t *Transactions) ConsumeAuthorized(ctx context.Context, tenantID, authReqID string) (*types.BackchannelAuthenticationRequest, error) {
	const q = `
		UPDATE backchannel_transaction
		SET status = 'issued'
		WHERE tenant_id = $1 AND auth_req_id = $2 AND status = 'authorized'
		RETURNING subject, payload`
	var (
		subject string
		payload []byte
	)
	if err := t.s.pool.QueryRow(ctx, q, tenantID, authReqID).Scan(&subject, &payload); err != nil {
		if noRows(err) {
			return nil, repository.ErrConflict
		}
		return nil, fmt.Errorf("pg: transaction consume: %w", err)
	}
	tx, err := unmarshalTx(payload)
	if err != nil {
		return nil, err
	}
	tx.Status = types.CibaIssued
	tx.Subject = subject
	return tx, nil
}

func (t *Transactions) exists(ctx context.Context, tenantID, authReqID string) (bool, error) {
	const q = `SELECT 1 FROM backchannel_transaction WHERE tenant_id = $1 AND auth_req_id = $2`
	var one int
	if err := t.s.pool.QueryRow(ctx, q, tenantID, authReqID).Scan(&one); err != nil {
		if noRows(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func unmarshalTx(payload []byte) (*types.BackchannelAuthenticationRequest, error) {
	var tx types.BackchannelAuthenticationRequest
	if err := json.Unmarshal(payload, &tx); err != nil {
		return nil, fmt.Errorf("pg: unmarshal transaction: %w", err)
	}
	return &tx, nil
}
