package pg

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gatehouse-id/gatehouse/internal/domain/repository"
	"github.com/gatehouse-id/gatehouse/internal/domain/types"
)

// Los repositorios de configuración e identidad son read-only para el
// engine; su administración vive fuera de este servicio.

// Tenants implementa repository.TenantRepository.
type Tenants struct{ s *Store }

func (s *Store) Tenants() *Tenants { return &Tenants{s: s} }

func (t *Tenants) FindBySlug(ctx context.Context, slug string) (*types.Tenant, error) {
	const q = `SELECT id, slug, name, active FROM tenant WHERE slug = $1`
	var out types.Tenant
	if err := t.s.pool.QueryRow(ctx, q, slug).Scan(&out.ID, &out.Slug, &out.Name, &out.Active); err != nil {
		if noRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("pg: tenant query: %w", err)
	}
	return &out, nil
}

// Configs implementa repository.ServerConfigurationRepository.
type Configs struct{ s *Store }

func (s *Store) Configs() *Configs { return &Configs{s: s} }

func (c *Configs) FindByTenant(ctx context.Context, tenantID string) (*types.ServerConfiguration, error) {
	const q = `SELECT payload FROM server_configuration WHERE tenant_id = $1`
	var payload []byte
	if err := c.s.pool.QueryRow(ctx, q, tenantID).Scan(&payload); err != nil {
		if noRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("pg: server configuration query: %w", err)
	}
	var cfg types.ServerConfiguration
	if err := json.Unmarshal(payload, &cfg); err != nil {
		return nil, fmt.Errorf("pg: unmarshal server configuration: %w", err)
	}
	return &cfg, nil
}

// Clients implementa repository.ClientRepository.
type Clients struct{ s *Store }

func (s *Store) Clients() *Clients { return &Clients{s: s} }

func (c *Clients) FindByID(ctx context.Context, tenantID, clientID string) (*types.ClientConfiguration, error) {
	const q = `SELECT payload FROM client WHERE tenant_id = $1 AND client_id = $2`
	var payload []byte
	if err := c.s.pool.QueryRow(ctx, q, tenantID, clientID).Scan(&payload); err != nil {
		if noRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("pg: client query: %w", err)
	}
	var client types.ClientConfiguration
	if err := json.Unmarshal(payload, &client); err != nil {
		return nil, fmt.Errorf("pg: unmarshal client: %w", err)
	}
	return &client, nil
}

// Users implementa repository.UserRepository.
type Users struct{ s *Store }

func (s *Store) Users() *Users { return &Users{s: s} }

func (u *Users) FindByID(ctx context.Context, tenantID, userID string) (*types.User, error) {
	const q = `SELECT payload FROM app_user WHERE tenant_id = $1 AND id = $2`
	return u.scan(u.s.pool.QueryRow(ctx, q, tenantID, userID))
}

func (u *Users) FindByUsername(ctx context.Context, tenantID, username string) (*types.User, error) {
	const q = `SELECT payload FROM app_user WHERE tenant_id = $1 AND username = $2`
	return u.scan(u.s.pool.QueryRow(ctx, q, tenantID, username))
}

func (u *Users) scan(row interface{ Scan(...any) error }) (*types.User, error) {
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if noRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("pg: user query: %w", err)
	}
	var user types.User
	if err := json.Unmarshal(payload, &user); err != nil {
		return nil, fmt.Errorf("pg: unmarshal user: %w", err)
	}
	return &user, nil
}
