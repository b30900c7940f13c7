// Package memory provee repositorios en memoria para desarrollo y tests.
// Las operaciones de consumo son atómicas bajo el mutex del store: de N
// redenciones concurrentes del mismo code/auth_req_id exactamente una
// tiene éxito.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/gatehouse-id/gatehouse/internal/domain/repository"
	"github.com/gatehouse-id/gatehouse/internal/domain/types"
)

func key(tenantID, id string) string { return tenantID + "/" + id }

// Store agrupa todos los repositorios en memoria.
type Store struct {
	mu sync.Mutex

	tenants  map[string]*types.Tenant
	configs  map[string]*types.ServerConfiguration
	clients  map[string]*types.ClientConfiguration
	users    map[string]*types.User
	byName   map[string]string // tenant/username -> userID
	requests map[string]*types.AuthorizationRequest
	codes    map[string]*types.AuthorizationCodeGrant
	tokens   map[string]*types.OAuthToken
	byAccess map[string]string // tenant/accessToken -> tokenID
	byFresh  map[string]string // tenant/refreshToken -> tokenID
	txs      map[string]*types.BackchannelAuthenticationRequest
}

func New() *Store {
	return &Store{
		tenants:  make(map[string]*types.Tenant),
		configs:  make(map[string]*types.ServerConfiguration),
		clients:  make(map[string]*types.ClientConfiguration),
		users:    make(map[string]*types.User),
		byName:   make(map[string]string),
		requests: make(map[string]*types.AuthorizationRequest),
		codes:    make(map[string]*types.AuthorizationCodeGrant),
		tokens:   make(map[string]*types.OAuthToken),
		byAccess: make(map[string]string),
		byFresh:  make(map[string]string),
		txs:      make(map[string]*types.BackchannelAuthenticationRequest),
	}
}

// Seed helpers para bootstrap y tests.

func (s *Store) PutTenant(t *types.Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[t.Slug] = t
}

func (s *Store) PutServerConfiguration(tenantID string, cfg *types.ServerConfiguration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[tenantID] = cfg
}

func (s *Store) PutClient(c *types.ClientConfiguration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[key(c.TenantID, c.ClientID)] = c
}

func (s *Store) PutUser(u *types.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[key(u.TenantID, u.ID)] = u
	if u.Username != "" {
		s.byName[key(u.TenantID, u.Username)] = u.ID
	}
}

// TenantRepository

func (s *Store) FindBySlug(ctx context.Context, slug string) (*types.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[slug]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return t, nil
}

// ServerConfigurationRepository

func (s *Store) FindByTenant(ctx context.Context, tenantID string) (*types.ServerConfiguration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[tenantID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cfg, nil
}

// ClientRepository

func (s *Store) FindByID(ctx context.Context, tenantID, clientID string) (*types.ClientConfiguration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[key(tenantID, clientID)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return c, nil
}

// UserRepository lives in a wrapper type because FindByID collides with the
// client repository signature.

type Users struct{ s *Store }

func (s *Store) Users() *Users { return &Users{s: s} }

func (u *Users) FindByID(ctx context.Context, tenantID, userID string) (*types.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	usr, ok := u.s.users[key(tenantID, userID)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return usr, nil
}

func (u *Users) FindByUsername(ctx context.Context, tenantID, username string) (*types.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	id, ok := u.s.byName[key(tenantID, username)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	usr, ok := u.s.users[key(tenantID, id)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return usr, nil
}

// AuthorizationRequestRepository

type Requests struct{ s *Store }

func (s *Store) Requests() *Requests { return &Requests{s: s} }

func (r *Requests) Save(ctx context.Context, req *types.AuthorizationRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := key(req.TenantID, req.ID)
	if _, exists := r.s.requests[k]; exists {
		return repository.ErrConflict
	}
	r.s.requests[k] = req
	return nil
}

func (r *Requests) FindByID(ctx context.Context, tenantID, id string) (*types.AuthorizationRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req, ok := r.s.requests[key(tenantID, id)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return req, nil
}

func (r *Requests) Consume(ctx context.Context, tenantID, id string) (*types.AuthorizationRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := key(tenantID, id)
	req, ok := r.s.requests[k]
	if !ok {
		return nil, repository.ErrConsumed
	}
	delete(r.s.requests, k)
	return req, nil
}

// CodeGrantRepository

type Codes struct{ s *Store }

func (s *Store) Codes() *Codes { return &Codes{s: s} }

func (c *Codes) Save(ctx context.Context, grant *types.AuthorizationCodeGrant) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	k := key(grant.TenantID, grant.Code)
	if _, exists := c.s.codes[k]; exists {
		return repository.ErrConflict
	}
	c.s.codes[k] = grant
	return nil
}

func (c *Codes) Consume(ctx context.Context, tenantID, code string) (*types.AuthorizationCodeGrant, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	k := key(tenantID, code)
	grant, ok := c.s.codes[k]
	if !ok {
		return nil, repository.ErrConsumed
	}
	delete(c.s.codes, k)
	return grant, nil
}

// TokenRepository

type Tokens struct{ s *Store }

func (s *Store) Tokens() *Tokens { return &Tokens{s: s} }

func (t *Tokens) Save(ctx context.Context, token *types.OAuthToken) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	k := key(token.TenantID, token.ID)
	if _, exists := t.s.tokens[k]; exists {
		return repository.ErrConflict
	}
	t.s.tokens[k] = token
	t.s.byAccess[key(token.TenantID, token.AccessToken)] = token.ID
	if token.RefreshToken != "" {
		t.s.byFresh[key(token.TenantID, token.RefreshToken)] = token.ID
	}
	return nil
}

func (t *Tokens) FindByAccessToken(ctx context.Context, tenantID, accessToken string) (*types.OAuthToken, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	id, ok := t.s.byAccess[key(tenantID, accessToken)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	token, ok := t.s.tokens[key(tenantID, id)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return token, nil
}

func (t *Tokens) ConsumeRefreshToken(ctx context.Context, tenantID, refreshToken string) (*types.OAuthToken, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	rk := key(tenantID, refreshToken)
	id, ok := t.s.byFresh[rk]
	if !ok {
		return nil, repository.ErrConsumed
	}
	delete(t.s.byFresh, rk)
	token, ok := t.s.tokens[key(tenantID, id)]
	if !ok {
		return nil, repository.ErrConsumed
	}
	// La rotación revoca el par completo.
	delete(t.s.tokens, key(tenantID, id))
	delete(t.s.byAccess, key(tenantID, token.AccessToken))
	return token, nil
}

func (t *Tokens) DeleteByID(ctx context.Context, tenantID, id string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	k := key(tenantID, id)
	token, ok := t.s.tokens[k]
	if !ok {
		return repository.ErrNotFound
	}
	delete(t.s.tokens, k)
	delete(t.s.byAccess, key(tenantID, token.AccessToken))
	if token.RefreshToken != "" {
		delete(t.s.byFresh, key(tenantID, token.RefreshToken))
	}
	return nil
}

// BackchannelAuthRepository

type Transactions struct{ s *Store }

func (s *Store) Transactions() *Transactions { return &Transactions{s: s} }

func (t *Transactions) Save(ctx context.Context, req *types.BackchannelAuthenticationRequest) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	k := key(req.TenantID, req.AuthReqID)
	if _, exists := t.s.txs[k]; exists {
		return repository.ErrConflict
	}
	cp := *req
	t.s.txs[k] = &cp
	return nil
}

func (t *Transactions) FindByAuthReqID(ctx context.Context, tenantID, authReqID string) (*types.BackchannelAuthenticationRequest, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	tx, ok := t.s.txs[key(tenantID, authReqID)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *tx
	return &cp, nil
}

func (t *Transactions) UpdateStatus(ctx context.Context, tenantID, authReqID string, from, to types.CibaStatus) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	tx, ok := t.s.txs[key(tenantID, authReqID)]
	if !ok {
		return repository.ErrNotFound
	}
	if tx.Status != from {
		return repository.ErrConflict
	}
	tx.Status = to
	return nil
}

func (t *Transactions) SetSubject(ctx context.Context, tenantID, authReqID, subject string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	tx, ok := t.s.txs[key(tenantID, authReqID)]
	if !ok {
		return repository.ErrNotFound
	}
	tx.Subject = subject
	return nil
}

func (t *Transactions) TouchPolled(ctx context.Context, tenantID, authReqID string, at time.Time) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	tx, ok := t.s.txs[key(tenantID, authReqID)]
	if !ok {
		return repository.ErrNotFound
	}
	tx.LastPolledAt = at
	return nil
}

func (t *Transactions) ConsumeAuthorized(ctx context.Context, tenantID, authReqID string) (*types.BackchannelAuthenticationRequest, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	tx, ok := t.s.txs[key(tenantID, authReqID)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if tx.Status != types.CibaAuthorized {
		return nil, repository.ErrConflict
	}
	tx.Status = types.CibaIssued
	cp := *tx
	return &cp, nil
}
