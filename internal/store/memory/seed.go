package memory

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gatehouse-id/gatehouse/internal/domain/types"
)

// SeedFile es el formato JSON del archivo de seed del driver memory.
// Usa los mismos shapes que persiste el driver postgres como payload.
type SeedFile struct {
	Tenants []seedTenant `json:"tenants"`
}

type seedTenant struct {
	Tenant  types.Tenant                `json:"tenant"`
	Config  types.ServerConfiguration   `json:"config"`
	Clients []types.ClientConfiguration `json:"clients"`
	Users   []types.User                `json:"users"`
}

// LoadSeed carga tenants, configuraciones, clients y users desde un
// archivo JSON. Pensado para desarrollo; producción usa postgres.
func (s *Store) LoadSeed(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("memory: read seed: %w", err)
	}
	var seed SeedFile
	if err := json.Unmarshal(b, &seed); err != nil {
		return fmt.Errorf("memory: parse seed: %w", err)
	}

	for i := range seed.Tenants {
		st := &seed.Tenants[i]
		if st.Tenant.ID == "" || st.Tenant.Slug == "" {
			return fmt.Errorf("memory: seed tenant %d needs id and slug", i)
		}
		tenant := st.Tenant
		s.PutTenant(&tenant)

		cfg := st.Config
		s.PutServerConfiguration(tenant.ID, &cfg)

		for j := range st.Clients {
			c := st.Clients[j]
			c.TenantID = tenant.ID
			s.PutClient(&c)
		}
		for j := range st.Users {
			u := st.Users[j]
			u.TenantID = tenant.ID
			s.PutUser(&u)
		}
	}
	return nil
}
