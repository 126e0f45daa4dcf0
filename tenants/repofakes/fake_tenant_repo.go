package tenantrepofakes

import (
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-tenant-session/tenants"
)

var _ tenants.Repo = (*FakeTenantRepo)(nil)

type FakeTenantRepo struct {
	tenants map[string]*tenants.Tenant
	slugs   map[string]string // slug to tenant ID
	lock    sync.RWMutex
}

func NewFakeTenantRepo() tenants.Repo {
	return &FakeTenantRepo{
		tenants: make(map[string]*tenants.Tenant),
		slugs:   make(map[string]string),
	}
}

func (tr *FakeTenantRepo) Upsert(tenantData *tenants.Tenant) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()
	if tenantData.ID == "" {
		tenantData.ID = uuid.New().String()
	}
	if previous, ok := tr.tenants[tenantData.ID]; ok {
		delete(tr.slugs, previous.Slug)
	}
	tr.tenants[tenantData.ID] = tenantData
	tr.slugs[tenantData.Slug] = tenantData.ID
	return nil
}

func (tr *FakeTenantRepo) Delete(tenantID string) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()
	if t, ok := tr.tenants[tenantID]; ok {
		delete(tr.slugs, t.Slug)
		delete(tr.tenants, tenantID)
	}
	return nil
}

func (tr *FakeTenantRepo) Get(tenantID string) (*tenants.Tenant, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()
	tenant, ok := tr.tenants[tenantID]
	if !ok {
		return nil, errors.New("not found")
	}
	return tenant, nil
}

func (tr *FakeTenantRepo) GetBySlug(slug string) (*tenants.Tenant, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()
	tenantID, ok := tr.slugs[slug]
	if !ok {
		return nil, errors.New("not found")
	}
	return tr.tenants[tenantID], nil
}

func (tr *FakeTenantRepo) List(offset, limit int) ([]*tenants.Tenant, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	list := make([]*tenants.Tenant, 0, len(tr.tenants))
	for _, t := range tr.tenants {
		list = append(list, t)
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].Slug < list[j].Slug
	})

	if offset >= len(list) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(list) {
		end = len(list)
	}
	return list[offset:end], nil
}
