package memory

import (
	"context"
	"sync"

	"github.com/talentbridge/messaging/internal/model"
	"github.com/talentbridge/messaging/internal/store"
)

// Directory holds profiles and applications.
type Directory struct {
	mu           sync.RWMutex
	profiles     map[string]model.Profile
	applications map[string]model.Application
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		profiles:     make(map[string]model.Profile),
		applications: make(map[string]model.Application),
	}
}

// PutProfile inserts or replaces a profile.
func (d *Directory) PutProfile(p model.Profile) {
	d.mu.Lock()
	d.profiles[p.ID] = p
	d.mu.Unlock()
}

// PutApplication inserts or replaces an application.
func (d *Directory) PutApplication(a model.Application) {
	d.mu.Lock()
	d.applications[a.ID] = a
	d.mu.Unlock()
}

// GetProfile implements store.ProfileStore.
func (d *Directory) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.profiles[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

// GetProfiles implements store.ProfileStore. Unknown ids are omitted.
func (d *Directory) GetProfiles(ctx context.Context, userIDs []string) (map[string]model.Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]model.Profile, len(userIDs))
	for _, id := range userIDs {
		if p, ok := d.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

// GetApplication implements store.ApplicationStore.
func (d *Directory) GetApplication(ctx context.Context, id string) (*model.Application, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.applications[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}
