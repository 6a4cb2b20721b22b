// Package cache keeps per-project copies of WBS items that are patched by
// local mutations and remote change events. Conflicts resolve by arrival
// order: the last write applied wins, there are no versions.
package cache

import (
	"slices"
	"sync"

	"github.com/alexanderramin/wbs/internal/domain"
	"github.com/alexanderramin/wbs/internal/feed"
	"github.com/alexanderramin/wbs/internal/hierarchy"
	"go.uber.org/zap"
)

// ProjectCache is safe for concurrent use. A project is either fully
// loaded or absent; callers reload from the store when Items reports a miss.
type ProjectCache struct {
	mu       sync.RWMutex
	projects map[string]map[string]*domain.WBSItem
	log      *zap.Logger
}

func New(log *zap.Logger) *ProjectCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProjectCache{
		projects: make(map[string]map[string]*domain.WBSItem),
		log:      log.Named("cache"),
	}
}

// Load replaces a project's contents with authoritative items.
func (c *ProjectCache) Load(projectID string, items []*domain.WBSItem) {
	m := make(map[string]*domain.WBSItem, len(items))
	for _, it := range items {
		if it != nil {
			m[it.ID] = it.Clone()
		}
	}
	c.mu.Lock()
	c.projects[projectID] = m
	c.mu.Unlock()
}

// Items returns copies of a project's items in storage order (sort_order,
// created_at, id), or ok=false on a miss.
func (c *ProjectCache) Items(projectID string) (items []*domain.WBSItem, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.projects[projectID]
	if !ok {
		return nil, false
	}
	items = make([]*domain.WBSItem, 0, len(m))
	for _, it := range m {
		items = append(items, it.Clone())
	}
	slices.SortFunc(items, hierarchy.CompareItems)
	return items, true
}

// Tree builds the forest from cached items.
func (c *ProjectCache) Tree(projectID string) (*hierarchy.Forest, bool) {
	items, ok := c.Items(projectID)
	if !ok {
		return nil, false
	}
	return hierarchy.Build(items, c.log), true
}

// Get returns a copy of one cached item.
func (c *ProjectCache) Get(projectID, id string) (*domain.WBSItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	it, ok := c.projects[projectID][id]
	if !ok {
		return nil, false
	}
	return it.Clone(), true
}

// ApplyLocal records an optimistic insert or update made by this process.
// Projects that are not cached are left alone.
func (c *ProjectCache) ApplyLocal(w *domain.WBSItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.projects[w.ProjectID]; ok {
		m[w.ID] = w.Clone()
	}
}

// RemoveLocal drops ids from a cached project.
func (c *ProjectCache) RemoveLocal(projectID string, ids ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.projects[projectID]
	if !ok {
		return
	}
	for _, id := range ids {
		delete(m, id)
	}
}

// Apply patches the cache with a remote event. Duplicates are harmless:
// an insert or update overwrites, a delete of a missing id is a no-op.
func (c *ProjectCache) Apply(ev feed.Event) {
	if ev.Table != feed.TableWBSItems {
		return
	}
	switch ev.Type {
	case feed.EventInsert, feed.EventUpdate:
		if ev.Record == nil {
			// Nothing to patch with; force a reload.
			c.Invalidate(ev.ProjectID)
			return
		}
		c.ApplyLocal(ev.Record)
	case feed.EventDelete:
		c.RemoveLocal(ev.ProjectID, ev.ID)
	default:
		c.log.Warn("ignoring unknown event type", zap.String("type", string(ev.Type)))
	}
}

// Invalidate forgets a project so the next read reloads it.
func (c *ProjectCache) Invalidate(projectID string) {
	c.mu.Lock()
	delete(c.projects, projectID)
	c.mu.Unlock()
	c.log.Debug("project invalidated", zap.String("project_id", projectID))
}

// Cached reports whether a project is loaded.
func (c *ProjectCache) Cached(projectID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.projects[projectID]
	return ok
}
