package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/alexanderramin/wbs/internal/cache"
	"github.com/alexanderramin/wbs/internal/db"
	"github.com/alexanderramin/wbs/internal/domain"
	"github.com/alexanderramin/wbs/internal/feed"
	"github.com/alexanderramin/wbs/internal/permission"
	"github.com/alexanderramin/wbs/internal/repository"
	"github.com/alexanderramin/wbs/internal/testutil"
	"github.com/stretchr/testify/require"
)

type harness struct {
	db    *sql.DB
	items *repository.SQLiteWBSItemRepo
	cache *cache.ProjectCache
	hub   *feed.Hub
	wbs   WBSService
	links TaskLinkService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithUoW(t, nil)
}

// newHarnessWithUoW builds the services over a fresh database. A nil uow
// means the real SQLite unit of work.
func newHarnessWithUoW(t *testing.T, uowFor func(*sql.DB) db.UnitOfWork) *harness {
	t.Helper()
	database := testutil.NewTestDB(t)
	uow := testutil.NewTestUoW(database)
	if uowFor != nil {
		uow = uowFor(database)
	}
	h := &harness{
		db:    database,
		items: repository.NewSQLiteWBSItemRepo(database),
		cache: cache.New(nil),
		hub:   feed.NewHub(),
	}
	h.wbs = NewWBSService(h.items, uow, h.cache, h.hub, nil)
	h.links = NewTaskLinkService(uow, h.cache, h.hub, nil)
	return h
}

func (h *harness) seed(t *testing.T, items ...*domain.WBSItem) {
	t.Helper()
	for _, it := range items {
		require.NoError(t, h.items.Create(context.Background(), it))
	}
}

func (h *harness) subscribe(t *testing.T) feed.Subscription {
	t.Helper()
	sub, err := h.hub.Subscribe(context.Background(), feed.TableWBSItems, testutil.TestProjectID)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })
	return sub
}

// drain collects whatever is already buffered on sub.
func drain(sub feed.Subscription) []feed.Event {
	var out []feed.Event
	for {
		select {
		case ev := <-sub.Events():
			out = append(out, ev)
		case <-time.After(20 * time.Millisecond):
			return out
		}
	}
}

// editor can edit projects/wbs in the test company.
func editor() *permission.Set {
	return permission.NewSet(testutil.TestUserID, testutil.TestCompanyID, []domain.UserPermission{
		*testutil.NewTestPermission(testutil.TestUserID, domain.ModuleProjects, domain.AccessEdit,
			testutil.WithSubModule(domain.SubModuleWBS)),
	})
}

// viewer has no rows and therefore only the default can_view.
func viewer() *permission.Set {
	return permission.NewSet("viewer", testutil.TestCompanyID, nil)
}

func intPtr(n int) *int       { return &n }
func strPtr(s string) *string { return &s }

type failingPublisher struct{ calls int }

func (p *failingPublisher) Publish(context.Context, feed.Event) error {
	p.calls++
	return errors.New("feed unavailable")
}
