package importer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alexanderramin/wbs/internal/domain"
	"github.com/alexanderramin/wbs/internal/hierarchy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var convertNow = time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)

func TestConvert_BuildsNestedItems(t *testing.T) {
	schema := validFullSchema()
	require.Empty(t, ValidateImportSchema(schema))

	out, err := Convert(schema, "company-1", convertNow)
	require.NoError(t, err)
	require.Len(t, out.Items, 5)
	assert.Equal(t, 2, out.Predecessors)

	byTitle := make(map[string]*domain.WBSItem)
	for _, w := range out.Items {
		byTitle[w.Title] = w
		assert.Equal(t, "project-1", w.ProjectID)
		assert.Equal(t, "company-1", w.CompanyID)
		assert.Equal(t, convertNow, w.CreatedAt)
		assert.Equal(t, out.RefIDs[refOf(schema, w.Title)], w.ID)
	}

	phase1, design, build, api, phase2 := byTitle["Phase 1"], byTitle["Design"], byTitle["Build"], byTitle["API"], byTitle["Phase 2"]

	assert.Nil(t, phase1.ParentID)
	assert.Equal(t, 0, phase1.Level)
	assert.Equal(t, "1", phase1.WBSID)
	require.NotNil(t, build.ParentID)
	assert.Equal(t, phase1.ID, *build.ParentID)
	assert.Equal(t, 1, build.Level)
	assert.Equal(t, "1.2", build.WBSID)
	assert.Equal(t, 2, build.SortOrder)
	assert.Equal(t, 2, api.Level)
	assert.Equal(t, "1.2.1", api.WBSID)
	assert.Equal(t, "B", phase2.WBSID, "explicit codes are kept")

	// Defaults cascade unless the item overrides them.
	assert.Equal(t, "medium", design.Priority)
	assert.Equal(t, "high", build.Priority)
	assert.Equal(t, "not_started", api.Status)
	assert.Equal(t, 100, design.Progress)
	assert.False(t, api.IsExpanded)
	assert.JSONEq(t, "false", string(api.ExpandedRaw))
	assert.True(t, phase1.IsExpanded)

	require.Len(t, build.Predecessors, 1)
	assert.Equal(t, design.ID, build.Predecessors[0].PredecessorID)
	assert.Equal(t, domain.FinishToStart, build.Predecessors[0].RelationType)
	require.Len(t, phase2.Predecessors, 1)
	assert.Equal(t, domain.StartToStart, phase2.Predecessors[0].RelationType)
	assert.Equal(t, -3, phase2.Predecessors[0].LagDays)

	forest := hierarchy.Build(out.Items, nil)
	assert.Empty(t, forest.Anomalies)
	assert.Equal(t, 5, forest.Count())
}

func TestLoadImportSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outline.json")
	data, err := json.Marshal(validFullSchema())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	schema, err := LoadImportSchema(path)
	require.NoError(t, err)
	assert.Equal(t, "project-1", schema.ProjectID)
	assert.Len(t, schema.Items, 5)

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err = LoadImportSchema(path)
	assert.ErrorContains(t, err, "parsing import file")

	_, err = LoadImportSchema(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func refOf(s *ImportSchema, title string) string {
	for _, it := range s.Items {
		if it.Title == title {
			return it.Ref
		}
	}
	return ""
}
