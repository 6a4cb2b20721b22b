package importer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptrStr(s string) *string     { return &s }
func ptrInt(i int) *int           { return &i }
func ptrFloat(f float64) *float64 { return &f }
func ptrBool(b bool) *bool        { return &b }

func validMinimalSchema() *ImportSchema {
	return &ImportSchema{
		ProjectID: "project-1",
		Items: []ItemImport{
			{Ref: "p1", Title: "Phase 1"},
		},
	}
}

func validFullSchema() *ImportSchema {
	return &ImportSchema{
		ProjectID: "project-1",
		Defaults: &DefaultsImport{
			Status:   "not_started",
			Priority: "medium",
			Expanded: ptrBool(true),
		},
		Items: []ItemImport{
			{Ref: "p1", Title: "Phase 1", StartDate: ptrStr("2026-01-05"), EndDate: ptrStr("2026-02-27")},
			{Ref: "p1.design", ParentRef: ptrStr("p1"), Title: "Design", Progress: ptrInt(100), BudgetedCost: ptrFloat(5000)},
			{Ref: "p1.build", ParentRef: ptrStr("p1"), Title: "Build", Priority: "high", Duration: ptrInt(20)},
			{Ref: "p1.build.api", ParentRef: ptrStr("p1.build"), Title: "API", Expanded: ptrBool(false)},
			{Ref: "p2", Title: "Phase 2", WBSID: "B"},
		},
		Predecessors: []PredecessorImport{
			{PredecessorRef: "p1.design", SuccessorRef: "p1.build"},
			{PredecessorRef: "p1.build", SuccessorRef: "p2", Type: "ss", LagDays: -3},
		},
	}
}

func TestValidateImportSchema_ValidMinimal(t *testing.T) {
	errs := ValidateImportSchema(validMinimalSchema())
	assert.Empty(t, errs)
}

func TestValidateImportSchema_ValidFull(t *testing.T) {
	errs := ValidateImportSchema(validFullSchema())
	assert.Empty(t, errs)
}

func TestValidateImportSchema_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *ImportSchema)
		wantMsg string
	}{
		{"missing project_id", func(s *ImportSchema) { s.ProjectID = " " }, "project_id is required"},
		{"no items", func(s *ImportSchema) { s.Items = nil }, "at least one item"},
		{"missing ref", func(s *ImportSchema) { s.Items[1].Ref = "" }, "items[1].ref is required"},
		{"duplicate ref", func(s *ImportSchema) { s.Items[2].Ref = "p1.design" }, "duplicate ref"},
		{"missing title", func(s *ImportSchema) { s.Items[0].Title = "  " }, "items[0].title is required"},
		{"parent after child", func(s *ImportSchema) { s.Items[1].ParentRef = ptrStr("p2") }, "must appear earlier"},
		{"self parent", func(s *ImportSchema) { s.Items[0].ParentRef = ptrStr("p1") }, "its own parent"},
		{"progress range", func(s *ImportSchema) { s.Items[1].Progress = ptrInt(101) }, "between 0 and 100"},
		{"negative duration", func(s *ImportSchema) { s.Items[2].Duration = ptrInt(-1) }, "must not be negative"},
		{"bad date", func(s *ImportSchema) { s.Items[0].StartDate = ptrStr("05/01/2026") }, "invalid date format"},
		{"end before start", func(s *ImportSchema) { s.Items[0].EndDate = ptrStr("2026-01-01") }, "is before start_date"},
		{"unknown predecessor", func(s *ImportSchema) { s.Predecessors[0].PredecessorRef = "ghost" }, "not found in items"},
		{"self dependency", func(s *ImportSchema) { s.Predecessors[0].SuccessorRef = "p1.design" }, "self-dependency"},
		{"bad relation type", func(s *ImportSchema) { s.Predecessors[1].Type = "xx" }, "predecessors[1].type"},
		{"duplicate link", func(s *ImportSchema) {
			s.Predecessors = append(s.Predecessors, PredecessorImport{PredecessorRef: "p1.design", SuccessorRef: "p1.build"})
		}, "duplicate link"},
		{"cycle", func(s *ImportSchema) {
			s.Predecessors = append(s.Predecessors, PredecessorImport{PredecessorRef: "p2", SuccessorRef: "p1.design"})
		}, "circular dependency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validFullSchema()
			tt.mutate(s)
			errs := ValidateImportSchema(s)
			if assert.NotEmpty(t, errs) {
				assert.True(t, containsMsg(errs, tt.wantMsg), "want %q in %v", tt.wantMsg, errs)
			}
		})
	}
}

func TestValidateImportSchema_CollectsAllErrors(t *testing.T) {
	s := validFullSchema()
	s.ProjectID = ""
	s.Items[0].Title = ""
	s.Predecessors[0].SuccessorRef = "ghost"
	assert.Len(t, ValidateImportSchema(s), 3)
}

func containsMsg(errs []error, msg string) bool {
	for _, e := range errs {
		if strings.Contains(e.Error(), msg) {
			return true
		}
	}
	return false
}
