package importer

import (
	"encoding/json"
	"fmt"
	"os"
)

// ImportSchema is the top-level JSON structure for a WBS outline import.
type ImportSchema struct {
	ProjectID    string              `json:"project_id"`
	Defaults     *DefaultsImport     `json:"defaults,omitempty"`
	Items        []ItemImport        `json:"items"`
	Predecessors []PredecessorImport `json:"predecessors,omitempty"`
}

// DefaultsImport defines outline-wide defaults that cascade to items.
type DefaultsImport struct {
	Category       string `json:"category,omitempty"`
	Priority       string `json:"priority,omitempty"`
	Status         string `json:"status,omitempty"`
	Health         string `json:"health,omitempty"`
	ProgressStatus string `json:"progress_status,omitempty"`
	Expanded       *bool  `json:"expanded,omitempty"`
}

// ItemImport defines one WBS item. Items refer to each other by ref; a
// parent must appear before its children.
type ItemImport struct {
	Ref            string   `json:"ref"`
	ParentRef      *string  `json:"parent_ref,omitempty"`
	WBSID          string   `json:"wbs_id,omitempty"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	Category       string   `json:"category,omitempty"`
	Priority       string   `json:"priority,omitempty"`
	Status         string   `json:"status,omitempty"`
	Health         string   `json:"health,omitempty"`
	ProgressStatus string   `json:"progress_status,omitempty"`
	Order          *int     `json:"order,omitempty"`
	AtRisk         bool     `json:"at_risk,omitempty"`
	StartDate      *string  `json:"start_date,omitempty"`
	EndDate        *string  `json:"end_date,omitempty"`
	Duration       *int     `json:"duration,omitempty"`
	Progress       *int     `json:"progress,omitempty"`
	BudgetedCost   *float64 `json:"budgeted_cost,omitempty"`
	ActualCost     *float64 `json:"actual_cost,omitempty"`
	Expanded       *bool    `json:"expanded,omitempty"`
}

// PredecessorImport makes PredecessorRef a predecessor of SuccessorRef.
type PredecessorImport struct {
	PredecessorRef string `json:"predecessor_ref"`
	SuccessorRef   string `json:"successor_ref"`
	Type           string `json:"type,omitempty"`
	LagDays        int    `json:"lag_days,omitempty"`
}

// LoadImportSchema reads and parses a WBS import JSON file.
func LoadImportSchema(path string) (*ImportSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var schema ImportSchema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("parsing import file: %w", err)
	}
	return &schema, nil
}
