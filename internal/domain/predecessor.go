package domain

import "strings"

type RelationType string

const (
	FinishToStart  RelationType = "finish_to_start"
	StartToStart   RelationType = "start_to_start"
	FinishToFinish RelationType = "finish_to_finish"
	StartToFinish  RelationType = "start_to_finish"
)

// ValidRelationTypes is the canonical set of accepted relation type strings.
var ValidRelationTypes = map[RelationType]bool{
	FinishToStart:  true,
	StartToStart:   true,
	FinishToFinish: true,
	StartToFinish:  true,
}

var relationAliases = map[string]RelationType{
	"fs": FinishToStart,
	"ss": StartToStart,
	"ff": FinishToFinish,
	"sf": StartToFinish,
}

// ParseRelationType accepts the canonical names and the two-letter
// scheduling shorthands (fs, ss, ff, sf). An empty string means finish_to_start.
func ParseRelationType(s string) (RelationType, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	if norm == "" {
		return FinishToStart, nil
	}
	if rt, ok := relationAliases[norm]; ok {
		return rt, nil
	}
	rt := RelationType(norm)
	if !ValidRelationTypes[rt] {
		return "", NewValidationError("unknown relation type %q", s)
	}
	return rt, nil
}

// Predecessor is a dependency on another item in the same project.
// LagDays may be negative (lead time).
type Predecessor struct {
	PredecessorID string       `json:"predecessor_id"`
	RelationType  RelationType `json:"relation_type"`
	LagDays       int          `json:"lag_days"`
}
