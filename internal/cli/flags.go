package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alexanderramin/wbs/internal/domain"
	"github.com/alexanderramin/wbs/internal/service"
	"github.com/spf13/pflag"
)

// patchFlag collects repeated --set key=value pairs into a domain.Patch.
// Values are decoded as JSON when they parse (numbers, booleans, null,
// lists, objects) and taken as plain strings otherwise.
type patchFlag struct {
	patch domain.Patch
}

var _ pflag.Value = (*patchFlag)(nil)

func newPatchFlag() *patchFlag {
	return &patchFlag{patch: domain.Patch{}}
}

func (p *patchFlag) Set(s string) error {
	key, raw, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return fmt.Errorf("expected key=value, got %q", s)
	}
	p.patch[key] = decodePatchValue(raw)
	return nil
}

func (p *patchFlag) String() string {
	keys := make([]string, 0, len(p.patch))
	for k := range p.patch {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}

func (p *patchFlag) Type() string { return "key=value" }

func decodePatchValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}

// parsePredecessor reads ID[:TYPE[:LAG]], e.g. "a1b2:ss:-2".
func parsePredecessor(s string) (service.PredecessorInput, error) {
	parts := strings.Split(s, ":")
	if len(parts) > 3 || strings.TrimSpace(parts[0]) == "" {
		return service.PredecessorInput{}, domain.NewValidationError("predecessor %q: want ID[:TYPE[:LAG]]", s)
	}
	in := service.PredecessorInput{PredecessorID: strings.TrimSpace(parts[0])}
	if len(parts) > 1 {
		in.RelationType = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		lag, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil {
			return service.PredecessorInput{}, domain.NewValidationError("predecessor %q: lag must be an integer", s)
		}
		in.LagDays = lag
	}
	return in, nil
}

// parseDate reads an optional YYYY-MM-DD flag value.
func parseDate(flag, s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := time.Parse(domain.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return nil, domain.NewValidationError("--%s must be YYYY-MM-DD, got %q", flag, s)
	}
	return &t, nil
}
