package features

import (
	"fmt"
	"strings"

	"github.com/manohar-125/ThalAI-App/internal/common"
	"github.com/manohar-125/ThalAI-App/internal/model"
)

// Target is a resolved binary label.
type Target struct {
	Label    int
	Resolved bool
}

// ResolveTarget maps "active"/"inactive" in any case, surrounding
// whitespace ignored, to 1/0. Anything else is unresolved.
func ResolveTarget(raw any) Target {
	s, ok := raw.(string)
	if !ok {
		return Target{}
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active":
		return Target{Label: 1, Resolved: true}
	case "inactive":
		return Target{Label: 0, Resolved: true}
	default:
		return Target{}
	}
}

// LabelColumn returns the first accepted label column in the header.
func LabelColumn(p *ColumnProfile) (string, error) {
	for _, col := range model.LabelColumns {
		if p.Has(col) {
			return col, nil
		}
	}
	return "", fmt.Errorf("%w (%s)", common.ErrMissingLabelColumn, strings.Join(model.LabelColumns, "/"))
}
