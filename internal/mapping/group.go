package mapping

import "github.com/google/uuid"

// Group is a named collection of mappings sharing an activation condition
// and tags. The zero uuid is the implicit default group.
type Group struct {
	ID         uuid.UUID
	Name       string
	Tags       []string
	Activation ActivationCondition

	active bool
}

// NewGroup builds a group that starts active.
func NewGroup(id uuid.UUID, name string) *Group {
	return &Group{ID: id, Name: name, active: true}
}

// IsActive returns the last evaluated activation state.
func (g *Group) IsActive() bool { return g.active }

// RefreshActivation re-evaluates the group condition and reports whether
// the state flipped.
func (g *Group) RefreshActivation(params []float64) bool {
	was := g.active
	g.active = g.Activation.IsActive(params)
	return g.active != was
}

// EffectiveTags merges group and mapping tags without duplicates, group
// tags first.
func (g *Group) EffectiveTags(mappingTags []string) []string {
	out := append([]string(nil), g.Tags...)
	seen := make(map[string]struct{}, len(out))
	for _, t := range out {
		seen[t] = struct{}{}
	}
	for _, t := range mappingTags {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}
