// Package collision holds the named collision groups of the scene and the
// masks that decide which groups interact.
package collision

import (
	"fmt"
	"math/bits"
	"sort"

	"github.com/san-kum/broomsim/internal/dynamo"
)

// Group is a single-bit collision category.
type Group uint32

const (
	GroupPlane Group = 1 << iota
	GroupA
	GroupB
)

// Names of the built-in groups.
const (
	NamePlane = "plane"
	NameA     = "groupA"
	NameB     = "groupB"
)

// Filter is the group a body belongs to plus the groups it collides with.
type Filter struct {
	Group Group `yaml:"group" json:"group"`
	Mask  Group `yaml:"mask" json:"mask"`
}

// Collides reports whether two filters agree on a collision. Both sides must
// accept the other's group.
func (f Filter) Collides(other Filter) bool {
	return f.Group&other.Mask != 0 && other.Group&f.Mask != 0
}

// Registry maps group names to filters. It is populated at startup and
// frozen before the first body is built.
type Registry struct {
	filters map[string]Filter
	frozen  bool
}

// NewRegistry returns a registry with the scene's three groups: the plane
// collides with A and B, A only with the plane, B with everything.
func NewRegistry() *Registry {
	return &Registry{
		filters: map[string]Filter{
			NamePlane: {Group: GroupPlane, Mask: GroupA | GroupB},
			NameA:     {Group: GroupA, Mask: GroupPlane},
			NameB:     {Group: GroupB, Mask: GroupA | GroupPlane | GroupB},
		},
	}
}

// Define adds or replaces a named group. group must be exactly one bit.
func (r *Registry) Define(name string, group, mask Group) error {
	if r.frozen {
		return fmt.Errorf("define group %q after freeze: %w", name, dynamo.ErrConfiguration)
	}
	if name == "" {
		return fmt.Errorf("empty group name: %w", dynamo.ErrConfiguration)
	}
	if bits.OnesCount32(uint32(group)) != 1 {
		return fmt.Errorf("group %q must be a single bit, got %#x: %w", name, uint32(group), dynamo.ErrConfiguration)
	}
	for other, f := range r.filters {
		if other != name && f.Group == group {
			return fmt.Errorf("group %q reuses bit of %q: %w", name, other, dynamo.ErrConfiguration)
		}
	}
	r.filters[name] = Filter{Group: group, Mask: mask}
	return nil
}

// SetMask overrides the collides-with mask of an existing group.
func (r *Registry) SetMask(name string, mask Group) error {
	f, err := r.Resolve(name)
	if err != nil {
		return err
	}
	if r.frozen {
		return fmt.Errorf("set mask of %q after freeze: %w", name, dynamo.ErrConfiguration)
	}
	f.Mask = mask
	r.filters[name] = f
	return nil
}

// Freeze makes the registry read-only.
func (r *Registry) Freeze() { r.frozen = true }

// Resolve returns the filter of a named group.
func (r *Registry) Resolve(name string) (Filter, error) {
	f, ok := r.filters[name]
	if !ok {
		return Filter{}, fmt.Errorf("unknown collision group %q: %w", name, dynamo.ErrConfiguration)
	}
	return f, nil
}

// Mask ORs the group bits of the named groups.
func (r *Registry) Mask(names ...string) (Group, error) {
	var m Group
	for _, n := range names {
		f, err := r.Resolve(n)
		if err != nil {
			return 0, err
		}
		m |= f.Group
	}
	return m, nil
}

// Names returns the registered group names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.filters))
	for n := range r.filters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
