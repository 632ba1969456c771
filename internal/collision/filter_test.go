package collision

import (
	"errors"
	"testing"

	"github.com/san-kum/broomsim/internal/dynamo"
)

func TestDefaultGroups(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name  string
		group Group
		mask  Group
	}{
		{NamePlane, GroupPlane, GroupA | GroupB},
		{NameA, GroupA, GroupPlane},
		{NameB, GroupB, GroupA | GroupPlane | GroupB},
	}

	for _, tt := range tests {
		f, err := r.Resolve(tt.name)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if f.Group != tt.group || f.Mask != tt.mask {
			t.Errorf("%s: expected {%d %d}, got {%d %d}", tt.name, tt.group, tt.mask, f.Group, f.Mask)
		}
	}
}

func TestResolveUnknown(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Resolve("groupZ"); !errors.Is(err, dynamo.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestCollides(t *testing.T) {
	r := NewRegistry()
	plane, _ := r.Resolve(NamePlane)
	a, _ := r.Resolve(NameA)
	b, _ := r.Resolve(NameB)
	block := Filter{Group: GroupB, Mask: GroupPlane | GroupB}

	tests := []struct {
		name string
		x, y Filter
		want bool
	}{
		{"plane-a", plane, a, true},
		{"plane-b", plane, b, true},
		{"plane-plane", plane, plane, false},
		{"a-b", a, b, false},
		{"b-b", b, b, true},
		{"broom block-b", block, b, true},
		{"broom block-a", block, a, false},
	}

	for _, tt := range tests {
		if got := tt.x.Collides(tt.y); got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
		if got := tt.y.Collides(tt.x); got != tt.want {
			t.Errorf("%s (swapped): expected %v, got %v", tt.name, tt.want, got)
		}
	}
}

func TestDefineAndFreeze(t *testing.T) {
	r := NewRegistry()

	if err := r.Define("debris", 1<<3, GroupPlane); err != nil {
		t.Fatalf("define failed: %v", err)
	}
	if err := r.Define("bad", 3, GroupPlane); !errors.Is(err, dynamo.ErrConfiguration) {
		t.Errorf("multi-bit group should fail, got %v", err)
	}
	if err := r.Define("dup", GroupA, 0); !errors.Is(err, dynamo.ErrConfiguration) {
		t.Errorf("reused bit should fail, got %v", err)
	}

	m, err := r.Mask(NamePlane, "debris")
	if err != nil || m != GroupPlane|1<<3 {
		t.Errorf("unexpected mask %d (%v)", m, err)
	}

	r.Freeze()
	if err := r.Define("late", 1<<4, 0); !errors.Is(err, dynamo.ErrConfiguration) {
		t.Errorf("define after freeze should fail, got %v", err)
	}
	if err := r.SetMask(NamePlane, 0); !errors.Is(err, dynamo.ErrConfiguration) {
		t.Errorf("set mask after freeze should fail, got %v", err)
	}
}
