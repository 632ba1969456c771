package render

import (
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestSceneAddRemove(t *testing.T) {
	s := NewScene()
	a := &Proxy{Body: 1, Visible: true}
	b := &Proxy{Body: 2, Visible: true}
	hidden := &Proxy{Body: 3}

	s.Add(a)
	s.Add(a)
	s.Add(b)
	s.Add(hidden)
	if s.Len() != 3 {
		t.Fatalf("expected 3 proxies, got %d", s.Len())
	}

	if !s.Remove(a) {
		t.Error("expected a to be removed")
	}
	if s.Remove(a) {
		t.Error("expected second remove to report false")
	}

	snap := s.Snapshot()
	if len(snap) != 1 || snap[0].Body != 2 {
		t.Errorf("expected only the visible proxy b, got %+v", snap)
	}

	b.Pose.Position = mgl64.Vec3{1, 2, 3}
	if snap[0].Pose.Position == b.Pose.Position {
		t.Error("snapshot should not alias the live proxy")
	}
}

func TestProxyExtentAndColor(t *testing.T) {
	box := &Proxy{Kind: KindBox, Scale: mgl64.Vec3{8, 1, 1}, Color: 0x0a0b0c}
	if box.Extent() != (mgl64.Vec3{4, 0.5, 0.5}) {
		t.Errorf("unexpected extent %v", box.Extent())
	}
	if box.Hex() != "#0a0b0c" {
		t.Errorf("unexpected hex %s", box.Hex())
	}

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		if c := RandomColor(rng); c > 0xffffff {
			t.Fatalf("colour %x out of range", c)
		}
	}
}
