package render

// Scene is the set of proxies handed to the renderer each frame.
type Scene struct {
	proxies []*Proxy
	index   map[*Proxy]int
}

func NewScene() *Scene {
	return &Scene{index: make(map[*Proxy]int)}
}

// Add inserts p. Adding the same proxy twice is a no-op.
func (s *Scene) Add(p *Proxy) {
	if _, ok := s.index[p]; ok {
		return
	}
	s.index[p] = len(s.proxies)
	s.proxies = append(s.proxies, p)
}

// Remove reports whether p was in the scene.
func (s *Scene) Remove(p *Proxy) bool {
	i, ok := s.index[p]
	if !ok {
		return false
	}
	last := len(s.proxies) - 1
	s.proxies[i] = s.proxies[last]
	s.index[s.proxies[i]] = i
	s.proxies[last] = nil
	s.proxies = s.proxies[:last]
	delete(s.index, p)
	return true
}

func (s *Scene) Len() int { return len(s.proxies) }

// Snapshot copies the visible proxies so the caller can draw them after the
// scene has moved on.
func (s *Scene) Snapshot() []Proxy {
	out := make([]Proxy, 0, len(s.proxies))
	for _, p := range s.proxies {
		if p.Visible {
			out = append(out, *p)
		}
	}
	return out
}
