package behaviour

// LifecycleState is where a component is in one attachment to the scene.
type LifecycleState int

const (
	Unattached LifecycleState = iota
	Started
	Destroyed
)

func (s LifecycleState) String() string {
	switch s {
	case Started:
		return "started"
	case Destroyed:
		return "destroyed"
	default:
		return "unattached"
	}
}

// slot is one attachment of a component. A component that leaves and
// re-enters the scene gets a new slot.
type slot struct {
	comp  Component
	state LifecycleState
}

func (s *slot) start() bool {
	if s.state != Unattached {
		return false
	}
	s.state = Started
	s.comp.Start()
	return true
}

func (s *slot) update(dt float32) {
	if s.state == Started && s.comp.GetEnabled() {
		s.comp.Update(dt)
	}
}

func (s *slot) lateUpdate(dt float32) {
	if s.state == Started && s.comp.GetEnabled() {
		s.comp.LateUpdate(dt)
	}
}

// destroy runs OnDestroy and then releases tracked registrations. It also
// accepts a component that never started.
func (s *slot) destroy() bool {
	if s.state == Destroyed {
		return false
	}
	s.state = Destroyed
	s.comp.OnDestroy()
	if t, ok := s.comp.(tracker); ok {
		t.releaseTracked()
	}
	return true
}
