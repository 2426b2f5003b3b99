package renderer

import (
	"fmt"
	"math"
)

// Clip is a named animation of fixed duration in seconds.
type Clip struct {
	Name     string
	Duration float32
}

// Action is the playback state of one clip.
type Action struct {
	Clip    Clip
	Time    float32
	Loop    bool
	Playing bool
	Loops   int
}

// Mixer advances the animation actions of one entity.
type Mixer struct {
	clips   map[string]Clip
	actions []*Action
}

func NewMixer(clips []Clip) *Mixer {
	m := &Mixer{clips: make(map[string]Clip, len(clips))}
	for _, c := range clips {
		m.clips[c.Name] = c
	}
	return m
}

// Play starts clip name from the beginning, or restarts it if already playing.
func (m *Mixer) Play(name string, loop bool) (*Action, error) {
	clip, ok := m.clips[name]
	if !ok {
		return nil, fmt.Errorf("animation clip %q not found", name)
	}
	for _, a := range m.actions {
		if a.Clip.Name == name {
			a.Time, a.Loops, a.Loop, a.Playing = 0, 0, loop, true
			return a, nil
		}
	}
	a := &Action{Clip: clip, Loop: loop, Playing: true}
	m.actions = append(m.actions, a)
	return a, nil
}

func (m *Mixer) Stop(name string) {
	for _, a := range m.actions {
		if a.Clip.Name == name {
			a.Playing = false
		}
	}
}

func (m *Mixer) Actions() []*Action {
	return m.actions
}

// Update advances every playing action by dt seconds.
func (m *Mixer) Update(dt float32) {
	for _, a := range m.actions {
		if !a.Playing {
			continue
		}
		a.Time += dt
		if a.Clip.Duration <= 0 || a.Time < a.Clip.Duration {
			continue
		}
		if !a.Loop {
			a.Time = a.Clip.Duration
			a.Playing = false
			continue
		}
		a.Loops += int(a.Time / a.Clip.Duration)
		a.Time = float32(math.Mod(float64(a.Time), float64(a.Clip.Duration)))
	}
}
