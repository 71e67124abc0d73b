package playbook

import (
	"fmt"
	"strings"
)

// Snapshot is a read-only copy of the playbook taken at a point in time.
// A generator invocation and the reflection that follows it both work
// against the same snapshot.
type Snapshot struct {
	bullets map[Section][]Bullet
}

// Bullets returns the snapshot's bullets for one section in insertion order.
func (s *Snapshot) Bullets(section Section) []Bullet {
	return s.bullets[section]
}

// All returns every bullet in canonical section order.
func (s *Snapshot) All() []Bullet {
	var out []Bullet
	for _, section := range Sections() {
		out = append(out, s.bullets[section]...)
	}
	return out
}

// Find returns the bullet with the given ID, or nil.
func (s *Snapshot) Find(id string) *Bullet {
	for _, list := range s.bullets {
		for i := range list {
			if list[i].ID == id {
				return &list[i]
			}
		}
	}
	return nil
}

// Len returns the total number of bullets in the snapshot.
func (s *Snapshot) Len() int {
	n := 0
	for _, list := range s.bullets {
		n += len(list)
	}
	return n
}

// FormatForInjection renders the snapshot for inclusion in a generation
// prompt, with bullet IDs the model can cite.
func (s *Snapshot) FormatForInjection() string {
	if s.Len() == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("## Playbook (cite bullet IDs you rely on)\n")
	for _, section := range Sections() {
		list := s.bullets[section]
		if len(list) == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("### %s\n", section))
		for _, b := range list {
			sb.WriteString(fmt.Sprintf("[%s] %s\n", b.ID, b.Text))
		}
	}
	return sb.String()
}
