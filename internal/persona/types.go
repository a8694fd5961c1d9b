// Package persona defines stakeholder persona descriptors and the catalog
// generator that seeds a roster for an interview session.
package persona

import "strings"

// Persona is an immutable stakeholder descriptor. Personas are created once
// by the catalog generator and never mutated by the dialogue engine.
type Persona struct {
	Name        string `json:"name"`
	Initials    string `json:"initials"`
	Role        string `json:"role"`
	Goal        string `json:"goal"`
	Concerns    string `json:"concerns"`
	Personality string `json:"personality"`
}

// ProfileText returns the searchable profile text used for topic matching.
func (p Persona) ProfileText() string {
	return strings.ToLower(p.Role + " " + p.Goal + " " + p.Concerns)
}

// Initials derives uppercase initials from a full name ("Maria Lopez" -> "ML").
func Initials(name string) string {
	var b strings.Builder
	for _, part := range strings.Fields(name) {
		r := []rune(part)
		if len(r) > 0 {
			b.WriteString(strings.ToUpper(string(r[0])))
		}
	}
	return b.String()
}

// Names returns the names of all personas in roster order.
func Names(roster []Persona) []string {
	names := make([]string, len(roster))
	for i, p := range roster {
		names[i] = p.Name
	}
	return names
}

// ByName looks up a persona by exact name.
func ByName(roster []Persona, name string) (Persona, bool) {
	for _, p := range roster {
		if p.Name == name {
			return p, true
		}
	}
	return Persona{}, false
}
