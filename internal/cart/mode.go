// ABOUTME: Cart authority modes and their legal transitions
// ABOUTME: Local before login, Merging during reconciliation, Remote afterwards

package cart

// Mode says which cart copy is authoritative
type Mode string

const (
	Local   Mode = "local"
	Merging Mode = "merging"
	Remote  Mode = "remote"
)

var validTransitions = map[Mode][]Mode{
	Local:   {Merging, Remote},
	Merging: {Remote, Local},
	Remote:  {Local, Remote},
}

// CanTransitionTo reports whether next is reachable from m
func (m Mode) CanTransitionTo(next Mode) bool {
	for _, allowed := range validTransitions[m] {
		if allowed == next {
			return true
		}
	}
	return false
}
