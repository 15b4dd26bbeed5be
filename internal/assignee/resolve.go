package assignee

import (
	"encoding/json"
	"unicode"
	"unicode/utf8"

	"github.com/taskboard/backend/internal/storage/models"
)

// Set is the resolved, ordered set of assignees of one task. Order is the
// order of first occurrence; membership is by id. The zero value is an
// empty set.
type Set struct {
	refs  []models.UserReference
	index map[string]int
}

// NewSet creates an empty set.
func NewSet() *Set {
	return &Set{index: make(map[string]int)}
}

// Add appends ref unless a reference with the same id is already present.
// It reports whether ref was added.
func (s *Set) Add(ref models.UserReference) bool {
	if _, exists := s.index[ref.ID]; exists {
		return false
	}
	if s.index == nil {
		s.index = make(map[string]int)
	}
	s.index[ref.ID] = len(s.refs)
	s.refs = append(s.refs, ref)
	return true
}

// Contains reports whether a reference with the given id is in the set. The
// id may be a string or a number.
func (s *Set) Contains(id any) bool {
	key, ok := coerceID(id)
	if !ok {
		return false
	}
	_, exists := s.index[key]
	return exists
}

// Get returns the reference with the given id.
func (s *Set) Get(id string) (models.UserReference, bool) {
	i, ok := s.index[id]
	if !ok {
		return models.UserReference{}, false
	}
	return s.refs[i], true
}

// Len returns the number of references.
func (s *Set) Len() int {
	return len(s.refs)
}

// Users returns a copy of the references in order. Never nil.
func (s *Set) Users() []models.UserReference {
	out := make([]models.UserReference, len(s.refs))
	copy(out, s.refs)
	return out
}

// IDs returns the ids in order.
func (s *Set) IDs() []string {
	ids := make([]string, len(s.refs))
	for i, r := range s.refs {
		ids[i] = r.ID
	}
	return ids
}

// MarshalJSON encodes the set as an array of references.
func (s *Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Users())
}

// Resolve parses raw and resolves it against the roster of known users.
// It never fails: malformed input yields an empty set and unknown ids
// resolve to placeholders.
func Resolve(raw any, roster []models.UserReference) *Set {
	return Parse(raw).Resolve(roster)
}

// Resolve resolves the parsed entries against roster. User objects that
// already carry an id are kept as stored; bare ids are looked up in the
// roster and fall back to a placeholder.
func (r Raw) Resolve(roster []models.UserReference) *Set {
	byID := make(map[string]models.UserReference, len(roster))
	for _, u := range roster {
		if _, seen := byID[u.ID]; !seen {
			byID[u.ID] = u
		}
	}

	set := NewSet()
	for _, e := range r.entries {
		switch {
		case e.user != nil:
			ref := *e.user
			if ref.DisplayName == "" {
				ref.DisplayName = placeholderName(ref.ID)
			}
			set.Add(ref)
		default:
			if u, ok := byID[e.id]; ok {
				set.Add(u)
			} else {
				set.Add(Placeholder(e.id))
			}
		}
	}
	return set
}

// Placeholder synthesizes a reference for an id missing from the roster.
// The display name depends only on the id, so repeated renders are stable.
func Placeholder(id string) models.UserReference {
	return models.UserReference{
		ID:          id,
		DisplayName: placeholderName(id),
		Placeholder: true,
	}
}

func placeholderName(id string) string {
	r, _ := utf8.DecodeRuneInString(id)
	if r == utf8.RuneError {
		return "User"
	}
	return string(unicode.ToUpper(r)) + " User"
}
