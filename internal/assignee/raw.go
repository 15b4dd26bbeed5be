// Package assignee turns the many stored shapes of a task's "assigned to"
// column into an ordered, de-duplicated set of user references.
package assignee

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/taskboard/backend/internal/storage/models"
)

// Kind identifies the shape a raw assignment value was stored in.
type Kind int

const (
	KindEmpty    Kind = iota // nil, blank, "null", "undefined"
	KindID                   // a single bare id
	KindIDList               // an array of ids, possibly JSON-encoded
	KindUserList             // an array of user objects, possibly mixed with ids
)

func (k Kind) String() string {
	switch k {
	case KindID:
		return "id"
	case KindIDList:
		return "id_list"
	case KindUserList:
		return "user_list"
	default:
		return "empty"
	}
}

// maxJSONDepth bounds how many times a string may decode into another
// JSON-encoded string before it is treated as malformed.
const maxJSONDepth = 3

// Raw is a parsed assignment value. Entries keep their stored order; an entry
// is either a bare id or a user object that already carries an id.
type Raw struct {
	Kind Kind
	// Malformed is set when the value looked like JSON but could not be decoded.
	Malformed bool

	entries []entry
}

type entry struct {
	id   string
	user *models.UserReference
}

// IDs returns the ids of all entries in stored order, duplicates included.
func (r Raw) IDs() []string {
	ids := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		ids = append(ids, e.id)
	}
	return ids
}

// Len returns the number of entries.
func (r Raw) Len() int {
	return len(r.entries)
}

// Parse classifies v and flattens it into entries. It never panics; values of
// unknown type parse as KindEmpty.
func Parse(v any) Raw {
	var p parser
	p.add(v, 0)
	return p.raw()
}

type parser struct {
	entries   []entry
	sawList   bool
	sawUser   bool
	malformed bool
}

func (p *parser) raw() Raw {
	r := Raw{entries: p.entries, Malformed: p.malformed}
	switch {
	case len(p.entries) == 0:
		r.Kind = KindEmpty
	case p.sawUser:
		r.Kind = KindUserList
	case p.sawList || len(p.entries) > 1:
		r.Kind = KindIDList
	default:
		r.Kind = KindID
	}
	return r
}

func (p *parser) add(v any, depth int) {
	switch val := v.(type) {
	case nil:
	case Raw:
		p.entries = append(p.entries, val.entries...)
		p.sawList = p.sawList || val.Kind == KindIDList
		p.sawUser = p.sawUser || val.Kind == KindUserList
		p.malformed = p.malformed || val.Malformed
	case string:
		p.addString(val, depth)
	case *string:
		if val != nil {
			p.addString(*val, depth)
		}
	case []byte:
		p.addString(string(val), depth)
	case json.RawMessage:
		p.addString(string(val), depth)
	case []string:
		p.sawList = true
		for _, s := range val {
			p.addID(s)
		}
	case []any:
		p.sawList = true
		for _, item := range val {
			p.add(item, depth)
		}
	case map[string]any:
		p.addObject(val)
	case models.UserReference:
		p.addUser(val)
	case *models.UserReference:
		if val != nil {
			p.addUser(*val)
		}
	case []models.UserReference:
		p.sawList = true
		for _, u := range val {
			p.addUser(u)
		}
	case models.User:
		p.addUser(val.Reference())
	case []models.User:
		p.sawList = true
		for _, u := range val {
			p.addUser(u.Reference())
		}
	default:
		if id, ok := coerceID(val); ok {
			p.addID(id)
		}
	}
}

// addString handles both bare ids and JSON-encoded values.
func (p *parser) addString(s string, depth int) {
	s = strings.TrimSpace(s)
	if !validID(s) {
		return
	}

	if !looksLikeJSON(s) {
		p.addID(s)
		return
	}

	if depth >= maxJSONDepth {
		p.malformed = true
		return
	}

	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var decoded any
	if err := dec.Decode(&decoded); err != nil || dec.More() {
		p.malformed = true
		return
	}
	p.add(decoded, depth+1)
}

func (p *parser) addID(id string) {
	id = strings.TrimSpace(id)
	if !validID(id) {
		return
	}
	p.entries = append(p.entries, entry{id: id})
}

func (p *parser) addUser(u models.UserReference) {
	u.ID = strings.TrimSpace(u.ID)
	if !validID(u.ID) {
		return
	}
	p.sawUser = true
	p.entries = append(p.entries, entry{id: u.ID, user: &u})
}

// addObject accepts a decoded user object. Objects without a usable id are
// dropped.
func (p *parser) addObject(obj map[string]any) {
	id, ok := coerceID(obj["id"])
	if !ok {
		return
	}
	p.addUser(models.UserReference{
		ID:          id,
		DisplayName: firstString(obj, "display_name", "displayName", "full_name", "fullName", "name", "email"),
		AvatarURL:   firstString(obj, "avatar_url", "avatarUrl", "avatar"),
	})
}

func looksLikeJSON(s string) bool {
	switch s[0] {
	case '[', '{', '"':
		return true
	}
	return false
}

// validID rejects the falsy forms older clients wrote into the column.
func validID(s string) bool {
	switch s {
	case "", "undefined", "null":
		return false
	}
	return true
}

// coerceID converts ids stored as strings or numbers into their string form.
func coerceID(v any) (string, bool) {
	var s string
	switch val := v.(type) {
	case string:
		s = val
	case json.Number:
		s = val.String()
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		s = strconv.Itoa(val)
	case int64:
		s = strconv.FormatInt(val, 10)
	case int32:
		s = strconv.FormatInt(int64(val), 10)
	case uint64:
		s = strconv.FormatUint(val, 10)
	default:
		return "", false
	}
	s = strings.TrimSpace(s)
	if _, isString := v.(string); !isString && s == "0" {
		// numeric zero is the falsy id older clients wrote for "nobody"
		return "", false
	}
	return s, validID(s)
}

func firstString(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
