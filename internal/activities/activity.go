// Package activities holds the in-memory activity catalog and the
// membership operations performed on it.
package activities

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Activity is one extracurricular offering. Name is the registry key and is
// not part of the serialized record.
type Activity struct {
	Name            string   `json:"-"`
	Description     string   `json:"description"`
	Schedule        string   `json:"schedule"`
	MaxParticipants int      `json:"max_participants"`
	Participants    []string `json:"participants"`
}

// HasParticipant reports whether email is on the participant list.
func (a Activity) HasParticipant(email string) bool {
	return indexOf(a.Participants, email) >= 0
}

// clone returns a copy whose participant slice is not shared.
func (a Activity) clone() Activity {
	out := a
	out.Participants = make([]string, len(a.Participants))
	copy(out.Participants, a.Participants)
	return out
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}

// Catalog is an insertion-ordered set of activities keyed by name. It
// serializes as a JSON object whose keys keep that order.
type Catalog struct {
	order []string
	items map[string]Activity
}

// NewCatalog builds a catalog in argument order. A repeated name replaces
// the earlier record but keeps its position.
func NewCatalog(list ...Activity) *Catalog {
	c := &Catalog{items: make(map[string]Activity, len(list))}
	for _, a := range list {
		c.put(a)
	}
	return c
}

func (c *Catalog) put(a Activity) {
	if c.items == nil {
		c.items = make(map[string]Activity)
	}
	if _, exists := c.items[a.Name]; !exists {
		c.order = append(c.order, a.Name)
	}
	a = a.clone()
	c.items[a.Name] = a
}

// Names returns activity names in catalog order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Get returns a copy of the named activity.
func (c *Catalog) Get(name string) (Activity, bool) {
	a, ok := c.items[name]
	if !ok {
		return Activity{}, false
	}
	return a.clone(), true
}

func (c *Catalog) Len() int { return len(c.order) }

// Activities returns copies of all activities in catalog order.
func (c *Catalog) Activities() []Activity {
	out := make([]Activity, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.items[name].clone())
	}
	return out
}

func (c *Catalog) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range c.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		a := c.items[name]
		if a.Participants == nil {
			a.Participants = []string{}
		}
		val, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("marshal activity %q: %w", name, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object of activities, keeping key order.
func (c *Catalog) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("activities catalog must be a JSON object")
	}

	*c = Catalog{items: make(map[string]Activity)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v in activities catalog", tok)
		}

		var a Activity
		if err := dec.Decode(&a); err != nil {
			return fmt.Errorf("decode activity %q: %w", name, err)
		}
		a.Name = name
		if a.Participants == nil {
			a.Participants = []string{}
		}
		c.put(a)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// Operation names a membership mutation.
type Operation string

const (
	OpSignup     Operation = "signup"
	OpUnregister Operation = "unregister"
)

// Change describes a membership mutation that was applied to the registry.
type Change struct {
	Operation    Operation
	Activity     string
	Email        string
	Participants int    // participant count after the change
	Version      uint64 // registry version after the change
	At           time.Time
}

// Message is the confirmation text returned to the caller.
func (c Change) Message() string {
	if c.Operation == OpUnregister {
		return fmt.Sprintf("Unregistered %s from %s", c.Email, c.Activity)
	}
	return fmt.Sprintf("Signed up %s for %s", c.Email, c.Activity)
}
