// Package camelot implements the Camelot wheel key-compatibility algebra.
// It is a pure function layer: nothing here knows about storage or queries.
package camelot

import (
	"fmt"
	"strconv"
	"strings"
)

// Key is a canonical Camelot key: a wheel position 1-12 plus a mode letter.
// The letter A is minor, B is major. The canonical string form is lower-case,
// e.g. "8a".
type Key struct {
	Number int
	Letter byte // 'a' or 'b'
}

// Parse parses a Camelot key string such as "8A", "8a" or "12b". Surrounding
// whitespace is ignored.
func Parse(s string) (Key, error) {
	t := strings.ToLower(strings.TrimSpace(s))
	if len(t) < 2 {
		return Key{}, fmt.Errorf("invalid camelot key %q", s)
	}

	letter := t[len(t)-1]
	if letter != 'a' && letter != 'b' {
		return Key{}, fmt.Errorf("invalid camelot mode letter in %q", s)
	}

	n, err := strconv.Atoi(t[:len(t)-1])
	if err != nil || n < 1 || n > 12 {
		return Key{}, fmt.Errorf("invalid camelot wheel number in %q", s)
	}

	return Key{Number: n, Letter: letter}, nil
}

// String returns the canonical lower-case form, e.g. "8a".
func (k Key) String() string {
	return strconv.Itoa(k.Number) + string(k.Letter)
}

// ModeSwitch returns the relative key on the other ring of the wheel: same
// number, opposite letter (minor/major reharmonization).
func (k Key) ModeSwitch() Key {
	if k.Letter == 'a' {
		return Key{Number: k.Number, Letter: 'b'}
	}
	return Key{Number: k.Number, Letter: 'a'}
}

// Adjacent returns the two neighbours on the same ring, one step down and one
// step up. The wheel wraps: 1 is adjacent to 12.
func (k Key) Adjacent() [2]Key {
	down := k.Number - 1
	if down < 1 {
		down = 12
	}
	up := k.Number + 1
	if up > 12 {
		up = 1
	}
	return [2]Key{
		{Number: down, Letter: k.Letter},
		{Number: up, Letter: k.Letter},
	}
}

// Matches returns every harmonically compatible key: the key itself, its mode
// switch, and both same-ring neighbours.
func (k Key) Matches() []Key {
	adj := k.Adjacent()
	return []Key{k, k.ModeSwitch(), adj[0], adj[1]}
}
