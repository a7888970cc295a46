// Package seed models the optional integer seed handed to a maze run.
package seed

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Seed is either a concrete int64 or "no seed" (entropy-sourced).
type Seed struct {
	value int64
	set   bool
}

// None returns the absent seed. Runs started with it are not reproducible
// unless the resolved value is recorded.
func None() Seed {
	return Seed{}
}

// Of returns a concrete seed.
func Of(v int64) Seed {
	return Seed{value: v, set: true}
}

// Value returns the seed and whether one is set.
func (s Seed) Value() (int64, bool) {
	return s.value, s.set
}

// IsSet reports whether s carries a concrete value.
func (s Seed) IsSet() bool {
	return s.set
}

// Resolve returns a concrete seed, drawing one from the clock when s is None.
func (s Seed) Resolve() Seed {
	if s.set {
		return s
	}
	return Of(time.Now().UnixNano())
}

func (s Seed) String() string {
	if !s.set {
		return "none"
	}
	return strconv.FormatInt(s.value, 10)
}

// Parse converts user text into a seed. Blank text means None, base-10
// integers are used as is, and any other text is hashed with BLAKE2b-256
// (first eight bytes, big-endian).
func Parse(text string) Seed {
	text = strings.TrimSpace(text)
	if text == "" {
		return None()
	}
	if v, err := strconv.ParseInt(text, 10, 64); err == nil {
		return Of(v)
	}
	return Of(Hash(text))
}

// Hash derives an int64 seed from arbitrary text.
func Hash(text string) int64 {
	sum := blake2b.Sum256([]byte(text))
	return int64(binary.BigEndian.Uint64(sum[:8]))
}

// ParseInt is Parse restricted to integer text, for flags that only take
// numbers.
func ParseInt(text string) (Seed, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return None(), nil
	}
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return None(), fmt.Errorf("seed %q is not an integer: %w", text, err)
	}
	return Of(v), nil
}
