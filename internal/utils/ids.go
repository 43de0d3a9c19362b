package utils

import (
	"fmt"
	"strings"
)

// IDAllocator hands out unique identifiers. A free id is returned as-is; a
// taken one gets the first free "-N" suffix starting at 2.
type IDAllocator struct {
	used    map[string]struct{}
	counter map[string]int
}

// NewIDAllocator creates an allocator with optional pre-reserved ids.
func NewIDAllocator(existing ...string) *IDAllocator {
	a := &IDAllocator{
		used:    make(map[string]struct{}, len(existing)+8),
		counter: make(map[string]int, len(existing)+8),
	}
	for _, id := range existing {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		a.used[id] = struct{}{}
	}
	return a
}

// Reserve returns a unique id derived from id and marks it used.
func (a *IDAllocator) Reserve(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		id = "id"
	}
	if _, ok := a.used[id]; !ok {
		a.used[id] = struct{}{}
		a.counter[id] = 1
		return id
	}
	n := a.counter[id]
	if n < 1 {
		n = 1
	}
	for {
		n++
		candidate := fmt.Sprintf("%s-%d", id, n)
		if _, exists := a.used[candidate]; exists {
			continue
		}
		a.used[candidate] = struct{}{}
		a.counter[id] = n
		return candidate
	}
}

// Has reports whether id is already taken.
func (a *IDAllocator) Has(id string) bool {
	_, ok := a.used[strings.TrimSpace(id)]
	return ok
}
