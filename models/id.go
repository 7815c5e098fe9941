package models

import (
	"strconv"
	"sync"
)

// TagGenerator generates the tags of elements inserted without one.
type TagGenerator struct {
	// The string prepended to every generated tag.
	Prefix string

	mutex     sync.Mutex
	currentID uint64
}

// New returns a sequential tag.
func (g *TagGenerator) New() string {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.currentID++
	return g.Prefix + strconv.FormatUint(g.currentID, 10)
}
