package cache

import (
	"time"

	"github.com/uparkt/parkadmin/internal/query"
)

// State is the freshness of a cache entry.
type State int

const (
	Missing State = iota
	Fresh
	Stale
	Revalidating
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	case Revalidating:
		return "revalidating"
	}
	return "missing"
}

// seq orders entries by the moment their load started; an older load never
// replaces a newer entry.
type entry struct {
	seq          uint64
	key          query.Key
	data         any
	fetchedAt    time.Time
	staleAt      time.Time
	invalidated  bool
	revalidating bool
}

func (e *entry) state(now time.Time) State {
	switch {
	case e.revalidating:
		return Revalidating
	case e.invalidated || !now.Before(e.staleAt):
		return Stale
	}
	return Fresh
}

// node is one segment of the key trie.
type node struct {
	children map[string]*node
	entry    *entry
}

func (n *node) child(seg string, create bool) *node {
	if c, ok := n.children[seg]; ok {
		return c
	}
	if !create {
		return nil
	}
	if n.children == nil {
		n.children = make(map[string]*node)
	}
	c := &node{}
	n.children[seg] = c
	return c
}

// lookup returns the node for segs, or nil when absent and create is false.
func (n *node) lookup(segs []string, create bool) *node {
	cur := n
	for _, s := range segs {
		if cur = cur.child(s, create); cur == nil {
			return nil
		}
	}
	return cur
}

// prune drops empty nodes along segs, deepest first.
func (n *node) prune(segs []string) {
	if len(segs) == 0 {
		return
	}
	c := n.children[segs[0]]
	if c == nil {
		return
	}
	c.prune(segs[1:])
	if c.entry == nil && len(c.children) == 0 {
		delete(n.children, segs[0])
	}
}

// size counts the nodes below n.
func (n *node) size() int {
	count := 0
	for _, c := range n.children {
		count += 1 + c.size()
	}
	return count
}

func (n *node) walk(fn func(*entry)) {
	if n.entry != nil {
		fn(n.entry)
	}
	for _, c := range n.children {
		c.walk(fn)
	}
}
