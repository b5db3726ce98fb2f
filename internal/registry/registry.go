// Package registry holds the set of live peer links of a chat node.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Ankesh2004/p2p-chat/pkg/p2p"
)

// ErrInvalidIndex is returned when a display index does not name a live link.
var ErrInvalidIndex = errors.New("invalid connection id")

// Entry is one row of `list`.
type Entry struct {
	Index int
	IP    string
	Port  int
}

// Registry is the ordered collection of live PeerLinks.
//
// Links are addressed by their 1-based position in the current order, so an
// index is NOT a stable id: removing entry k moves every later entry down by
// one. An operator that runs `terminate 2` and then `send 2 ...` talks to
// whatever slid into slot 2 in between.
//
// Every method takes the same lock. Nothing in here does network I/O while
// holding it; links are detached first and closed after unlocking.
type Registry struct {
	mu    sync.Mutex
	links []*p2p.PeerLink
}

func New() *Registry {
	return &Registry{}
}

// Add appends link and returns its display index.
func (r *Registry) Add(link *p2p.PeerLink) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.links = append(r.links, link)
	return len(r.links)
}

// RemoveByIndex detaches the link at display index i and closes it.
func (r *Registry) RemoveByIndex(i int) error {
	r.mu.Lock()
	if i < 1 || i > len(r.links) {
		size := len(r.links)
		r.mu.Unlock()
		return fmt.Errorf("%w: %d (have %d)", ErrInvalidIndex, i, size)
	}
	link := r.links[i-1]
	r.links = removeAt(r.links, i-1)
	r.mu.Unlock()

	link.Close() //nolint:errcheck
	return nil
}

// RemoveLink detaches link wherever it currently sits and closes it.
// It returns false if the link was already gone (e.g. terminated by the
// operator while its receiver was shutting down); that is not an error.
func (r *Registry) RemoveLink(link *p2p.PeerLink) bool {
	r.mu.Lock()
	pos := -1
	for i, l := range r.links {
		if l == link {
			pos = i
			break
		}
	}
	if pos < 0 {
		r.mu.Unlock()
		return false
	}
	r.links = removeAt(r.links, pos)
	r.mu.Unlock()

	link.Close() //nolint:errcheck
	return true
}

// Get returns the link at display index i.
func (r *Registry) Get(i int) (*p2p.PeerLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i < 1 || i > len(r.links) {
		return nil, fmt.Errorf("%w: %d (have %d)", ErrInvalidIndex, i, len(r.links))
	}
	return r.links[i-1], nil
}

// Snapshot returns the current rows for `list`, all taken under one lock.
func (r *Registry) Snapshot() []Entry {
	var entries []Entry
	r.ForEach(func(index int, link *p2p.PeerLink) {
		entries = append(entries, Entry{Index: index, IP: link.IP(), Port: link.Port()})
	})
	return entries
}

// ForEach calls fn for every link of a consistent snapshot, in order.
// fn runs without the lock held, so it may block or call back into r.
func (r *Registry) ForEach(fn func(index int, link *p2p.PeerLink)) {
	r.mu.Lock()
	links := make([]*p2p.PeerLink, len(r.links))
	copy(links, r.links)
	r.mu.Unlock()

	for i, l := range links {
		fn(i+1, l)
	}
}

// CloseAll empties the registry and closes every link that was in it,
// each exactly once. Returns how many links were closed.
func (r *Registry) CloseAll() int {
	r.mu.Lock()
	links := r.links
	r.links = nil
	r.mu.Unlock()

	for _, l := range links {
		l.Close() //nolint:errcheck
	}
	return len(links)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.links)
}

// removeAt deletes s[i] keeping order and clears the freed tail slot so the
// backing array doesn't pin a closed link.
func removeAt(s []*p2p.PeerLink, i int) []*p2p.PeerLink {
	copy(s[i:], s[i+1:])
	s[len(s)-1] = nil
	return s[:len(s)-1]
}
