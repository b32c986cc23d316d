package sessions

import (
	"slices"
	"sync"

	"github.com/sir_venger/mediagate/pkg/mediaproto"
)

// Directory хранит известные endpoint'ы по id.
type Directory struct {
	mu        sync.RWMutex
	endpoints map[int]mediaproto.Endpoint
}

// NewDirectory создаёт справочник endpoint'ов.
func NewDirectory(eps ...mediaproto.Endpoint) *Directory {
	d := &Directory{endpoints: make(map[int]mediaproto.Endpoint, len(eps))}
	d.Add(eps...)
	return d
}

// Set заменяет список endpoint'ов на новый.
func (d *Directory) Set(eps []mediaproto.Endpoint) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.endpoints = make(map[int]mediaproto.Endpoint, len(eps))
	for _, ep := range eps {
		d.endpoints[ep.ID] = ep
	}
}

// Add добавляет endpoint'ы, игнорируя уже известные id и id <= 0.
func (d *Directory) Add(eps ...mediaproto.Endpoint) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, ep := range eps {
		if ep.ID <= 0 {
			continue
		}
		if _, exists := d.endpoints[ep.ID]; exists {
			continue
		}
		d.endpoints[ep.ID] = ep
	}
}

func (d *Directory) Lookup(id int) (mediaproto.Endpoint, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ep, ok := d.endpoints[id]
	return ep, ok
}

// All возвращает endpoint'ы, отсортированные по id.
func (d *Directory) All() []mediaproto.Endpoint {
	d.mu.RLock()
	out := make([]mediaproto.Endpoint, 0, len(d.endpoints))
	for _, ep := range d.endpoints {
		out = append(out, ep)
	}
	d.mu.RUnlock()

	slices.SortFunc(out, func(a, b mediaproto.Endpoint) int { return a.ID - b.ID })
	return out
}

func (d *Directory) IDs() []int {
	eps := d.All()
	ids := make([]int, len(eps))
	for i, ep := range eps {
		ids[i] = ep.ID
	}
	return ids
}
