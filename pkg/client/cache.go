package client

import (
	"container/list"

	"github.com/banchi-geo/banchi/pkg/address"
)

// nodeCache is a fixed-size LRU over node records fetched from the
// server. Node ids are only meaningful for one dictionary build, so
// the tree drops the whole cache whenever the server signature
// changes. Not safe for concurrent use; RemoteTree serializes access.
type nodeCache struct {
	cap int
	ll  *list.List
	m   map[uint32]*list.Element
}

type cacheEntry struct {
	id   uint32
	node address.Node
}

func newNodeCache(capacity int) *nodeCache {
	return &nodeCache{
		cap: capacity,
		ll:  list.New(),
		m:   make(map[uint32]*list.Element, capacity),
	}
}

func (c *nodeCache) get(id uint32) (address.Node, bool) {
	el, ok := c.m[id]
	if !ok {
		return address.Node{}, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(cacheEntry).node, true
}

func (c *nodeCache) put(n address.Node) {
	if el, ok := c.m[n.ID]; ok {
		el.Value = cacheEntry{id: n.ID, node: n}
		c.ll.MoveToFront(el)
		return
	}
	c.m[n.ID] = c.ll.PushFront(cacheEntry{id: n.ID, node: n})
	for c.ll.Len() > c.cap {
		oldest := c.ll.Back()
		c.ll.Remove(oldest)
		delete(c.m, oldest.Value.(cacheEntry).id)
	}
}

func (c *nodeCache) clear() {
	c.ll.Init()
	clear(c.m)
}
