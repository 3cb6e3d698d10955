package core

import (
	"sync"

	"go.uber.org/atomic"
)

type resourceNode struct {
	next     *resourceNode
	prev     *resourceNode
	resource Resource
}

// ResourcePool keeps the resources that still have to be released.
type ResourcePool struct {
	mu   sync.Mutex
	tail *resourceNode
	size int
}

func NewResourcePool() *ResourcePool {
	return &ResourcePool{}
}

func (p *ResourcePool) Insert(res Resource) {
	p.mu.Lock()
	defer p.mu.Unlock()
	node := &resourceNode{
		resource: res,
		prev:     p.tail,
	}
	res.setNode(node)
	res.setPool(p)
	if p.tail != nil {
		p.tail.next = node
	}
	p.tail = node
	p.size++
}

func (p *ResourcePool) Remove(node *resourceNode) {
	if node == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if node.resource.node() != node {
		return
	}
	node.resource.setNode(nil)
	prev := node.prev
	next := node.next

	if prev != nil {
		prev.next = next
	}

	if next != nil {
		next.prev = prev
	}

	if node == p.tail {
		p.tail = prev
	}
	node.prev = nil
	node.next = nil
	p.size--
}

// ForEach walks a snapshot in insertion order, iter may release or cancel.
func (p *ResourcePool) ForEach(iter func(Resource)) {
	p.mu.Lock()
	list := make([]Resource, p.size)
	i := p.size - 1
	for cur := p.tail; cur != nil; cur = cur.prev {
		list[i] = cur.resource
		i--
	}
	p.mu.Unlock()

	for _, res := range list {
		iter(res)
	}
}

func (p *ResourcePool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size
}

type Resource interface {
	// Release runs the release function unless it already ran, and reports
	// whether this call was the one that ran it.
	Release() bool
	Released() bool
	Cancel()
	Name() string
	node() *resourceNode
	setNode(*resourceNode)
	setPool(*ResourcePool)
}

// resource a resource with release function, will be called only once
type resource struct {
	name         string
	released     *atomic.Bool
	release      func()
	mu           sync.Mutex
	n            *resourceNode
	pool         *ResourcePool
	afterRelease func()
}

func NewResource(name string, release func(), callback ...func()) Resource {
	var afterRelease func()
	if len(callback) > 0 {
		afterRelease = callback[0]
	}
	return &resource{
		name:         name,
		released:     atomic.NewBool(false),
		release:      release,
		afterRelease: afterRelease,
	}
}

func (g *resource) Release() bool {
	if !g.released.CAS(false, true) {
		return false
	}
	g.release()
	g.Cancel()
	if g.afterRelease != nil {
		g.afterRelease()
	}
	return true
}

func (g *resource) Released() bool {
	return g.released.Load()
}

func (g *resource) Name() string {
	return g.name
}

func (g *resource) node() *resourceNode {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

func (g *resource) setNode(node *resourceNode) {
	g.mu.Lock()
	g.n = node
	g.mu.Unlock()
}

func (g *resource) setPool(pool *ResourcePool) {
	g.mu.Lock()
	g.pool = pool
	g.mu.Unlock()
}

// Cancel drops the resource from its pool without releasing it.
func (g *resource) Cancel() {
	g.mu.Lock()
	node, pool := g.n, g.pool
	g.mu.Unlock()
	if node == nil || pool == nil {
		return
	}

	pool.Remove(node)
}
