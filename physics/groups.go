package physics

import "errors"

// ErrNoGroups is returned when every collision group is in use.
var ErrNoGroups = errors.New("physics: no free collision groups")

// Group is a collision group id. Bodies sharing a group do not collide.
type Group uint32

// GroupPool hands out collision group ids from a finite free list.
type GroupPool struct {
	free  []Group
	inUse []bool
}

// NewGroupPool creates a pool of n groups, ids 1..n.
func NewGroupPool(n int) *GroupPool {
	p := &GroupPool{
		free:  make([]Group, 0, n),
		inUse: make([]bool, n+1),
	}
	// Lowest ids are handed out first.
	for id := n; id >= 1; id-- {
		p.free = append(p.free, Group(id))
	}
	return p
}

// Acquire takes a group from the free list.
func (p *GroupPool) Acquire() (Group, error) {
	if len(p.free) == 0 {
		return 0, ErrNoGroups
	}
	g := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	p.inUse[g] = true
	return g, nil
}

// Release returns g to the free list. Releasing an unknown or free group is a no-op.
func (p *GroupPool) Release(g Group) {
	if int(g) <= 0 || int(g) >= len(p.inUse) || !p.inUse[g] {
		return
	}
	p.inUse[g] = false
	p.free = append(p.free, g)
}

// InUse returns the number of acquired groups.
func (p *GroupPool) InUse() int {
	return p.Cap() - len(p.free)
}

// Cap returns the pool size.
func (p *GroupPool) Cap() int {
	return len(p.inUse) - 1
}
