package genotype

// Removal primitives swap the removed element with the last one and shrink.
// Every call patches, in place, each edge and wire that referred to the
// removed index or to the former last index.

// RemoveNode deletes node i, every edge targeting it and every wire routed
// through those edges. The last node moves into slot i. It refuses to remove
// the only node.
func (g *Graph) RemoveNode(i int) bool {
	if len(g.Nodes) <= 1 || i < 0 || i >= len(g.Nodes) {
		return false
	}

	for p := range g.Edges {
		if p == i {
			continue
		}
		for j := len(g.Edges[p]) - 1; j >= 0; j-- {
			if g.Edges[p][j].Target == i {
				g.RemoveEdge(p, j)
			}
		}
	}

	last := len(g.Nodes) - 1
	g.Nodes[i] = g.Nodes[last]
	g.Nodes[last] = Node{}
	g.Nodes = g.Nodes[:last]
	if i < len(g.Edges) && last < len(g.Edges) {
		g.Edges[i] = g.Edges[last]
		g.Edges[last] = nil
		g.Edges = g.Edges[:last]
	}

	for p := range g.Edges {
		for j := range g.Edges[p] {
			e := &g.Edges[p][j]
			if e.Target == last {
				e.Target = i
			}
			e.Source = p
		}
	}

	switch g.Root {
	case i:
		g.Root = 0
	case last:
		g.Root = i
	}
	return true
}

// RemoveEdge deletes edge slot j of node. Wires of node addressing child
// slot j are deleted and those addressing the former last slot move to j;
// sensor and effector references to the node's joint slots are patched the
// same way, wherever they come from.
func (g *Graph) RemoveEdge(node, j int) bool {
	if node < 0 || node >= len(g.Edges) {
		return false
	}
	list := g.Edges[node]
	if j < 0 || j >= len(list) {
		return false
	}
	last := len(list) - 1
	list[j] = list[last]
	list[last] = Edge{}
	g.Edges[node] = list[:last]
	if len(g.Edges[node]) == 0 {
		g.Edges[node] = nil
	}

	// Child scopes of the owning node.
	g.filterWires(node, func(w *Wire) bool {
		if w.Scope.Kind != ScopeChild {
			return true
		}
		return patchIndex(&w.Scope.Index, j, last)
	})

	// Sensor and effector slots of the node, addressed from anywhere.
	g.eachWireInto(node, func(w *Wire) bool {
		if w.Gate.Category != Sensor && w.Gate.Category != Effector {
			return true
		}
		return patchIndex(&w.Gate.Index, j, last)
	})
	return true
}

// RemoveGate deletes gate slot gi of node and patches control references to it.
func (g *Graph) RemoveGate(node, gi int) bool {
	if node < 0 || node >= len(g.Nodes) {
		return false
	}
	gates := g.Nodes[node].Gates
	if gi < 0 || gi >= len(gates) {
		return false
	}
	last := len(gates) - 1
	gates[gi] = gates[last]
	gates[last] = GateNode{}
	g.Nodes[node].Gates = gates[:last]
	if len(g.Nodes[node].Gates) == 0 {
		g.Nodes[node].Gates = nil
	}

	g.eachWireInto(node, func(w *Wire) bool {
		if w.Gate.Category != Control {
			return true
		}
		return patchIndex(&w.Gate.Index, gi, last)
	})
	return true
}

// RemoveWire deletes wire slot wi of gate gi on node. Nothing refers to wires.
func (g *Graph) RemoveWire(node, gi, wi int) bool {
	if node < 0 || node >= len(g.Nodes) {
		return false
	}
	gates := g.Nodes[node].Gates
	if gi < 0 || gi >= len(gates) {
		return false
	}
	wires := gates[gi].Wires
	if wi < 0 || wi >= len(wires) {
		return false
	}
	last := len(wires) - 1
	wires[wi] = wires[last]
	gates[gi].Wires = wires[:last]
	if len(gates[gi].Wires) == 0 {
		gates[gi].Wires = nil
	}
	return true
}

// patchIndex rewrites a reference after slot removed was filled from slot
// last. It returns false when the reference pointed at the removed slot.
func patchIndex(idx *int, removed, last int) bool {
	switch *idx {
	case removed:
		return false
	case last:
		*idx = removed
	}
	return true
}

// filterWires keeps the wires of node for which keep returns true. keep may
// modify the wire.
func (g *Graph) filterWires(node int, keep func(*Wire) bool) {
	gates := g.Nodes[node].Gates
	for gi := range gates {
		wires := gates[gi].Wires
		n := 0
		for wi := range wires {
			if keep(&wires[wi]) {
				wires[n] = wires[wi]
				n++
			}
		}
		clear(wires[n:])
		if n == 0 {
			gates[gi].Wires = nil
		} else {
			gates[gi].Wires = wires[:n]
		}
	}
}

// eachWireInto filters every wire whose scope resolves to node: current-scope
// wires on node itself and child-scope wires on nodes with an edge slot
// targeting it. Child slots are matched exactly, not modulo.
func (g *Graph) eachWireInto(node int, keep func(*Wire) bool) {
	for p := range g.Nodes {
		var edges []Edge
		if p < len(g.Edges) {
			edges = g.Edges[p]
		}
		g.filterWires(p, func(w *Wire) bool {
			switch w.Scope.Kind {
			case ScopeCurrent:
				if p != node {
					return true
				}
			case ScopeChild:
				k := w.Scope.Index
				if k < 0 || k >= len(edges) || edges[k].Target != node {
					return true
				}
			}
			return keep(w)
		})
	}
}
