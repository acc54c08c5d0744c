package circuit

// Circuit owns the gates and channels of one creature.
// Gates and channels are addressed by index and only ever removed from the tail.
type Circuit struct {
	gates    []Gate
	channels []*Channel
}

// Mark records the circuit size so a failed build step can roll back to it.
type Mark struct {
	gates, channels int
}

// Add appends a gate and returns its index.
func (c *Circuit) Add(g Gate) int {
	c.gates = append(c.gates, g)
	return len(c.gates) - 1
}

// Gate returns the gate at index i.
func (c *Circuit) Gate(i int) Gate {
	return c.gates[i]
}

// Len returns the number of gates.
func (c *Circuit) Len() int { return len(c.gates) }

// NumChannels returns the number of allocated channels.
func (c *Circuit) NumChannels() int { return len(c.channels) }

// Connect allocates a channel from an output of gate src to an input of gate dst.
func (c *Circuit) Connect(src, dst int) *Channel {
	ch := &Channel{}
	c.channels = append(c.channels, ch)
	out := c.gates[src].IO()
	out.out = append(out.out, ch)
	in := c.gates[dst].IO()
	in.in = append(in.in, ch)
	return ch
}

// Update runs every gate once in insertion order.
func (c *Circuit) Update() {
	for _, g := range c.gates {
		g.Update()
	}
}

// Mark returns the current size.
func (c *Circuit) Mark() Mark {
	return Mark{gates: len(c.gates), channels: len(c.channels)}
}

// Truncate drops every gate and channel added after m. Channels dropped this
// way must only have been connected between gates that are dropped too.
func (c *Circuit) Truncate(m Mark) {
	if m.gates < len(c.gates) {
		clear(c.gates[m.gates:])
		c.gates = c.gates[:m.gates]
	}
	if m.channels < len(c.channels) {
		clear(c.channels[m.channels:])
		c.channels = c.channels[:m.channels]
	}
}

// Reset drops everything.
func (c *Circuit) Reset() {
	c.Truncate(Mark{})
}
