package physics

// Counter wraps a World and counts successful creations and destructions.
type Counter struct {
	World

	BodiesCreated   int
	BodiesDestroyed int
	JointsCreated   int
	JointsDestroyed int
}

// NewCounter wraps w.
func NewCounter(w World) *Counter {
	return &Counter{World: w}
}

func (c *Counter) CreateBody(d BodyDesc) (BodyID, error) {
	id, err := c.World.CreateBody(d)
	if err == nil {
		c.BodiesCreated++
	}
	return id, err
}

func (c *Counter) DestroyBody(id BodyID) error {
	err := c.World.DestroyBody(id)
	if err == nil {
		c.BodiesDestroyed++
	}
	return err
}

func (c *Counter) CreateJoint(d JointDesc) (JointID, error) {
	id, err := c.World.CreateJoint(d)
	if err == nil {
		c.JointsCreated++
	}
	return id, err
}

func (c *Counter) DestroyJoint(id JointID) error {
	err := c.World.DestroyJoint(id)
	if err == nil {
		c.JointsDestroyed++
	}
	return err
}

// LiveBodies returns created minus destroyed bodies.
func (c *Counter) LiveBodies() int { return c.BodiesCreated - c.BodiesDestroyed }

// LiveJoints returns created minus destroyed joints.
func (c *Counter) LiveJoints() int { return c.JointsCreated - c.JointsDestroyed }
