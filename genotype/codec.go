package genotype

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/creatures/geom"
)

// maxCount bounds every record count.
const maxCount = 1 << 20

// maxPrealloc caps how many records a header count may reserve up front.
// Slices grow past it only as records are actually decoded.
const maxPrealloc = 64

// ErrMalformed is wrapped by every error returned from Read.
var ErrMalformed = errors.New("malformed genotype")

// ParseError describes where and why reading a genotype failed.
type ParseError struct {
	Token    int // zero-based token position
	Expected string
	Found    string
	Reason   string
	Err      error // underlying read failure, if any
}

func (e *ParseError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("genotype: token %d (%q): %s", e.Token, e.Found, e.Reason)
	}
	return fmt.Sprintf("genotype: token %d: expected %s, found %q", e.Token, e.Expected, e.Found)
}

func (e *ParseError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrMalformed, e.Err}
	}
	return []error{ErrMalformed}
}

// Write encodes g in the whitespace-separated text format.
func Write(w io.Writer, g *Graph) error {
	bw := bufio.NewWriter(w)
	enc := encoder{w: bw}

	enc.line("GENOTYPE", itoa(g.Root), itoa(len(g.Nodes)))
	for i, node := range g.Nodes {
		enc.node(node)
		enc.line(itoa(len(node.Gates)))
		for _, gn := range node.Gates {
			enc.gate(gn)
		}
		var edges []Edge
		if i < len(g.Edges) {
			edges = g.Edges[i]
		}
		enc.line(itoa(len(edges)))
		for _, e := range edges {
			enc.edge(e)
		}
	}
	if enc.err != nil {
		return fmt.Errorf("writing genotype: %w", enc.err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing genotype: %w", err)
	}
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (g *Graph) MarshalText() ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, g); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *Graph) UnmarshalText(text []byte) error {
	parsed, err := Read(bytes.NewReader(text))
	if err != nil {
		return err
	}
	*g = *parsed
	return nil
}

// SaveFile writes g to path.
func SaveFile(path string, g *Graph) error {
	data, err := g.MarshalText()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing genotype file: %w", err)
	}
	return nil
}

// LoadFile reads a genotype from path.
func LoadFile(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening genotype file: %w", err)
	}
	defer f.Close()
	return Read(f)
}

type encoder struct {
	w   *bufio.Writer
	err error
}

func (e *encoder) line(tokens ...string) {
	if e.err != nil {
		return
	}
	for i, t := range tokens {
		if i > 0 {
			if e.err = e.w.WriteByte(' '); e.err != nil {
				return
			}
		}
		if _, e.err = e.w.WriteString(t); e.err != nil {
			return
		}
	}
	e.err = e.w.WriteByte('\n')
}

func (e *encoder) node(n Node) {
	c := n.Color
	tokens := []string{"NODE", ftoa(c.X), ftoa(c.Y), ftoa(c.Z), n.Shape.Kind.String()}
	switch n.Shape.Kind {
	case geom.ShapeSphere:
		tokens = append(tokens, ftoa(n.Shape.Radius))
	case geom.ShapeCapsule:
		tokens = append(tokens, ftoa(n.Shape.Length), ftoa(n.Shape.Radius))
	default:
		tokens = append(tokens, vtoa(n.Shape.Size)...)
	}
	e.line(tokens...)
}

func (e *encoder) gate(gn GateNode) {
	tokens := []string{"GATE", gn.Name, itoa(len(gn.Params))}
	for _, p := range gn.Params {
		tokens = append(tokens, ftoa(p))
	}
	tokens = append(tokens, itoa(len(gn.Wires)))
	e.line(tokens...)
	for _, w := range gn.Wires {
		e.line("WIRE", w.Scope.Kind.String(), itoa(w.Scope.Index),
			w.Gate.Category.String(), itoa(w.Gate.Index), itoa(w.Direction))
	}
}

func (e *encoder) edge(ed Edge) {
	q := ed.Rot
	tokens := []string{"EDGE", itoa(ed.Source), itoa(ed.Target),
		ftoa(q.Real), ftoa(q.Imag), ftoa(q.Jmag), ftoa(q.Kmag),
		ftoa(ed.Scale), itoa(ed.Reflect)}
	for _, v := range []r3.Vec{ed.SPoint, ed.TPoint, ed.SAxis, ed.TAxis, ed.SNorm, ed.TNorm} {
		tokens = append(tokens, vtoa(v)...)
	}
	tokens = append(tokens, ftoa(ed.Strength), ftoa(ed.Stiffness))
	e.line(tokens...)
}

func itoa(v int) string { return strconv.Itoa(v) }

func ftoa(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

func vtoa(v r3.Vec) []string { return []string{ftoa(v.X), ftoa(v.Y), ftoa(v.Z)} }

// Read decodes a genotype. The result is structurally checked but not
// normalized.
func Read(r io.Reader) (*Graph, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	sc.Split(bufio.ScanWords)
	d := &decoder{sc: sc}

	g, err := d.graph()
	if err != nil {
		return nil, err
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading genotype: %w", err)
	}
	return g, nil
}

type decoder struct {
	sc  *bufio.Scanner
	pos int
}

func (d *decoder) next(expected string) (string, error) {
	if !d.sc.Scan() {
		if err := d.sc.Err(); err != nil {
			return "", &ParseError{Token: d.pos, Found: "unreadable token", Reason: err.Error(), Err: err}
		}
		return "", &ParseError{Token: d.pos, Expected: expected, Found: "EOF"}
	}
	d.pos++
	return d.sc.Text(), nil
}

func (d *decoder) fail(found, reason string) error {
	return &ParseError{Token: d.pos - 1, Found: found, Reason: reason}
}

func (d *decoder) tag(want string) error {
	tok, err := d.next(want)
	if err != nil {
		return err
	}
	if tok != want {
		return &ParseError{Token: d.pos - 1, Expected: want, Found: tok}
	}
	return nil
}

func (d *decoder) integer(what string) (int, error) {
	tok, err := d.next(what)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(tok)
	if err != nil {
		return 0, &ParseError{Token: d.pos - 1, Expected: what, Found: tok}
	}
	return v, nil
}

func (d *decoder) count(what string) (int, error) {
	v, err := d.integer(what)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, d.fail(itoa(v), "negative "+what)
	}
	if v > maxCount {
		return 0, d.fail(itoa(v), what+" too large")
	}
	return v, nil
}

func (d *decoder) number(what string) (float64, error) {
	tok, err := d.next(what)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, &ParseError{Token: d.pos - 1, Expected: what, Found: tok}
	}
	return v, nil
}

func (d *decoder) vec(what string) (r3.Vec, error) {
	var v r3.Vec
	var err error
	if v.X, err = d.number(what); err != nil {
		return v, err
	}
	if v.Y, err = d.number(what); err != nil {
		return v, err
	}
	v.Z, err = d.number(what)
	return v, err
}

func (d *decoder) graph() (*Graph, error) {
	if err := d.tag("GENOTYPE"); err != nil {
		return nil, err
	}
	root, err := d.integer("root index")
	if err != nil {
		return nil, err
	}
	n, err := d.count("node count")
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, d.fail("0", "genotype has no nodes")
	}
	if root < 0 || root >= n {
		return nil, &ParseError{Token: 1, Found: itoa(root), Reason: "root index out of range"}
	}

	g := &Graph{
		Root:  root,
		Nodes: make([]Node, 0, min(n, maxPrealloc)),
		Edges: make([][]Edge, 0, min(n, maxPrealloc)),
	}
	for i := range n {
		node, err := d.node()
		if err != nil {
			return nil, err
		}
		g.Nodes = append(g.Nodes, node)
		ne, err := d.count("edge count")
		if err != nil {
			return nil, err
		}
		var edges []Edge
		if ne > 0 {
			edges = make([]Edge, 0, min(ne, maxPrealloc))
		}
		for range ne {
			e, err := d.edge(i, n)
			if err != nil {
				return nil, err
			}
			edges = append(edges, e)
		}
		g.Edges = append(g.Edges, edges)
	}
	return g, nil
}

func (d *decoder) node() (Node, error) {
	var node Node
	if err := d.tag("NODE"); err != nil {
		return node, err
	}
	var err error
	if node.Color, err = d.vec("color"); err != nil {
		return node, err
	}
	kind, err := d.next("shape tag")
	if err != nil {
		return node, err
	}
	switch kind {
	case "BOX":
		size, err := d.vec("box size")
		if err != nil {
			return node, err
		}
		node.Shape = geom.Shape{Kind: geom.ShapeBox, Size: size}
	case "SPHERE":
		r, err := d.number("sphere radius")
		if err != nil {
			return node, err
		}
		node.Shape = geom.Sphere(r)
	case "CAPSULE":
		l, err := d.number("capsule length")
		if err != nil {
			return node, err
		}
		r, err := d.number("capsule radius")
		if err != nil {
			return node, err
		}
		node.Shape = geom.Capsule(l, r)
	default:
		return node, &ParseError{Token: d.pos - 1, Expected: "BOX, SPHERE or CAPSULE", Found: kind}
	}

	ng, err := d.count("gate count")
	if err != nil {
		return node, err
	}
	if ng > 0 {
		node.Gates = make([]GateNode, 0, min(ng, maxPrealloc))
	}
	for range ng {
		gn, err := d.gate()
		if err != nil {
			return node, err
		}
		node.Gates = append(node.Gates, gn)
	}
	return node, nil
}

func (d *decoder) gate() (GateNode, error) {
	var gn GateNode
	if err := d.tag("GATE"); err != nil {
		return gn, err
	}
	var err error
	if gn.Name, err = d.next("gate name"); err != nil {
		return gn, err
	}
	np, err := d.count("parameter count")
	if err != nil {
		return gn, err
	}
	if np > 0 {
		gn.Params = make([]float64, 0, min(np, maxPrealloc))
	}
	for range np {
		v, err := d.number("gate parameter")
		if err != nil {
			return gn, err
		}
		gn.Params = append(gn.Params, v)
	}
	nw, err := d.count("wire count")
	if err != nil {
		return gn, err
	}
	if nw > 0 {
		gn.Wires = make([]Wire, 0, min(nw, maxPrealloc))
	}
	for range nw {
		w, err := d.wire()
		if err != nil {
			return gn, err
		}
		gn.Wires = append(gn.Wires, w)
	}
	return gn, nil
}

func (d *decoder) wire() (Wire, error) {
	var w Wire
	if err := d.tag("WIRE"); err != nil {
		return w, err
	}
	scope, err := d.next("scope tag")
	if err != nil {
		return w, err
	}
	switch scope {
	case "CURRENT":
		w.Scope.Kind = ScopeCurrent
	case "CHILD":
		w.Scope.Kind = ScopeChild
	default:
		return w, &ParseError{Token: d.pos - 1, Expected: "CURRENT or CHILD", Found: scope}
	}
	if w.Scope.Index, err = d.integer("node index"); err != nil {
		return w, err
	}
	cat, err := d.next("category tag")
	if err != nil {
		return w, err
	}
	switch cat {
	case "SENSOR":
		w.Gate.Category = Sensor
	case "EFFECTOR":
		w.Gate.Category = Effector
	case "CONTROL":
		w.Gate.Category = Control
	default:
		return w, &ParseError{Token: d.pos - 1, Expected: "SENSOR, EFFECTOR or CONTROL", Found: cat}
	}
	if w.Gate.Index, err = d.integer("gate index"); err != nil {
		return w, err
	}
	w.Direction, err = d.integer("direction")
	return w, err
}

func (d *decoder) edge(src, nodes int) (Edge, error) {
	var e Edge
	if err := d.tag("EDGE"); err != nil {
		return e, err
	}
	var err error
	if e.Source, err = d.integer("edge source"); err != nil {
		return e, err
	}
	if e.Source != src {
		return e, d.fail(itoa(e.Source), fmt.Sprintf("edge source disagrees with containing node %d", src))
	}
	if e.Target, err = d.integer("edge target"); err != nil {
		return e, err
	}
	if e.Target < 0 || e.Target >= nodes {
		return e, d.fail(itoa(e.Target), fmt.Sprintf("edge target out of range [0,%d)", nodes))
	}

	var q quat.Number
	for _, f := range []*float64{&q.Real, &q.Imag, &q.Jmag, &q.Kmag} {
		if *f, err = d.number("rotation"); err != nil {
			return e, err
		}
	}
	e.Rot = q
	if e.Scale, err = d.number("scale"); err != nil {
		return e, err
	}
	if e.Reflect, err = d.integer("reflect"); err != nil {
		return e, err
	}
	for _, v := range []*r3.Vec{&e.SPoint, &e.TPoint, &e.SAxis, &e.TAxis, &e.SNorm, &e.TNorm} {
		if *v, err = d.vec("attachment vector"); err != nil {
			return e, err
		}
	}
	if e.Strength, err = d.number("strength"); err != nil {
		return e, err
	}
	e.Stiffness, err = d.number("stiffness")
	return e, err
}
