package hotkey

import "sync/atomic"

// EdgeKind distinguishes engage from disengage.
type EdgeKind int

const (
	// Press is the rising edge: the binding became satisfied.
	Press EdgeKind = iota + 1
	// Release is the falling edge: the binding stopped being satisfied.
	Release
)

func (k EdgeKind) String() string {
	switch k {
	case Press:
		return "press"
	case Release:
		return "release"
	}
	return "unknown"
}

// Edge is handed from the listener thread to the consumer of Detector.Edges.
type Edge struct {
	Kind    EdgeKind
	Binding Binding
}

// Detector debounces raw observations into edges.
// Observe may be called repeatedly with the same state; only transitions
// produce an Edge. A Detector outlives the listeners that feed it, so a
// key held across a listener swap keeps its pressed state.
type Detector struct {
	pressed atomic.Bool
	binding atomic.Pointer[Binding]
	edges   chan Edge
}

// NewDetector returns a Detector with a buffered edge channel.
func NewDetector() *Detector {
	return &Detector{edges: make(chan Edge, 16)}
}

// Edges returns the channel edges are delivered on.
func (d *Detector) Edges() <-chan Edge {
	return d.edges
}

// Pressed reports the debounced key state.
func (d *Detector) Pressed() bool {
	return d.pressed.Load()
}

// Observe records the current match state of the active binding.
func (d *Detector) Observe(pressed bool) {
	if pressed {
		if d.pressed.CompareAndSwap(false, true) {
			d.send(Press)
		}
		return
	}
	if d.pressed.CompareAndSwap(true, false) {
		d.send(Release)
	}
}

// setBinding records the binding edges are attributed to.
func (d *Detector) setBinding(b Binding) {
	d.binding.Store(&b)
}

func (d *Detector) send(kind EdgeKind) {
	var b Binding
	if p := d.binding.Load(); p != nil {
		b = *p
	}
	d.edges <- Edge{Kind: kind, Binding: b}
}
