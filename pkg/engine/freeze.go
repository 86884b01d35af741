package engine

// freezeContext holds the values bound on the current enumeration path.
// Slots are indexed by NodeID, so identity decides what is shared: a node
// reached twice on one path is bound once. The trail records bind order so
// that backtracking can unbind exactly the suffix added after a choice.
type freezeContext struct {
	vals  []any
	set   []bool
	trail []NodeID
}

func newFreezeContext(size int) *freezeContext {
	return &freezeContext{
		vals: make([]any, size),
		set:  make([]bool, size),
	}
}

func (fc *freezeContext) frozen(id NodeID) bool {
	return fc.set[id]
}

func (fc *freezeContext) value(id NodeID) any {
	return fc.vals[id]
}

func (fc *freezeContext) freeze(id NodeID, v any) {
	fc.vals[id] = v
	fc.set[id] = true
	fc.trail = append(fc.trail, id)
}

// mark returns the current trail length, to be passed to unwind.
func (fc *freezeContext) mark() int {
	return len(fc.trail)
}

// unwind unbinds every node frozen after mark.
func (fc *freezeContext) unwind(mark int) {
	for i := len(fc.trail) - 1; i >= mark; i-- {
		id := fc.trail[i]
		fc.vals[id] = nil
		fc.set[id] = false
	}
	fc.trail = fc.trail[:mark]
}

// reset unbinds everything.
func (fc *freezeContext) reset() {
	fc.unwind(0)
}
