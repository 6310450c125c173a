package layout

// scopeState says whether the current traversal position may mutate page
// level state.
type scopeState int

const (
	pageMutable scopeState = iota
	pageRestricted
)

func (s scopeState) String() string {
	if s == pageRestricted {
		return "page-restricted"
	}
	return "page-mutable"
}

// scopeStack tracks scope states during traversal. It is created with a
// sentinel pageMutable frame representing the top level document flow; the
// sentinel is never popped. Only push and pop are exposed, so frames always
// unwind in LIFO order.
type scopeStack struct {
	frames []scopeState
}

func newScopeStack() *scopeStack {
	return &scopeStack{frames: []scopeState{pageMutable}}
}

func (s *scopeStack) push(state scopeState) {
	s.frames = append(s.frames, state)
}

// pop removes the most recent frame. Popping the sentinel means the traversal
// sequencing is broken beyond repair, so it fails fast instead of limping on.
func (s *scopeStack) pop() {
	if len(s.frames) <= 1 {
		panic("layout: scope stack pop past sentinel")
	}
	s.frames = s.frames[:len(s.frames)-1]
}

func (s *scopeStack) current() scopeState {
	return s.frames[len(s.frames)-1]
}

func (s *scopeStack) depth() int {
	return len(s.frames)
}

func (s *scopeStack) restricted() bool {
	return s.current() == pageRestricted
}
