package lrx

// Recovery scoring and fanout bounds.
const (
	recoverInsert                 = 200
	recoverDelete                 = 190
	recoverReduce                 = 100
	recoverMaxNext                = 4
	recoverMaxInsertStackDepth    = 300
	recoverDampenInsertStackDepth = 120
)

// Buffer record sentinels stored in the size word.
const (
	bufReusedTree  = -1
	bufProperty    = -2
	bufContextHash = -3
	bufLookAhead   = -4
)

// PropMounted is the property id used for mounted nested trees.
const PropMounted = 1

// Stack is one version of the parse stack. Splitting shares the frames by
// copying and the buffer by parent reference: once a stack has forked, the
// buffers of its ancestors are frozen and new records only land in the
// local tail.
type Stack struct {
	p  *Parse
	id int

	// state is the current LR state.
	state int

	// frames holds (state, startPos, bufferBase) triples, one per push.
	frames []int

	// pos is the input position consumed so far; reducePos the position
	// the next reduction nominally ends at. reducePos trails pos only
	// while skipped tokens have been shifted but not absorbed.
	pos       int
	reducePos int

	score int

	// buffer is the local tail of the node buffer: flat (term, start,
	// end, size) records. bufferBase is the absolute offset at which it
	// begins; records below it live in the parent chain.
	buffer     []int
	bufferBase int
	parent     *Stack

	curContext *stackContext
	lookAhead  int

	// gapPos tracks up to where gap placeholder nodes have been emitted.
	gapPos int
}

// startStack creates the initial stack for a parse.
func startStack(p *Parse, state, pos int) *Stack {
	s := &Stack{p: p, id: p.newStackID(), state: state, pos: pos, reducePos: pos}
	if cx := p.lang.context; cx != nil {
		s.curContext = newStackContext(cx, cx.start())
	}
	return s
}

func (s *Stack) lang() *Language { return s.p.lang }

// Pos returns the input position the stack has consumed up to.
func (s *Stack) Pos() int { return s.pos }

// ReducePos returns the position the next reduction nominally ends at.
func (s *Stack) ReducePos() int { return s.reducePos }

// Score returns the stack's accumulated precedence/recovery score.
func (s *Stack) Score() int { return s.score }

// State returns the current LR state.
func (s *Stack) State() int { return s.state }

// Context returns the current context-tracker value, or nil.
func (s *Stack) Context() any {
	if s.curContext == nil {
		return nil
	}
	return s.curContext.context
}

// pushState records the current state as a frame and enters state.
func (s *Stack) pushState(state, start int) {
	s.frames = append(s.frames, s.state, start, s.bufferBase+len(s.buffer))
	s.state = state
}

// Apply is the single mutating entry point the driver uses: reduce
// actions collapse frames, everything else shifts.
func (s *Stack) Apply(action uint32, next, nextStart, nextEnd int) {
	if action&ActionReduceFlag > 0 {
		s.reduce(action)
	} else {
		s.shift(action, next, nextStart, nextEnd)
	}
}

func (s *Stack) reduce(action uint32) {
	depth, term := actionDepth(action), actionValue(action)
	lang := s.lang()

	if dPrec := lang.DynamicPrecedence(term); dPrec != 0 {
		s.score += dPrec
	}

	if depth == 0 {
		s.pushState(lang.GetGoto(s.state, term, true), s.reducePos)
		// Zero-depth reductions add to the stack without popping.
		if term < lang.minRepeat {
			s.storeNode(term, s.reducePos, s.reducePos, 4, true)
		}
		s.reduceContext(term, s.reducePos)
		return
	}

	base := len(s.frames) - (depth-1)*3
	if action&ActionStayFlag > 0 {
		base -= 6
	}
	start, bufferBase := s.p.startPos, 0
	if base > 0 {
		start = s.frames[base-2]
		bufferBase = s.frames[base-1]
	}
	count := s.bufferBase + len(s.buffer) - bufferBase

	if term < lang.minRepeat || action&ActionRepeatFlag > 0 {
		end := s.reducePos
		if lang.StateFlag(s.state, StateSkipped) {
			end = s.pos
		}
		s.storeNode(term, start, end, count+4, true)
	}

	if action&ActionStayFlag > 0 {
		s.state = s.frames[base]
	} else if base >= 3 {
		s.state = lang.GetGoto(s.frames[base-3], term, true)
	}
	if base < 0 {
		base = 0
	}
	s.frames = s.frames[:base]
	s.reduceContext(term, start)
}

func (s *Stack) shift(action uint32, next, nextStart, nextEnd int) {
	if action&ActionGotoFlag > 0 {
		// Non-consuming state change.
		s.pushState(actionValue(action), s.pos)
		return
	}
	lang := s.lang()
	if action&ActionStayFlag == 0 {
		nextState := int(action)
		if nextEnd > s.pos || next <= lang.maxNode {
			s.pos = nextEnd
			if !lang.StateFlag(nextState, StateSkipped) {
				s.reducePos = nextEnd
			}
		}
		s.pushState(nextState, nextStart)
		s.shiftContext(next, nextStart)
		if next <= lang.maxNode {
			size := 4 + s.maybeInsertGapNodes(nextStart, nextEnd)
			s.buffer = append(s.buffer, next, nextStart, nextEnd, size)
			s.checkNesting(next, nextStart, nextEnd)
		}
	} else {
		// Shift-and-stay: a skipped token. The state is untouched and
		// reducePos stays behind pos.
		s.pos = nextEnd
		s.shiftContext(next, nextStart)
		if next <= lang.maxNode {
			size := 4 + s.maybeInsertGapNodes(nextStart, nextEnd)
			s.buffer = append(s.buffer, next, nextStart, nextEnd, size)
			s.checkNesting(next, nextStart, nextEnd)
		}
	}
}

// maybeInsertGapNodes emits placeholder records for gaps the region about
// to be stored runs past. Gaps inside [start, end) become children of the
// upcoming record, so their record size is returned for inflation.
func (s *Stack) maybeInsertGapNodes(start, end int) int {
	if len(s.p.gaps) == 0 || s.p.placeholder <= 0 {
		return 0
	}
	extra := 0
	for _, g := range s.p.gaps {
		if g.End <= s.gapPos || g.Start >= end {
			continue
		}
		s.buffer = append(s.buffer, s.p.placeholder, g.Start, g.End, 4)
		if g.Start >= start {
			extra += 4
		}
		s.gapPos = g.End
	}
	return extra
}

// storeNode appends a (term, start, end, size) record. Error terms are
// coalesced with a directly preceding error record, possibly in an
// ancestor buffer. A reduction that ends before the current position has
// to sink below trailing skipped-token records, which are slid forward.
func (s *Stack) storeNode(term, start, end, size int, isReduce bool) {
	if term == TermErr {
		cur, top := s, len(s.buffer)
		if top == 0 && cur.parent != nil {
			top = cur.bufferBase - cur.parent.bufferBase
			cur = cur.parent
		}
		if top > 0 && cur.buffer[top-4] == TermErr && cur.buffer[top-1] > -1 {
			if start == end {
				return
			}
			if cur.buffer[top-2] >= start {
				cur.buffer[top-2] = end
				return
			}
		}
	}

	if !isReduce || s.pos == end {
		s.buffer = append(s.buffer, term, start, end, size)
	} else {
		index := len(s.buffer)
		if index > 0 && s.buffer[index-4] != TermErr {
			mustMove := false
			for scan := index; scan > 0 && s.buffer[scan-2] > end; scan -= 4 {
				mustMove = true
			}
			if mustMove {
				s.buffer = append(s.buffer, 0, 0, 0, 0)
				for index > 0 && s.buffer[index-2] > end {
					// Slide the record forward by one slot.
					s.buffer[index] = s.buffer[index-4]
					s.buffer[index+1] = s.buffer[index-3]
					s.buffer[index+2] = s.buffer[index-2]
					s.buffer[index+3] = s.buffer[index-1]
					index -= 4
					if size > 4 {
						size -= 4
					}
				}
				s.buffer[index] = term
				s.buffer[index+1] = start
				s.buffer[index+2] = end
				s.buffer[index+3] = size
				s.checkNesting(term, start, end)
				return
			}
		}
		s.buffer = append(s.buffer, term, start, end, size)
	}
	s.checkNesting(term, start, end)
}

// checkNesting records a nested-parse descriptor when the stored term is
// a nesting key of the grammar.
func (s *Stack) checkNesting(term, start, end int) {
	nested := s.lang().nested
	if nested == nil {
		return
	}
	factory, ok := nested[term]
	if !ok {
		return
	}
	if d := factory(s.p.input, s, start, end); d != nil {
		s.p.nestInfo[s.id] = d
	}
}

// Split forks the stack. Records past reducePos (outstanding skipped
// tokens) are still subject to reordering, so they move into the child's
// private buffer; everything below stays shared and frozen.
func (s *Stack) Split() *Stack {
	parent := s
	off := len(parent.buffer)
	for off > 0 && parent.buffer[off-2] > parent.reducePos {
		off -= 4
	}
	buffer := append([]int(nil), parent.buffer[off:]...)
	base := parent.bufferBase + off
	for parent != nil && base == parent.bufferBase {
		parent = parent.parent
	}
	frames := append([]int(nil), s.frames...)
	return &Stack{
		p:          s.p,
		id:         s.p.newStackID(),
		state:      s.state,
		frames:     frames,
		pos:        s.pos,
		reducePos:  s.reducePos,
		score:      s.score,
		buffer:     buffer,
		bufferBase: base,
		parent:     parent,
		curContext: s.curContext,
		lookAhead:  s.lookAhead,
		gapPos:     s.gapPos,
	}
}

// CanShift reports whether term can eventually be shifted from the
// current state, applying forced default reductions on a simulated stack
// without touching the real one.
func (s *Stack) CanShift(term int) bool {
	lang := s.lang()
	for sim := newSimulatedStack(s); ; {
		action := lang.StateSlot(sim.state, stateDefaultReduce)
		if action == 0 {
			action = lang.HasAction(sim.state, term)
		}
		if action == 0 {
			return false
		}
		if action&ActionReduceFlag == 0 {
			return true
		}
		sim.reduce(action)
	}
}

// StartOf walks the chain of forced reductions and returns the start
// position of the topmost reduction producing one of terms whose start
// lies before the given position (pass a negative value for no bound).
// Returns -1 when no such reduction is reachable.
func (s *Stack) StartOf(terms []int, before int) int {
	lang := s.lang()
	sim := newSimulatedStack(s)
	for steps := len(s.frames)/3 + 1; steps > 0; steps-- {
		force := lang.StateSlot(sim.state, stateForcedReduce)
		if force&ActionReduceFlag == 0 {
			return -1
		}
		depth, term := actionDepth(force), actionValue(force)
		if depth == 0 {
			return -1
		}
		base := sim.base - (depth-1)*3
		start := s.p.startPos
		if base > 2 {
			start = sim.frames[base-2]
		}
		for _, t := range terms {
			if t == term && (before < 0 || start < before) {
				return start
			}
		}
		if base <= 3 {
			return -1
		}
		sim.reduce(force)
	}
	return -1
}

// MayNestFrom returns the earliest position at which a forced reduction
// producing a key of the nesting table begins, or -1. The driver uses it
// to decide whether attempting a nested parse is worthwhile.
func (s *Stack) MayNestFrom(keys map[int]NestedFactory) int {
	lang := s.lang()
	sim := newSimulatedStack(s)
	earliest := -1
	for steps := len(s.frames)/3 + 1; steps > 0; steps-- {
		force := lang.StateSlot(sim.state, stateForcedReduce)
		if force&ActionReduceFlag == 0 {
			break
		}
		depth, term := actionDepth(force), actionValue(force)
		if depth == 0 {
			break
		}
		base := sim.base - (depth-1)*3
		start := s.p.startPos
		if base > 2 {
			start = sim.frames[base-2]
		}
		if _, ok := keys[term]; ok && (earliest < 0 || start < earliest) {
			earliest = start
		}
		if base <= 3 {
			break
		}
		sim.reduce(force)
	}
	return earliest
}

// RecoverByInsert forks the stack for each candidate state that might
// continue after inserting a zero-width error node. At most
// recoverMaxNext stacks come back, fewer when the stack is already deep.
func (s *Stack) RecoverByInsert(next int) []*Stack {
	if len(s.frames) >= recoverMaxInsertStackDepth {
		return nil
	}
	lang := s.lang()
	nextStates := lang.NextStates(s.state)
	if len(nextStates) > recoverMaxNext<<1 || len(s.frames) >= recoverDampenInsertStackDepth {
		var best []int
		for i := 0; i < len(nextStates); i += 2 {
			if state := nextStates[i+1]; state != s.state && lang.HasAction(state, next) != 0 {
				best = append(best, nextStates[i], state)
			}
		}
		if len(s.frames) < recoverDampenInsertStackDepth {
			for i := 0; len(best) < recoverMaxNext<<1 && i < len(nextStates); i += 2 {
				state := nextStates[i+1]
				seen := false
				for j := 1; j < len(best); j += 2 {
					if best[j] == state {
						seen = true
						break
					}
				}
				if !seen {
					best = append(best, nextStates[i], state)
				}
			}
		}
		nextStates = best
	}
	var result []*Stack
	for i := 0; i < len(nextStates) && len(result) < recoverMaxNext; i += 2 {
		state := nextStates[i+1]
		if state == s.state {
			continue
		}
		stack := s.Split()
		stack.pushState(state, s.pos)
		stack.storeNode(TermErr, stack.pos, stack.pos, 4, true)
		stack.shiftContext(nextStates[i], s.pos)
		stack.reducePos = s.pos
		stack.score -= recoverInsert
		result = append(result, stack)
	}
	return result
}

// RecoverByDelete skips the next token, storing it (when it is a node
// term) wrapped in an error node.
func (s *Stack) RecoverByDelete(next, nextEnd int) {
	isNode := next <= s.lang().maxNode
	if isNode {
		s.storeNode(next, s.pos, nextEnd, 4, false)
	}
	errSize := 4
	if isNode {
		errSize = 8
	}
	s.storeNode(TermErr, s.pos, nextEnd, errSize, false)
	s.pos = nextEnd
	s.reducePos = nextEnd
	s.score -= recoverDelete
}

// ForceReduce takes the state's forced reduction. When that action is not
// currently valid, an error node marks the spot and the score drops, but
// the reduction still happens so the stack keeps making progress.
func (s *Stack) ForceReduce() bool {
	lang := s.lang()
	reduce := lang.StateSlot(s.state, stateForcedReduce)
	if reduce&ActionReduceFlag == 0 {
		return false
	}
	if !lang.ValidAction(s.state, reduce) {
		depth, term := actionDepth(reduce), actionValue(reduce)
		target := len(s.frames) - depth*3
		if target < 0 || target >= len(s.frames) || lang.GetGoto(s.frames[target], term, false) < 0 {
			backup, ok := s.findForcedReduction()
			if !ok {
				return false
			}
			reduce = backup
		}
		s.storeNode(TermErr, s.pos, s.pos, 4, true)
		s.score -= recoverReduce
	}
	s.reducePos = s.pos
	s.reduce(reduce)
	return true
}

// findForcedReduction scans the state graph for a reduction deep enough
// to reach a frame with a valid goto, as a fallback when the table's
// forced reduction cannot apply.
func (s *Stack) findForcedReduction() (uint32, bool) {
	lang := s.lang()
	var seen []int
	var explore func(state, depth int) uint32
	explore = func(state, depth int) uint32 {
		for _, v := range seen {
			if v == state {
				return 0
			}
		}
		seen = append(seen, state)
		return lang.allActions(state, func(action uint32) uint32 {
			switch {
			case action&(ActionStayFlag|ActionGotoFlag) > 0 && action&ActionReduceFlag == 0:
				return 0
			case action&ActionReduceFlag > 0:
				rDepth := actionDepth(action) - depth
				if rDepth > 1 {
					term := actionValue(action)
					target := len(s.frames) - rDepth*3
					if target >= 0 && lang.GetGoto(s.frames[target], term, false) >= 0 {
						return Reduce(term, rDepth, 0)
					}
				}
				return 0
			default:
				return explore(int(action&ActionValueMask), depth+1)
			}
		})
	}
	action := explore(s.state, 0)
	return action, action != 0
}

// ForceAll drains the stack through forced reductions until it reaches an
// accepting state. Idempotent on an accepting stack.
func (s *Stack) ForceAll() *Stack {
	for !s.lang().StateFlag(s.state, StateAccepting) {
		if !s.ForceReduce() {
			s.storeNode(TermErr, s.pos, s.pos, 4, true)
			break
		}
	}
	return s
}

// DeadEnd is true only when the stack is at its initial depth and the
// current state offers no actions at all.
func (s *Stack) DeadEnd() bool {
	if len(s.frames) != 3 {
		return false
	}
	lang := s.lang()
	return lang.data[lang.StateSlot(s.state, stateActions)] == seqEnd &&
		lang.StateSlot(s.state, stateDefaultReduce) == 0
}

// Restart drops the stack back to its base frame, leaving an error node
// for everything abandoned.
func (s *Stack) Restart() {
	s.storeNode(TermErr, s.pos, s.pos, 4, true)
	s.state = s.frames[0]
	s.frames = s.frames[:3]
}

// SameState reports whether two stacks are in the same state with the
// same frame states, which makes one of them redundant.
func (s *Stack) SameState(other *Stack) bool {
	if s.state != other.state || len(s.frames) != len(other.frames) {
		return false
	}
	for i := 0; i < len(s.frames); i += 3 {
		if s.frames[i] != other.frames[i] {
			return false
		}
	}
	return true
}

// DialectEnabled queries a dialect flag by id.
func (s *Stack) DialectEnabled(dialectID int) bool {
	flags := s.lang().dialect.Flags
	return dialectID < len(flags) && flags[dialectID]
}

// UseNode installs a prebuilt subtree at the current position, skipping
// the input it covers.
func (s *Stack) UseNode(value *Tree, next int) {
	index := len(s.p.reused) - 1
	if index < 0 || s.p.reused[index] != value {
		s.p.reused = append(s.p.reused, value)
		index++
	}
	start := s.pos
	s.reducePos = start + value.Length()
	s.pos = s.reducePos
	s.pushState(next, start)
	s.buffer = append(s.buffer, index, start, s.reducePos, bufReusedTree)
	if s.curContext != nil && s.curContext.tracker.Reuse != nil {
		s.updateContext(s.curContext.tracker.Reuse(
			s.curContext.context, value, s, s.p.stream.Reset(s.pos, nil)))
	}
}

// Mount attaches a mounted-tree property to the current node.
func (s *Stack) Mount(tree *Tree) {
	index := len(s.p.propValues) - 1
	if index < 0 || s.p.propValues[index] != tree {
		s.p.propValues = append(s.p.propValues, tree)
		index++
	}
	s.buffer = append(s.buffer, index, s.reducePos, PropMounted, bufProperty)
}

// MaterializeTopNode converts the top buffer record and its covered
// descendants into a reused-tree entry, capping buffer growth. Returns
// false when the covered region does not line up with buffer boundaries.
func (s *Stack) MaterializeTopNode() bool {
	if len(s.buffer) == 0 {
		return false
	}
	topSize := s.buffer[len(s.buffer)-1]
	if topSize < 4 {
		return false
	}
	endAbs := s.bufferBase + len(s.buffer)
	startAbs := endAbs - topSize
	if startAbs < 0 {
		return false
	}

	var reroot *Stack
	if startAbs < s.bufferBase {
		anc := s.parent
		for anc != nil && anc.bufferBase+len(anc.buffer) > startAbs {
			anc = anc.parent
		}
		if anc == nil {
			if startAbs != 0 {
				return false
			}
		} else if anc.bufferBase+len(anc.buffer) != startAbs {
			return false
		}
		reroot = anc
	}

	cursor := newBufferCursor(s)
	tree := buildTree(s.p, cursor, startAbs)
	if tree == nil {
		return false
	}

	if startAbs < s.bufferBase {
		s.parent = reroot
		s.buffer = nil
		s.bufferBase = startAbs
	} else {
		s.buffer = s.buffer[:startAbs-s.bufferBase]
	}

	index := len(s.p.reused) - 1
	if index < 0 || s.p.reused[index] != tree {
		s.p.reused = append(s.p.reused, tree)
		index++
	}
	s.buffer = append(s.buffer, index, tree.From, tree.To, bufReusedTree)
	return true
}

// SetLookAhead widens the recorded lookahead extent, flushing the old one
// so nodes built so far keep their invalidation range.
func (s *Stack) SetLookAhead(lookAhead int) {
	if lookAhead > s.lookAhead {
		s.emitLookAhead()
		s.lookAhead = lookAhead
	}
}

// Close flushes the markers incremental reuse needs: a context hash for
// strict trackers and the pending lookahead extent.
func (s *Stack) Close() {
	if s.curContext != nil && s.curContext.tracker.Strict {
		s.emitContext()
	}
	if s.lookAhead > 0 {
		s.emitLookAhead()
	}
}

func (s *Stack) emitContext() {
	last := len(s.buffer) - 1
	if last < 0 || s.buffer[last] != bufContextHash {
		s.buffer = append(s.buffer, int(s.curContext.hash), s.reducePos, s.reducePos, bufContextHash)
	}
}

func (s *Stack) emitLookAhead() {
	last := len(s.buffer) - 1
	if last < 0 || s.buffer[last] != bufLookAhead {
		s.buffer = append(s.buffer, s.lookAhead, s.reducePos, s.reducePos, bufLookAhead)
	}
}

func (s *Stack) shiftContext(term, start int) {
	if s.curContext != nil && s.curContext.tracker.Shift != nil {
		s.updateContext(s.curContext.tracker.Shift(
			s.curContext.context, term, s, s.p.stream.Reset(start, nil)))
	}
}

func (s *Stack) reduceContext(term, start int) {
	if s.curContext != nil && s.curContext.tracker.Reduce != nil {
		s.updateContext(s.curContext.tracker.Reduce(
			s.curContext.context, term, s, s.p.stream.Reset(start, nil)))
	}
}

func (s *Stack) updateContext(context any) {
	if context != s.curContext.context {
		newCx := newStackContext(s.curContext.tracker, context)
		if newCx.hash != s.curContext.hash {
			s.emitContext()
		}
		s.curContext = newCx
	}
}

// simulatedStack mirrors a stack's state and frames so reductions can be
// scanned without mutation. Zero-depth reductions copy the frame slice on
// first write; deeper ones only move the base index backwards.
type simulatedStack struct {
	start  *Stack
	state  int
	frames []int
	base   int
	copied bool
}

func newSimulatedStack(start *Stack) *simulatedStack {
	return &simulatedStack{start: start, state: start.state, frames: start.frames, base: len(start.frames)}
}

func (sim *simulatedStack) reduce(action uint32) {
	depth, term := actionDepth(action), actionValue(action)
	if depth == 0 {
		if !sim.copied {
			sim.frames = append([]int(nil), sim.frames...)
			sim.copied = true
		}
		sim.frames = append(sim.frames, sim.state, 0, 0)
		sim.base += 3
	} else {
		sim.base -= (depth - 1) * 3
	}
	baseState := sim.start.p.lang.topState
	if sim.base >= 3 {
		baseState = sim.frames[sim.base-3]
	}
	sim.state = sim.start.lang().GetGoto(baseState, term, true)
}
