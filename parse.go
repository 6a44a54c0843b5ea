package lrx

import (
	"github.com/tliron/commonlog"
)

// Driver pacing constants.
const (
	// recoverDistance is how many rounds of recovery bookkeeping run
	// after a parse error before the stack set is considered stable.
	recoverDistance = 5
	// maxRemainingPerStep caps surviving stacks per remaining recovery
	// round.
	maxRemainingPerStep = 3
	// minBufferLengthPrune is the local buffer size beyond which two
	// stacks get pruned against each other even when they do not look
	// the same.
	minBufferLengthPrune = 500
	// forceReduceLimit bounds the forced-reduction probe per recovery.
	forceReduceLimit = 10
	// cutDepth/cutTo force deep stacks back down before they get slow.
	cutDepth = 15000
	cutTo    = 9000
	// maxStackCount caps the number of concurrently live stacks.
	maxStackCount = 12
)

var log = commonlog.GetLogger("lrx")

// Parse is one in-progress parse: the live stacks, the token cache, and
// the tables shared by every stack (reused subtrees and property values
// are append-only and owned by the parse).
type Parse struct {
	lang   *Language
	input  Input
	stream *InputStream
	tokens *tokenCache
	cfg    *Config

	stacks      []*Stack
	recovering  int
	minStackPos int

	reused     []*Tree
	propValues []*Tree

	gaps []Range
	// placeholder is the node type standing in for gap regions, fixed
	// per parse.
	placeholder int
	startPos    int

	nextStackID int
	// nestInfo associates stacks with pending nested-parse descriptors
	// by their stable id; retired stacks are dropped by the driver.
	nestInfo map[int]*NestedGrammar

	trace bool
}

// NewParse starts a parse of input with the given gaps (which may be
// nil). The configuration may be nil for defaults.
func NewParse(lang *Language, input Input, gaps []Range, cfg *Config) *Parse {
	if cfg == nil {
		cfg = NewConfig()
	}
	p := &Parse{
		lang:        lang,
		input:       input,
		cfg:         cfg.clone(),
		gaps:        gaps,
		placeholder: lang.placeholder,
		nestInfo:    map[int]*NestedGrammar{},
		trace:       cfg.Trace,
	}
	p.stream = newInputStream(input, gaps)
	p.startPos = p.stream.pos
	p.tokens = newTokenCache(lang, p.stream)
	p.stacks = []*Stack{startStack(p, lang.topState, p.startPos)}
	p.minStackPos = p.startPos
	return p
}

func (p *Parse) newStackID() int {
	id := p.nextStackID
	p.nextStackID++
	return id
}

// Run drives the parse to completion.
func (p *Parse) Run() (*Tree, error) {
	for {
		tree, err := p.Advance()
		if tree != nil || err != nil {
			return tree, err
		}
	}
}

// Advance runs one round: every stack whose position is at the current
// frontier takes a step. Returns a non-nil tree once a stack accepted.
func (p *Parse) Advance() (*Tree, error) {
	stacks, pos := p.stacks, p.minStackPos
	newStacks := make([]*Stack, 0, len(stacks))
	p.stacks = newStacks

	var stopped []*Stack
	var stoppedTokens []int

	for i := 0; i < len(stacks); i++ {
		stack := stacks[i]
		for {
			p.tokens.main = nil
			if stack.pos > pos {
				newStacks = append(newStacks, stack)
			} else if p.advanceStack(stack, &newStacks, &stacks) {
				continue
			} else {
				stopped = append(stopped, stack)
				tok := p.tokens.getMainToken(stack)
				stoppedTokens = append(stoppedTokens, tok.Value, tok.End)
			}
			break
		}
	}

	if len(newStacks) == 0 {
		if finished := findFinished(stopped); finished != nil {
			if p.trace {
				log.Debugf("finished at %d with score %d", finished.pos, finished.score)
			}
			return p.stackToTree(finished), nil
		}
		if p.cfg.Strict {
			var tok *cachedToken
			if len(stopped) > 0 {
				tok = p.tokens.getMainToken(stopped[0])
			}
			pos := p.stream.end
			if tok != nil {
				pos = tok.Start
			}
			return nil, &ParseError{Pos: pos}
		}
		if p.recovering == 0 {
			p.recovering = recoverDistance
		}
	}

	if p.recovering > 0 && len(stopped) > 0 {
		if !p.cfg.Recover {
			best := stopped[0]
			for _, s := range stopped[1:] {
				if s.score > best.score {
					best = s
				}
			}
			return p.stackToTree(best.ForceAll()), nil
		}
		if finished := p.runRecovery(stopped, stoppedTokens, &newStacks); finished != nil {
			if p.trace {
				log.Debugf("forced finish at %d", finished.pos)
			}
			return p.stackToTree(finished.ForceAll()), nil
		}
	}

	if p.recovering > 0 {
		maxRemaining := maxRemainingPerStep * p.recovering
		if p.recovering == 1 {
			maxRemaining = 1
		}
		if len(newStacks) > maxRemaining {
			sortStacksByScore(newStacks)
			newStacks = newStacks[:maxRemaining]
		}
		for _, s := range newStacks {
			if s.reducePos > pos {
				p.recovering--
				break
			}
		}
	} else if len(newStacks) > 1 {
		// Prune stacks that look the same, and cap the fanout. Buffers
		// past the prune threshold mean the split survived long enough
		// that the ambiguity is not going to resolve locally.
	outer:
		for i := 0; i < len(newStacks)-1; i++ {
			stack := newStacks[i]
			for j := i + 1; j < len(newStacks); j++ {
				other := newStacks[j]
				if stack.SameState(other) ||
					len(stack.buffer) > minBufferLengthPrune && len(other.buffer) > minBufferLengthPrune {
					better := stack.score - other.score
					if better == 0 {
						better = len(stack.buffer) - len(other.buffer)
					}
					if better > 0 {
						newStacks = append(newStacks[:j], newStacks[j+1:]...)
						j--
					} else {
						newStacks = append(newStacks[:i], newStacks[i+1:]...)
						i--
						continue outer
					}
				}
			}
		}
		if len(newStacks) > maxStackCount {
			newStacks = newStacks[:maxStackCount]
		}
	}

	p.stacks = newStacks
	if len(newStacks) == 0 {
		return nil, &ParseError{Pos: p.stream.end}
	}

	p.minStackPos = newStacks[0].pos
	for _, s := range newStacks[1:] {
		if s.pos < p.minStackPos {
			p.minStackPos = s.pos
		}
	}

	// Cap buffer growth when a single stack is running; materializing
	// with siblings around would mutate shared history.
	if len(newStacks) == 1 && p.lang.bufferLength > 0 &&
		len(newStacks[0].buffer) > p.lang.bufferLength*4 {
		newStacks[0].MaterializeTopNode()
	}
	return nil, nil
}

// advanceStack applies the next action for stack. Conflicting actions
// split the stack; the last action applies to the original. With a nil
// split list only the first action is taken. Returns false when no
// action exists.
func (p *Parse) advanceStack(stack *Stack, newStacks, split *[]*Stack) bool {
	start := stack.pos
	lang := p.lang

	if defaultReduce := lang.StateSlot(stack.state, stateDefaultReduce); defaultReduce > 0 {
		stack.reduce(defaultReduce)
		if p.trace {
			log.Debugf("stack %d: default-reduce to %d", stack.id, stack.state)
		}
		return true
	}

	if len(stack.frames) >= cutDepth {
		for len(stack.frames) > cutTo && stack.ForceReduce() {
		}
	}

	actions := p.tokens.getActions(stack)
	for i := 0; i < len(actions); {
		action, term, end := uint32(actions[i]), actions[i+1], actions[i+2]
		i += 3
		last := i == len(actions) || split == nil
		localStack := stack
		if !last {
			localStack = stack.Split()
		}
		main := p.tokens.main
		tokenStart := localStack.pos
		if main != nil {
			tokenStart = main.Start
		}
		localStack.Apply(action, term, tokenStart, end)
		if p.trace {
			log.Debugf("stack %d: apply %#x for %s at %d..%d", localStack.id,
				action, lang.TermName(term), tokenStart, end)
		}
		if last {
			return true
		} else if localStack.pos > start {
			*newStacks = append(*newStacks, localStack)
		} else {
			*split = append(*split, localStack)
		}
	}
	return false
}

// advanceFully advances a stack without splitting until it moves past
// its current position, collecting it into newStacks.
func (p *Parse) advanceFully(stack *Stack, newStacks *[]*Stack) bool {
	pos := stack.pos
	for {
		if !p.advanceStack(stack, nil, nil) {
			return false
		}
		if stack.pos > pos {
			pushStackDedup(stack, newStacks)
			return true
		}
	}
}

func pushStackDedup(stack *Stack, newStacks *[]*Stack) {
	for i, other := range *newStacks {
		if other.pos == stack.pos && other.SameState(stack) {
			if other.score < stack.score {
				(*newStacks)[i] = stack
			}
			return
		}
	}
	*newStacks = append(*newStacks, stack)
}

// runRecovery produces follow-up stacks for every stopped stack: forced
// reductions, token insertions, and token deletion. Returns a finished
// stack when one reached the end of the input.
func (p *Parse) runRecovery(stacks []*Stack, tokens []int, newStacks *[]*Stack) *Stack {
	var finished *Stack
	restarted := false
	for i, stack := range stacks {
		token, tokenEnd := tokens[i<<1], tokens[(i<<1)+1]
		if p.trace {
			log.Debugf("stack %d: recover at %d with token %s", stack.id, stack.pos, p.lang.TermName(token))
		}
		if stack.DeadEnd() {
			if restarted {
				continue
			}
			restarted = true
			stack.Restart()
			if p.advanceFully(stack, newStacks) {
				continue
			}
		}

		// Probe a chain of forced reductions on split-off stacks; the
		// first one that can then make progress joins the next round and
		// ends the probe.
		force := stack.Split()
		for j := 0; force.ForceReduce() && j < forceReduceLimit; j++ {
			if p.trace {
				log.Debugf("stack %d: force-reduce to %d", force.id, force.state)
			}
			if p.advanceFully(force, newStacks) {
				break
			}
			force = force.Split()
		}

		for _, insert := range stack.RecoverByInsert(token) {
			if p.trace {
				log.Debugf("stack %d: insert recovery to state %d", insert.id, insert.state)
			}
			*newStacks = append(*newStacks, insert)
		}

		if p.stream.end > p.stream.skipGapsForward(stack.pos) {
			if tokenEnd == stack.pos {
				tokenEnd++
				token = TermErr
			}
			stack.RecoverByDelete(token, tokenEnd)
			if p.trace {
				log.Debugf("stack %d: delete token, now at %d", stack.id, stack.pos)
			}
			*newStacks = append(*newStacks, stack)
		} else if finished == nil || finished.score < stack.score {
			finished = stack
		}
	}
	return finished
}

// stackToTree closes the stack and materializes its full buffer.
func (p *Parse) stackToTree(stack *Stack) *Tree {
	stack.Close()
	tree := buildTopTree(p, newBufferCursor(stack), 0, p.input.Length())
	if nest, ok := p.nestInfo[stack.id]; ok && nest.Language != nil {
		p.mountNested(tree, nest)
	}
	return tree
}

// mountNested parses the recorded nested region with its inner grammar
// and mounts the result on the covering node.
func (p *Parse) mountNested(tree *Tree, nest *NestedGrammar) {
	node := findCovering(tree, nest.From, nest.To)
	if node == nil {
		return
	}
	inner := NewParse(nest.Language, p.input, nestGaps(p.input, nest), p.cfg)
	sub, err := inner.Run()
	if err != nil || sub == nil {
		return
	}
	node.Mounted = sub
}

// nestGaps hides everything outside the nested region.
func nestGaps(input Input, nest *NestedGrammar) []Range {
	var gaps []Range
	if nest.From > 0 {
		gaps = append(gaps, NewRange(0, nest.From))
	}
	if nest.To < input.Length() {
		gaps = append(gaps, NewRange(nest.To, input.Length()))
	}
	return gaps
}

func findCovering(t *Tree, from, to int) *Tree {
	for _, c := range t.Children {
		if c.From <= from && c.To >= to {
			if inner := findCovering(c, from, to); inner != nil {
				return inner
			}
			return c
		}
	}
	if t.From <= from && t.To >= to {
		return t
	}
	return nil
}

func findFinished(stacks []*Stack) *Stack {
	var best *Stack
	for _, stack := range stacks {
		if stack.p.stream.skipGapsForward(stack.pos) != stack.p.stream.end {
			continue
		}
		if !stack.lang().StateFlag(stack.state, StateAccepting) {
			continue
		}
		if best == nil || best.score < stack.score {
			best = stack
		}
	}
	return best
}

func sortStacksByScore(stacks []*Stack) {
	// Insertion sort: the slice is tiny and mostly ordered.
	for i := 1; i < len(stacks); i++ {
		for j := i; j > 0 && stacks[j].score > stacks[j-1].score; j-- {
			stacks[j], stacks[j-1] = stacks[j-1], stacks[j]
		}
	}
}
