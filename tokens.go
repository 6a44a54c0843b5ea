package lrx

// lookAheadMargin is how far beyond its end a token must have peeked
// before the extent is worth recording on the stack.
const lookAheadMargin = 25

// cachedToken remembers one tokenizer's result at a position, along with
// the state mask and context hash it was computed under, so it can be
// reused by other stacks at the same spot.
type cachedToken struct {
	Token
	mask    uint32
	context uint32
}

// tokenCache runs the grammar's tokenizers on demand and translates their
// results into (action, term, end) triples for the driver.
type tokenCache struct {
	lang   *Language
	stream *InputStream

	tokens []*cachedToken
	main   *cachedToken

	actions []int
}

func newTokenCache(lang *Language, stream *InputStream) *tokenCache {
	c := &tokenCache{lang: lang, stream: stream}
	c.tokens = make([]*cachedToken, len(lang.tokenizers))
	for i := range c.tokens {
		c.tokens[i] = &cachedToken{Token: Token{Value: noToken}}
	}
	return c
}

// getActions returns the actions possible for stack given the tokens at
// its position, running tokenizers whose cached results do not apply.
// The returned slice is reused between calls.
func (c *tokenCache) getActions(stack *Stack) []int {
	actionIndex := 0
	var main *cachedToken
	lang := c.lang

	mask := lang.StateSlot(stack.state, stateTokenizerMask)
	var context uint32
	if stack.curContext != nil {
		context = stack.curContext.hash
	}

	start := c.stream.skipGapsForward(stack.pos)
	lookAhead := 0
	for i, tokenizer := range lang.tokenizers {
		if mask&(1<<i) == 0 {
			continue
		}
		token := c.tokens[i]
		if main != nil && !tokenizer.Fallback() {
			continue
		}
		if tokenizer.Contextual() || token.Start != start || token.mask != mask || token.context != context {
			c.updateCachedToken(token, tokenizer, stack)
			token.mask = mask
			token.context = context
		}
		if token.LookAhead > token.End+lookAheadMargin && token.LookAhead > lookAhead {
			lookAhead = token.LookAhead
		}
		if token.Value != TermErr {
			startIndex := actionIndex
			actionIndex = c.addActions(stack, token.Value, token.End, actionIndex)
			if !tokenizer.Extend() {
				main = token
				if actionIndex > startIndex {
					break
				}
			}
		}
	}
	c.actions = c.actions[:actionIndex]

	if lookAhead > 0 {
		stack.SetLookAhead(lookAhead)
	}
	if main == nil && start == c.stream.end {
		main = &cachedToken{Token: Token{Value: lang.eofTerm, Start: start, End: start}}
		actionIndex = c.addActions(stack, main.Value, main.End, actionIndex)
		c.actions = c.actions[:actionIndex]
	}
	c.main = main
	return c.actions
}

// getMainToken returns the primary token at the stack's position, used
// by recovery to decide what to delete or insert around.
func (c *tokenCache) getMainToken(stack *Stack) *cachedToken {
	if c.main != nil {
		return c.main
	}
	main := &cachedToken{Token: Token{Value: noToken}}
	start := c.stream.skipGapsForward(stack.pos)
	main.Start = start
	main.End = start
	if start < c.stream.end {
		main.Value = TermErr
		main.End = start + 1
	} else {
		main.Value = c.lang.eofTerm
	}
	return main
}

func (c *tokenCache) updateCachedToken(token *cachedToken, tokenizer Tokenizer, stack *Stack) {
	start := c.stream.skipGapsForward(stack.pos)
	tokenizer.Token(c.stream.Reset(start, &token.Token), stack)
	if token.Value <= noToken {
		// Nothing matched: a one-unit error token keeps the parse moving.
		token.Value = TermErr
		token.End = token.Start + 1
		if token.End > c.stream.end {
			token.End = c.stream.end
		}
	}
}

// addActions collects the actions state has for token, consulting both
// the main and the skip action lists.
func (c *tokenCache) addActions(stack *Stack, token, end, index int) int {
	lang, state := c.lang, stack.state
	for set := 0; set < 2; set++ {
		slot := stateActions
		if set == 1 {
			slot = stateSkip
		}
		for i := int(lang.StateSlot(state, slot)); ; i += 3 {
			if lang.data[i] == seqEnd {
				if lang.data[i+1] == seqNext {
					i = int(pair(lang.data, i+2)) - 3
					continue
				}
				break
			}
			if int(lang.data[i]) == token {
				index = c.putAction(pair(lang.data, i+1), token, end, index)
			}
		}
	}
	return index
}

func (c *tokenCache) putAction(action uint32, token, end, index int) int {
	// Don't add duplicate actions.
	for i := 0; i < index; i += 3 {
		if c.actions[i] == int(action) {
			return index
		}
	}
	for len(c.actions) < index+3 {
		c.actions = append(c.actions, 0)
	}
	c.actions[index] = int(action)
	c.actions[index+1] = token
	c.actions[index+2] = end
	return index + 3
}
