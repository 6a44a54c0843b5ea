package lrx

import "strings"

// Token is the mutable record a tokenizer fills in. Value stays at
// noToken until a tokenizer accepts something. LookAhead records the
// farthest position the tokenizer examined, which incremental reparses
// use to invalidate the token.
type Token struct {
	Start     int
	End       int
	Value     int
	LookAhead int
}

func (t *Token) clear(pos int) {
	t.Start = pos
	t.End = pos
	t.Value = noToken
	t.LookAhead = pos
}

var nullToken = &Token{Value: noToken}

// InputStream is a chunked sliding view over an Input. It keeps the chunk
// around the current position cached, so single-step reads are O(1), and
// clips out gap regions so tokenizers see the input as if the gaps did
// not exist.
type InputStream struct {
	input Input
	gaps  []Range

	// Next is the code unit at the current position, or eof.
	Next int

	chunk    string
	chunkPos int
	chunkOff int

	// chunk2 retains the previously cached chunk so prev() can cross a
	// chunk boundary without refetching.
	chunk2    string
	chunk2Pos int

	token *Token

	pos int
	end int
}

func newInputStream(input Input, gaps []Range) *InputStream {
	s := &InputStream{input: input, gaps: gaps, end: input.Length(), token: nullToken}
	s.pos = s.skipGapsForward(0)
	s.readNext()
	return s
}

// Pos is the stream's current absolute position.
func (s *InputStream) Pos() int { return s.pos }

// End is the absolute position past the last readable code unit.
func (s *InputStream) End() int { return s.end }

func (s *InputStream) skipGapsForward(pos int) int {
	for _, g := range s.gaps {
		if g.Contains(pos) {
			pos = g.End
		}
	}
	return pos
}

func (s *InputStream) skipGapsBackward(pos int) int {
	for i := len(s.gaps) - 1; i >= 0; i-- {
		if s.gaps[i].Contains(pos) {
			pos = s.gaps[i].Start - 1
		}
	}
	return pos
}

// getChunk fetches the chunk containing pos, clipped at the next gap
// boundary. The previous chunk is retained for prev().
func (s *InputStream) getChunk() bool {
	if s.pos >= s.end {
		return false
	}
	if s.chunk != "" {
		s.chunk2, s.chunk2Pos = s.chunk, s.chunkPos
	}
	chunk := s.input.Chunk(s.pos)
	if chunk == "" {
		return false
	}
	for _, g := range s.gaps {
		if g.Start > s.pos && g.Start < s.pos+len(chunk) {
			chunk = chunk[:g.Start-s.pos]
			break
		}
	}
	s.chunk = chunk
	s.chunkPos = s.pos
	s.chunkOff = 0
	return true
}

func (s *InputStream) readNext() int {
	s.pos = s.skipGapsForward(s.pos)
	if s.pos >= s.end {
		s.Next = eof
		return eof
	}
	if s.pos < s.chunkPos || s.pos >= s.chunkPos+len(s.chunk) {
		if !s.getChunk() {
			s.Next = eof
			return eof
		}
	}
	s.chunkOff = s.pos - s.chunkPos
	s.Next = int(s.chunk[s.chunkOff])
	s.noteLookAhead(s.pos + 1)
	return s.Next
}

// Advance consumes one code unit. It returns false when the stream was
// already at the end.
func (s *InputStream) Advance() bool {
	if s.Next == eof {
		return false
	}
	s.pos++
	s.readNext()
	return true
}

// Peek returns the code unit offset positions away from the current one
// without moving the stream, or eof past either end. Gap regions do not
// count as positions.
func (s *InputStream) Peek(offset int) int {
	pos := s.pos
	for ; offset > 0; offset-- {
		pos = s.skipGapsForward(pos + 1)
	}
	for ; offset < 0; offset++ {
		pos = s.skipGapsBackward(pos - 1)
	}
	if pos < 0 || pos >= s.end {
		return eof
	}
	s.noteLookAhead(pos + 1)
	if pos >= s.chunkPos && pos < s.chunkPos+len(s.chunk) {
		return int(s.chunk[pos-s.chunkPos])
	}
	if pos >= s.chunk2Pos && pos < s.chunk2Pos+len(s.chunk2) {
		return int(s.chunk2[pos-s.chunk2Pos])
	}
	if r := s.input.Read(pos, pos+1); r != "" {
		return int(r[0])
	}
	return eof
}

// prev returns the code unit just before the current position, crossing
// into the previous chunk with a one-character read when necessary.
func (s *InputStream) prev() int {
	return s.Peek(-1)
}

func (s *InputStream) noteLookAhead(pos int) {
	if pos > s.token.LookAhead {
		s.token.LookAhead = pos
	}
}

// AcceptToken marks the current token as a match for term ending at the
// current position.
func (s *InputStream) AcceptToken(term int) {
	s.token.Value = term
	s.token.End = s.pos
}

// AcceptTokenTo marks the current token as a match for term ending at an
// explicit position, which may lie before the current one for tokenizers
// that read past the token they produce.
func (s *InputStream) AcceptTokenTo(term, end int) {
	s.token.Value = term
	s.token.End = end
}

// Reset repositions the stream and, when token is non-nil, points the
// stream at that record so subsequent reads maintain its lookahead.
func (s *InputStream) Reset(pos int, token *Token) *InputStream {
	if token != nil {
		s.token = token
		token.clear(pos)
	} else {
		s.token = nullToken
	}
	if pos != s.pos {
		s.pos = pos
		if pos >= s.chunkPos && pos < s.chunkPos+len(s.chunk) {
			s.chunkOff = pos - s.chunkPos
		} else {
			s.chunk = ""
			s.chunkOff = 0
		}
	}
	s.readNext()
	return s
}

// Read returns the input content in [from, to) with gap regions removed.
func (s *InputStream) Read(from, to int) string {
	if to > s.end {
		to = s.end
	}
	if from >= to {
		return ""
	}
	if len(s.gaps) == 0 {
		return s.input.Read(from, to)
	}
	var b strings.Builder
	pos := from
	for _, g := range s.gaps {
		if g.End <= pos || g.Start >= to {
			continue
		}
		if g.Start > pos {
			b.WriteString(s.input.Read(pos, g.Start))
		}
		pos = g.End
	}
	if pos < to {
		b.WriteString(s.input.Read(pos, to))
	}
	return b.String()
}
