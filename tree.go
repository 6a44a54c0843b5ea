package lrx

import (
	"fmt"
	"strings"
)

// Tree is a compact syntax tree node. Positions are absolute input
// offsets. Error nodes carry the TermErr type; placeholder nodes stand in
// for gap regions.
type Tree struct {
	Type     int
	From, To int
	Children []*Tree

	// Mounted holds a nested tree attached through a property record.
	Mounted *Tree
	// ContextHash and LookAhead carry the incremental-reuse markers
	// flushed when the producing stack closed.
	ContextHash uint32
	LookAhead   int
}

// Length is the amount of input the node covers.
func (t *Tree) Length() int { return t.To - t.From }

// HasError reports whether the subtree contains an error node.
func (t *Tree) HasError() bool {
	if t.Type == TermErr {
		return true
	}
	for _, c := range t.Children {
		if c.HasError() {
			return true
		}
	}
	return false
}

// treeBuilder consumes a StackBufferCursor in reverse, materializing the
// node records above stopAt into Tree values.
type treeBuilder struct {
	p      *Parse
	cursor *StackBufferCursor
	stopAt int

	// Markers and property records annotate the node that precedes them
	// in buffer order, which the reverse walk reaches next.
	pendingMount   *Tree
	pendingContext uint32
	pendingLook    int
}

// buildTree materializes the topmost node under the cursor, descendants
// included. Records at or below stopAt are left untouched.
func buildTree(p *Parse, cursor *StackBufferCursor, stopAt int) *Tree {
	b := &treeBuilder{p: p, cursor: cursor, stopAt: stopAt}
	return b.takeNode()
}

// buildTopTree materializes every record above stopAt and wraps the
// result in the grammar's top node.
func buildTopTree(p *Parse, cursor *StackBufferCursor, stopAt, length int) *Tree {
	b := &treeBuilder{p: p, cursor: cursor, stopAt: stopAt}
	var children []*Tree
	for b.cursor.Pos() > stopAt {
		if node := b.takeNode(); node != nil {
			children = append(children, node)
		}
	}
	reverseTrees(children)
	if len(children) == 1 && children[0].Type == p.lang.topTerm {
		return children[0]
	}
	return &Tree{Type: p.lang.topTerm, From: 0, To: length, Children: children}
}

func (b *treeBuilder) takeNode() *Tree {
	for b.cursor.Pos() > b.stopAt {
		id, start, end, size := b.cursor.ID(), b.cursor.Start(), b.cursor.End(), b.cursor.Size()
		switch size {
		case bufReusedTree:
			b.cursor.Next()
			return b.annotate(b.p.reused[id])
		case bufProperty:
			if end == PropMounted && id < len(b.p.propValues) {
				b.pendingMount = b.p.propValues[id]
			}
			b.cursor.Next()
		case bufContextHash:
			b.pendingContext = uint32(id)
			b.cursor.Next()
		case bufLookAhead:
			b.pendingLook = id
			b.cursor.Next()
		default:
			node := &Tree{Type: id, From: start, To: end}
			endPos := b.cursor.Pos() - size
			if endPos < b.stopAt {
				endPos = b.stopAt
			}
			b.cursor.Next()
			node = b.annotate(node)
			var children []*Tree
			for b.cursor.Pos() > endPos {
				if child := b.takeNode(); child != nil {
					children = append(children, child)
				}
			}
			reverseTrees(children)
			node.Children = children
			return node
		}
	}
	return nil
}

// annotate applies pending marker records to the node just taken. A node
// that already carries annotations (reused nodes can be shared) is copied
// before writing; otherwise the markers are written onto the node itself.
func (b *treeBuilder) annotate(node *Tree) *Tree {
	if b.pendingMount == nil && b.pendingContext == 0 && b.pendingLook == 0 {
		return node
	}
	if node.Mounted != nil || node.ContextHash != 0 || node.LookAhead != 0 {
		node = &Tree{Type: node.Type, From: node.From, To: node.To, Children: node.Children}
	}
	node.Mounted = b.pendingMount
	node.ContextHash = b.pendingContext
	node.LookAhead = b.pendingLook
	b.pendingMount, b.pendingContext, b.pendingLook = nil, 0, 0
	return node
}

func reverseTrees(ts []*Tree) {
	for i, j := 0, len(ts)-1; i < j; i, j = i+1, j-1 {
		ts[i], ts[j] = ts[j], ts[i]
	}
}

// String renders the tree as a compact s-expression of term ids.
func (t *Tree) String() string {
	return t.Sexpr(nil)
}

// Sexpr renders the tree using the language's term names when given.
func (t *Tree) Sexpr(lang *Language) string {
	var b strings.Builder
	t.sexpr(&b, lang)
	return b.String()
}

func (t *Tree) sexpr(b *strings.Builder, lang *Language) {
	if lang != nil {
		b.WriteString(lang.TermName(t.Type))
	} else {
		fmt.Fprintf(b, "#%d", t.Type)
	}
	if len(t.Children) == 0 {
		return
	}
	b.WriteByte('(')
	for i, c := range t.Children {
		if i > 0 {
			b.WriteByte(',')
		}
		c.sexpr(b, lang)
	}
	b.WriteByte(')')
}

// Pretty renders an indented multi-line view of the tree with source
// ranges, for the CLI and debugging.
func (t *Tree) Pretty(lang *Language) string {
	pp := &treePrinter{}
	pp.visit(t, lang)
	return pp.output.String()
}

type treePrinter struct {
	padStr []string
	output strings.Builder
}

func (tp *treePrinter) indent(s string) { tp.padStr = append(tp.padStr, s) }
func (tp *treePrinter) unindent()       { tp.padStr = tp.padStr[:len(tp.padStr)-1] }
func (tp *treePrinter) write(s string)  { tp.output.WriteString(s) }
func (tp *treePrinter) padding() {
	for _, item := range tp.padStr {
		tp.write(item)
	}
}

func (tp *treePrinter) visit(t *Tree, lang *Language) {
	name := fmt.Sprintf("#%d", t.Type)
	if lang != nil {
		name = lang.TermName(t.Type)
	}
	tp.write(fmt.Sprintf("%s (%s)", name, NewRange(t.From, t.To)))
	if t.Mounted != nil {
		tp.write(" [mounted]")
	}
	tp.write("\n")
	for i, child := range t.Children {
		tp.padding()
		if i == len(t.Children)-1 {
			tp.write("└── ")
			tp.indent("    ")
		} else {
			tp.write("├── ")
			tp.indent("│   ")
		}
		tp.visit(child, lang)
		tp.unindent()
	}
}
