package lrx

// ContextTracker threads an opaque user value through shift, reduce and
// reuse operations. The hash partitions stacks that are otherwise equal,
// and strict trackers always flush a context marker when a stack closes.
// Unset function fields keep the previous value.
type ContextTracker struct {
	Start  func() any
	Shift  func(ctx any, term int, stack *Stack, input *InputStream) any
	Reduce func(ctx any, term int, stack *Stack, input *InputStream) any
	Reuse  func(ctx any, tree *Tree, stack *Stack, input *InputStream) any
	Hash   func(ctx any) uint32
	Strict bool
}

func (t *ContextTracker) start() any {
	if t.Start == nil {
		return nil
	}
	return t.Start()
}

func (t *ContextTracker) hash(ctx any) uint32 {
	if t.Hash == nil {
		return 0
	}
	return t.Hash(ctx)
}

// stackContext pairs a tracker with its current value and that value's
// hash, so equality checks stay cheap.
type stackContext struct {
	tracker *ContextTracker
	context any
	hash    uint32
}

func newStackContext(tracker *ContextTracker, context any) *stackContext {
	return &stackContext{tracker: tracker, context: context, hash: tracker.hash(context)}
}
