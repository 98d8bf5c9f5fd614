// Package engine ties the operation algebra, the history buffer, and
// the wire codec together into the replicated sequence spec §6
// describes: local Insert/Delete issuance, remote Receive, and an
// execution-listener hook for transports to subscribe to.
package engine

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"collabtext/internal/history"
	"collabtext/internal/ident"
	"collabtext/internal/op"
	"collabtext/internal/wire"
)

// Engine is a single replica of the sequence: one history buffer, one
// identifier sequencer, and the execution-listener set transports
// subscribe to. Every entry point except Self and NextCounter locks
// mu, matching the teacher's own docMutex-guarded document state in
// agent/main.go, generalized to guard the whole engine instead of a
// bare slice.
type Engine struct {
	mu sync.Mutex

	self ident.PeerId
	seq  *ident.Sequencer
	buf  *history.Buffer
	log  *zap.Logger

	head *op.Delimiter
	tail *op.Delimiter

	listeners []func(wire.Frame)
}

// New bootstraps a fresh engine for self. startAt is the op_number
// the local sequencer resumes from — 0 for a brand new peer, or one
// greater than the highest op_number this peer has ever issued, per
// spec §6's persistence requirement. Pass a *zap.Logger; tests can
// use zap.NewNop().
func New(self ident.PeerId, startAt uint64, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		self: self,
		seq:  ident.NewSequencer(self, startAt),
		buf:  history.New(),
		log:  log,
	}
	e.bootstrap()
	return e
}

// bootstrap creates and links HEAD and TAIL with the well-known
// identities every peer agrees on, per spec §6.
func (e *Engine) bootstrap() {
	head := op.NewDelimiter(ident.Head, op.Ref{}, op.Ref{})
	tail := op.NewDelimiter(ident.Tail, op.BoundRef(head), op.Ref{})

	e.wireListener(head)
	e.wireListener(tail)

	e.buf.Put(head)
	if err := head.Execute(e.buf); err != nil {
		panic(fmt.Sprintf("engine: bootstrap HEAD: %v", err))
	}
	e.buf.Put(tail)
	if err := tail.Execute(e.buf); err != nil {
		panic(fmt.Sprintf("engine: bootstrap TAIL: %v", err))
	}

	e.head = head
	e.tail = tail
}

// wireListener attaches the engine's execution-listener fan-out to o,
// scoped to this Engine instance per spec §9 (never a package-level
// global).
func (e *Engine) wireListener(o op.Operation) {
	o.On(op.EventExecuted, e.fireExecuted)
}

// fireExecuted runs with e.mu already held: it is only reached from an
// operation's Execute, which the engine calls from inside a locked
// entry point (or from bootstrap, before the Engine is shared), so it
// must not lock mu again.
func (e *Engine) fireExecuted(f wire.Frame) {
	for _, l := range e.listeners {
		l(f)
	}
}

// OnExecute registers a listener invoked with the encoded form of
// every operation (local or remote) immediately after it completes
// execution. Transports subscribe here; they are responsible for
// wire-level deduplication, per spec §6.
func (e *Engine) OnExecute(listener func(wire.Frame)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, listener)
}

// Self returns this engine's peer identifier.
func (e *Engine) Self() ident.PeerId { return e.self }

// NextCounter returns the op_number the local sequencer will assign
// next, without consuming it — used by persistence layers snapshotting
// alongside the operation log. It does not lock mu: execution
// listeners call it while the engine already holds mu.
func (e *Engine) NextCounter() uint64 { return e.seq.Peek() }

// Insert issues a new locally-created ImmutableObject with content,
// positioned immediately after the operation identified by after
// (spec §3.3's origin). after must already be a registered CL node —
// HEAD's identifier is always valid for inserting at the very
// beginning.
func (e *Engine) Insert(after ident.Identifier, content []byte) (ident.Identifier, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	afterOp, ok := e.buf.Get(after)
	if !ok {
		return ident.Identifier{}, fmt.Errorf("engine: insert after %s: not found", after)
	}
	afterNode, ok := afterOp.(op.CLNode)
	if !ok {
		return ident.Identifier{}, fmt.Errorf("engine: insert after %s: not a CL node", after)
	}

	id := e.seq.Next()
	next := afterNode.NextCL()
	obj := op.NewImmutableObject(id, op.BoundRef(afterOp), op.BoundRef(afterOp), op.BoundRef(next), content)
	e.wireListener(obj)

	e.buf.Put(obj)
	if err := e.execute(obj); err != nil {
		return ident.Identifier{}, err
	}
	return id, nil
}

// Delete issues a new locally-created Delete of target, which must
// already be a registered Insert/ImmutableObject.
func (e *Engine) Delete(target ident.Identifier) (ident.Identifier, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	targetOp, ok := e.buf.Get(target)
	if !ok {
		return ident.Identifier{}, fmt.Errorf("engine: delete %s: not found", target)
	}

	id := e.seq.Next()
	del := op.NewDelete(id, op.BoundRef(targetOp))
	e.wireListener(del)

	e.buf.Put(del)
	if err := e.execute(del); err != nil {
		return ident.Identifier{}, err
	}
	return id, nil
}

// Receive parses and registers a remotely-originated frame, per
// spec §6. A malformed frame is a DecodeError: logged and dropped,
// never returned as fatal to the caller — the offending message
// simply never joins the CL.
func (e *Engine) Receive(f wire.Frame) {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, err := op.Decode(f)
	if err != nil {
		e.log.Warn("dropping malformed frame", zap.Error(err))
		return
	}

	if e.buf.Has(o.Identity()) {
		// Duplicate delivery of an already-known operation: either
		// it's already executed (Execute is idempotent) or it's
		// still pending its own dependencies, in which case there
		// is nothing new to retry.
		if existing, ok := e.buf.Get(o.Identity()); ok {
			_ = e.execute(existing)
		}
		return
	}

	e.buf.Put(o)
	if err := e.execute(o); err != nil {
		e.log.Error("fatal operation error", zap.Error(err), zap.Stringer("id", o.Identity()))
	}
}

// execute runs the lifecycle in spec §4.2: attempt Execute, and on
// success wake every operation that was blocked on this one, per
// spec §5's pending index. Returns a non-nil error only for fatal
// kinds; ErrUnresolvedReference is handled internally (deferred).
func (e *Engine) execute(o op.Operation) error {
	err := o.Execute(e.buf)
	switch {
	case err == nil:
		for _, dep := range e.buf.Wake(o.Identity()) {
			if depErr := e.execute(dep); depErr != nil {
				return depErr
			}
		}
		return nil
	case errors.Is(err, op.ErrUnresolvedReference):
		for _, missing := range o.PendingIDs() {
			if !e.buf.Has(missing) {
				e.buf.Defer(missing, o)
			}
		}
		return nil
	default:
		return err
	}
}

// View renders the current visible sequence: every non-tombstoned
// ImmutableObject's content, concatenated in CL order, skipping the
// two delimiters. This is the one piece of "map the ordered sequence
// to something visible" SPEC_FULL keeps in the core boundary — see
// SPEC_FULL.md's note on why a minimal byte-concatenation view is in
// scope despite application bindings being an external collaborator.
func (e *Engine) View() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []byte
	cur := e.head.NextCL()
	for cur != nil && cur != op.Operation(e.tail) {
		node, ok := cur.(op.CLNode)
		if !ok {
			break
		}
		if obj, ok := cur.(*op.ImmutableObject); ok && !obj.Deleted() {
			out = append(out, obj.Content...)
		}
		cur = node.NextCL()
	}
	return out
}

// Encode returns the wire form of a single already-executed
// operation, for transports that want to (re)send one specific
// operation rather than subscribe to every execution via OnExecute.
func (e *Engine) Encode(id ident.Identifier) (wire.Frame, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.buf.Get(id)
	if !ok || !o.IsExecuted() {
		return wire.Frame{}, false
	}
	return o.Encode(), true
}

// Frames returns the encoded form of every executed operation in
// registration order, excluding HEAD/TAIL — the snapshot a
// persistence layer or a late-joining peer replay endpoint needs.
func (e *Engine) Frames() []wire.Frame {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []wire.Frame
	for _, o := range e.buf.All() {
		if o.Identity() == ident.Head || o.Identity() == ident.Tail {
			continue
		}
		if !o.IsExecuted() {
			continue
		}
		out = append(out, o.Encode())
	}
	return out
}
