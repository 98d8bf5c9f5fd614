package op

// insertNode is the subset of clNode that also carries an Origin —
// satisfied by both *Insert and, via embedding, *ImmutableObject.
// Walking the concurrent region only ever needs this interface, not
// a concrete type, which matters: an ImmutableObject's neighbors in
// the CL are stored as its outer *ImmutableObject pointer (see
// Insert.outer), never the bare embedded *Insert.
type insertNode interface {
	clNode
	Origin() Operation
}

// distanceToOrigin walks x's prev chain back to (but not including)
// x.Origin(), counting hops, per spec §4.3's definition. It is 0 iff
// x.clPrev() == x.Origin().
//
// spec §9's open question on getDistanceToOrigin: the original
// throws if self.prev_cl == self. That guard is reproduced here as
// an explicit panic rather than silently tolerated — a correctly
// built Insert should never exhibit that cycle, so finding one is a
// fatal assertion, not a recoverable case. Insert.Execute recovers
// it into ErrImpossibleLinkage at the boundary.
func distanceToOrigin(x insertNode) int {
	if x.clPrev() == Operation(x) {
		panic("op: prev_cl self-cycle")
	}
	d := 0
	cur := x.clPrev()
	origin := x.Origin()
	for cur != origin {
		next, ok := cur.(insertNode)
		if !ok {
			panic("op: impossible linkage walking to origin")
		}
		cur = next.clPrev()
		d++
	}
	return d
}

// integrateInsert places selfOp into the complete list between its
// initial prevRef/nextRef bounds, per spec §4.3. selfOp must already
// have resolved prev/next/origin references (Insert.Execute enforces
// this before calling in), and must be the outermost concrete
// operation value (Insert.outer), not a bare embedded *Insert.
func integrateInsert(selfOp Operation) error {
	self, ok := selfOp.(insertNode)
	if !ok {
		return &ImpossibleLinkageError{Identifier: selfOp.Identity()}
	}

	prev, ok := self.clPrev().(clNode)
	if !ok {
		return &ImpossibleLinkageError{Identifier: self.Identity()}
	}
	boundary := self.clNext()

	if prev.clNext() == selfOp {
		return nil // already linked; idempotent per spec §4.3.
	}

	i := 0
	lastMoveI := 0
	o := prev.clNext()

scan:
	for o != boundary {
		oi, ok := o.(insertNode)
		if !ok {
			return &ImpossibleLinkageError{Identifier: self.Identity()}
		}
		d := distanceToOrigin(oi)
		switch {
		case d == i:
			if oi.creator() < self.creator() {
				prev = oi
				i++
				lastMoveI = i
			}
		case d < i:
			if i-lastMoveI <= d {
				prev = oi
				i++
				lastMoveI = i
			}
		default: // d > i: o's origin is newer than self's target region.
			break scan
		}
		i++
		o = oi.clNext()
	}

	right, ok := prev.clNext().(clNode)
	if !ok {
		return &ImpossibleLinkageError{Identifier: self.Identity()}
	}

	self.setCLPrev(Operation(prev))
	self.setCLNext(Operation(right))
	prev.setCLNext(selfOp)
	right.setCLPrev(selfOp)
	return nil
}
