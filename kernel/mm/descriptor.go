package mm

// Descriptor is the per-page metadata record described in spec.md §3. It
// plays two roles depending on Size: while Size <= 2^MaxSmallOrder it
// names a slab chunk size; once Size exceeds that threshold it names the
// byte size of a page-level block (free or allocated). There is no
// separate tag field — callers always know which role applies from the
// context they reached the descriptor through.
//
// A Descriptor doubles as an intrusive doubly-linked list node: free
// lists (one per buddy order) and slab partial lists are both built out
// of these same links, so a block's list membership alone records
// whether it is free, partially used, or allocated/saturated.
type Descriptor struct {
	Addr uintptr
	Size uintptr

	prev, next *Descriptor
}

// initHead turns d into an empty circular list sentinel.
func (d *Descriptor) initHead() {
	d.prev, d.next = d, d
}

// empty reports whether d, used as a list head, currently has no
// members.
func (d *Descriptor) empty() bool { return d.next == d }

// linked reports whether d is currently a member of some list (as
// opposed to a head, or a node that was never inserted / was removed).
func (d *Descriptor) linked() bool { return d.next != nil }

// pushFront inserts d as the new front member of the list headed by
// head, the LIFO insertion point both free lists and slab partial lists
// use.
func (d *Descriptor) pushFront(head *Descriptor) {
	d.prev = head
	d.next = head.next
	head.next.prev = d
	head.next = d
}

// unlink removes d from whichever list it belongs to and clears its
// links. It is a no-op's opposite: callers must only call it on a node
// that is actually linked.
func (d *Descriptor) unlink() {
	d.prev.next = d.next
	d.next.prev = d.prev
	d.prev, d.next = nil, nil
}

// clear resets d to the all-zero follower state.
func (d *Descriptor) clear() {
	d.Addr, d.Size = 0, 0
	d.prev, d.next = nil, nil
}
