package evecache

import "fmt"

type slotState uint8

const (
	slotEmpty slotState = iota
	slotConstructing
	slotFilled
)

type shareSlot struct {
	state slotState
	value Value
}

// ShareTable is the arena of shared objects built during one decode pass.
//
// An artifact declares the number of shared slots up front and lists, in a
// trailer, the slot id assigned to each shared object in order of first
// appearance. Reserve walks that list with a cursor; Resolve looks slots up
// by index (slot id - 1).
type ShareTable struct {
	slots    []shareSlot
	shareMap []uint32
	cursor   int
}

// NewShareTable creates a table with capacity slots. A nil shareMap assigns
// slot ids in appearance order.
func NewShareTable(capacity int, shareMap []uint32) *ShareTable {
	if shareMap != nil && len(shareMap) != capacity {
		panic(fmt.Errorf("share map has %d entries, wanted %d", len(shareMap), capacity))
	}
	return &ShareTable{
		slots:    make([]shareSlot, capacity),
		shareMap: shareMap,
	}
}

// Len returns the number of slots reserved so far.
func (st *ShareTable) Len() int { return st.cursor }

// Cap returns the declared number of slots.
func (st *ShareTable) Cap() int { return len(st.slots) }

// Cursor returns the position in the share map of the next reservation.
func (st *ShareTable) Cursor() int { return st.cursor }

// Reserve claims the next slot and marks it as under construction.
func (st *ShareTable) Reserve() (int, error) {
	if st.cursor >= len(st.slots) {
		return 0, fmt.Errorf("%w: cursor %d, %d slots", ErrShareCursorOutOfRange, st.cursor, len(st.slots))
	}
	id := uint64(st.cursor) + 1
	if st.shareMap != nil {
		id = uint64(st.shareMap[st.cursor])
	}
	if id == 0 || id > uint64(len(st.slots)) {
		return 0, fmt.Errorf("%w: id %d at cursor %d, %d slots", ErrShareIdOutOfRange, id, st.cursor, len(st.slots))
	}
	idx := int(id - 1)
	if st.slots[idx].state != slotEmpty {
		return 0, fmt.Errorf("%w: id %d assigned twice", ErrShareIdOutOfRange, id)
	}
	st.slots[idx].state = slotConstructing
	st.cursor++
	return idx, nil
}

// Fill stores the fully constructed value of a reserved slot.
func (st *ShareTable) Fill(idx int, v Value) {
	slot := &st.slots[idx]
	if slot.state != slotConstructing {
		panic(fmt.Errorf("share slot %d filled without a reservation", idx))
	}
	slot.state = slotFilled
	slot.value = v
}

// Register reserves the next slot and fills it with v.
func (st *ShareTable) Register(v Value) (int, error) {
	idx, err := st.Reserve()
	if err != nil {
		return 0, err
	}
	st.Fill(idx, v)
	return idx, nil
}

// Resolve returns the value stored in slot idx.
func (st *ShareTable) Resolve(idx int) (Value, error) {
	n := len(st.slots)
	if idx == n && st.cursor == n {
		// one past the last slot of a full table
		return Value{}, fmt.Errorf("%w: index %d, all %d slots registered", ErrShareIndexOutOfRange, idx, n)
	}
	if idx < 0 || idx >= n {
		return Value{}, fmt.Errorf("%w: index %d, %d slots", ErrShareIdOutOfRange, idx, n)
	}
	switch st.slots[idx].state {
	case slotEmpty:
		return Value{}, fmt.Errorf("%w: index %d not registered yet (%d of %d registered)", ErrShareIndexOutOfRange, idx, st.cursor, len(st.slots))
	case slotConstructing:
		return Value{}, fmt.Errorf("%w: index %d is still being constructed", ErrShareNotFound, idx)
	default:
		return st.slots[idx].value, nil
	}
}

// Deref follows a SharedRef to its value; other values are returned as is.
func (st *ShareTable) Deref(v Value) (Value, error) {
	if idx, ok := v.RefIndex(); ok {
		return st.Resolve(idx)
	}
	return v, nil
}
