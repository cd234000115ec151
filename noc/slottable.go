package noc

// Empty is the slot-table value for "no transfer in this slot".
const Empty = 15

// MaxSelector is the largest value a slot-table entry can hold besides
// Empty.
const MaxSelector = Empty - 1

// SlotTable maps a time slot to the channel selector that owns it.
type SlotTable struct {
	entries []int
}

// NewSlotTable creates a table where every slot is empty.
func NewSlotTable(depth int) *SlotTable {
	if depth <= 0 {
		panic("slot table depth must be positive")
	}

	t := &SlotTable{entries: make([]int, depth)}
	t.Clear()

	return t
}

// Depth returns the number of slots in the table.
func (t *SlotTable) Depth() int {
	return len(t.entries)
}

// Slot returns the slot index that is active at the given cycle.
func (t *SlotTable) Slot(cycle uint64) int {
	return int(cycle % uint64(len(t.entries)))
}

// Select returns the selector for the given cycle.
func (t *SlotTable) Select(cycle uint64) int {
	return t.entries[t.Slot(cycle)]
}

// Entry returns the selector stored in a slot.
func (t *SlotTable) Entry(slot int) int {
	return t.entries[slot]
}

// Entries returns a copy of all selectors.
func (t *SlotTable) Entries() []int {
	out := make([]int, len(t.entries))
	copy(out, t.entries)

	return out
}

// Clear marks every slot as empty.
func (t *SlotTable) Clear() {
	for i := range t.entries {
		t.entries[i] = Empty
	}
}

func (t *SlotTable) set(slot, value int) {
	t.entries[slot] = value
}
