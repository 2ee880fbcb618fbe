package seam

import (
	"fmt"
	"strings"
)

// NumRegisters is the size of a register table. Changing it, or any
// partition base or capacity below, changes the persisted format.
const NumRegisters = 250

// Partition names one of the six contiguous register groups.
type Partition uint8

const (
	XP Partition = iota // acquisition: exposure, laser, lamp, ROI
	KP                  // key dimensions of the joint template
	OP                  // detection options
	VP                  // validation ranges and layer geometry
	OC                  // output control and tracking
	SF                  // joint type, enable masks, version
)

type partitionLayout struct {
	name     string
	base     int
	capacity int
}

var layouts = [...]partitionLayout{
	XP: {"XP", 0, 30},
	KP: {"KP", 30, 30},
	OP: {"OP", 60, 60},
	VP: {"VP", 120, 60},
	OC: {"OC", 180, 60},
	SF: {"SF", 240, 10},
}

// Partitions returns all partitions in flat order.
func Partitions() []Partition {
	return []Partition{XP, KP, OP, VP, OC, SF}
}

// Valid reports whether p is one of the six partitions.
func (p Partition) Valid() bool {
	return int(p) < len(layouts)
}

// Base returns the flat index of the partition's first register.
func (p Partition) Base() int {
	if !p.Valid() {
		return -1
	}
	return layouts[p].base
}

// Capacity returns the number of registers in the partition.
func (p Partition) Capacity() int {
	if !p.Valid() {
		return 0
	}
	return layouts[p].capacity
}

func (p Partition) String() string {
	if !p.Valid() {
		return fmt.Sprintf("Partition(%d)", uint8(p))
	}
	return layouts[p].name
}

// Flat maps a partition-local index to its flat index.
func (p Partition) Flat(local int) (int, error) {
	if !p.Valid() {
		return 0, fmt.Errorf("%w: unknown partition %d", ErrIndexOutOfRange, uint8(p))
	}
	if local < 0 || local >= layouts[p].capacity {
		return 0, fmt.Errorf("%w: %s local index %d not in [0,%d)", ErrIndexOutOfRange, p, local, layouts[p].capacity)
	}
	return layouts[p].base + local, nil
}

// Locate is the inverse of Flat: it returns the partition and local index
// that a flat index falls in.
func Locate(flat int) (Partition, int, error) {
	if flat < 0 || flat >= NumRegisters {
		return 0, 0, fmt.Errorf("%w: flat index %d not in [0,%d)", ErrIndexOutOfRange, flat, NumRegisters)
	}
	for i := len(layouts) - 1; i >= 0; i-- {
		if flat >= layouts[i].base {
			return Partition(i), flat - layouts[i].base, nil
		}
	}
	// unreachable: XP starts at 0
	return XP, flat, nil
}

// ParsePartition accepts a partition name in any case.
func ParsePartition(s string) (Partition, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, l := range layouts {
		if l.name == name {
			return Partition(i), nil
		}
	}
	return 0, fmt.Errorf("unknown partition %q", s)
}
