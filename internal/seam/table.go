package seam

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
)

// Table is the canonical flat store of NumRegisters registers. Partition
// addressing is a view over the same storage, never a separate copy.
//
// Each cell is read and written atomically, so a reader racing an in-place
// bulk copy sees every register either old or new, never a torn word.
// Nothing stronger than that is promised across registers. A Table must not
// be copied by value; use Clone.
type Table struct {
	regs [NumRegisters]atomic.Uint32
}

// NewTable returns a zeroed table.
func NewTable() *Table {
	return &Table{}
}

// TableFromValues builds a table from int32 register images. Missing
// trailing values are zero and values past NumRegisters are ignored.
func TableFromValues(values []int32) *Table {
	t := NewTable()
	n := min(len(values), NumRegisters)
	for i := 0; i < n; i++ {
		t.regs[i].Store(uint32(values[i]))
	}
	return t
}

func checkFlat(i int) error {
	if i < 0 || i >= NumRegisters {
		return fmt.Errorf("%w: flat index %d not in [0,%d)", ErrIndexOutOfRange, i, NumRegisters)
	}
	return nil
}

// at reads a register whose index is already known to be valid.
func (t *Table) at(i int) Register {
	return Register(t.regs[i].Load())
}

// Get returns the register at flat index i.
func (t *Table) Get(i int) (Register, error) {
	if err := checkFlat(i); err != nil {
		return 0, err
	}
	return t.at(i), nil
}

// Set stores r at flat index i.
func (t *Table) Set(i int, r Register) error {
	if err := checkFlat(i); err != nil {
		return err
	}
	t.regs[i].Store(uint32(r))
	return nil
}

// GetIn returns the register at a partition-local index.
func (t *Table) GetIn(p Partition, local int) (Register, error) {
	i, err := p.Flat(local)
	if err != nil {
		return 0, err
	}
	return t.at(i), nil
}

// SetIn stores r at a partition-local index.
func (t *Table) SetIn(p Partition, local int, r Register) error {
	i, err := p.Flat(local)
	if err != nil {
		return err
	}
	t.regs[i].Store(uint32(r))
	return nil
}

// Float reads flat index i as a float32.
func (t *Table) Float(i int) (float32, error) {
	r, err := t.Get(i)
	return r.Float(), err
}

// Int reads flat index i as an int32.
func (t *Table) Int(i int) (int32, error) {
	r, err := t.Get(i)
	return r.Int(), err
}

// SetFloat writes v at flat index i.
func (t *Table) SetFloat(i int, v float32) error {
	return t.Set(i, FloatRegister(v))
}

// SetInt writes v at flat index i.
func (t *Table) SetInt(i int, v int32) error {
	return t.Set(i, IntRegister(v))
}

// FloatIn reads a partition-local register as a float32.
func (t *Table) FloatIn(p Partition, local int) (float32, error) {
	r, err := t.GetIn(p, local)
	return r.Float(), err
}

// IntIn reads a partition-local register as an int32.
func (t *Table) IntIn(p Partition, local int) (int32, error) {
	r, err := t.GetIn(p, local)
	return r.Int(), err
}

// Partition returns a view over the registers of p. Writes through the
// view land in t.
func (t *Table) Partition(p Partition) View {
	return View{t: t, p: p}
}

// Values returns a copy of every register as an int32 image.
func (t *Table) Values() []int32 {
	out := make([]int32, NumRegisters)
	for i := range out {
		out[i] = t.at(i).Int()
	}
	return out
}

// Clone returns an independent copy of t.
func (t *Table) Clone() *Table {
	c := NewTable()
	c.CopyFrom(t)
	return c
}

// CopyFrom overwrites every register of t with the matching register of
// src, one register at a time.
func (t *Table) CopyFrom(src *Table) {
	for i := range t.regs {
		t.regs[i].Store(src.regs[i].Load())
	}
}

// Equal reports whether both tables hold the same register bits.
func (t *Table) Equal(o *Table) bool {
	if t == nil || o == nil {
		return t == o
	}
	for i := range t.regs {
		if t.regs[i].Load() != o.regs[i].Load() {
			return false
		}
	}
	return true
}

// MarshalBinary returns the 1000-byte little-endian register image.
func (t *Table) MarshalBinary() ([]byte, error) {
	buf := make([]byte, NumRegisters*4)
	for i := range t.regs {
		binary.LittleEndian.PutUint32(buf[i*4:], t.regs[i].Load())
	}
	return buf, nil
}

// UnmarshalBinary loads a register image produced by MarshalBinary.
func (t *Table) UnmarshalBinary(data []byte) error {
	if len(data) != NumRegisters*4 {
		return fmt.Errorf("register image is %d bytes, want %d", len(data), NumRegisters*4)
	}
	for i := range t.regs {
		t.regs[i].Store(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return nil
}

// View is a fixed-length window over one partition of a Table.
type View struct {
	t *Table
	p Partition
}

// Partition returns the partition the view covers.
func (v View) Partition() Partition { return v.p }

// Len returns the partition capacity.
func (v View) Len() int { return v.p.Capacity() }

// Get returns the register at local index i.
func (v View) Get(i int) (Register, error) { return v.t.GetIn(v.p, i) }

// Set stores r at local index i.
func (v View) Set(i int, r Register) error { return v.t.SetIn(v.p, i, r) }

// Float reads local index i as a float32.
func (v View) Float(i int) (float32, error) { return v.t.FloatIn(v.p, i) }

// Int reads local index i as an int32.
func (v View) Int(i int) (int32, error) { return v.t.IntIn(v.p, i) }

// Registers returns a copy of the partition's registers in order.
func (v View) Registers() []Register {
	out := make([]Register, v.Len())
	base := v.p.Base()
	for i := range out {
		out[i] = v.t.at(base + i)
	}
	return out
}
