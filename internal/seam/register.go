// Package seam holds the seam parameter register table: 250 untyped 32-bit
// registers split into six fixed partitions, the feature-enable bits packed
// into the SF partition, and the Profile that carries a table.
//
// A register has no type tag. Whether a slot holds a float32 or an int32 is
// decided by where it sits in the table, and readers must use the view that
// the writer used. Nothing in this package checks that.
package seam

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Register is one raw 4-byte parameter cell.
type Register uint32

// FloatRegister returns a register holding the IEEE-754 bits of v.
func FloatRegister(v float32) Register {
	return Register(math.Float32bits(v))
}

// IntRegister returns a register holding the two's-complement bits of v.
func IntRegister(v int32) Register {
	return Register(uint32(v))
}

// Float reinterprets the cell as a float32.
func (r Register) Float() float32 {
	return math.Float32frombits(uint32(r))
}

// Int reinterprets the cell as an int32.
func (r Register) Int() int32 {
	return int32(r)
}

// Bytes returns the little-endian byte image of the cell.
func (r Register) Bytes() [4]byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(r))
	return b
}

func (r Register) String() string {
	return fmt.Sprintf("0x%08X / %d / %g", uint32(r), r.Int(), r.Float())
}
