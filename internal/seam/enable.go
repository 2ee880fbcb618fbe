package seam

import "fmt"

// Enable bits for partitions of up to 30 registers live in one SF register.
// Partitions of 60 split them: bits 0..29 are the low 30 bits of EN1 and
// bits 30..59 come from EN2 shifted up by 30.
const (
	lowHalfBits = 30
	lowHalfMask = 0x3FFFFFFF
)

type enableRegs struct {
	en1, en2 int // en2 < 0 for single-register masks
}

var enableLayout = [...]enableRegs{
	XP: {SFXPEnable, -1},
	KP: {SFKPEnable, -1},
	OP: {SFOPEnable1, SFOPEnable2},
	VP: {SFVPEnable1, SFVPEnable2},
	OC: {SFOCEnable1, SFOCEnable2},
}

func enableFor(p Partition) (enableRegs, error) {
	if !p.Valid() {
		return enableRegs{}, fmt.Errorf("%w: unknown partition %d", ErrIndexOutOfRange, uint8(p))
	}
	if int(p) >= len(enableLayout) {
		return enableRegs{}, fmt.Errorf("%w: %s", ErrNoEnableMask, p)
	}
	return enableLayout[p], nil
}

// EnableMask returns the decoded enable bits of p. Bit k belongs to local
// register k.
func (t *Table) EnableMask(p Partition) (int64, error) {
	regs, err := enableFor(p)
	if err != nil {
		return 0, err
	}
	if regs.en2 < 0 {
		return int64(t.at(regs.en1).Int()), nil
	}
	// EN2 sign-extends into the top bits; EN1 must be cut to 30 bits so its
	// bits 30 and 31 never reach the EN2 range.
	hi := int64(t.at(regs.en2).Int()) << lowHalfBits
	lo := int64(t.at(regs.en1).Int() & lowHalfMask)
	return hi | lo, nil
}

// Enabled reports whether feature k of partition p is switched on.
func (t *Table) Enabled(p Partition, k int) (bool, error) {
	if _, err := p.Flat(k); err != nil {
		return false, err
	}
	mask, err := t.EnableMask(p)
	if err != nil {
		return false, err
	}
	return (mask>>k)&1 != 0, nil
}

// SetEnabled sets or clears feature k of partition p in the SF registers,
// touching only the one bit that Enabled decodes for k.
func (t *Table) SetEnabled(p Partition, k int, on bool) error {
	if _, err := p.Flat(k); err != nil {
		return err
	}
	regs, err := enableFor(p)
	if err != nil {
		return err
	}
	idx, bit := regs.en1, k
	if regs.en2 >= 0 && k >= lowHalfBits {
		idx, bit = regs.en2, k-lowHalfBits
	}
	v := uint32(t.at(idx))
	if on {
		v |= 1 << bit
	} else {
		v &^= 1 << bit
	}
	t.regs[idx].Store(v)
	return nil
}

// JointType returns the low 16 bits of the joint-type register.
func (t *Table) JointType() int32 {
	return t.at(SFJointType).Int() & 0xFFFF
}

// JointTypeMajor returns bits 8..15 of the joint-type register.
func (t *Table) JointTypeMajor() int32 {
	return (t.at(SFJointType).Int() >> 8) & 0xFF
}

// JointTypeMinor returns bits 0..7 of the joint-type register.
func (t *Table) JointTypeMinor() int32 {
	return t.at(SFJointType).Int() & 0xFF
}

// Version returns the low 16 bits of the version register.
func (t *Table) Version() int32 {
	return t.at(SFVersion).Int() & 0xFFFF
}
