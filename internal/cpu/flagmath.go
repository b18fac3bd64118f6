package cpu

import "github.com/ledmington/x86emu/internal/isa"

func maskFor(w isa.Width) uint64 {
	switch w {
	case isa.W8:
		return 0xFF
	case isa.W16:
		return 0xFFFF
	case isa.W32:
		return 0xFFFFFFFF
	default:
		return ^uint64(0)
	}
}

func signBitFor(w isa.Width) uint64 {
	return uint64(1) << uint(w.Bits()-1)
}

// arithResult computes a (op) b at width w, the way setFlagsArith8/16/32
// compute a byte/word/dword arithmetic result before deriving flags from
// it, generalized to also cover the 64-bit case where Go's uint64 addition
// itself can wrap.
func arithResult(a, b uint64, w isa.Width, sub bool) (result uint64, carry bool) {
	mask := maskFor(w)
	aM, bM := a&mask, b&mask
	var sum uint64
	if sub {
		sum = aM - bM
		carry = aM < bM
	} else {
		sum = aM + bM
		if w == isa.W64 {
			carry = sum < aM
		} else {
			carry = sum > mask
		}
	}
	return sum & mask, carry
}

// setFlagsArith sets CF (unless affectCF is false, which INC/DEC rely on to
// leave CF untouched), OF, AF, ZF, SF and PF after an arithmetic op and
// returns the masked result.
func (f *RegisterFile) setFlagsArith(a, b uint64, w isa.Width, sub, affectCF bool) uint64 {
	result, carry := arithResult(a, b, w, sub)
	mask := maskFor(w)
	aM, bM := a&mask, b&mask
	sign := signBitFor(w)

	if affectCF {
		f.SetFlag(CF, carry)
	}
	f.SetFlag(ZF, result == 0)
	f.SetFlag(SF, result&sign != 0)
	f.SetFlag(PF, parity(byte(result)))
	if sub {
		f.SetFlag(OF, (aM^bM)&(aM^result)&sign != 0)
		f.SetFlag(AF, (aM&0xF) < (bM&0xF))
	} else {
		f.SetFlag(OF, (^(aM^bM))&(aM^result)&sign != 0)
		f.SetFlag(AF, (aM&0xF)+(bM&0xF) > 0xF)
	}
	return result
}

// setFlagsLogic sets CF=OF=false and ZF/SF/PF from result, per the rule
// logical operations leave AF undefined; this leaves AF untouched.
func (f *RegisterFile) setFlagsLogic(result uint64, w isa.Width) uint64 {
	masked := result & maskFor(w)
	f.SetFlag(CF, false)
	f.SetFlag(OF, false)
	f.SetFlag(ZF, masked == 0)
	f.SetFlag(SF, masked&signBitFor(w) != 0)
	f.SetFlag(PF, parity(byte(masked)))
	return masked
}
