package cpu

// evalCondition reports whether the 0-15 x86 condition-code index (the same
// ordering isa.ConditionName documents for Jcc/CMOVcc) holds against the
// current flags.
func evalCondition(idx int, f *RegisterFile) bool {
	switch idx {
	case 0: // O
		return f.IsSet(OF)
	case 1: // NO
		return !f.IsSet(OF)
	case 2: // B/C/NAE
		return f.IsSet(CF)
	case 3: // AE/NB/NC
		return !f.IsSet(CF)
	case 4: // E/Z
		return f.IsSet(ZF)
	case 5: // NE/NZ
		return !f.IsSet(ZF)
	case 6: // BE/NA
		return f.IsSet(CF) || f.IsSet(ZF)
	case 7: // A/NBE
		return !f.IsSet(CF) && !f.IsSet(ZF)
	case 8: // S
		return f.IsSet(SF)
	case 9: // NS
		return !f.IsSet(SF)
	case 10: // P/PE
		return f.IsSet(PF)
	case 11: // NP/PO
		return !f.IsSet(PF)
	case 12: // L/NGE
		return f.IsSet(SF) != f.IsSet(OF)
	case 13: // GE/NL
		return f.IsSet(SF) == f.IsSet(OF)
	case 14: // LE/NG
		return f.IsSet(ZF) || f.IsSet(SF) != f.IsSet(OF)
	case 15: // G/NLE
		return !f.IsSet(ZF) && f.IsSet(SF) == f.IsSet(OF)
	}
	return false
}
