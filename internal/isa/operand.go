package isa

// PointerSize is the access width a memory operand applies, independent of
// the width of any register used to compute its address.
type PointerSize int

const (
	PtrNone PointerSize = iota
	BytePtr
	WordPtr
	DwordPtr
	QwordPtr
)

// Width returns the access width implied by a pointer size. PtrNone has no
// width and returns W32 as a harmless default.
func (p PointerSize) Width() Width {
	switch p {
	case BytePtr:
		return W8
	case WordPtr:
		return W16
	case QwordPtr:
		return W64
	default:
		return W32
	}
}

func (p PointerSize) String() string {
	switch p {
	case BytePtr:
		return "byte ptr"
	case WordPtr:
		return "word ptr"
	case DwordPtr:
		return "dword ptr"
	case QwordPtr:
		return "qword ptr"
	}
	return ""
}

// IndirectOperand describes a memory operand: [base + index*scale + disp].
// The zero value is invalid per the invariants below; build one with
// IndirectOperandBuilder.
type IndirectOperand struct {
	Base        Register
	HasBase     bool
	Index       Register
	HasIndex    bool
	Scale       uint8 // 1, 2, 4 or 8; meaningful only when HasIndex
	Disp        int64
	DispWidth   Width
	HasDisp     bool
	PointerSize PointerSize
	RIPRelative bool // [RIP + disp32] / [EIP + disp32] special case
}

// IndirectOperandBuilder is a one-shot, value-type builder: each With*
// method returns a new builder, and Build is the only way to obtain an
// IndirectOperand, so a builder can't be partially mutated and reused.
type IndirectOperandBuilder struct {
	op  IndirectOperand
	err error
}

// NewIndirectOperand starts a builder for a memory operand of the given
// access width.
func NewIndirectOperand(ptrSize PointerSize) IndirectOperandBuilder {
	return IndirectOperandBuilder{op: IndirectOperand{PointerSize: ptrSize}}
}

func (b IndirectOperandBuilder) WithBase(r Register) IndirectOperandBuilder {
	b.op.Base, b.op.HasBase = r, true
	return b
}

func (b IndirectOperandBuilder) WithIndex(r Register, scale uint8) IndirectOperandBuilder {
	if scale != 1 && scale != 2 && scale != 4 && scale != 8 {
		b.err = errInvalidScale
		return b
	}
	b.op.Index, b.op.HasIndex, b.op.Scale = r, true, scale
	return b
}

func (b IndirectOperandBuilder) WithDisplacement(v int64, width Width) IndirectOperandBuilder {
	b.op.Disp, b.op.DispWidth, b.op.HasDisp = v, width, true
	return b
}

func (b IndirectOperandBuilder) WithRIPRelative(disp int32) IndirectOperandBuilder {
	b.op.RIPRelative = true
	b.op.Disp, b.op.DispWidth, b.op.HasDisp = int64(disp), W32, true
	return b
}

// Build checks that the operand describes a real address (at least one of
// base, index or displacement, unless it's RIP-relative) and returns the
// finished operand.
func (b IndirectOperandBuilder) Build() (IndirectOperand, error) {
	if b.err != nil {
		return IndirectOperand{}, b.err
	}
	if !b.op.RIPRelative && !b.op.HasBase && !b.op.HasIndex && !b.op.HasDisp {
		return IndirectOperand{}, errMissingDisplacement
	}
	return b.op, nil
}

var (
	errInvalidScale        = indirectOperandError("scale must be 1, 2, 4 or 8")
	errMissingDisplacement = indirectOperandError("a displacement is mandatory when neither base nor index is present")
)

type indirectOperandError string

func (e indirectOperandError) Error() string { return string(e) }

// OperandKind discriminates the tagged union in Operand.
type OperandKind int

const (
	OperandNone OperandKind = iota
	OperandRegister
	OperandImmediate
	OperandMemory
	OperandRelative
)

// Operand is one argument of an Instruction. Exactly one of the Reg/Imm/Mem
// fields is meaningful, selected by Kind; this shape (rather than an
// interface per kind) keeps Instruction comparable with == and lets the
// codec's round-trip tests use plain struct equality.
type Operand struct {
	Kind OperandKind

	Reg Register

	ImmValue int64
	ImmWidth Width

	Mem IndirectOperand

	// RelValue is the raw signed displacement encoded for CALL/JMP/Jcc
	// operands (rel8/rel32), prior to adding it to the address of the
	// following instruction.
	RelValue int64
	RelWidth Width
}

// Width reports the access width of the operand, independent of what kind
// of value it holds.
func (o Operand) Width() Width {
	switch o.Kind {
	case OperandRegister:
		return o.Reg.Width()
	case OperandImmediate:
		return o.ImmWidth
	case OperandMemory:
		return o.Mem.PointerSize.Width()
	case OperandRelative:
		return o.RelWidth
	}
	return W32
}

func RegOperand(r Register) Operand {
	return Operand{Kind: OperandRegister, Reg: r}
}

func ImmOperand(v int64, w Width) Operand {
	return Operand{Kind: OperandImmediate, ImmValue: v, ImmWidth: w}
}

func MemOperand(m IndirectOperand) Operand {
	return Operand{Kind: OperandMemory, Mem: m}
}

func RelOperand(v int64, w Width) Operand {
	return Operand{Kind: OperandRelative, RelValue: v, RelWidth: w}
}
