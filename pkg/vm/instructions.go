package vm

import (
	"fmt"
	"math"

	"github.com/daimatz/jbridge/pkg/classfile"
)

// Opcodes
const (
	OpNop             = 0x00
	OpAconstNull      = 0x01
	OpIconstM1        = 0x02
	OpIconst0         = 0x03
	OpIconst1         = 0x04
	OpIconst2         = 0x05
	OpIconst3         = 0x06
	OpIconst4         = 0x07
	OpIconst5         = 0x08
	OpLconst0         = 0x09
	OpLconst1         = 0x0A
	OpFconst0         = 0x0B
	OpFconst1         = 0x0C
	OpFconst2         = 0x0D
	OpDconst0         = 0x0E
	OpDconst1         = 0x0F
	OpBipush          = 0x10
	OpSipush          = 0x11
	OpLdc             = 0x12
	OpLdcW            = 0x13
	OpLdc2W           = 0x14
	OpIload           = 0x15
	OpLload           = 0x16
	OpFload           = 0x17
	OpDload           = 0x18
	OpAload           = 0x19
	OpIload0          = 0x1A
	OpLload0          = 0x1E
	OpFload0          = 0x22
	OpDload0          = 0x26
	OpAload0          = 0x2A
	OpAload3          = 0x2D
	OpIaload          = 0x2E
	OpLaload          = 0x2F
	OpFaload          = 0x30
	OpDaload          = 0x31
	OpAaload          = 0x32
	OpBaload          = 0x33
	OpCaload          = 0x34
	OpSaload          = 0x35
	OpIstore          = 0x36
	OpLstore          = 0x37
	OpFstore          = 0x38
	OpDstore          = 0x39
	OpAstore          = 0x3A
	OpIstore0         = 0x3B
	OpLstore0         = 0x3F
	OpFstore0         = 0x43
	OpDstore0         = 0x47
	OpAstore0         = 0x4B
	OpAstore3         = 0x4E
	OpIastore         = 0x4F
	OpLastore         = 0x50
	OpFastore         = 0x51
	OpDastore         = 0x52
	OpAastore         = 0x53
	OpBastore         = 0x54
	OpCastore         = 0x55
	OpSastore         = 0x56
	OpPop             = 0x57
	OpPop2            = 0x58
	OpDup             = 0x59
	OpDupX1           = 0x5A
	OpDupX2           = 0x5B
	OpDup2            = 0x5C
	OpDup2X1          = 0x5D
	OpDup2X2          = 0x5E
	OpSwap            = 0x5F
	OpIadd            = 0x60
	OpLadd            = 0x61
	OpFadd            = 0x62
	OpDadd            = 0x63
	OpIsub            = 0x64
	OpLsub            = 0x65
	OpFsub            = 0x66
	OpDsub            = 0x67
	OpImul            = 0x68
	OpLmul            = 0x69
	OpFmul            = 0x6A
	OpDmul            = 0x6B
	OpIdiv            = 0x6C
	OpLdiv            = 0x6D
	OpFdiv            = 0x6E
	OpDdiv            = 0x6F
	OpIrem            = 0x70
	OpLrem            = 0x71
	OpFrem            = 0x72
	OpDrem            = 0x73
	OpIneg            = 0x74
	OpLneg            = 0x75
	OpFneg            = 0x76
	OpDneg            = 0x77
	OpIshl            = 0x78
	OpLshl            = 0x79
	OpIshr            = 0x7A
	OpLshr            = 0x7B
	OpIushr           = 0x7C
	OpLushr           = 0x7D
	OpIand            = 0x7E
	OpLand            = 0x7F
	OpIor             = 0x80
	OpLor             = 0x81
	OpIxor            = 0x82
	OpLxor            = 0x83
	OpIinc            = 0x84
	OpI2l             = 0x85
	OpI2f             = 0x86
	OpI2d             = 0x87
	OpL2i             = 0x88
	OpL2f             = 0x89
	OpL2d             = 0x8A
	OpF2i             = 0x8B
	OpF2l             = 0x8C
	OpF2d             = 0x8D
	OpD2i             = 0x8E
	OpD2l             = 0x8F
	OpD2f             = 0x90
	OpI2b             = 0x91
	OpI2c             = 0x92
	OpI2s             = 0x93
	OpLcmp            = 0x94
	OpFcmpl           = 0x95
	OpFcmpg           = 0x96
	OpDcmpl           = 0x97
	OpDcmpg           = 0x98
	OpIfeq            = 0x99
	OpIfne            = 0x9A
	OpIflt            = 0x9B
	OpIfge            = 0x9C
	OpIfgt            = 0x9D
	OpIfle            = 0x9E
	OpIfIcmpeq        = 0x9F
	OpIfIcmpne        = 0xA0
	OpIfIcmplt        = 0xA1
	OpIfIcmpge        = 0xA2
	OpIfIcmpgt        = 0xA3
	OpIfIcmple        = 0xA4
	OpIfAcmpeq        = 0xA5
	OpIfAcmpne        = 0xA6
	OpGoto            = 0xA7
	OpTableswitch     = 0xAA
	OpLookupswitch    = 0xAB
	OpIreturn         = 0xAC
	OpLreturn         = 0xAD
	OpFreturn         = 0xAE
	OpDreturn         = 0xAF
	OpAreturn         = 0xB0
	OpReturn          = 0xB1
	OpGetstatic       = 0xB2
	OpPutstatic       = 0xB3
	OpGetfield        = 0xB4
	OpPutfield        = 0xB5
	OpInvokevirtual   = 0xB6
	OpInvokespecial   = 0xB7
	OpInvokestatic    = 0xB8
	OpInvokeinterface = 0xB9
	OpInvokedynamic   = 0xBA
	OpNew             = 0xBB
	OpNewarray        = 0xBC
	OpAnewarray       = 0xBD
	OpArraylength     = 0xBE
	OpAthrow          = 0xBF
	OpCheckcast       = 0xC0
	OpInstanceof      = 0xC1
	OpMonitorenter    = 0xC2
	OpMonitorexit     = 0xC3
	OpWide            = 0xC4
	OpMultianewarray  = 0xC5
	OpIfnull          = 0xC6
	OpIfnonnull       = 0xC7
	OpGotoW           = 0xC8
)

// newarray atype operand values
var arrayTypes = map[uint8]byte{
	4:  'Z',
	5:  'C',
	6:  'F',
	7:  'D',
	8:  'B',
	9:  'S',
	10: 'I',
	11: 'J',
}

// executeInstruction executes a single bytecode instruction.
// Returns (returnValue, hasReturn, error).
func (v *VM) executeInstruction(frame *Frame, opcode byte) (Value, bool, error) {
	switch {
	// xload_<n> and xstore_<n> come in runs of four per type.
	case opcode >= OpIload0 && opcode <= OpAload3:
		frame.Push(frame.GetLocal(int(opcode-OpIload0) % 4))
		return Value{}, false, nil
	case opcode >= OpIstore0 && opcode <= OpAstore3:
		frame.SetLocal(int(opcode-OpIstore0)%4, frame.Pop())
		return Value{}, false, nil
	}

	switch opcode {
	case OpNop:
		// do nothing

	// --- Constant load instructions ---
	case OpAconstNull:
		frame.Push(NullValue())

	case OpIconstM1, OpIconst0, OpIconst1, OpIconst2, OpIconst3, OpIconst4, OpIconst5:
		frame.Push(IntValue(int32(opcode) - OpIconst0))

	case OpLconst0, OpLconst1:
		frame.Push(LongValue(int64(opcode - OpLconst0)))

	case OpFconst0, OpFconst1, OpFconst2:
		frame.Push(FloatValue(float32(opcode - OpFconst0)))

	case OpDconst0, OpDconst1:
		frame.Push(DoubleValue(float64(opcode - OpDconst0)))

	case OpBipush:
		val := frame.ReadI8()
		frame.Push(IntValue(int32(val)))

	case OpSipush:
		val := frame.ReadI16()
		frame.Push(IntValue(int32(val)))

	case OpLdc:
		index := frame.ReadU8()
		return v.executeLdc(frame, uint16(index))

	case OpLdcW, OpLdc2W:
		index := frame.ReadU16()
		return v.executeLdc(frame, index)

	// --- Local variables ---
	case OpIload, OpLload, OpFload, OpDload, OpAload:
		index := frame.ReadU8()
		frame.Push(frame.GetLocal(int(index)))

	case OpIstore, OpLstore, OpFstore, OpDstore, OpAstore:
		index := frame.ReadU8()
		frame.SetLocal(int(index), frame.Pop())

	case OpIinc:
		index := frame.ReadU8()
		constVal := frame.ReadI8()
		local := frame.GetLocal(int(index))
		frame.SetLocal(int(index), IntValue(local.Int()+int32(constVal)))

	case OpWide:
		return v.executeWide(frame)

	// --- Arrays ---
	case OpIaload, OpLaload, OpFaload, OpDaload, OpAaload, OpBaload, OpCaload, OpSaload:
		index := frame.Pop().Int()
		arr, err := v.arrayOperand(frame.Pop(), index)
		if err != nil {
			return Value{}, false, err
		}
		frame.Push(arr.Elems[index])

	case OpIastore, OpLastore, OpFastore, OpDastore, OpAastore, OpBastore, OpCastore, OpSastore:
		value := frame.Pop()
		index := frame.Pop().Int()
		arr, err := v.arrayOperand(frame.Pop(), index)
		if err != nil {
			return Value{}, false, err
		}
		if err := v.storeElement(arr, int(index), value); err != nil {
			return Value{}, false, err
		}

	case OpNewarray:
		base, ok := arrayTypes[frame.ReadU8()]
		if !ok {
			return Value{}, false, fmt.Errorf("newarray: invalid atype")
		}
		return v.allocArray(frame, classfile.FieldType{Base: base})

	case OpAnewarray:
		comp, err := v.classOperand(frame)
		if err != nil {
			return Value{}, false, err
		}
		return v.allocArray(frame, typeOfClass(comp))

	case OpMultianewarray:
		c, err := v.classOperand(frame)
		if err != nil {
			return Value{}, false, err
		}
		dims := int(frame.ReadU8())
		counts := make([]int32, dims)
		for i := dims - 1; i >= 0; i-- {
			counts[i] = frame.Pop().Int()
		}
		arr, err := v.multiArray(c, counts)
		if err != nil {
			return Value{}, false, err
		}
		frame.Push(RefValue(arr))

	case OpArraylength:
		arrRef := frame.Pop()
		if arrRef.IsNull() {
			return Value{}, false, v.throw("java/lang/NullPointerException", "Cannot read the array length because value is null")
		}
		if !arrRef.Ref.IsArray() {
			return Value{}, false, fmt.Errorf("arraylength: reference is not an array")
		}
		frame.Push(IntValue(int32(len(arrRef.Ref.Elems))))

	// --- Stack manipulation ---
	case OpPop:
		frame.Pop()

	case OpPop2:
		popSlots(frame, 2)

	case OpDup:
		frame.Push(frame.Peek())

	case OpDupX1:
		top := popSlots(frame, 1)
		under := popSlots(frame, 1)
		pushAll(frame, top, under, top)

	case OpDupX2:
		top := popSlots(frame, 1)
		under := popSlots(frame, 2)
		pushAll(frame, top, under, top)

	case OpDup2:
		top := popSlots(frame, 2)
		pushAll(frame, top, top)

	case OpDup2X1:
		top := popSlots(frame, 2)
		under := popSlots(frame, 1)
		pushAll(frame, top, under, top)

	case OpDup2X2:
		top := popSlots(frame, 2)
		under := popSlots(frame, 2)
		pushAll(frame, top, under, top)

	case OpSwap:
		v2 := frame.Pop()
		v1 := frame.Pop()
		frame.Push(v2)
		frame.Push(v1)

	// --- Arithmetic ---
	case OpIadd, OpIsub, OpImul, OpIdiv, OpIrem, OpIshl, OpIshr, OpIushr, OpIand, OpIor, OpIxor:
		v2 := frame.Pop().Int()
		v1 := frame.Pop().Int()
		r, err := v.intOp(opcode, v1, v2)
		if err != nil {
			return Value{}, false, err
		}
		frame.Push(IntValue(r))

	case OpLadd, OpLsub, OpLmul, OpLdiv, OpLrem, OpLand, OpLor, OpLxor:
		v2 := frame.Pop().Long()
		v1 := frame.Pop().Long()
		r, err := v.longOp(opcode, v1, v2)
		if err != nil {
			return Value{}, false, err
		}
		frame.Push(LongValue(r))

	case OpLshl, OpLshr, OpLushr:
		s := uint(frame.Pop().Int()) & 0x3f
		v1 := frame.Pop().Long()
		switch opcode {
		case OpLshl:
			frame.Push(LongValue(v1 << s))
		case OpLshr:
			frame.Push(LongValue(v1 >> s))
		default:
			frame.Push(LongValue(int64(uint64(v1) >> s)))
		}

	case OpFadd, OpFsub, OpFmul, OpFdiv, OpFrem:
		v2 := frame.Pop().Float()
		v1 := frame.Pop().Float()
		frame.Push(FloatValue(float32(floatOp(opcode-OpFadd+OpDadd, float64(v1), float64(v2)))))

	case OpDadd, OpDsub, OpDmul, OpDdiv, OpDrem:
		v2 := frame.Pop().Double()
		v1 := frame.Pop().Double()
		frame.Push(DoubleValue(floatOp(opcode, v1, v2)))

	case OpIneg:
		frame.Push(IntValue(-frame.Pop().Int()))
	case OpLneg:
		frame.Push(LongValue(-frame.Pop().Long()))
	case OpFneg:
		frame.Push(FloatValue(-frame.Pop().Float()))
	case OpDneg:
		frame.Push(DoubleValue(-frame.Pop().Double()))

	// --- Type conversions ---
	case OpI2l:
		frame.Push(LongValue(int64(frame.Pop().Int())))
	case OpI2f:
		frame.Push(FloatValue(float32(frame.Pop().Int())))
	case OpI2d:
		frame.Push(DoubleValue(float64(frame.Pop().Int())))
	case OpL2i:
		frame.Push(IntValue(int32(frame.Pop().Long())))
	case OpL2f:
		frame.Push(FloatValue(float32(frame.Pop().Long())))
	case OpL2d:
		frame.Push(DoubleValue(float64(frame.Pop().Long())))
	case OpF2i:
		frame.Push(IntValue(DoubleToInt(float64(frame.Pop().Float()))))
	case OpF2l:
		frame.Push(LongValue(DoubleToLong(float64(frame.Pop().Float()))))
	case OpF2d:
		frame.Push(DoubleValue(float64(frame.Pop().Float())))
	case OpD2i:
		frame.Push(IntValue(DoubleToInt(frame.Pop().Double())))
	case OpD2l:
		frame.Push(LongValue(DoubleToLong(frame.Pop().Double())))
	case OpD2f:
		frame.Push(FloatValue(float32(frame.Pop().Double())))
	case OpI2b:
		frame.Push(narrow(KindByte, frame.Pop()))
	case OpI2c:
		frame.Push(narrow(KindChar, frame.Pop()))
	case OpI2s:
		frame.Push(narrow(KindShort, frame.Pop()))

	// --- Comparisons ---
	case OpLcmp:
		v2 := frame.Pop().Long()
		v1 := frame.Pop().Long()
		switch {
		case v1 > v2:
			frame.Push(IntValue(1))
		case v1 < v2:
			frame.Push(IntValue(-1))
		default:
			frame.Push(IntValue(0))
		}

	case OpFcmpl, OpFcmpg, OpDcmpl, OpDcmpg:
		v2 := frame.Pop().F
		v1 := frame.Pop().F
		switch {
		case math.IsNaN(v1) || math.IsNaN(v2):
			if opcode == OpFcmpg || opcode == OpDcmpg {
				frame.Push(IntValue(1))
			} else {
				frame.Push(IntValue(-1))
			}
		case v1 > v2:
			frame.Push(IntValue(1))
		case v1 < v2:
			frame.Push(IntValue(-1))
		default:
			frame.Push(IntValue(0))
		}

	// --- Comparison and branch ---
	case OpIfeq:
		return v.executeBranchUnary(frame, func(v int32) bool { return v == 0 })
	case OpIfne:
		return v.executeBranchUnary(frame, func(v int32) bool { return v != 0 })
	case OpIflt:
		return v.executeBranchUnary(frame, func(v int32) bool { return v < 0 })
	case OpIfge:
		return v.executeBranchUnary(frame, func(v int32) bool { return v >= 0 })
	case OpIfgt:
		return v.executeBranchUnary(frame, func(v int32) bool { return v > 0 })
	case OpIfle:
		return v.executeBranchUnary(frame, func(v int32) bool { return v <= 0 })

	case OpIfIcmpeq:
		return v.executeBranchBinary(frame, func(v1, v2 int32) bool { return v1 == v2 })
	case OpIfIcmpne:
		return v.executeBranchBinary(frame, func(v1, v2 int32) bool { return v1 != v2 })
	case OpIfIcmplt:
		return v.executeBranchBinary(frame, func(v1, v2 int32) bool { return v1 < v2 })
	case OpIfIcmpge:
		return v.executeBranchBinary(frame, func(v1, v2 int32) bool { return v1 >= v2 })
	case OpIfIcmpgt:
		return v.executeBranchBinary(frame, func(v1, v2 int32) bool { return v1 > v2 })
	case OpIfIcmple:
		return v.executeBranchBinary(frame, func(v1, v2 int32) bool { return v1 <= v2 })

	case OpIfAcmpeq, OpIfAcmpne:
		branchPC := frame.PC - 1
		offset := frame.ReadI16()
		v2 := frame.Pop()
		v1 := frame.Pop()
		if (v1.Ref == v2.Ref) == (opcode == OpIfAcmpeq) {
			frame.PC = branchPC + int(offset)
		}

	case OpIfnull, OpIfnonnull:
		branchPC := frame.PC - 1
		offset := frame.ReadI16()
		val := frame.Pop()
		if val.IsNull() == (opcode == OpIfnull) {
			frame.PC = branchPC + int(offset)
		}

	case OpGoto:
		branchPC := frame.PC - 1
		offset := frame.ReadI16()
		frame.PC = branchPC + int(offset)

	case OpGotoW:
		branchPC := frame.PC - 1
		offset := frame.ReadI32()
		frame.PC = branchPC + int(offset)

	case OpTableswitch:
		// PC of the tableswitch opcode
		opcodePC := frame.PC - 1
		// Padding to align to 4-byte boundary
		for frame.PC%4 != 0 {
			frame.PC++
		}
		defaultOffset := frame.ReadI32()
		low := frame.ReadI32()
		high := frame.ReadI32()
		numOffsets := int(high - low + 1)
		offsets := make([]int32, numOffsets)
		for i := 0; i < numOffsets; i++ {
			offsets[i] = frame.ReadI32()
		}
		index := frame.Pop().Int()
		if index >= low && index <= high {
			frame.PC = opcodePC + int(offsets[index-low])
		} else {
			frame.PC = opcodePC + int(defaultOffset)
		}

	case OpLookupswitch:
		opcodePC := frame.PC - 1
		for frame.PC%4 != 0 {
			frame.PC++
		}
		defaultOffset := frame.ReadI32()
		npairs := frame.ReadI32()
		key := frame.Pop().Int()
		target := opcodePC + int(defaultOffset)
		for i := int32(0); i < npairs; i++ {
			matchVal := frame.ReadI32()
			offset := frame.ReadI32()
			if key == matchVal {
				target = opcodePC + int(offset)
			}
		}
		frame.PC = target

	// --- Return ---
	case OpIreturn, OpLreturn, OpFreturn, OpDreturn, OpAreturn:
		return frame.Pop(), true, nil

	case OpReturn:
		return Value{}, true, nil

	// --- Method invocation and field access ---
	case OpGetstatic:
		return v.executeGetstatic(frame)

	case OpPutstatic:
		return v.executePutstatic(frame)

	case OpGetfield:
		return v.executeGetfield(frame)

	case OpPutfield:
		return v.executePutfield(frame)

	case OpInvokevirtual:
		return v.executeInvokevirtual(frame, "invokevirtual", false)

	case OpInvokeinterface:
		return v.executeInvokevirtual(frame, "invokeinterface", true)

	case OpInvokespecial:
		return v.executeInvokespecial(frame)

	case OpInvokestatic:
		return v.executeInvokestatic(frame)

	case OpInvokedynamic:
		return Value{}, false, v.throw("java/lang/UnsupportedOperationException", "invokedynamic")

	case OpNew:
		return v.executeNew(frame)

	case OpAthrow:
		excRef := frame.Pop()
		if excRef.IsNull() {
			return Value{}, false, v.throw("java/lang/NullPointerException", "")
		}
		return Value{}, false, &JavaException{Object: excRef.Ref}

	case OpCheckcast:
		c, err := v.classOperand(frame)
		if err != nil {
			return Value{}, false, fmt.Errorf("checkcast: %w", err)
		}
		val := frame.Peek()
		if !val.IsNull() && !val.Ref.Class.IsSubclassOf(c) {
			return Value{}, false, v.throw("java/lang/ClassCastException",
				"class %s cannot be cast to class %s", val.Ref.Class.JavaName(), c.JavaName())
		}

	case OpInstanceof:
		c, err := v.classOperand(frame)
		if err != nil {
			return Value{}, false, fmt.Errorf("instanceof: %w", err)
		}
		ref := frame.Pop()
		if !ref.IsNull() && ref.Ref.Class.IsSubclassOf(c) {
			frame.Push(IntValue(1))
		} else {
			frame.Push(IntValue(0))
		}

	case OpMonitorenter, OpMonitorexit:
		// guest code is single threaded under the attach lock
		if frame.Pop().IsNull() {
			return Value{}, false, v.throw("java/lang/NullPointerException", "")
		}

	default:
		return Value{}, false, fmt.Errorf("unknown opcode: 0x%02X at PC=%d", opcode, frame.PC-1)
	}

	return Value{}, false, nil
}

// executeWide handles the wide prefix for local variable access and iinc.
func (v *VM) executeWide(frame *Frame) (Value, bool, error) {
	op := frame.ReadU8()
	index := int(frame.ReadU16())
	switch op {
	case OpIload, OpLload, OpFload, OpDload, OpAload:
		frame.Push(frame.GetLocal(index))
	case OpIstore, OpLstore, OpFstore, OpDstore, OpAstore:
		frame.SetLocal(index, frame.Pop())
	case OpIinc:
		delta := frame.ReadI16()
		frame.SetLocal(index, IntValue(frame.GetLocal(index).Int()+int32(delta)))
	default:
		return Value{}, false, fmt.Errorf("wide: unsupported opcode 0x%02X", op)
	}
	return Value{}, false, nil
}

// popSlots pops values covering n stack slots, counting long and double as
// two, and returns them bottom first.
func popSlots(frame *Frame, n int) []Value {
	var vals []Value
	for n > 0 {
		val := frame.Pop()
		vals = append([]Value{val}, vals...)
		n--
		if val.Kind.IsWide() {
			n--
		}
	}
	return vals
}

func pushAll(frame *Frame, groups ...[]Value) {
	for _, g := range groups {
		for _, val := range g {
			frame.Push(val)
		}
	}
}

func (v *VM) intOp(op byte, v1, v2 int32) (int32, error) {
	switch op {
	case OpIadd:
		return v1 + v2, nil
	case OpIsub:
		return v1 - v2, nil
	case OpImul:
		return v1 * v2, nil
	case OpIdiv, OpIrem:
		if v2 == 0 {
			return 0, v.throw("java/lang/ArithmeticException", "/ by zero")
		}
		if v2 == -1 {
			// MinInt32 / -1 wraps in Java
			if op == OpIdiv {
				return -v1, nil
			}
			return 0, nil
		}
		if op == OpIdiv {
			return v1 / v2, nil
		}
		return v1 % v2, nil
	case OpIshl:
		return v1 << (uint(v2) & 0x1f), nil
	case OpIshr:
		return v1 >> (uint(v2) & 0x1f), nil
	case OpIushr:
		return int32(uint32(v1) >> (uint(v2) & 0x1f)), nil
	case OpIand:
		return v1 & v2, nil
	case OpIor:
		return v1 | v2, nil
	}
	return v1 ^ v2, nil
}

func (v *VM) longOp(op byte, v1, v2 int64) (int64, error) {
	switch op {
	case OpLadd:
		return v1 + v2, nil
	case OpLsub:
		return v1 - v2, nil
	case OpLmul:
		return v1 * v2, nil
	case OpLdiv, OpLrem:
		if v2 == 0 {
			return 0, v.throw("java/lang/ArithmeticException", "/ by zero")
		}
		if v2 == -1 {
			if op == OpLdiv {
				return -v1, nil
			}
			return 0, nil
		}
		if op == OpLdiv {
			return v1 / v2, nil
		}
		return v1 % v2, nil
	case OpLand:
		return v1 & v2, nil
	case OpLor:
		return v1 | v2, nil
	}
	return v1 ^ v2, nil
}

// floatOp evaluates a double opcode; float opcodes are mapped onto it and
// rounded by the caller.
func floatOp(op byte, v1, v2 float64) float64 {
	switch op {
	case OpDadd:
		return v1 + v2
	case OpDsub:
		return v1 - v2
	case OpDmul:
		return v1 * v2
	case OpDdiv:
		return v1 / v2
	}
	return math.Mod(v1, v2)
}

// DoubleToInt converts with Java semantics: NaN is 0 and out of range values clamp.
func DoubleToInt(f float64) int32 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	}
	return int32(f)
}

// DoubleToLong is DoubleToInt for long results.
func DoubleToLong(f float64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(f)
}

func typeOfClass(c *Class) classfile.FieldType {
	if c.isArray {
		return c.elem.ArrayOf()
	}
	return classfile.FieldType{Base: 'L', ClassName: c.Name}
}

func (v *VM) allocArray(frame *Frame, elem classfile.FieldType) (Value, bool, error) {
	count := frame.Pop().Int()
	if count < 0 {
		return Value{}, false, v.throw("java/lang/NegativeArraySizeException", "%d", count)
	}
	c, err := v.arrayClass(elem)
	if err != nil {
		return Value{}, false, err
	}
	frame.Push(RefValue(v.newArray(c, int(count))))
	return Value{}, false, nil
}

func (v *VM) multiArray(c *Class, counts []int32) (*JObject, error) {
	if counts[0] < 0 {
		return nil, v.throw("java/lang/NegativeArraySizeException", "%d", counts[0])
	}
	arr := v.newArray(c, int(counts[0]))
	if len(counts) > 1 {
		for i := range arr.Elems {
			sub, err := v.multiArray(c.Component, counts[1:])
			if err != nil {
				return nil, err
			}
			arr.Elems[i] = RefValue(sub)
		}
	}
	return arr, nil
}

// arrayOperand checks an array reference and index for xaload/xastore.
func (v *VM) arrayOperand(ref Value, index int32) (*JObject, error) {
	if ref.IsNull() {
		return nil, v.throw("java/lang/NullPointerException", "Cannot load from array because value is null")
	}
	if !ref.Ref.IsArray() {
		return nil, fmt.Errorf("array access: reference is not an array")
	}
	if index < 0 || int(index) >= len(ref.Ref.Elems) {
		return nil, v.throw("java/lang/ArrayIndexOutOfBoundsException",
			"Index %d out of bounds for length %d", index, len(ref.Ref.Elems))
	}
	return ref.Ref, nil
}

// storeElement stores value with array store checks and narrowing.
func (v *VM) storeElement(arr *JObject, index int, value Value) error {
	if arr.Class.elem.IsReference() {
		if !value.IsNull() && !value.Ref.Class.IsSubclassOf(arr.Class.Component) {
			return v.throw("java/lang/ArrayStoreException", "%s", value.Ref.Class.JavaName())
		}
		arr.Elems[index] = value
		return nil
	}
	arr.Elems[index] = narrow(KindOf(arr.Class.elem), value)
	return nil
}

// executeBranchUnary handles unary branch instructions (ifeq, ifne, etc.)
func (v *VM) executeBranchUnary(frame *Frame, cond func(int32) bool) (Value, bool, error) {
	branchPC := frame.PC - 1 // PC of the branch instruction
	offset := frame.ReadI16()
	val := frame.Pop()
	if cond(val.Int()) {
		frame.PC = branchPC + int(offset)
	}
	return Value{}, false, nil
}

// executeBranchBinary handles binary branch instructions (if_icmpeq, etc.)
func (v *VM) executeBranchBinary(frame *Frame, cond func(int32, int32) bool) (Value, bool, error) {
	branchPC := frame.PC - 1 // PC of the branch instruction
	offset := frame.ReadI16()
	v2 := frame.Pop()
	v1 := frame.Pop()
	if cond(v1.Int(), v2.Int()) {
		frame.PC = branchPC + int(offset)
	}
	return Value{}, false, nil
}
