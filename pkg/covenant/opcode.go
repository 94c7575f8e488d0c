package covenant

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"

	"github.com/btcsuite/btcd/txscript"
)

// Type is the type of a stack value.
type Type uint8

const (
	TypeU256 Type = 1
	TypeU64  Type = 2
)

// Size returns the encoded width of a value of this type.
func (t Type) Size() int {
	switch t {
	case TypeU256:
		return 32
	case TypeU64:
		return 8
	default:
		return 0
	}
}

func (t Type) String() string {
	switch t {
	case TypeU256:
		return "u256"
	case TypeU64:
		return "u64"
	default:
		return "type(" + strconv.Itoa(int(t)) + ")"
	}
}

func parseType(s string) (Type, bool) {
	switch s {
	case "u256":
		return TypeU256, true
	case "u64":
		return TypeU64, true
	default:
		return 0, false
	}
}

// MaxU64 is the largest u64 a program can carry. Elements 64-bit
// arithmetic is signed.
const MaxU64 = math.MaxInt64

// Value is a typed stack value.
type Value struct {
	Type Type
	U256 [32]byte
	U64  uint64
}

// U256 wraps a 32-byte value.
func U256(b [32]byte) Value {
	return Value{Type: TypeU256, U256: b}
}

// U64 wraps an integer value.
func U64(v uint64) Value {
	return Value{Type: TypeU64, U64: v}
}

// Bytes returns the stack encoding; u64 is 8 bytes little-endian, as the
// Elements 64-bit opcodes expect.
func (v Value) Bytes() []byte {
	switch v.Type {
	case TypeU256:
		b := v.U256
		return b[:]
	case TypeU64:
		return binary.LittleEndian.AppendUint64(nil, v.U64)
	default:
		return nil
	}
}

func (v Value) String() string {
	if v.Type == TypeU64 {
		return strconv.FormatUint(v.U64, 10)
	}
	return "0x" + hex.EncodeToString(v.U256[:])
}

func decodeValue(t Type, b []byte) (Value, error) {
	if len(b) != t.Size() || t.Size() == 0 {
		return Value{}, fmt.Errorf("value of type %s: got %d bytes", t, len(b))
	}
	if t == TypeU64 {
		return U64(binary.LittleEndian.Uint64(b)), nil
	}
	var v [32]byte
	copy(v[:], b)
	return U256(v), nil
}

// Opcode is a tapscript opcode.
type Opcode byte

// Opcodes the compiler emits. The introspection and 64-bit arithmetic
// opcodes are Elements tapscript extensions.
const (
	Op0                     = Opcode(txscript.OP_0)
	OpData8                 = Opcode(txscript.OP_DATA_8)
	OpData32                = Opcode(txscript.OP_DATA_32)
	Op1                     = Opcode(txscript.OP_1)
	Op16                    = Opcode(txscript.OP_16)
	OpVerify                = Opcode(txscript.OP_VERIFY)
	OpEqual                 = Opcode(txscript.OP_EQUAL)
	OpEqualVerify           = Opcode(txscript.OP_EQUALVERIFY)
	Op1Sub                  = Opcode(txscript.OP_1SUB)
	OpSHA256                = Opcode(txscript.OP_SHA256)
	OpInspectInputValue     Opcode = 0xc9
	OpPushCurrentInputIndex Opcode = 0xcd
	OpInspectOutputValue    Opcode = 0xcf
	OpInspectNumOutputs     Opcode = 0xd5
	OpAdd64                 Opcode = 0xd7
	OpSub64                 Opcode = 0xd8
	OpGreaterThanOrEqual64  Opcode = 0xdf
)

var opNames = map[Opcode]string{
	OpInspectInputValue:     "OP_INSPECTINPUTVALUE",
	OpPushCurrentInputIndex: "OP_PUSHCURRENTINPUTINDEX",
	OpInspectOutputValue:    "OP_INSPECTOUTPUTVALUE",
	OpInspectNumOutputs:     "OP_INSPECTNUMOUTPUTS",
	OpAdd64:                 "OP_ADD64",
	OpSub64:                 "OP_SUB64",
	OpGreaterThanOrEqual64:  "OP_GREATERTHANOREQUAL64",
}

var btcdNames = func() map[byte]string {
	m := make(map[byte]string, len(txscript.OpcodeByName))
	for name, op := range txscript.OpcodeByName {
		// Prefer the canonical names over aliases such as OP_FALSE.
		if prev, ok := m[op]; ok && len(prev) <= len(name) {
			continue
		}
		m[op] = name
	}
	return m
}()

func (op Opcode) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	if name, ok := btcdNames[byte(op)]; ok {
		return name
	}
	return fmt.Sprintf("OP_UNKNOWN%d", byte(op))
}

// words maps template instructions without an operand to the opcode
// sequence they expand to.
var words = map[string][]Opcode{
	"sha256":      {OpSHA256},
	"equalverify": {OpEqualVerify},
	"geverify":    {OpGreaterThanOrEqual64, OpVerify},
	"add":         {OpAdd64, OpVerify},
	"sub":         {OpSub64, OpVerify},
	// Values must be explicit: the prefix pushed on top of the value is 1.
	"input_value": {OpPushCurrentInputIndex, OpInspectInputValue, Op1, OpEqualVerify},
	// The fee output is always the last output.
	"fee_value": {OpInspectNumOutputs, Op1Sub, OpInspectOutputValue, Op1, OpEqualVerify},
}

// outputValueOps follows the pushed output index of "output_value N".
var outputValueOps = []Opcode{OpInspectOutputValue, Op1, OpEqualVerify}
