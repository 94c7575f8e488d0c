package covenant

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/Klingon-tech/puzzle-jackpot/pkg/crypto"
	"github.com/btcsuite/btcd/txscript"
)

// Env exposes the spending transaction to a program. Values are explicit
// amounts; a confidential input or output is reported as an error.
type Env interface {
	// CurrentInput is the index of the input being spent.
	CurrentInput() int
	InputValue(index int) (uint64, error)
	OutputValue(index int) (uint64, error)
	NumOutputs() int
}

var (
	vchFalse = []byte{}
	vchTrue  = []byte{1}
)

// Evaluate runs the leaf script with witness as the initial stack, the last
// item on top, the way an Elements node executes a tapscript spend. A nil
// env is accepted for programs that never inspect the transaction.
func (p *Program) Evaluate(witness [][]byte, env Env) error {
	stack := make([][]byte, 0, len(witness)+4)
	for _, w := range witness {
		stack = append(stack, append([]byte(nil), w...))
	}
	push := func(b []byte) { stack = append(stack, b) }
	pop := func() ([]byte, error) {
		if len(stack) == 0 {
			return nil, ErrStack
		}
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v, nil
	}
	pop2 := func() (a, b []byte, err error) {
		if b, err = pop(); err != nil {
			return
		}
		a, err = pop()
		return
	}
	pop64 := func() (a, b int64, err error) {
		va, vb, err := pop2()
		if err != nil {
			return 0, 0, err
		}
		if len(va) != 8 || len(vb) != 8 {
			return 0, 0, fmt.Errorf("%w: 64-bit operand is %d and %d bytes", ErrStack, len(va), len(vb))
		}
		return int64(binary.LittleEndian.Uint64(va)), int64(binary.LittleEndian.Uint64(vb)), nil
	}

	// overflow is set by a 64-bit opcode that pushed false instead of a
	// result, so the following OP_VERIFY can say why it failed.
	overflow := false
	i := 0
	tok := txscript.MakeScriptTokenizer(0, p.Script)
	for ; tok.Next(); i++ {
		op := Opcode(tok.Opcode())
		fail := func(err error) error {
			return &SatisfactionError{Index: i, Op: op, Err: err}
		}
		needEnv := func() error {
			if env == nil {
				return fail(ErrNoEnv)
			}
			return nil
		}
		arith := overflow
		overflow = false

		switch {
		case op <= Opcode(txscript.OP_PUSHDATA4):
			push(append([]byte(nil), tok.Data()...))

		case op >= Op1 && op <= Op16:
			push(scriptNum(int64(op-Op1) + 1))

		case op == OpVerify:
			v, err := pop()
			if err != nil {
				return fail(err)
			}
			if !castToBool(v) {
				if arith {
					return fail(fmt.Errorf("%w: 64-bit overflow", ErrArithmetic))
				}
				return fail(ErrVerifyFailed)
			}

		case op == OpEqual, op == OpEqualVerify:
			a, b, err := pop2()
			if err != nil {
				return fail(err)
			}
			eq := bytes.Equal(a, b)
			if op == OpEqualVerify {
				if !eq {
					return fail(fmt.Errorf("%w: %x != %x", ErrVerifyFailed, a, b))
				}
				continue
			}
			push(boolBytes(eq))

		case op == Op1Sub:
			v, err := pop()
			if err != nil {
				return fail(err)
			}
			n, err := readScriptNum(v)
			if err != nil {
				return fail(err)
			}
			push(scriptNum(n - 1))

		case op == OpSHA256:
			v, err := pop()
			if err != nil {
				return fail(err)
			}
			h := crypto.SHA256(v)
			push(h[:])

		case op == OpPushCurrentInputIndex:
			if err := needEnv(); err != nil {
				return err
			}
			push(scriptNum(int64(env.CurrentInput())))

		case op == OpInspectNumOutputs:
			if err := needEnv(); err != nil {
				return err
			}
			push(scriptNum(int64(env.NumOutputs())))

		case op == OpInspectInputValue, op == OpInspectOutputValue:
			if err := needEnv(); err != nil {
				return err
			}
			v, err := pop()
			if err != nil {
				return fail(err)
			}
			idx, err := readScriptNum(v)
			if err != nil {
				return fail(err)
			}
			var value uint64
			if op == OpInspectInputValue {
				value, err = env.InputValue(int(idx))
			} else {
				value, err = env.OutputValue(int(idx))
			}
			if err != nil {
				return fail(err)
			}
			push(binary.LittleEndian.AppendUint64(nil, value))
			// Explicit value prefix.
			push(vchTrue)

		case op == OpAdd64, op == OpSub64:
			a, b, err := pop64()
			if err != nil {
				return fail(err)
			}
			var r int64
			var ok bool
			if op == OpAdd64 {
				r, ok = add64(a, b)
			} else {
				r, ok = sub64(a, b)
			}
			if !ok {
				push(vchFalse)
				overflow = true
				continue
			}
			push(binary.LittleEndian.AppendUint64(nil, uint64(r)))
			push(vchTrue)

		case op == OpGreaterThanOrEqual64:
			a, b, err := pop64()
			if err != nil {
				return fail(err)
			}
			push(boolBytes(a >= b))

		default:
			return fail(fmt.Errorf("%w: unsupported opcode %s", ErrBadProgram, op))
		}
	}
	if err := tok.Err(); err != nil {
		return &SatisfactionError{Index: i, Err: fmt.Errorf("%w: %v", ErrBadProgram, err)}
	}
	if len(stack) != 1 {
		return &SatisfactionError{Index: -1, Err: fmt.Errorf("%w: %d items left, want 1", ErrStack, len(stack))}
	}
	if !castToBool(stack[0]) {
		return &SatisfactionError{Index: -1, Err: ErrVerifyFailed}
	}
	return nil
}

func add64(a, b int64) (int64, bool) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, false
	}
	return a + b, true
}

func sub64(a, b int64) (int64, bool) {
	if (b < 0 && a > math.MaxInt64+b) || (b > 0 && a < math.MinInt64+b) {
		return 0, false
	}
	return a - b, true
}

func boolBytes(v bool) []byte {
	if v {
		return vchTrue
	}
	return vchFalse
}

func castToBool(v []byte) bool {
	for i, b := range v {
		if b != 0 {
			// Negative zero is false.
			return !(i == len(v)-1 && b == 0x80)
		}
	}
	return false
}

// scriptNum encodes n as a minimal script number.
func scriptNum(n int64) []byte {
	if n == 0 {
		return nil
	}
	neg := n < 0
	abs := uint64(n)
	if neg {
		abs = uint64(-n)
	}
	var out []byte
	for abs > 0 {
		out = append(out, byte(abs))
		abs >>= 8
	}
	switch {
	case out[len(out)-1]&0x80 != 0 && neg:
		out = append(out, 0x80)
	case out[len(out)-1]&0x80 != 0:
		out = append(out, 0x00)
	case neg:
		out[len(out)-1] |= 0x80
	}
	return out
}

func readScriptNum(v []byte) (int64, error) {
	if len(v) > 4 {
		return 0, fmt.Errorf("%w: script number is %d bytes", ErrStack, len(v))
	}
	if len(v) == 0 {
		return 0, nil
	}
	var n int64
	for i, b := range v {
		n |= int64(b) << (8 * i)
	}
	if v[len(v)-1]&0x80 != 0 {
		n &= ^(int64(0x80) << (8 * (len(v) - 1)))
		return -n, nil
	}
	return n, nil
}
