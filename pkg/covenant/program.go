package covenant

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/Klingon-tech/puzzle-jackpot/pkg/taproot"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/types"
	"github.com/btcsuite/btcd/txscript"
)

// Arguments binds template parameter names to values.
type Arguments map[string]Value

// Program is a compiled covenant: a tapscript leaf script plus the witness
// layout it expects.
type Program struct {
	// Template is the source name.
	Template  string
	Variant   Variant
	Witnesses []Decl
	Script    []byte
}

// Compile binds target (and the minimum fee for pay-to-play) into the
// variant's built-in template.
func Compile(v Variant, target types.Hash) (*Program, error) {
	t, err := TemplateFor(v)
	if err != nil {
		return nil, err
	}
	args := Arguments{ParamTargetHash: U256(target)}
	if v.Kind == KindPayToPlay {
		args[ParamMinFee] = U64(v.MinFeeSats)
	}
	p, err := CompileTemplate(t, args)
	if err != nil {
		return nil, err
	}
	p.Variant = v
	return p, nil
}

// CompileTemplate binds args into t and produces the leaf script.
// Every declared parameter must be supplied with its declared type and no
// undeclared argument is accepted. The declared witnesses form the initial
// stack, the last one on top.
func CompileTemplate(t *Template, args Arguments) (*Program, error) {
	fail := func(line int, format string, a ...any) error {
		return &CompileError{Template: t.Name, Line: line, Msg: fmt.Sprintf(format, a...)}
	}

	for _, d := range t.Params {
		v, ok := args[d.Name]
		if !ok {
			return nil, fail(d.Line, "missing parameter %s", d.Name)
		}
		if v.Type != d.Type {
			return nil, fail(d.Line, "parameter %s: want %s, got %s", d.Name, d.Type, v.Type)
		}
		if v.Type == TypeU64 && v.U64 > MaxU64 {
			return nil, fail(d.Line, "parameter %s: %d exceeds %d", d.Name, v.U64, uint64(MaxU64))
		}
	}
	for name := range args {
		if _, ok := t.param(name); !ok {
			return nil, fail(0, "unknown parameter %s", name)
		}
	}

	stack := make([]Type, 0, len(t.Witnesses))
	for _, w := range t.Witnesses {
		stack = append(stack, w.Type)
	}
	pop := func(line int, want Type, word string) error {
		if len(stack) == 0 {
			return fail(line, "%s: stack underflow", word)
		}
		got := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if want != 0 && got != want {
			return fail(line, "%s: want %s, got %s", word, want, got)
		}
		return nil
	}

	b := txscript.NewScriptBuilder()
	for _, st := range t.Body {
		switch st.Word {
		case "param":
			d, ok := t.param(st.Arg)
			if !ok {
				return nil, fail(st.Line, "undeclared parameter %q", st.Arg)
			}
			b.AddData(args[d.Name].Bytes())
			stack = append(stack, d.Type)
			continue
		case "output_value":
			idx, err := parseIndex(st.Arg)
			if err != nil {
				return nil, fail(st.Line, "output_value: %v", err)
			}
			b.AddInt64(int64(idx))
			for _, op := range outputValueOps {
				b.AddOp(byte(op))
			}
			stack = append(stack, TypeU64)
			continue
		}

		ops, ok := words[st.Word]
		if !ok {
			return nil, fail(st.Line, "unknown instruction %q", st.Word)
		}
		if st.Arg != "" {
			return nil, fail(st.Line, "%s takes no operand", st.Word)
		}
		switch st.Word {
		case "sha256":
			if err := pop(st.Line, TypeU256, st.Word); err != nil {
				return nil, err
			}
			stack = append(stack, TypeU256)
		case "equalverify":
			if len(stack) < 2 || stack[len(stack)-1] != stack[len(stack)-2] {
				return nil, fail(st.Line, "equalverify needs two operands of the same type")
			}
			stack = stack[:len(stack)-2]
		case "geverify", "add", "sub":
			if err := pop(st.Line, TypeU64, st.Word); err != nil {
				return nil, err
			}
			if err := pop(st.Line, TypeU64, st.Word); err != nil {
				return nil, err
			}
			if st.Word != "geverify" {
				stack = append(stack, TypeU64)
			}
		default:
			stack = append(stack, TypeU64)
		}
		for _, op := range ops {
			b.AddOp(byte(op))
		}
	}
	if len(stack) != 0 {
		return nil, fail(t.Body[len(t.Body)-1].Line, "%d value(s) left on the stack", len(stack))
	}

	// Tapscript needs exactly one true element left.
	b.AddOp(byte(Op1))
	script, err := b.Script()
	if err != nil {
		return nil, fail(0, "%v", err)
	}
	return &Program{
		Template:  t.Name,
		Witnesses: append([]Decl(nil), t.Witnesses...),
		Script:    script,
	}, nil
}

// DecodeProgram recognizes a leaf script produced by Compile for one of the
// built-in variants and returns the program, with its variant and target.
func DecodeProgram(script []byte) (*Program, error) {
	var (
		target  types.Hash
		minFee  uint64
		targets int
		fees    int
	)
	tok := txscript.MakeScriptTokenizer(0, script)
	for tok.Next() {
		switch len(tok.Data()) {
		case 32:
			copy(target[:], tok.Data())
			targets++
		case 8:
			v, _ := decodeValue(TypeU64, tok.Data())
			minFee = v.U64
			fees++
		}
	}
	if err := tok.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadProgram, err)
	}
	if targets != 1 || fees > 1 {
		return nil, fmt.Errorf("%w: not a puzzle script", ErrBadProgram)
	}

	v := Simple()
	if fees == 1 {
		v = PayToPlay(minFee)
	}
	p, err := Compile(v, target)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadProgram, err)
	}
	if !bytes.Equal(p.Script, script) {
		return nil, fmt.Errorf("%w: not a puzzle script", ErrBadProgram)
	}
	return p, nil
}

// Bytes returns a copy of the leaf script.
func (p *Program) Bytes() []byte {
	return append([]byte(nil), p.Script...)
}

// Root returns the commitment root of the program: its tapleaf hash.
func (p *Program) Root() types.Hash {
	return taproot.LeafHash(taproot.LeafVersion, p.Script)
}

// Target returns the bound target hash.
func (p *Program) Target() types.Hash {
	v, _ := p.Param(TypeU256)
	return types.Hash(v.U256)
}

// Disasm renders the script one opcode per line.
func (p *Program) Disasm() string {
	var sb strings.Builder
	tok := txscript.MakeScriptTokenizer(0, p.Script)
	for tok.Next() {
		op := Opcode(tok.Opcode())
		if data := tok.Data(); data != nil {
			fmt.Fprintf(&sb, "%s %x\n", op, data)
			continue
		}
		fmt.Fprintf(&sb, "%s\n", op)
	}
	return sb.String()
}

// Param returns the first pushed constant of the given type.
func (p *Program) Param(t Type) (Value, bool) {
	tok := txscript.MakeScriptTokenizer(0, p.Script)
	for tok.Next() {
		if len(tok.Data()) == t.Size() {
			v, err := decodeValue(t, tok.Data())
			return v, err == nil
		}
	}
	return Value{}, false
}
