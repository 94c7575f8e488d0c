package covenant

import (
	"bytes"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/Klingon-tech/puzzle-jackpot/pkg/commitment"
	"github.com/Klingon-tech/puzzle-jackpot/pkg/types"
)

const (
	satoshiTarget    = "5383eb2d1dd45669787f90cf19187e8a5a788c3028866384c551ffe29ecb0f51"
	simpleProgramHex = "a8205383eb2d1dd45669787f90cf19187e8a5a788c3028866384c551ffe29ecb0f518851"
	simpleRootHex    = "b0aeffbdfa2628e3b7bab476b83b3b0ca5b7ec148a2f13a64f3a515a801cfd0d"
	payToPlayProgHex = "a8205383eb2d1dd45669787f90cf19187e8a5a788c3028866384c551ffe29ecb0f5188" +
		"00cf5188" + // output_value 0
		"d58ccf5188" + // fee_value
		"d769" + // add
		"cdc95188" + // input_value
		"d869" + // sub
		"08e803000000000000df69" + // param MIN_FEE, geverify
		"51"
	payToPlayRootHex = "e5c43571b8d7ed15c626a0c28d1b3ff868641b8f81608878e2d90380c7051ce8"
)

// mockEnv is a fixed transaction view; outputs end with the fee.
type mockEnv struct {
	current int
	inputs  []uint64
	outputs []uint64
}

func (m *mockEnv) CurrentInput() int { return m.current }

func (m *mockEnv) InputValue(i int) (uint64, error) {
	if i < 0 || i >= len(m.inputs) {
		return 0, errors.New("no such input")
	}
	return m.inputs[i], nil
}

func (m *mockEnv) OutputValue(i int) (uint64, error) {
	if i < 0 || i >= len(m.outputs) {
		return 0, errors.New("no such output")
	}
	return m.outputs[i], nil
}

func (m *mockEnv) NumOutputs() int { return len(m.outputs) }

func mustTarget(t *testing.T) types.Hash {
	t.Helper()
	h, err := types.HexToHash(satoshiTarget)
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func TestCompile_Golden(t *testing.T) {
	tests := []struct {
		name    string
		variant Variant
		program string
		root    string
	}{
		{"simple", Simple(), simpleProgramHex, simpleRootHex},
		{"pay to play", PayToPlay(1000), payToPlayProgHex, payToPlayRootHex},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile(tt.variant, mustTarget(t))
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			if got := hex.EncodeToString(p.Bytes()); got != tt.program {
				t.Errorf("program = %s, want %s", got, tt.program)
			}
			if got := p.Root().String(); got != tt.root {
				t.Errorf("root = %s, want %s", got, tt.root)
			}
			if p.Variant != tt.variant || p.Target() != mustTarget(t) {
				t.Errorf("variant %v target %s", p.Variant, p.Target())
			}
		})
	}
}

func TestCompile_Deterministic(t *testing.T) {
	target := commitment.Derive([]byte("hello"))
	a, err := Compile(PayToPlay(500), target)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Compile(PayToPlay(500), target)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) || a.Root() != b.Root() {
		t.Error("identical inputs must compile identically")
	}

	c, _ := Compile(PayToPlay(501), target)
	if c.Root() == a.Root() {
		t.Error("min fee must change the root")
	}
	d, _ := Compile(Simple(), commitment.Derive([]byte("hellp")))
	e, _ := Compile(Simple(), target)
	if d.Root() == e.Root() {
		t.Error("target hash must change the root")
	}
	if e.Root() == a.Root() {
		t.Error("variants must not share a root")
	}
}

func TestCompileTemplate_Errors(t *testing.T) {
	tmpl, err := LoadTemplate(PayToPlayTemplate)
	if err != nil {
		t.Fatal(err)
	}
	target := U256(mustTarget(t))

	tests := []struct {
		name string
		args Arguments
	}{
		{"missing min fee", Arguments{ParamTargetHash: target}},
		{"missing target", Arguments{ParamMinFee: U64(1)}},
		{"wrong type", Arguments{ParamTargetHash: target, ParamMinFee: target}},
		{"extra param", Arguments{ParamTargetHash: target, ParamMinFee: U64(1), "EXTRA": U64(2)}},
		{"min fee out of range", Arguments{ParamTargetHash: target, ParamMinFee: U64(1 << 63)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileTemplate(tmpl, tt.args)
			if !errors.Is(err, ErrCompile) {
				t.Fatalf("got %v, want ErrCompile", err)
			}
			var ce *CompileError
			if !errors.As(err, &ce) {
				t.Fatalf("error is not a *CompileError: %T", err)
			}
		})
	}
}

func TestParseTemplate_Malformed(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty", "# nothing\n"},
		{"unknown type", ".param X u128\nsha256\n"},
		{"unknown directive", ".const X u64\nadd\n"},
		{"duplicate", ".param X u64\n.param X u64\nparam X\nparam X\ngeverify\n"},
		{"late declaration", ".witness S u256\nsha256\n.param X u64\n"},
		{"too many operands", ".witness S u256\noutput_value 0 1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseTemplate(tt.name, tt.src); !errors.Is(err, ErrCompile) {
				t.Errorf("got %v, want ErrCompile", err)
			}
		})
	}
}

func TestCompileTemplate_BadBody(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
	}{
		{"unknown op", ".witness S u256\nsha256\nfrobnicate\n", 3},
		{"undeclared parameter", ".witness S u256\nparam T\n", 2},
		{"type mismatch", ".witness S u256\n.param N u64\nparam N\nequalverify\n", 4},
		{"left on stack", ".witness S u256\nsha256\n", 2},
		{"underflow", ".witness S u64\nadd\n", 2},
		{"u256 arithmetic", ".witness S u256\n.param N u64\nparam N\nsub\n", 4},
		{"bad index", ".witness S u256\noutput_value x\n", 2},
		{"operand on word", ".witness S u256\nsha256 S\n", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := ParseTemplate(tt.name, tt.src)
			if err != nil {
				t.Fatalf("ParseTemplate: %v", err)
			}
			args := Arguments{}
			if _, ok := tmpl.param("N"); ok {
				args["N"] = U64(1)
			}
			_, err = CompileTemplate(tmpl, args)
			var ce *CompileError
			if !errors.As(err, &ce) {
				t.Fatalf("got %v, want *CompileError", err)
			}
			if ce.Line != tt.line {
				t.Errorf("line = %d, want %d (%v)", ce.Line, tt.line, err)
			}
		})
	}
}

func TestSatisfy_Simple(t *testing.T) {
	p, err := Compile(Simple(), mustTarget(t))
	if err != nil {
		t.Fatal(err)
	}

	sat, err := Satisfy(p, []byte("satoshi"), nil)
	if err != nil {
		t.Fatalf("Satisfy: %v", err)
	}
	if !bytes.Equal(sat.Program, p.Bytes()) {
		t.Error("satisfaction must carry the program bytes")
	}
	pre := commitment.Canonicalize([]byte("satoshi"))
	if len(sat.Witness) != 1 || !bytes.Equal(sat.Witness[0], pre[:]) {
		t.Errorf("witness = %x, want [%x]", sat.Witness, pre)
	}

	sat, err = Satisfy(p, []byte("nakamoto"), nil)
	if !errors.Is(err, ErrSatisfaction) || !errors.Is(err, ErrVerifyFailed) {
		t.Fatalf("wrong secret: got %v", err)
	}
	if sat != nil {
		t.Error("failed satisfaction must not return bytes")
	}
	var se *SatisfactionError
	if !errors.As(err, &se) || se.Op != OpEqualVerify {
		t.Errorf("failing opcode = %v, want OP_EQUALVERIFY", err)
	}
}

func TestSatisfy_PayToPlay(t *testing.T) {
	p, err := Compile(PayToPlay(1000), mustTarget(t))
	if err != nil {
		t.Fatal(err)
	}

	// Fee input at 0, puzzle at 1; pot 100000, network fee 3000.
	env := func(outputs ...uint64) *mockEnv {
		return &mockEnv{current: 1, inputs: []uint64{50_000, 100_000}, outputs: outputs}
	}
	tests := []struct {
		name    string
		secret  string
		env     Env
		wantErr error
	}{
		{"exact contribution", "satoshi", env(98_000, 49_000, 3000), nil},
		{"no change", "satoshi", env(99_000, 3000), nil},
		{"above minimum", "satoshi", env(120_000, 27_000, 3000), nil},
		{"below minimum", "satoshi", env(97_999, 49_001, 3000), ErrVerifyFailed},
		{"prize below pot", "satoshi", env(90_000, 57_000, 3000), ErrVerifyFailed},
		{"overflow", "satoshi", env(MaxU64, 1), ErrArithmetic},
		{"wrong secret", "nakamoto", env(98_000, 49_000, 3000), ErrVerifyFailed},
		{"missing output", "satoshi", &mockEnv{current: 1, inputs: []uint64{50_000, 100_000}}, nil},
		{"no environment", "satoshi", nil, ErrNoEnv},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sat, err := Satisfy(p, []byte(tt.secret), tt.env)
			if tt.name == "missing output" {
				if !errors.Is(err, ErrSatisfaction) {
					t.Fatalf("got %v, want ErrSatisfaction", err)
				}
				return
			}
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Satisfy: %v", err)
				}
				if sat == nil || len(sat.Witness) != 1 || len(sat.Witness[0]) != 32 {
					t.Fatalf("unexpected satisfaction %+v", sat)
				}
				return
			}
			if !errors.Is(err, ErrSatisfaction) || !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
			if sat != nil {
				t.Error("failed satisfaction must not return bytes")
			}
		})
	}
}

func TestEvaluate_CleanStack(t *testing.T) {
	p, err := Compile(Simple(), mustTarget(t))
	if err != nil {
		t.Fatal(err)
	}
	pre := commitment.Canonicalize([]byte("satoshi"))
	if err := p.Evaluate([][]byte{pre[:]}, nil); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	// An extra item under the secret is left over at the end.
	err = p.Evaluate([][]byte{{0x01}, pre[:]}, nil)
	if !errors.Is(err, ErrStack) {
		t.Errorf("extra witness item: got %v, want ErrStack", err)
	}
	if err := p.Evaluate(nil, nil); !errors.Is(err, ErrStack) {
		t.Errorf("empty witness: got %v, want ErrStack", err)
	}
}

func TestScriptNum(t *testing.T) {
	for _, n := range []int64{0, 1, -1, 2, 127, 128, -128, 255, 256, 32767, -32768, 1 << 20} {
		got, err := readScriptNum(scriptNum(n))
		if err != nil || got != n {
			t.Errorf("round trip %d = %d, %v", n, got, err)
		}
	}
	if b := scriptNum(128); !bytes.Equal(b, []byte{0x80, 0x00}) {
		t.Errorf("scriptNum(128) = %x", b)
	}
	if castToBool([]byte{0x00, 0x80}) || castToBool(nil) || !castToBool([]byte{0x00, 0x01}) {
		t.Error("castToBool")
	}
}

func TestDecodeProgram(t *testing.T) {
	for _, v := range []Variant{Simple(), PayToPlay(1000), PayToPlay(250_000)} {
		p, err := Compile(v, mustTarget(t))
		if err != nil {
			t.Fatal(err)
		}
		d, err := DecodeProgram(p.Bytes())
		if err != nil {
			t.Fatalf("DecodeProgram(%v): %v", v, err)
		}
		if d.Root() != p.Root() || d.Variant != v || d.Target() != mustTarget(t) {
			t.Errorf("decoded %v as %v target %s", v, d.Variant, d.Target())
		}
	}

	p, _ := Compile(PayToPlay(1000), mustTarget(t))
	dis := p.Disasm()
	for _, want := range []string{"OP_SHA256", "OP_INSPECTOUTPUTVALUE", "OP_GREATERTHANOREQUAL64", "OP_DATA_8 e803000000000000"} {
		if !strings.Contains(dis, want) {
			t.Errorf("disasm missing %s:\n%s", want, dis)
		}
	}

	simple, _ := hex.DecodeString(simpleProgramHex)
	tampered := append([]byte(nil), simple...)
	tampered[len(tampered)-1] = 0x52
	for _, bad := range [][]byte{nil, {0x51}, {0x20, 0x01}, tampered, append(simple, 0x51)} {
		if _, err := DecodeProgram(bad); !errors.Is(err, ErrBadProgram) {
			t.Errorf("DecodeProgram(%x) = %v, want ErrBadProgram", bad, err)
		}
	}
}

func TestDecodeWitness(t *testing.T) {
	p, err := Compile(Simple(), mustTarget(t))
	if err != nil {
		t.Fatal(err)
	}
	pre := commitment.Canonicalize([]byte("satoshi"))
	vals, err := p.DecodeWitness([][]byte{pre[:]})
	if err != nil {
		t.Fatalf("DecodeWitness: %v", err)
	}
	if vals[0].U256 != pre {
		t.Errorf("decoded %s", vals[0])
	}
	if _, err := p.DecodeWitness([][]byte{pre[:31]}); !errors.Is(err, ErrWitness) {
		t.Errorf("short witness: got %v", err)
	}
	if _, err := p.DecodeWitness([][]byte{pre[:], pre[:]}); !errors.Is(err, ErrWitness) {
		t.Errorf("extra item: got %v", err)
	}
}

func TestParseVariant(t *testing.T) {
	v, err := ParseVariant("pay_to_play", 1500)
	if err != nil || v.Kind != KindPayToPlay || v.MinFeeSats != 1500 {
		t.Errorf("ParseVariant(pay_to_play) = %+v, %v", v, err)
	}
	v, err = ParseVariant("", 1500)
	if err != nil || v.Kind != KindSimple {
		t.Errorf("ParseVariant(\"\") = %+v, %v", v, err)
	}
	if _, err := ParseVariant("lottery", 0); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("unknown variant: got %v", err)
	}
	if v.String() != "simple" || PayToPlay(1).String() != "pay_to_play" {
		t.Error("unexpected variant names")
	}
}
