// Package covenant compiles and satisfies the spending programs that guard
// puzzle outputs.
//
// A covenant is written as a small stack-language template (see the
// templates directory). Compiling a template binds its parameters and
// produces an Elements tapscript leaf script, using the transaction
// introspection and 64-bit arithmetic opcodes for the pay-to-play rule.
// The program's commitment root is its tapleaf hash. Satisfying a program
// supplies its witness values and runs the script against the spending
// transaction before anything is broadcast.
package covenant

import (
	"errors"
	"fmt"
	"strings"
)

// Covenant errors.
var (
	ErrCompile      = errors.New("covenant compile error")
	ErrSatisfaction = errors.New("covenant not satisfied")
	ErrBadProgram   = errors.New("malformed program")
	ErrUnknownKind  = errors.New("unknown covenant variant")
)

// Evaluation failure causes, wrapped by SatisfactionError.
var (
	ErrVerifyFailed = errors.New("verify failed")
	ErrArithmetic   = errors.New("arithmetic out of range")
	ErrNoEnv        = errors.New("program needs a transaction environment")
	ErrStack        = errors.New("stack error")
	ErrWitness      = errors.New("witness error")
)

// DefaultMinFee is the pay-to-play contribution when none is configured, in sats.
const DefaultMinFee uint64 = 1000

// Kind enumerates the covenant variants.
type Kind uint8

const (
	KindSimple Kind = iota
	KindPayToPlay
)

// Variant selects a covenant and carries its variant-specific settings.
type Variant struct {
	Kind       Kind
	MinFeeSats uint64
}

// Simple returns the preimage-only variant.
func Simple() Variant {
	return Variant{Kind: KindSimple}
}

// PayToPlay returns the variant that also requires a contribution of at
// least minFeeSats from the spender.
func PayToPlay(minFeeSats uint64) Variant {
	return Variant{Kind: KindPayToPlay, MinFeeSats: minFeeSats}
}

// String returns the record name of the variant.
func (v Variant) String() string {
	switch v.Kind {
	case KindSimple:
		return "simple"
	case KindPayToPlay:
		return "pay_to_play"
	default:
		return fmt.Sprintf("unknown(%d)", v.Kind)
	}
}

// ParseVariant maps a record or flag name to a variant.
// minFeeSats is only used for pay-to-play.
func ParseVariant(name string, minFeeSats uint64) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "simple":
		return Simple(), nil
	case "pay_to_play", "pay-to-play", "fee":
		return PayToPlay(minFeeSats), nil
	default:
		return Variant{}, fmt.Errorf("%w: %q", ErrUnknownKind, name)
	}
}

// CompileError reports a template or parameter problem.
type CompileError struct {
	Template string
	Line     int
	Msg      string
}

func (e *CompileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("compile %s:%d: %s", e.Template, e.Line, e.Msg)
	}
	return fmt.Sprintf("compile %s: %s", e.Template, e.Msg)
}

// Unwrap lets errors.Is match ErrCompile.
func (e *CompileError) Unwrap() error { return ErrCompile }

// SatisfactionError reports which opcode rejected the witness. Index is the
// opcode position in the script, or -1 for witness and final stack checks.
type SatisfactionError struct {
	Index int
	Op    Opcode
	Err   error
}

func (e *SatisfactionError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("covenant not satisfied: %v", e.Err)
	}
	return fmt.Sprintf("covenant not satisfied at instruction %d (%s): %v", e.Index, e.Op, e.Err)
}

// Is matches ErrSatisfaction.
func (e *SatisfactionError) Is(target error) bool { return target == ErrSatisfaction }

// Unwrap returns the evaluation cause.
func (e *SatisfactionError) Unwrap() error { return e.Err }
