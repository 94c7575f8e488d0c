package covenant

import (
	"fmt"

	"github.com/Klingon-tech/puzzle-jackpot/pkg/commitment"
)

// Satisfaction holds the byte encodings that finalize a script-path spend:
// the leaf script and the witness items that go below it.
type Satisfaction struct {
	Program []byte
	Witness [][]byte
}

// Satisfy supplies secret as the SECRET witness, evaluates the program
// against env and returns the encodings only when evaluation succeeds.
// The secret is canonicalized the same way the commitment was derived.
func Satisfy(p *Program, secret []byte, env Env) (*Satisfaction, error) {
	pre := commitment.Canonicalize(secret)
	return p.SatisfyWith(map[string]Value{WitnessSecret: U256(pre)}, env)
}

// SatisfyWith fills the program's witness slots by name and evaluates it.
func (p *Program) SatisfyWith(named map[string]Value, env Env) (*Satisfaction, error) {
	items := make([][]byte, len(p.Witnesses))
	for i, d := range p.Witnesses {
		v, ok := named[d.Name]
		if !ok {
			return nil, &SatisfactionError{Index: -1, Err: fmt.Errorf("%w: no value for %s", ErrWitness, d.Name)}
		}
		if v.Type != d.Type {
			return nil, &SatisfactionError{Index: -1, Err: fmt.Errorf("%w: %s is %s, want %s", ErrWitness, d.Name, v.Type, d.Type)}
		}
		items[i] = v.Bytes()
	}
	if err := p.Evaluate(items, env); err != nil {
		return nil, err
	}
	return &Satisfaction{Program: p.Bytes(), Witness: items}, nil
}

// DecodeWitness types the witness items found below the leaf script.
func (p *Program) DecodeWitness(items [][]byte) ([]Value, error) {
	if len(items) != len(p.Witnesses) {
		return nil, fmt.Errorf("%w: %d items, want %d", ErrWitness, len(items), len(p.Witnesses))
	}
	values := make([]Value, 0, len(items))
	for i, d := range p.Witnesses {
		v, err := decodeValue(d.Type, items[i])
		if err != nil {
			return nil, fmt.Errorf("%w: witness %d: %v", ErrWitness, i, err)
		}
		values = append(values, v)
	}
	return values, nil
}
