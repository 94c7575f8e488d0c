package tx

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/Klingon-tech/puzzle-jackpot/pkg/types"
	"github.com/btcsuite/btcd/wire"
)

// Commitment prefixes of explicit fields.
const (
	prefixNull     = 0x00
	prefixExplicit = 0x01
)

// Input outpoint index flags used by Elements for issuance and peg-in.
const (
	outpointIssuanceFlag = 1 << 31
	outpointPeginFlag    = 1 << 30
)

const coinbaseIndex = ^uint32(0)

// Size limits applied while decoding.
const (
	maxItems     = 1 << 16
	maxItemBytes = 4 << 20
)

// Serialization errors.
var (
	ErrUnsupported = errors.New("unsupported transaction feature")
	ErrMalformed   = errors.New("malformed transaction")
)

// Serialize encodes the transaction. When withWitness is false, or no
// input has witness data, the witness section is omitted and the flag
// byte is zero.
func (tx *Transaction) Serialize(withWitness bool) []byte {
	var buf bytes.Buffer
	// bytes.Buffer writes cannot fail.
	_ = tx.encode(&buf, withWitness && tx.HasWitness())
	return buf.Bytes()
}

func (tx *Transaction) encode(w io.Writer, witness bool) error {
	var scratch [8]byte

	binary.LittleEndian.PutUint32(scratch[:4], tx.Version)
	if _, err := w.Write(scratch[:4]); err != nil {
		return err
	}
	flag := byte(0)
	if witness {
		flag = 1
	}
	if _, err := w.Write([]byte{flag}); err != nil {
		return err
	}

	if err := wire.WriteVarInt(w, 0, uint64(len(tx.Inputs))); err != nil {
		return err
	}
	for _, in := range tx.Inputs {
		if _, err := w.Write(in.PrevOut.TxID[:]); err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(scratch[:4], in.PrevOut.Index)
		if _, err := w.Write(scratch[:4]); err != nil {
			return err
		}
		if err := wire.WriteVarBytes(w, 0, in.ScriptSig); err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(scratch[:4], in.Sequence)
		if _, err := w.Write(scratch[:4]); err != nil {
			return err
		}
	}

	if err := wire.WriteVarInt(w, 0, uint64(len(tx.Outputs))); err != nil {
		return err
	}
	for _, out := range tx.Outputs {
		if _, err := w.Write([]byte{prefixExplicit}); err != nil {
			return err
		}
		if _, err := w.Write(out.Asset[:]); err != nil {
			return err
		}
		// Explicit values are big-endian.
		scratch[0] = prefixExplicit
		if _, err := w.Write(scratch[:1]); err != nil {
			return err
		}
		binary.BigEndian.PutUint64(scratch[:], out.Value)
		if _, err := w.Write(scratch[:8]); err != nil {
			return err
		}
		if _, err := w.Write([]byte{prefixNull}); err != nil {
			return err
		}
		if err := wire.WriteVarBytes(w, 0, out.Script); err != nil {
			return err
		}
	}

	binary.LittleEndian.PutUint32(scratch[:4], tx.LockTime)
	if _, err := w.Write(scratch[:4]); err != nil {
		return err
	}

	if !witness {
		return nil
	}
	for _, in := range tx.Inputs {
		// Issuance amount and inflation keys range proofs.
		if _, err := w.Write([]byte{0, 0}); err != nil {
			return err
		}
		if err := wire.WriteVarInt(w, 0, uint64(len(in.Witness))); err != nil {
			return err
		}
		for _, item := range in.Witness {
			if err := wire.WriteVarBytes(w, 0, item); err != nil {
				return err
			}
		}
		// Peg-in witness.
		if err := wire.WriteVarInt(w, 0, 0); err != nil {
			return err
		}
	}
	for range tx.Outputs {
		// Surjection proof and range proof.
		if _, err := w.Write([]byte{0, 0}); err != nil {
			return err
		}
	}
	return nil
}

// Deserialize decodes a transaction with explicit assets and values.
// Blinded outputs, issuances and peg-ins are rejected with ErrUnsupported.
func Deserialize(b []byte) (*Transaction, error) {
	r := bytes.NewReader(b)
	tx, err := decode(r)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: truncated", ErrMalformed)
		}
		return nil, err
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, r.Len())
	}
	return tx, nil
}

// DecodeHex decodes a hex-encoded transaction.
func DecodeHex(s string) (*Transaction, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return Deserialize(b)
}

func decode(r *bytes.Reader) (*Transaction, error) {
	var scratch [8]byte
	readU32 := func() (uint32, error) {
		if _, err := io.ReadFull(r, scratch[:4]); err != nil {
			return 0, err
		}
		return binary.LittleEndian.Uint32(scratch[:4]), nil
	}
	readCount := func(what string) (int, error) {
		n, err := wire.ReadVarInt(r, 0)
		if err != nil {
			return 0, err
		}
		if n > maxItems {
			return 0, fmt.Errorf("%w: %d %s", ErrMalformed, n, what)
		}
		return int(n), nil
	}
	readBytes := func(what string) ([]byte, error) {
		return wire.ReadVarBytes(r, 0, maxItemBytes, what)
	}

	tx := &Transaction{}
	var err error
	if tx.Version, err = readU32(); err != nil {
		return nil, err
	}
	flag, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if flag > 1 {
		return nil, fmt.Errorf("%w: flag byte 0x%02x", ErrMalformed, flag)
	}

	nIn, err := readCount("inputs")
	if err != nil {
		return nil, err
	}
	tx.Inputs = make([]Input, nIn)
	for i := range tx.Inputs {
		in := &tx.Inputs[i]
		if _, err := io.ReadFull(r, in.PrevOut.TxID[:]); err != nil {
			return nil, err
		}
		if in.PrevOut.Index, err = readU32(); err != nil {
			return nil, err
		}
		// The all-ones index is a coinbase; other high bits flag extensions.
		if in.PrevOut.Index != coinbaseIndex && in.PrevOut.Index&(outpointIssuanceFlag|outpointPeginFlag) != 0 {
			return nil, fmt.Errorf("%w: input %d has issuance or peg-in", ErrUnsupported, i)
		}
		if in.ScriptSig, err = readBytes("scriptSig"); err != nil {
			return nil, err
		}
		if in.Sequence, err = readU32(); err != nil {
			return nil, err
		}
	}

	nOut, err := readCount("outputs")
	if err != nil {
		return nil, err
	}
	tx.Outputs = make([]Output, nOut)
	for i := range tx.Outputs {
		out := &tx.Outputs[i]
		prefix, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if prefix != prefixExplicit {
			return nil, fmt.Errorf("%w: output %d has a blinded asset", ErrUnsupported, i)
		}
		if _, err := io.ReadFull(r, out.Asset[:]); err != nil {
			return nil, err
		}
		if prefix, err = r.ReadByte(); err != nil {
			return nil, err
		}
		if prefix != prefixExplicit {
			return nil, fmt.Errorf("%w: output %d has a blinded value", ErrUnsupported, i)
		}
		if _, err := io.ReadFull(r, scratch[:8]); err != nil {
			return nil, err
		}
		out.Value = binary.BigEndian.Uint64(scratch[:8])
		if prefix, err = r.ReadByte(); err != nil {
			return nil, err
		}
		if prefix != prefixNull {
			return nil, fmt.Errorf("%w: output %d has a nonce", ErrUnsupported, i)
		}
		if out.Script, err = readBytes("scriptPubKey"); err != nil {
			return nil, err
		}
	}

	if tx.LockTime, err = readU32(); err != nil {
		return nil, err
	}

	if flag == 0 {
		return tx, nil
	}
	for i := range tx.Inputs {
		for _, what := range []string{"issuance proof", "inflation proof"} {
			proof, err := readBytes(what)
			if err != nil {
				return nil, err
			}
			if len(proof) != 0 {
				return nil, fmt.Errorf("%w: input %d %s", ErrUnsupported, i, what)
			}
		}
		n, err := readCount("witness items")
		if err != nil {
			return nil, err
		}
		for j := 0; j < n; j++ {
			item, err := readBytes("witness item")
			if err != nil {
				return nil, err
			}
			tx.Inputs[i].Witness = append(tx.Inputs[i].Witness, item)
		}
		n, err = readCount("peg-in witness items")
		if err != nil {
			return nil, err
		}
		if n != 0 {
			return nil, fmt.Errorf("%w: input %d peg-in witness", ErrUnsupported, i)
		}
	}
	for i := range tx.Outputs {
		for _, what := range []string{"surjection proof", "range proof"} {
			proof, err := readBytes(what)
			if err != nil {
				return nil, err
			}
			if len(proof) != 0 {
				return nil, fmt.Errorf("%w: output %d %s", ErrUnsupported, i, what)
			}
		}
	}
	return tx, nil
}

// outputsAsset returns the single asset shared by all outputs, or false.
func outputsAsset(outs []Output) (types.AssetID, bool) {
	if len(outs) == 0 {
		return types.AssetID{}, false
	}
	a := outs[0].Asset
	for _, o := range outs[1:] {
		if o.Asset != a {
			return types.AssetID{}, false
		}
	}
	return a, true
}

// VSize returns the virtual size (weight / 4, rounded up).
func (tx *Transaction) VSize() int {
	base := len(tx.Serialize(false))
	total := len(tx.Serialize(true))
	weight := base*3 + total
	return (weight + 3) / 4
}
