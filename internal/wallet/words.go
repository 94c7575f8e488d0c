package wallet

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

// Word secret limits.
const (
	MinWords = 1
	MaxWords = 24
)

// ErrWordCount is returned for a word count outside MinWords..MaxWords.
var ErrWordCount = errors.New("word count out of range")

// WordSecret returns n words drawn uniformly from the BIP-39 English list,
// separated by single spaces. No checksum is involved; the words are only a
// memorable puzzle secret.
func WordSecret(n int) (string, error) {
	if n < MinWords || n > MaxWords {
		return "", fmt.Errorf("%w: %d (want %d..%d)", ErrWordCount, n, MinWords, MaxWords)
	}
	list := bip39.GetWordList()
	max := big.NewInt(int64(len(list)))
	words := make([]string, n)
	for i := range words {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("draw word: %w", err)
		}
		words[i] = list[idx.Int64()]
	}
	return strings.Join(words, " "), nil
}

// IsWordSecret reports whether every space separated word of s is on the
// BIP-39 English list.
func IsWordSecret(s string) bool {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return false
	}
	for _, w := range fields {
		if _, ok := bip39.GetWordIndex(w); !ok {
			return false
		}
	}
	return true
}
