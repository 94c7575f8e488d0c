package wallet

import (
	"errors"
	"strings"
	"testing"
)

func TestWordSecret(t *testing.T) {
	for _, n := range []int{1, 4, 12, 24} {
		s, err := WordSecret(n)
		if err != nil {
			t.Fatalf("WordSecret(%d): %v", n, err)
		}
		if got := len(strings.Fields(s)); got != n {
			t.Errorf("WordSecret(%d) has %d words", n, got)
		}
		if !IsWordSecret(s) {
			t.Errorf("WordSecret(%d) = %q uses words off the list", n, s)
		}
	}
}

func TestWordSecret_Count(t *testing.T) {
	for _, n := range []int{0, -1, 25} {
		if _, err := WordSecret(n); !errors.Is(err, ErrWordCount) {
			t.Errorf("WordSecret(%d) error = %v, want ErrWordCount", n, err)
		}
	}
}

func TestIsWordSecret(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"abandon zoo", true},
		{"abandon  ability", true},
		{"satoshi", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsWordSecret(tt.in); got != tt.want {
			t.Errorf("IsWordSecret(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
