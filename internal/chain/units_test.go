package chain

import (
	"math/big"
	"strings"
	"testing"
)

func TestEtherToWei(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0.01, "10000000000000000"},
		{1, "1000000000000000000"},
		{0.29, "290000000000000000"},
		{1.5, "1500000000000000000"},
	}
	for _, tt := range tests {
		got, err := EtherToWei(tt.in)
		if err != nil {
			t.Fatalf("EtherToWei(%v): %v", tt.in, err)
		}
		if got.String() != tt.want {
			t.Errorf("EtherToWei(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestParseEtherRejectsBadInput(t *testing.T) {
	for _, in := range []string{"", "-1", "abc", "0." + strings.Repeat("1", 19)} {
		if _, err := ParseEther(in); err == nil {
			t.Errorf("ParseEther(%q) accepted", in)
		}
	}
}

func TestWeiToEther(t *testing.T) {
	wei, _ := new(big.Int).SetString("10000000000000000", 10)
	if got := WeiToEther(wei); got != 0.01 {
		t.Fatalf("WeiToEther = %v", got)
	}
	if WeiToEther(nil) != 0 {
		t.Fatal("nil wei should be zero")
	}
}

func TestIsTxHash(t *testing.T) {
	if !IsTxHash("0x" + strings.Repeat("ab", 32)) {
		t.Error("valid hash rejected")
	}
	for _, bad := range []string{"0xabc", strings.Repeat("a", 66), "0x" + strings.Repeat("zz", 32)} {
		if IsTxHash(bad) {
			t.Errorf("IsTxHash(%q) = true", bad)
		}
	}
}

func TestHasRecipientIgnoresCase(t *testing.T) {
	tx := &Transaction{Recipients: []string{"0xAbCdEf0000000000000000000000000000000001"}}
	if !tx.HasRecipient("0xabcdef0000000000000000000000000000000001") {
		t.Fatal("case-insensitive match failed")
	}
}
