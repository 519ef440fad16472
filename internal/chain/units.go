package chain

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// weiDecimals is the number of decimal places in one ether.
const weiDecimals = 18

var weiPerEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(weiDecimals), nil)

// ParseEther converts a decimal ether amount such as "0.01" to wei
// without going through binary floating point.
func ParseEther(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") {
		return nil, fmt.Errorf("invalid ether amount %q", s)
	}
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > weiDecimals {
		return nil, fmt.Errorf("ether amount %q has more than %d decimals", s, weiDecimals)
	}
	digits := whole + frac + strings.Repeat("0", weiDecimals-len(frac))
	wei, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("invalid ether amount %q", s)
	}
	return wei, nil
}

// EtherToWei converts a float ether amount using its shortest decimal form.
func EtherToWei(eth float64) (*big.Int, error) {
	return ParseEther(strconv.FormatFloat(eth, 'f', -1, 64))
}

// WeiToEther converts wei to the nearest float64 ether amount.
func WeiToEther(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	q := new(big.Float).SetPrec(256).Quo(
		new(big.Float).SetPrec(256).SetInt(wei),
		new(big.Float).SetPrec(256).SetInt(weiPerEther),
	)
	f, _ := q.Float64()
	return f
}
