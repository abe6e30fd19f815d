package instruction

import (
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"
)

// maxExponent bounds scientific notation. No u64 amount needs more than 20
// digits on either side of the point.
const maxExponent = 64

var amountPattern = regexp.MustCompile(`^([+-]?)(\d+(?:\.\d+)?|\.\d+)([eE]([+-]?\d+))?$`)

type InvalidAmountError struct {
	Input  string
	Reason string
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid amount %q: %s", e.Input, e.Reason)
}

type AmountOverflowError struct {
	Input    string
	Decimals uint8
}

func (e *AmountOverflowError) Error() string {
	return fmt.Sprintf("amount %q at %d decimals exceeds the u64 range", e.Input, e.Decimals)
}

// ToBaseUnits converts a human decimal amount to base units,
// round(human * 10^decimals) with halves rounded away from zero.
func ToBaseUnits(human string, decimals uint8) (uint64, error) {
	s := strings.TrimSpace(human)
	m := amountPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, &InvalidAmountError{Input: human, Reason: "not a finite decimal number"}
	}
	if m[1] == "-" || strings.Trim(m[2], "0.") == "" {
		return 0, &InvalidAmountError{Input: human, Reason: "must be greater than zero"}
	}
	if m[4] != "" {
		exp, err := strconv.Atoi(m[4])
		if err != nil || exp > maxExponent {
			return 0, &AmountOverflowError{Input: human, Decimals: decimals}
		}
		if exp < -maxExponent {
			return 0, &InvalidAmountError{Input: human, Reason: "smaller than one base unit"}
		}
	}

	mantissa := m[2]
	if strings.HasPrefix(mantissa, ".") {
		mantissa = "0" + mantissa
	}
	r, ok := new(big.Rat).SetString(m[1] + mantissa + m[3])
	if !ok {
		return 0, &InvalidAmountError{Input: human, Reason: "not a finite decimal number"}
	}
	if r.Sign() <= 0 {
		return 0, &InvalidAmountError{Input: human, Reason: "must be greater than zero"}
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	r.Mul(r, new(big.Rat).SetInt(scale))

	q, rem := new(big.Int).QuoRem(r.Num(), r.Denom(), new(big.Int))
	if rem.Lsh(rem, 1).Cmp(r.Denom()) >= 0 {
		q.Add(q, big.NewInt(1))
	}
	if q.Sign() == 0 {
		return 0, &InvalidAmountError{Input: human, Reason: "smaller than one base unit"}
	}
	if !q.IsUint64() {
		return 0, &AmountOverflowError{Input: human, Decimals: decimals}
	}
	return q.Uint64(), nil
}

// FormatBaseUnits renders base units as a decimal string without trailing
// zeros.
func FormatBaseUnits(amount uint64, decimals uint8) string {
	digits := strconv.FormatUint(amount, 10)
	if decimals == 0 {
		return digits
	}
	d := int(decimals)
	if len(digits) <= d {
		digits = strings.Repeat("0", d-len(digits)+1) + digits
	}
	whole, frac := digits[:len(digits)-d], strings.TrimRight(digits[len(digits)-d:], "0")
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}
