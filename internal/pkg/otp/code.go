package otp

import (
	"crypto/rand"
	"math/big"
	mrand "math/rand/v2"
	"strconv"
)

const (
	// CodeMin is the smallest code a Generator may return.
	CodeMin = 100000
	// CodeMax is the largest code a Generator may return.
	CodeMax = 999999
)

var codeSpan = big.NewInt(CodeMax - CodeMin + 1)

// Generator produces six digit codes uniformly drawn from [CodeMin, CodeMax].
type Generator interface {
	Generate() (string, error)
}

// CryptoGenerator draws codes from crypto/rand.
type CryptoGenerator struct{}

// NewCryptoGenerator returns a Generator backed by the operating system CSPRNG.
func NewCryptoGenerator() *CryptoGenerator {
	return &CryptoGenerator{}
}

// Generate returns a new code.
func (*CryptoGenerator) Generate() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpan)
	if err != nil {
		return "", err
	}

	return strconv.FormatInt(n.Int64()+CodeMin, 10), nil
}

// MathGenerator draws codes from math/rand/v2. It is not suitable when codes
// must resist prediction.
type MathGenerator struct{}

// NewMathGenerator returns a Generator backed by math/rand/v2.
func NewMathGenerator() *MathGenerator {
	return &MathGenerator{}
}

// Generate returns a new code.
func (*MathGenerator) Generate() (string, error) {
	//nolint:gosec // selectable policy, see CryptoGenerator
	return strconv.Itoa(CodeMin + mrand.IntN(CodeMax-CodeMin+1)), nil
}
