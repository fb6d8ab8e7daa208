// Package masking hides test case data according to the category's visibility.
package masking

import (
	"crypto/md5"
	"encoding/hex"
	"math/rand/v2"
	"strings"
	"sync"

	"gradebox/internal/executor/model"
)

// HiddenSentinel replaces every value of a custom test case.
const HiddenSentinel = "***#hidden"

const shortValueRunes = 10

// Policy masks results. It is safe for concurrent use.
type Policy struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewPolicy returns a policy with a randomly seeded source.
func NewPolicy() *Policy {
	return NewPolicyWithRand(rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))
}

// NewPolicyWithRand returns a policy drawing masked positions from rng.
func NewPolicyWithRand(rng *rand.Rand) *Policy {
	return &Policy{rng: rng}
}

// Apply masks res in place according to category and stamps its scoring marker.
func (p *Policy) Apply(category model.Category, res *model.TestCaseResult) {
	res.Category = category
	switch category {
	case model.CategoryAdvanced:
		res.Input = p.Mask(res.Input)
		res.ExpectedOutput = p.Mask(res.ExpectedOutput)
		res.ActualOutput = p.Mask(res.ActualOutput)
		// stderr may echo hidden input
		res.Error = ""
		res.Scoring = model.ScoringCounted
	case model.CategoryCustom:
		res.Input = HiddenSentinel
		res.ExpectedOutput = HiddenSentinel
		res.ActualOutput = HiddenSentinel
		res.Error = ""
		res.Scoring = model.ScoringIgnored
	default:
		res.Scoring = model.ScoringCounted
	}
}

// Mask partially hides value and appends a stable 4-hex-char tag of the original.
func (p *Policy) Mask(value string) string {
	tag := "#" + HashTag(value)
	runes := []rune(value)
	n := len(runes)
	switch {
	case n == 0:
		return "***" + tag
	case n <= shortValueRunes:
		return string(runes[:min(2, n)]) + "***" + string(runes[n-1]) + tag
	}

	interior := n - 2
	p.mu.Lock()
	fraction := 0.3 + p.rng.Float64()*0.2
	count := max(1, int(float64(interior)*fraction))
	positions := p.rng.Perm(interior)[:count]
	p.mu.Unlock()

	for _, pos := range positions {
		runes[pos+1] = '*'
	}
	var b strings.Builder
	b.WriteString(string(runes))
	b.WriteString(tag)
	return b.String()
}

// HashTag returns the first four hex characters of the MD5 of value.
func HashTag(value string) string {
	sum := md5.Sum([]byte(value))
	return hex.EncodeToString(sum[:])[:4]
}
