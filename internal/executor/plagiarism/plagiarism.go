// Package plagiarism scores textual similarity between submissions.
package plagiarism

import (
	"regexp"
	"strings"

	"gradebox/internal/executor/model"
	"gradebox/internal/executor/scoring"

	"github.com/pmezard/go-difflib/difflib"
)

const (
	DefaultMinThreshold  = 0.5
	DefaultFlagThreshold = 0.8
	scoreDecimals        = 4
)

var (
	hashComment  = regexp.MustCompile(`#.*`)
	slashComment = regexp.MustCompile(`//.*`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// Normalize strips line comments, collapses whitespace, drops empty lines and
// lowercases. Comment markers inside string literals are stripped too.
func Normalize(code string) string {
	lines := strings.Split(code, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = hashComment.ReplaceAllString(line, "")
		line = slashComment.ReplaceAllString(line, "")
		line = strings.TrimSpace(whitespace.ReplaceAllString(line, " "))
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.ToLower(strings.Join(out, "\n"))
}

// Similarity returns the matching-blocks ratio 2M/T of the normalized inputs.
func Similarity(a, b string) float64 {
	return similarityNormalized(Normalize(a), Normalize(b))
}

func similarityNormalized(x, y string) float64 {
	if x == y {
		return 1.0
	}
	// The matcher's junk heuristic depends on argument order.
	if x > y {
		x, y = y, x
	}
	return difflib.NewMatcher(strings.Split(x, ""), strings.Split(y, "")).Ratio()
}

// Detector compares a submission against peers.
type Detector struct {
	minThreshold  float64
	flagThreshold float64
}

// NewDetector creates a detector. Non-positive thresholds fall back to defaults.
func NewDetector(minThreshold, flagThreshold float64) *Detector {
	if minThreshold <= 0 {
		minThreshold = DefaultMinThreshold
	}
	if flagThreshold <= 0 {
		flagThreshold = DefaultFlagThreshold
	}
	return &Detector{minThreshold: minThreshold, flagThreshold: flagThreshold}
}

// Check scores code against every peer. Matches keep peer order.
func (d *Detector) Check(code string, peers []model.PeerSubmission) model.PlagiarismReport {
	report := model.PlagiarismReport{Matches: make([]model.PlagiarismMatch, 0)}
	normalized := Normalize(code)
	maxScore := 0.0
	for _, peer := range peers {
		score := similarityNormalized(normalized, Normalize(peer.Code))
		maxScore = max(maxScore, score)
		if score > d.minThreshold {
			report.Matches = append(report.Matches, model.PlagiarismMatch{
				UserID:          peer.UserID,
				SubmissionID:    peer.SubmissionID,
				SimilarityScore: scoring.Round(score, scoreDecimals),
			})
		}
	}
	report.MaxSimilarity = scoring.Round(maxScore, scoreDecimals)
	report.Flagged = maxScore > d.flagThreshold
	return report
}

// Compare scores two submissions directly.
func (d *Detector) Compare(a, b string) (float64, bool) {
	score := Similarity(a, b)
	return scoring.Round(score, scoreDecimals), score > d.flagThreshold
}
