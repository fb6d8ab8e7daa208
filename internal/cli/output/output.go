// Package output renders executor responses for the terminal.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gradebox/internal/executor/model"

	"github.com/fatih/color"
)

// Printer writes human-readable or JSON output.
type Printer struct {
	w      io.Writer
	good   *color.Color
	bad    *color.Color
	warn   *color.Color
	muted  *color.Color
	header *color.Color
}

// NewPrinter creates a printer. noColor disables ANSI escapes.
func NewPrinter(w io.Writer, noColor bool) *Printer {
	p := &Printer{
		w:      w,
		good:   color.New(color.FgGreen),
		bad:    color.New(color.FgRed),
		warn:   color.New(color.FgYellow),
		muted:  color.New(color.FgHiBlack),
		header: color.New(color.Bold),
	}
	if noColor {
		for _, c := range []*color.Color{p.good, p.bad, p.warn, p.muted, p.header} {
			c.DisableColor()
		}
	}
	return p
}

// JSON prints v as JSON.
func (p *Printer) JSON(v interface{}, pretty bool) error {
	var (
		data []byte
		err  error
	)
	if pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("encode output failed: %w", err)
	}
	p.line("%s", data)
	return nil
}

// Execute prints a single run.
func (p *Printer) Execute(resp model.ExecuteResponse) {
	p.line("%s  %s", p.status(resp.Status), p.muted.Sprintf("%dms  %dKB", resp.ExecutionTime, resp.MemoryUsage))
	if resp.Output != "" {
		p.line("%s", p.header.Sprint("stdout:"))
		p.block(resp.Output)
	}
	if resp.Error != "" {
		p.line("%s", p.header.Sprint("stderr:"))
		p.block(resp.Error)
	}
}

// Tests prints a visible test run.
func (p *Printer) Tests(resp model.ExecuteWithTestsResponse) {
	for i, res := range resp.TestResults {
		verdict := p.good.Sprint("PASS")
		if !res.Passed {
			verdict = p.bad.Sprint("FAIL")
		}
		p.line("#%d %s  %s  %s", i+1, verdict, res.Status, p.muted.Sprintf("%dms  %dKB  weight %d", res.ExecutionTime, res.MemoryUsage, res.Weight))
		if !res.Passed {
			p.line("    expected: %q", res.ExpectedOutput)
			p.line("    actual:   %q", res.ActualOutput)
			if res.Error != "" {
				p.line("    error:    %s", firstLine(res.Error))
			}
		}
	}
	p.line("%s %d/%d passed", p.status(resp.ExecutionResult.Status), resp.TotalPassed, resp.TotalTests)
	if resp.ExecutionResult.Error != "" {
		p.block(resp.ExecutionResult.Error)
	}
}

// Grade prints a full grading response.
func (p *Printer) Grade(resp model.PlagiarismExecutionResponse) {
	p.line("%s  language %s", p.status(resp.Status), resp.Language)
	if resp.Error != "" {
		p.block(resp.Error)
	}
	p.category("basic", resp.TestCasesBasic)
	p.category("advanced", resp.TestCasesAdvanced)
	p.category("custom", resp.TestCasesCustom)

	s := resp.ExecutionSummary
	p.line("%s %d/%d passed, score %.2f%%  %s", p.header.Sprint("summary:"),
		s.PassedTestCases, s.TotalTestCases, s.ScorePercent,
		p.muted.Sprintf("%dms  peak %dKB", s.RuntimeMs, s.PeakMemoryKB))

	r := resp.PlagiarismReport
	plag := p.good.Sprintf("max similarity %.4f", r.MaxSimilarity)
	if r.Flagged {
		plag = p.warn.Sprintf("FLAGGED max similarity %.4f", r.MaxSimilarity)
	}
	p.line("%s %s", p.header.Sprint("plagiarism:"), plag)
	for _, m := range r.Matches {
		p.line("    %s/%s %.4f", m.UserID, m.SubmissionID, m.SimilarityScore)
	}
}

// Compare prints a pairwise similarity.
func (p *Printer) Compare(resp model.PlagiarismCheckResponse) {
	if resp.Flagged {
		p.line("%s similarity %.4f", p.warn.Sprint("FLAGGED"), resp.SimilarityScore)
		return
	}
	p.line("similarity %.4f", resp.SimilarityScore)
}

// Languages prints the language table.
func (p *Printer) Languages(resp model.SupportedLanguagesResponse) {
	for _, l := range resp.Languages {
		kind := "interpreted"
		if l.Compiled {
			kind = "compiled"
		}
		p.line("%-12s %-12s %-16s %-12s %s", l.ID, l.Version, l.SourceFile, kind,
			p.muted.Sprintf("%ds  %dMB", l.Timeout, l.MemoryLimitMB))
	}
}

// Health prints the liveness probe.
func (p *Printer) Health(resp model.HealthResponse) {
	p.line("%s %s %s  %s", p.status(resp.Status), resp.Service, resp.Version, p.muted.Sprint(resp.Timestamp))
	p.line("languages: %s", strings.Join(resp.Languages, ", "))
}

func (p *Printer) category(name string, results []model.TestCaseResult) {
	if len(results) == 0 {
		return
	}
	p.line("%s", p.header.Sprint(name+":"))
	for i, res := range results {
		verdict := p.good.Sprint("PASS")
		if !res.Passed() {
			verdict = p.bad.Sprint("FAIL")
		}
		p.line("  #%d %s  %s  %s", i+1, verdict, res.ExecutionStatus, p.muted.Sprintf("%dms  %dKB  %s", res.RuntimeMs, res.MemoryKB, res.Scoring))
		if !res.Passed() && res.Category == model.CategoryBasic {
			p.line("      input:    %q", res.Input)
			p.line("      expected: %q", res.ExpectedOutput)
			p.line("      actual:   %q", res.ActualOutput)
		}
	}
}

func (p *Printer) status(status string) string {
	label := strings.ToUpper(status)
	switch status {
	case model.StatusSuccess, model.StatusPassed, "healthy":
		return p.good.Sprint(label)
	}
	return p.bad.Sprint(label)
}

func (p *Printer) block(text string) {
	for _, l := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		p.line("  %s", l)
	}
}

func (p *Printer) line(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(p.w, format+"\n", args...)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
