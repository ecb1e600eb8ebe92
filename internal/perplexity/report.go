package perplexity

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/ThatCatDev/llamatools/internal/runner"
)

// ErrNoEstimate means the run ended without a final perplexity estimate.
var ErrNoEstimate = errors.New("llama-perplexity did not report a final estimate")

// Report summarises one evaluation run.
type Report struct {
	Model  string
	PPL    float64
	StdErr float64
	// EvalTime and EvalTokens come from llama-perplexity's own timing and
	// exclude model loading. Zero when the tool did not print them.
	EvalTime   time.Duration
	EvalTokens int
	// WallTime is the whole process lifetime.
	WallTime time.Duration
	PeakRSS  int64 // bytes
	Chunks   int
	NCtx     int
}

// NewReport combines the parsed output with the process result.
func NewReport(model string, p *Parser, res runner.Result) (*Report, error) {
	ppl, stdErr, ok := p.Final()
	if !ok {
		if !res.Success() {
			return nil, fmt.Errorf("%w (exit code %d)", ErrNoEstimate, res.ExitCode)
		}
		return nil, ErrNoEstimate
	}

	chunks := p.Chunks()
	if chunks == 0 {
		chunks = len(p.Estimates())
	}
	evalTime, evalTokens, _ := p.Eval()
	return &Report{
		Model:      model,
		PPL:        ppl,
		StdErr:     stdErr,
		EvalTime:   evalTime,
		EvalTokens: evalTokens,
		WallTime:   res.Duration,
		PeakRSS:    res.PeakRSS,
		Chunks:     chunks,
		NCtx:       p.NCtx(),
	}, nil
}

// Tokens is the number of tokens evaluated.
func (r *Report) Tokens() int {
	if r.EvalTokens > 0 {
		return r.EvalTokens
	}
	return r.Chunks * r.NCtx
}

// Timed reports whether the tool's own evaluation time is known.
func (r *Report) Timed() bool {
	return r.EvalTime > 0
}

// TokensPerSecond uses the evaluation time, or the wall time when the tool
// did not report one. It is 0 when neither is known.
func (r *Report) TokensPerSecond() float64 {
	secs := r.WallTime.Seconds()
	if r.Timed() {
		secs = r.EvalTime.Seconds()
	}
	if secs <= 0 || r.Tokens() == 0 {
		return 0
	}
	return float64(r.Tokens()) / secs
}

// Rows returns the report as label/value pairs.
func (r *Report) Rows() [][]string {
	rows := [][]string{
		{"Model", r.Model},
		{"Perplexity", fmt.Sprintf("%.3f ± %.3f", r.PPL, r.StdErr)},
	}
	if r.Timed() {
		rows = append(rows, []string{"Evaluation time", fmt.Sprintf("%.2f seconds", r.EvalTime.Seconds())})
	}
	rows = append(rows, []string{"Wall time", fmt.Sprintf("%.2f seconds", r.WallTime.Seconds())})
	if r.PeakRSS > 0 {
		rows = append(rows, []string{"Peak memory", fmt.Sprintf("%.2f GB", float64(r.PeakRSS)/1e9)})
	} else {
		rows = append(rows, []string{"Peak memory", "n/a"})
	}
	if tps := r.TokensPerSecond(); tps > 0 {
		label := "Tokens per second"
		if !r.Timed() {
			label += " (wall)"
		}
		rows = append(rows, []string{label, fmt.Sprintf("%.0f", tps)})
	}
	rows = append(rows,
		[]string{"Chunks", fmt.Sprint(r.Chunks)},
		[]string{"Context size", fmt.Sprint(r.NCtx)},
		[]string{"Total tokens", fmt.Sprint(r.Tokens())},
	)
	return rows
}

// Render writes the report as a two-column table.
func (r *Report) Render(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(r.Rows())
	table.Render()
}
