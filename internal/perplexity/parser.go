// Package perplexity reads llama-perplexity output and summarises an
// evaluation run.
package perplexity

import (
	"math"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/ThatCatDev/llamatools/internal/logsink"
)

var (
	chunksRe   = regexp.MustCompile(`calculating perplexity over (\d+) chunks`)
	nctxRe     = regexp.MustCompile(`n_ctx=(\d+)`)
	estimateRe = regexp.MustCompile(`\[(\d+)\]\s*([0-9.]+|nan|-?inf)`)
	finalRe    = regexp.MustCompile(`Final estimate: PPL = ([0-9.]+|nan|inf) \+/- ([0-9.]+|nan|inf)`)
	// llama_perf_context_print: prompt eval time = 3800.00 ms / 2048 tokens (...)
	evalRe     = regexp.MustCompile(`prompt eval time =\s*([0-9.]+) ms /\s*(\d+) tokens`)
)

// Estimate is the running perplexity after a chunk.
type Estimate struct {
	Chunk int
	PPL   float64
}

// Parser is a Sink that extracts evaluation progress from llama-perplexity
// output and forwards every line unchanged to Next.
type Parser struct {
	Next logsink.Sink

	mu        sync.Mutex
	chunks    int
	nctx      int
	estimates []Estimate
	final     bool
	ppl       float64
	stdErr    float64

	evalTime   time.Duration
	evalTokens int
}

func NewParser(next logsink.Sink) *Parser {
	return &Parser{Next: next}
}

func (p *Parser) Append(line string) {
	p.feed(line)
	if p.Next != nil {
		p.Next.Append(line)
	}
}

func (p *Parser) feed(line string) {
	// Status lines from the runner never carry tool output.
	if logsink.Classify(line) != logsink.KindOutput {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if m := finalRe.FindStringSubmatch(line); m != nil {
		p.ppl = parseFloat(m[1])
		p.stdErr = parseFloat(m[2])
		p.final = true
		return
	}
	if m := evalRe.FindStringSubmatch(line); m != nil {
		if ms, err := strconv.ParseFloat(m[1], 64); err == nil {
			p.evalTime = time.Duration(ms * float64(time.Millisecond))
			p.evalTokens, _ = strconv.Atoi(m[2])
		}
		return
	}
	if m := chunksRe.FindStringSubmatch(line); m != nil {
		p.chunks, _ = strconv.Atoi(m[1])
		if m := nctxRe.FindStringSubmatch(line); m != nil {
			p.nctx, _ = strconv.Atoi(m[1])
		}
		return
	}
	for _, m := range estimateRe.FindAllStringSubmatch(line, -1) {
		chunk, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		p.estimates = append(p.estimates, Estimate{Chunk: chunk, PPL: parseFloat(m[2])})
	}
}

// Chunks is the chunk count announced by the tool, 0 until seen.
func (p *Parser) Chunks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chunks
}

// NCtx is the evaluation context size announced by the tool.
func (p *Parser) NCtx() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nctx
}

// Estimates returns the per-chunk running estimates seen so far.
func (p *Parser) Estimates() []Estimate {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Estimate, len(p.estimates))
	copy(out, p.estimates)
	return out
}

// Final returns the final estimate and its standard error. ok is false until
// the tool has printed it.
func (p *Parser) Final() (ppl, stdErr float64, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ppl, p.stdErr, p.final
}

// Eval returns the prompt evaluation time and token count from the tool's
// performance summary. ok is false when the summary was not printed.
func (p *Parser) Eval() (elapsed time.Duration, tokens int, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.evalTime, p.evalTokens, p.evalTime > 0
}

func parseFloat(s string) float64 {
	switch s {
	case "nan":
		return math.NaN()
	case "inf":
		return math.Inf(1)
	case "-inf":
		return math.Inf(-1)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}
