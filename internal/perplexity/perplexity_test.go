package perplexity

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThatCatDev/llamatools/internal/logsink"
	"github.com/ThatCatDev/llamatools/internal/runner"
)

const recordedOutput = `build: 4589 (eb7cf15a) with cc (GCC) 14.2.1 for x86_64-pc-linux-gnu
llama_model_loader: loaded meta data with 29 key-value pairs and 291 tensors from model.gguf
llama_context: n_ctx = 2048
system_info: n_threads = 8 (n_threads_batch = 8) / 16 | CPU : SSE3 = 1 | AVX = 1 |
perplexity: tokenizing the input ..
perplexity: tokenization took 412.7 ms
perplexity: calculating perplexity over 4 chunks, n_ctx=512, batch_size=2048, n_seq=4
perplexity: 9.87 seconds per pass - ETA 0.15 minutes
[1]4.1445,[2]4.8754,[3]5.4511,[4]5.3109,
Final estimate: PPL = 5.3109 +/- 0.21744

llama_perf_context_print:        load time =    1023.11 ms
llama_perf_context_print: prompt eval time =    3800.00 ms /  2048 tokens (    1.86 ms per token,   538.95 tokens per second)
llama_perf_context_print:        eval time =       0.00 ms /     1 runs   (    0.00 ms per token,      inf tokens per second)
llama_perf_context_print:       total time =    5120.40 ms /  2049 tokens`

// withoutPerf is recordedOutput cut before the performance summary.
var withoutPerf = recordedOutput[:strings.Index(recordedOutput, "\nllama_perf_context_print:        load time")]

func feedAll(p *Parser, text string) {
	for _, line := range strings.Split(text, "\n") {
		p.Append(line)
	}
}

func TestParserRecordedOutput(t *testing.T) {
	next := logsink.NewBuffer()
	p := NewParser(next)
	feedAll(p, recordedOutput)

	assert.Equal(t, 4, p.Chunks())
	assert.Equal(t, 512, p.NCtx())
	assert.Equal(t, []Estimate{{1, 4.1445}, {2, 4.8754}, {3, 5.4511}, {4, 5.3109}}, p.Estimates())

	ppl, stdErr, ok := p.Final()
	require.True(t, ok)
	assert.InDelta(t, 5.3109, ppl, 1e-9)
	assert.InDelta(t, 0.21744, stdErr, 1e-9)

	elapsed, tokens, ok := p.Eval()
	require.True(t, ok)
	assert.Equal(t, 3800*time.Millisecond, elapsed)
	assert.Equal(t, 2048, tokens)

	assert.Equal(t, strings.Split(recordedOutput, "\n"), next.Lines(), "lines are forwarded unchanged")
}

func TestParserEstimatesSplitAcrossLines(t *testing.T) {
	p := NewParser(nil)
	p.Append("[1]7.2031,[2]8.0012,")
	p.Append("[3]nan,")

	est := p.Estimates()
	require.Len(t, est, 3)
	assert.Equal(t, 2, est[1].Chunk)
	assert.True(t, math.IsNaN(est[2].PPL))

	_, _, ok := p.Final()
	assert.False(t, ok)
}

func TestParserIgnoresStatusLines(t *testing.T) {
	p := NewParser(nil)
	p.Append(logsink.PrefixCommand + "llama-perplexity -m [1]2.0")
	assert.Empty(t, p.Estimates())
}

func TestNewReport(t *testing.T) {
	p := NewParser(nil)
	feedAll(p, recordedOutput)

	res := runner.Result{Duration: 10 * time.Second, PeakRSS: 2_500_000_000}
	r, err := NewReport("model.gguf", p, res)
	require.NoError(t, err)

	assert.Equal(t, 4, r.Chunks)
	assert.True(t, r.Timed())
	assert.Equal(t, 2048, r.Tokens())
	assert.InDelta(t, 2048/3.8, r.TokensPerSecond(), 1e-6)

	rows := r.Rows()
	assert.Contains(t, rows, []string{"Evaluation time", "3.80 seconds"})
	assert.Contains(t, rows, []string{"Wall time", "10.00 seconds"})
	assert.Contains(t, rows, []string{"Tokens per second", "539"})

	var buf bytes.Buffer
	r.Render(&buf)
	out := buf.String()
	assert.Contains(t, out, "model.gguf")
	assert.Contains(t, out, "5.311 ± 0.217")
	assert.Contains(t, out, "2.50 GB")
}

func TestNewReportFallsBackToWallTime(t *testing.T) {
	p := NewParser(nil)
	feedAll(p, withoutPerf)

	_, _, ok := p.Eval()
	require.False(t, ok)

	r, err := NewReport("model.gguf", p, runner.Result{Duration: 4 * time.Second})
	require.NoError(t, err)

	assert.False(t, r.Timed())
	assert.Equal(t, 2048, r.Tokens())
	assert.InDelta(t, 512.0, r.TokensPerSecond(), 1e-9)

	rows := r.Rows()
	assert.Contains(t, rows, []string{"Wall time", "4.00 seconds"})
	assert.Contains(t, rows, []string{"Tokens per second (wall)", "512"})
	for _, row := range rows {
		assert.NotEqual(t, "Evaluation time", row[0])
	}
}

func TestNewReportWithoutEstimate(t *testing.T) {
	p := NewParser(nil)
	p.Append("error: failed to load model")

	_, err := NewReport("model.gguf", p, runner.Result{ExitCode: 1})
	require.ErrorIs(t, err, ErrNoEstimate)
	assert.Contains(t, err.Error(), "exit code 1")
}

func TestReportUnknownMemory(t *testing.T) {
	r := &Report{Model: "m", PPL: 3, Chunks: 2, NCtx: 128}
	rows := r.Rows()
	assert.Contains(t, rows, []string{"Peak memory", "n/a"})
	assert.Zero(t, r.TokensPerSecond())
}
