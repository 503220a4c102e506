// Package batch renders several variations of one text, such as a pitch
// ladder or a set of accents, reusing synthesized speech between variants
// that share the same voice settings.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/apresai/voicekit/internal/pipeline"
	"github.com/apresai/voicekit/internal/pitch"
	"github.com/apresai/voicekit/internal/progress"
	"github.com/apresai/voicekit/internal/tts"
)

// Options configures a batch run. Text, Input and OutputDir override the
// manifest when set.
type Options struct {
	Text      string
	Input     string
	OutputDir string

	ProviderConfig tts.Config
	// NewProvider creates engines by name. Defaults to tts.NewProvider.
	NewProvider func(name string, cfg tts.Config) (tts.Provider, error)

	Logger     *slog.Logger
	OnProgress progress.Callback
	// OnResult is called after each variant finishes.
	OnResult func(num, total int, r Result)
}

// Result is the outcome of one variant.
type Result struct {
	Variant Variant
	Report  *pipeline.Report
	Err     error
}

// OK reports whether the variant was written with the requested pitch.
func (r Result) OK() bool {
	return r.Err == nil && r.Report != nil && r.Report.PitchStatus != pitch.StatusFallback
}

// Summary collects the results of a run.
type Summary struct {
	Results   []Result
	Succeeded int
	Total     int
	// Syntheses is the number of engine calls actually made.
	Syntheses int
}

func (s *Summary) String() string {
	return fmt.Sprintf("%d/%d files created", s.Succeeded, s.Total)
}

// Run renders every variant in order. Variant failures are recorded in the
// summary; the returned error is reserved for invalid manifests and
// cancellation. The caller's manifest is not modified.
func Run(ctx context.Context, manifest *Manifest, opts Options) (*Summary, error) {
	m := manifest.clone()
	if opts.Text != "" {
		m.Text = opts.Text
	}
	if opts.Input != "" {
		m.Input = opts.Input
	}
	if opts.OutputDir != "" {
		m.OutputDir = opts.OutputDir
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	engines := newEngineSet(opts)
	defer engines.Close()

	variants := m.Resolved()
	summary := &Summary{Total: len(variants)}
	for i, v := range variants {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		num := i + 1

		res := Result{Variant: v}
		engine, err := engines.get(v.Provider)
		if err != nil {
			res.Err = err
		} else {
			res.Report, res.Err = pipeline.Run(ctx, variantOptions(m, v, engine, opts, num, len(variants)))
		}

		if res.OK() {
			summary.Succeeded++
		} else {
			log.Warn("variant failed", "variant", v.Name, "output", v.Output, "error", res.failure())
		}
		summary.Results = append(summary.Results, res)
		if opts.OnResult != nil {
			opts.OnResult(num, len(variants), res)
		}
	}

	summary.Syntheses = engines.calls()
	log.Info("batch finished", "succeeded", summary.Succeeded, "total", summary.Total, "syntheses", summary.Syntheses)
	return summary, nil
}

func (r Result) failure() error {
	if r.Err != nil {
		return r.Err
	}
	if r.Report != nil {
		return r.Report.PitchErr
	}
	return nil
}

func variantOptions(m *Manifest, v Variant, engine tts.Provider, opts Options, num, total int) pipeline.Options {
	return pipeline.Options{
		Synthesizer: engine,
		Text:        m.Text,
		Input:       m.Input,
		Output:      v.Output,
		Language:    v.Language,
		Accent:      v.Accent,
		Voice:       v.Voice,
		Slow:        v.IsSlow(),
		Speed:       v.Speed,
		Semitones:   v.Semitones,
		Normalize:   pitch.NormalizeMode(v.Normalize),
		Logger:      opts.Logger,
		OnProgress:  progress.Forward(opts.OnProgress, num, total),
	}
}

// engineSet creates one provider per engine name and memoizes synthesis so
// variants that differ only in pitch share a single engine call.
type engineSet struct {
	opts    Options
	engines map[string]*cachedProvider
}

func newEngineSet(opts Options) *engineSet {
	if opts.NewProvider == nil {
		opts.NewProvider = tts.NewProvider
	}
	return &engineSet{opts: opts, engines: make(map[string]*cachedProvider)}
}

func (s *engineSet) get(name string) (tts.Provider, error) {
	if name == "" {
		name = "gtts"
	}
	if p, ok := s.engines[name]; ok {
		return p, nil
	}
	inner, err := s.opts.NewProvider(name, s.opts.ProviderConfig)
	if err != nil {
		return nil, err
	}
	p := &cachedProvider{Provider: inner, cache: make(map[string]tts.AudioResult)}
	s.engines[name] = p
	return p, nil
}

func (s *engineSet) calls() int {
	n := 0
	for _, p := range s.engines {
		n += p.misses
	}
	return n
}

func (s *engineSet) Close() {
	for _, p := range s.engines {
		p.Provider.Close()
	}
}

type cachedProvider struct {
	tts.Provider

	mu     sync.Mutex
	cache  map[string]tts.AudioResult
	misses int
}

func (p *cachedProvider) Synthesize(ctx context.Context, req tts.Request) (tts.AudioResult, error) {
	key := requestKey(req)

	p.mu.Lock()
	if res, ok := p.cache[key]; ok {
		p.mu.Unlock()
		return res, nil
	}
	p.misses++
	p.mu.Unlock()

	res, err := p.Provider.Synthesize(ctx, req)
	if err != nil {
		return tts.AudioResult{}, err
	}

	p.mu.Lock()
	p.cache[key] = res
	p.mu.Unlock()
	return res, nil
}

// Close is a no-op; the engine set closes the wrapped provider once.
func (p *cachedProvider) Close() error { return nil }

func requestKey(r tts.Request) string {
	return fmt.Sprintf("%q|%q|%q|%q|%t|%g|%g|%g", r.Text, r.Language, r.Accent, r.Voice.ID, r.Slow, r.Speed, r.Pitch, r.Volume)
}
