// Package pipeline implements the Correction Pipeline: an ordered,
// slot-indexed chain of correction stages run under three execution
// modes (live, prefix-only, manual continuation), with a per-stage
// input cache and diagnostic logging.
//
// Grounded on original_source/ui/pipeline.py's push_frame /
// continue_pipeline_from_slot / continue_pipeline_from_module, and on the
// orchestration shape of github.com/ausocean/av/revid/pipeline.go's
// setupPipeline/processFrom (a fixed, config-driven, ordered chain of
// io.Writer filters) generalized from a byte-stream chain to a
// slot-indexed frame chain.
package pipeline

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ausocean/utils/logging"

	"github.com/xrayctl/xrayd/internal/calib"
	"github.com/xrayctl/xrayd/internal/xframe"
)

// DistortionPreviewSlot is the slot at which the live run snapshots the
// intermediate frame for distortion-parameter re-preview, per §3/§4.3.
const DistortionPreviewSlot = 450

// Stage is a single correction step: a stable slot, a canonical name, and
// a pure apply function. Implementations must never panic and must pass
// the frame through unchanged when they cannot apply (missing reference,
// shape mismatch); they must scrub NaN/±Inf from their output.
type Stage interface {
	Name() string
	Slot() int
	Apply(frame *xframe.Frame, ctx *Context) *xframe.Frame
}

// Context is the narrow, read-only view a stage receives: current
// references, current bad-pixel mask, and per-stage parameters. Side
// effects on shared state never flow back through Context; they go
// through explicit return values and Pipeline-level caching instead,
// inverting the original's cyclic gui-handle callback graph per §9.
type Context struct {
	Dark *calib.Reference
	Flat *calib.Reference
	Mask *calib.Mask

	// Enabled holds each stage's auto_enabled flag, keyed by Stage.Name().
	// A stage absent from this map is treated as disabled.
	Enabled map[string]bool

	Banding    BandingParams
	DeadLine   DeadLineParams
	Pincushion DistortionParams
	Mustache   MustacheParams
	Enhance    EnhanceParams
	Crop       CropParams
	Background BackgroundParams
}

// IsEnabled reports whether the named stage is auto-enabled in ctx.
func (c *Context) IsEnabled(name string) bool {
	if c == nil || c.Enabled == nil {
		return false
	}
	return c.Enabled[name]
}

// cacheEntry records the frame as it was about to enter a stage, plus the
// token of the run that produced it.
type cacheEntry struct {
	token int
	slot  int
	frame *xframe.Frame
}

// Pipeline holds the immutable, slot-sorted stage list plus the mutable
// per-stage cache and frame token counter.
type Pipeline struct {
	stages []Stage
	logger logging.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
	token int
}

// New builds a Pipeline from an unordered stage list, sorting by ascending
// slot. It returns an error if two stages declare the same slot, per the
// "registry must reject this at load time" rule.
func New(stages []Stage, logger logging.Logger) (*Pipeline, error) {
	sorted := append([]Stage(nil), stages...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Slot() < sorted[j].Slot() })
	seen := make(map[int]string)
	for _, s := range sorted {
		if name, dup := seen[s.Slot()]; dup {
			return nil, fmt.Errorf("pipeline: duplicate slot %d claimed by %q and %q", s.Slot(), name, s.Name())
		}
		seen[s.Slot()] = s.Name()
	}
	return &Pipeline{stages: sorted, logger: logger, cache: make(map[string]cacheEntry)}, nil
}

// Stages returns the slot-ordered stage list.
func (p *Pipeline) Stages() []Stage { return p.stages }

func (p *Pipeline) nextToken() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token++
	return p.token
}

func (p *Pipeline) recordCache(name string, token, slot int, frame *xframe.Frame) {
	p.mu.Lock()
	p.cache[name] = cacheEntry{token: token, slot: slot, frame: frame.Clone()}
	p.mu.Unlock()
}

// IncomingFrame returns a copy of the frame as it was about to enter the
// named stage on the most recent run, or nil if the stage has not run
// yet.
func (p *Pipeline) IncomingFrame(name string) *xframe.Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.cache[name]
	if !ok {
		return nil
	}
	return e.frame.Clone()
}

// IncomingToken returns the token recorded alongside the named stage's
// cached input, or -1 if none.
func (p *Pipeline) IncomingToken(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.cache[name]
	if !ok {
		return -1
	}
	return e.token
}

func (p *Pipeline) apply(s Stage, frame *xframe.Frame, ctx *Context, execCtx string, token int) *xframe.Frame {
	p.recordCache(s.Name(), token, s.Slot(), frame)
	if !ctx.IsEnabled(s.Name()) {
		p.logStep(execCtx, token, s.Slot(), s.Name(), frame, frame, false)
		return frame
	}
	before := frame
	out := s.Apply(frame, ctx)
	if out == nil {
		out = frame
	}
	out.ScrubNonFinite()
	p.logStep(execCtx, token, s.Slot(), s.Name(), before, out, true)
	return out
}

func (p *Pipeline) logStep(execCtx string, token, slot int, name string, before, after *xframe.Frame, ran bool) {
	if p.logger == nil {
		return
	}
	changed := ran && !sameSignature(before, after)
	p.logger.Debug("pipeline step",
		"context", execCtx, "token", token, "slot", slot, "module", name,
		"ran", ran, "changed", changed,
		"in_w", before.Width, "in_h", before.Height, "out_w", after.Width, "out_h", after.Height)
}

func sameSignature(a, b *xframe.Frame) bool {
	if a.Width != b.Width || a.Height != b.Height {
		return false
	}
	n := len(a.Samples)
	if n != len(b.Samples) {
		return false
	}
	step := n/9 + 1
	for i := 0; i < n; i += step {
		if a.Samples[i] != b.Samples[i] {
			return false
		}
	}
	return true
}

// RunLive runs every stage in order, snapshotting the frame immediately
// before the first stage whose slot >= DistortionPreviewSlot into
// preDistortion (nil if the pipeline has no such stage or started past
// it already).
func (p *Pipeline) RunLive(frame *xframe.Frame, ctx *Context) (out *xframe.Frame, preDistortion *xframe.Frame) {
	token := p.nextToken()
	f := frame
	for _, s := range p.stages {
		if preDistortion == nil && s.Slot() >= DistortionPreviewSlot {
			preDistortion = f.Clone()
		}
		f = p.apply(s, f, ctx, "live", token)
	}
	return f, preDistortion
}

// RunPrefix runs only stages with slot < maxSlot, matching
// request_n_frames_processed_up_to_slot's per-frame pipeline truncation.
func (p *Pipeline) RunPrefix(frame *xframe.Frame, ctx *Context, maxSlot int) *xframe.Frame {
	token := p.nextToken()
	f := frame
	for _, s := range p.stages {
		if s.Slot() >= maxSlot {
			break
		}
		f = p.apply(s, f, ctx, "capture", token)
	}
	return f
}

// ContinueFromSlot runs only stages with slot > startSlotExclusive,
// matching continue_pipeline_from_slot.
func (p *Pipeline) ContinueFromSlot(frame *xframe.Frame, ctx *Context, startSlotExclusive int) *xframe.Frame {
	token := p.nextToken()
	f := frame
	for _, s := range p.stages {
		if s.Slot() <= startSlotExclusive {
			continue
		}
		f = p.apply(s, f, ctx, "continue", token)
	}
	return f
}

// ContinueFromModule looks up the named stage's slot and runs the
// remainder of the pipeline from there, matching
// continue_pipeline_from_module. If name is not found, it falls back to
// running the full pipeline (start = -1), logging the fallback the way
// the original does.
func (p *Pipeline) ContinueFromModule(name string, frame *xframe.Frame, ctx *Context) *xframe.Frame {
	slot := -1
	for _, s := range p.stages {
		if s.Name() == name {
			slot = s.Slot()
			break
		}
	}
	if slot == -1 && p.logger != nil {
		p.logger.Warning("pipeline: module not in slot map, falling back to full pipeline continuation", "module", name)
	}
	return p.ContinueFromSlot(frame, ctx, slot)
}
