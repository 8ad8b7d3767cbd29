package reflector

import (
	"errors"

	"firestige.xyz/woolong/internal/core"
	"firestige.xyz/woolong/internal/core/frame"
)

// Result is the verdict for one frame and the reason it was reached.
type Result struct {
	Verdict core.Verdict
	Reason  core.Reason
}

// Reflected reports whether the frame was rewritten and should go back out.
func (r Result) Reflected() bool { return r.Verdict == core.VerdictTransmit }

// Engine processes frames. It holds no per-frame state and is safe for concurrent use.
type Engine struct {
	opts        Options
	matcher     Matcher
	replacement []byte
}

// New validates opts and builds an engine.
func New(opts Options) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	m, err := NewMatcher(opts.Signature, opts.Match)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		opts:        opts,
		matcher:     m,
		replacement: append([]byte(nil), opts.Replacement...),
	}
	e.opts.Signature = append([]byte(nil), opts.Signature...)
	e.opts.Replacement = e.replacement
	return e, nil
}

// Options returns the engine configuration.
func (e *Engine) Options() Options { return e.opts }

// Process decides the fate of one frame, mutating it in place only on TRANSMIT. Any other
// verdict leaves every byte of data untouched: all bounds and the received checksum are
// validated before the first write.
func (e *Engine) Process(data []byte) Result {
	buf := frame.NewBuffer(data)

	h, err := Locate(buf)
	if err != nil {
		return e.unlocated(err)
	}
	if h.TCP.SrcPort() != e.opts.TriggerPort {
		return Result{core.VerdictPass, core.ReasonPortMismatch}
	}
	if err := h.resolveSegment(buf, e.opts.Offset, e.opts.PreambleSkip); err != nil {
		return e.unlocated(err)
	}
	if !e.matcher.Match(h.Payload) {
		return Result{core.VerdictPass, core.ReasonNoMatch}
	}

	if len(e.replacement) != e.matcher.Len() {
		return Result{core.VerdictAbort, core.ReasonInvariant}
	}
	rw, err := e.plan(&h)
	if errors.Is(err, core.ErrChecksum) {
		return Result{core.VerdictAbort, core.ReasonChecksum}
	}
	if err != nil {
		return e.fail(core.ReasonRewriteBounds)
	}

	rw.commit()
	checksumIPv4(&h)
	if e.opts.Checksum == ChecksumIncremental {
		rw.checksumTCPIncremental()
	} else {
		checksumTCPFull(&h)
	}
	return Result{core.VerdictTransmit, core.ReasonReflected}
}

// unlocated classifies a header walk failure. Frames that are not IPv4/TCP or whose length
// fields contradict themselves are structural mismatches and always pass; only a frame cut
// short of what its headers describe goes through the failure policy.
func (e *Engine) unlocated(err error) Result {
	switch {
	case errors.Is(err, core.ErrNotApplicable):
		return Result{core.VerdictPass, core.ReasonNotIPv4TCP}
	case frame.IsBadHeaderLen(err):
		return Result{core.VerdictPass, core.ReasonBadHeaderLen}
	}
	return e.fail(core.ReasonTruncated)
}

func (e *Engine) fail(reason core.Reason) Result {
	return Result{e.opts.Policy.Verdict(), reason}
}
