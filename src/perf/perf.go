package perf

import (
	"time"

	"github.com/rs/zerolog"
)

// RequestPerf times the phases of a single request.
type RequestPerf struct {
	Route  string
	Method string
	Start  time.Time
	End    time.Time
	Blocks []PerfBlock
}

func NewRequestPerf(route string, method string) *RequestPerf {
	return &RequestPerf{
		Start:  time.Now(),
		Route:  route,
		Method: method,
	}
}

func (rp *RequestPerf) EndRequest() {
	if rp == nil {
		return
	}
	for rp.EndBlock() {
	}
	rp.End = time.Now()
}

func (rp *RequestPerf) StartBlock(category, description string) {
	if rp == nil {
		return
	}
	rp.Blocks = append(rp.Blocks, PerfBlock{
		Start:       time.Now(),
		Category:    category,
		Description: description,
	})
}

// EndBlock closes the most recently opened block. Returns false if every
// block was already closed.
func (rp *RequestPerf) EndBlock() bool {
	if rp == nil {
		return false
	}
	for i := len(rp.Blocks) - 1; i >= 0; i -= 1 {
		if rp.Blocks[i].End.IsZero() {
			rp.Blocks[i].End = time.Now()
			return true
		}
	}
	return false
}

func (rp *RequestPerf) Duration() time.Duration {
	if rp.End.IsZero() {
		return time.Since(rp.Start)
	}
	return rp.End.Sub(rp.Start)
}

// MarshalZerologArray lets a request's blocks be attached to a log line.
func (rp *RequestPerf) MarshalZerologArray(a *zerolog.Array) {
	for i := range rp.Blocks {
		a.Object(&rp.Blocks[i])
	}
}

type PerfBlock struct {
	Start       time.Time
	End         time.Time
	Category    string
	Description string
}

func (pb *PerfBlock) Duration() time.Duration {
	return pb.End.Sub(pb.Start)
}

func (pb *PerfBlock) DurationMs() float64 {
	return float64(pb.Duration().Nanoseconds()) / 1000 / 1000
}

func (pb *PerfBlock) MarshalZerologObject(e *zerolog.Event) {
	e.Str("category", pb.Category).
		Str("description", pb.Description).
		Float64("ms", pb.DurationMs())
}
