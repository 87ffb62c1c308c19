// Package rag orchestrates ingestion (store, register, load, chunk, index) and
// retrieval (search, rank, prompt, generate, cite) over the shared vector index.
package rag

import (
	"math"

	"rag-chatbot-be/internal/pkg/logger"
)

// Score turns a raw index distance into the similarity shown to clients.
// It is a clamped approximation: 1 - min(1, d), floored at 0. Negative
// distances (not produced by cosine backends) also clamp into [0, 1].
func Score(distance float64) float64 {
	if math.IsNaN(distance) {
		return 0
	}
	return math.Max(0, math.Min(1, 1-math.Min(1, distance)))
}

type StepStatus int

const (
	Succeeded StepStatus = iota
	NonFatal
	Fatal
)

func (s StepStatus) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case NonFatal:
		return "non_fatal"
	default:
		return "fatal"
	}
}

// StepResult records the outcome of one side-effecting step so the caller
// decides explicitly whether a failure is swallowed or propagated.
type StepResult struct {
	Step   string
	Status StepStatus
	Err    error
}

func succeeded(step string) StepResult {
	return StepResult{Step: step, Status: Succeeded}
}

// BestEffort classifies err as NonFatal.
func BestEffort(step string, err error) StepResult {
	if err == nil {
		return succeeded(step)
	}
	return StepResult{Step: step, Status: NonFatal, Err: err}
}

// Required classifies err as Fatal.
func Required(step string, err error) StepResult {
	if err == nil {
		return succeeded(step)
	}
	return StepResult{Step: step, Status: Fatal, Err: err}
}

func (r StepResult) OK() bool { return r.Status == Succeeded }

// Log writes non-fatal failures at WARN and fatal ones at ERROR.
func (r StepResult) Log(log logger.ILogger, module string, details map[string]interface{}) {
	if r.Status == Succeeded {
		return
	}
	if details == nil {
		details = map[string]interface{}{}
	}
	details["step"] = r.Step
	details["error"] = r.Err.Error()
	if r.Status == NonFatal {
		log.Warn(module, "Best-effort step failed", details)
		return
	}
	log.Error(module, "Step failed", details)
}
