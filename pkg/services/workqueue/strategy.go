package workqueue

import "sync"

// ConcurrencyStrategy controls how tasks are allowed to start concurrently.
// The strategy is responsible for tracking running tasks and determining
// if a new task can start based on the current state.
type ConcurrencyStrategy interface {
	// CanStartLLM returns true if an LLM task can start given current state
	CanStartLLM() bool
	// CanStartData returns true if a data task can start given current state
	CanStartData() bool
	// OnStartLLM is called when an LLM task starts
	OnStartLLM()
	// OnStartData is called when a data task starts
	OnStartData()
	// OnCompleteLLM is called when an LLM task completes
	OnCompleteLLM()
	// OnCompleteData is called when a data task completes
	OnCompleteData()
}

// LimitStrategy allows up to maxLLM LLM tasks and maxData data tasks to run
// at once. The two lanes are independent.
type LimitStrategy struct {
	mu          sync.Mutex
	maxLLM      int
	maxData     int
	llmRunning  int
	dataRunning int
}

// NewLimitStrategy creates a strategy with the given per-lane limits.
// Limits below one are raised to one.
func NewLimitStrategy(maxLLM, maxData int) *LimitStrategy {
	return &LimitStrategy{
		maxLLM:  max(maxLLM, 1),
		maxData: max(maxData, 1),
	}
}

// NewSerializedStrategy runs one LLM task and one data task at a time.
func NewSerializedStrategy() *LimitStrategy {
	return NewLimitStrategy(1, 1)
}

func (s *LimitStrategy) CanStartLLM() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.llmRunning < s.maxLLM
}

func (s *LimitStrategy) CanStartData() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dataRunning < s.maxData
}

func (s *LimitStrategy) OnStartLLM() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.llmRunning++
}

func (s *LimitStrategy) OnStartData() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dataRunning++
}

func (s *LimitStrategy) OnCompleteLLM() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.llmRunning > 0 {
		s.llmRunning--
	}
}

func (s *LimitStrategy) OnCompleteData() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dataRunning > 0 {
		s.dataRunning--
	}
}

// Running returns the number of running LLM and data tasks.
func (s *LimitStrategy) Running() (llm, data int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.llmRunning, s.dataRunning
}

var _ ConcurrencyStrategy = (*LimitStrategy)(nil)
