package consensus

import "sync"

// DefaultThreshold is the share of valid responses required to accept a
// block.
const DefaultThreshold = 0.67

// Result is the outcome of a consensus tally.
type Result struct {
	BlockHash string  `json:"blockHash"`
	Valid     int     `json:"valid"`
	Total     int     `json:"total"`
	Ratio     float64 `json:"ratio"`
	Accepted  bool    `json:"accepted"`
}

// Accepted reports whether valid out of total reaches the threshold. The
// boundary is inclusive and no responses never accepts.
func Accepted(valid int, total int, threshold float64) bool {
	if total == 0 {
		return false
	}

	return float64(valid)/float64(total) >= threshold
}

// Tally accumulates validation results per block hash. A validator
// answering more than once for the same block counts once, with its
// latest answer.
type Tally struct {
	mu      sync.RWMutex
	results map[string]map[string]ValidationResult
}

// NewTally constructs an empty tally.
func NewTally() *Tally {
	return &Tally{
		results: make(map[string]map[string]ValidationResult),
	}
}

// Add records a validation result.
func (t *Tally) Add(vr ValidationResult) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, exists := t.results[vr.BlockHash]
	if !exists {
		m = make(map[string]ValidationResult)
		t.results[vr.BlockHash] = m
	}

	m[vr.ValidatorID] = vr
}

// Reset removes the results for the block hash.
func (t *Tally) Reset(blockHash string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.results, blockHash)
}

// Results returns a copy of the results for the block hash.
func (t *Tally) Results(blockHash string) []ValidationResult {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]ValidationResult, 0, len(t.results[blockHash]))
	for _, vr := range t.results[blockHash] {
		out = append(out, vr)
	}

	return out
}

// Compute returns the tally for the block hash against the threshold.
func (t *Tally) Compute(blockHash string, threshold float64) Result {
	t.mu.RLock()
	defer t.mu.RUnlock()

	res := Result{BlockHash: blockHash}
	for _, vr := range t.results[blockHash] {
		res.Total++
		if vr.Status == StatusValid {
			res.Valid++
		}
	}

	if res.Total > 0 {
		res.Ratio = float64(res.Valid) / float64(res.Total)
	}
	res.Accepted = Accepted(res.Valid, res.Total, threshold)

	return res
}
