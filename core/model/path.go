package model

// PathEntry records one candidate tried by the hill-climbing search.
type PathEntry struct {
	Candidate CandidateSize `json:"candidate"`
	Success   bool          `json:"success"`
	Reasons   ReasonSet     `json:"reason_codes"`
	Error     string        `json:"error,omitempty"`
}

// SearchPath is the append-only sequence of candidates tried by one search.
type SearchPath []PathEntry

// Append adds an entry at the end of the path.
func (p *SearchPath) Append(e PathEntry) {
	*p = append(*p, e)
}

// LastSuccess returns the most recent successful entry.
func (p SearchPath) LastSuccess() (PathEntry, bool) {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i].Success {
			return p[i], true
		}
	}
	return PathEntry{}, false
}

// Successes counts the successful entries.
func (p SearchPath) Successes() int {
	n := 0
	for _, e := range p {
		if e.Success {
			n++
		}
	}
	return n
}
