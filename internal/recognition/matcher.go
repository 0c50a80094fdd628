package recognition

import "fmt"

// Status is the confidence tier assigned to a similarity score.
type Status int

// Tiers in ascending order of confidence.
const (
	NoMatch Status = iota
	Uncertain
	Match
)

// String returns the wire name of the tier.
func (s Status) String() string {
	switch s {
	case Match:
		return "MATCH"
	case Uncertain:
		return "UNCERTAIN"
	default:
		return "NO_MATCH"
	}
}

// Candidate pairs an enrolled identity with its stored template for the
// duration of one gallery scan. The matcher never retains or mutates it.
type Candidate struct {
	ID        string
	Name      string
	Class     string
	Embedding []float32
}

// BestMatch is the winning candidate of a gallery scan together with its
// verdict. Status can be NoMatch: the scan always reports its best attempt
// and leaves the accept/reject decision to the caller.
type BestMatch struct {
	Candidate Candidate
	Status    Status
	Score     float64
}

// Matcher classifies query embeddings against enrolled templates using two
// fixed similarity thresholds. It holds no mutable state and is safe for
// concurrent use.
type Matcher struct {
	match     float64
	uncertain float64
}

// NewMatcher creates a Matcher. The match threshold must not be below the
// uncertain threshold.
func NewMatcher(matchThreshold, uncertainThreshold float64) (*Matcher, error) {
	if matchThreshold < uncertainThreshold {
		return nil, fmt.Errorf("match threshold %.3f below uncertain threshold %.3f",
			matchThreshold, uncertainThreshold)
	}
	return &Matcher{match: matchThreshold, uncertain: uncertainThreshold}, nil
}

// MatchThreshold returns the high-confidence cutoff.
func (m *Matcher) MatchThreshold() float64 { return m.match }

// UncertainThreshold returns the low-confidence cutoff.
func (m *Matcher) UncertainThreshold() float64 { return m.uncertain }

// Classify scores query against reference and assigns a tier. A score
// exactly equal to a threshold belongs to the higher tier.
func (m *Matcher) Classify(query, reference []float32) (Status, float64, error) {
	score, err := Cosine(query, reference)
	if err != nil {
		return NoMatch, 0, err
	}

	switch {
	case score >= m.match:
		return Match, score, nil
	case score >= m.uncertain:
		return Uncertain, score, nil
	default:
		return NoMatch, score, nil
	}
}

// FindBestMatch scans the gallery in order and returns the candidate most
// similar to the query. Only a strictly greater score replaces the running
// best, so ties keep the earliest candidate — the caller's gallery order
// is part of the contract. The best candidate is returned even when its
// status is NoMatch, which lets callers tell "nobody resembles this query"
// apart from ErrEmptyGallery.
func (m *Matcher) FindBestMatch(query []float32, candidates []Candidate) (*BestMatch, error) {
	if len(candidates) == 0 {
		return nil, ErrEmptyGallery
	}
	if Norm(query) == 0 {
		return nil, fmt.Errorf("query embedding: %w", ErrZeroVector)
	}

	// Seeded below the similarity range so the first candidate always adopts.
	best := &BestMatch{Score: -2}
	for _, c := range candidates {
		status, score, err := m.Classify(query, c.Embedding)
		if err != nil {
			return nil, fmt.Errorf("candidate %s: %w", c.ID, err)
		}
		if score > best.Score {
			best.Candidate = c
			best.Status = status
			best.Score = score
		}
	}
	return best, nil
}
