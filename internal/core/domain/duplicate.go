package domain

type DuplicateType string

const (
	DuplicateExact   DuplicateType = "EXACT_MATCH"
	DuplicateContent DuplicateType = "CONTENT_MATCH"
	DuplicateSimilar DuplicateType = "SIMILAR_CONTENT"
)

// Canonical duplicate thresholds. Scores below ThresholdSimilar are not matches.
const (
	ThresholdExact   = 0.85
	ThresholdContent = 0.70
	ThresholdSimilar = 0.60
)

// MaxDuplicateMatches caps the number of matches reported per document.
const MaxDuplicateMatches = 5

// ClassifyDuplicate maps a similarity score to its duplicate type. ok is false when the
// score is below every threshold.
func ClassifyDuplicate(score float64) (DuplicateType, bool) {
	switch {
	case score >= ThresholdExact:
		return DuplicateExact, true
	case score >= ThresholdContent:
		return DuplicateContent, true
	case score >= ThresholdSimilar:
		return DuplicateSimilar, true
	default:
		return "", false
	}
}

type DuplicateMatch struct {
	DocumentID      string        `json:"document_id"`
	SimilarityScore float64       `json:"similarity_score"`
	MatchingFields  []string      `json:"matching_fields"`
	DuplicateType   DuplicateType `json:"duplicate_type"`
	Reason          string        `json:"reason"`
}

type DuplicateDetection struct {
	IsDuplicate      bool             `json:"is_duplicate"`
	DuplicateMatches []DuplicateMatch `json:"duplicate_matches"`
	Confidence       float64          `json:"confidence"`
}

func EmptyDuplicateDetection() DuplicateDetection {
	return DuplicateDetection{DuplicateMatches: []DuplicateMatch{}}
}
