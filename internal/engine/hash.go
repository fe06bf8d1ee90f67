package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

type feedbackDigest struct {
	FeedbackText string `json:"feedback_text"`
	ID           string `json:"id"`
}

// FeedbackHash produces a stable fingerprint of a feedback set. Only entry
// IDs and texts participate, sorted by ID, so the hash changes exactly when
// an entry is added, edited, or deleted and is insensitive to slice order.
func FeedbackHash(feedback []Feedback) string {
	digest := make([]feedbackDigest, 0, len(feedback))
	for _, f := range feedback {
		digest = append(digest, feedbackDigest{FeedbackText: f.Text, ID: f.ID})
	}
	sort.Slice(digest, func(i, j int) bool { return digest[i].ID < digest[j].ID })

	// Marshalling a fixed struct keeps the byte representation stable.
	raw, err := json.Marshal(digest)
	if err != nil {
		raw = []byte{}
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
