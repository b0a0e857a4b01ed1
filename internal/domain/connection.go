package domain

import "time"

// Connection is an undirected edge between two accounts. Edges are
// stored once, with endpoints in ascending id order, so symmetry is a
// property of the representation rather than of mirrored collections.
type Connection struct {
	UserLo    string    `json:"user_lo"`
	UserHi    string    `json:"user_hi"`
	CreatedAt time.Time `json:"created_at"`
}

// NormalizePair orders two account ids ascending. Every edge and every
// pairwise lock acquisition goes through this, so the canonical form and
// the lock order can never disagree.
func NormalizePair(a, b string) (lo, hi string) {
	if a <= b {
		return a, b
	}
	return b, a
}
