package testutil

// FixedRunID is the run id FixedIDGenerator returns when none is given.
const FixedRunID = "00000000-0000-7000-8000-00000000c0de"

// FixedIDGenerator returns the same run id every time, so generated e-mail
// addresses and rendered reports are stable in golden tests.
//
// Thread-safety: FixedIDGenerator is stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a generator for id; empty means FixedRunID.
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = FixedRunID
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed id.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}
