package domain

// Checkpoint captures everything needed to resume a training session:
// both parameter sets, exploration state, counters, the feature schema,
// and the normalizer statistics. Shape metadata travels with the weights
// so a mismatched network configuration is detected before restore.
// Corresponds to checkpoints table in PostgreSQL.
type Checkpoint struct {
	CheckpointID string // PRIMARY KEY, deterministic hash
	SessionID    string // training session this belongs to
	CreatedAtMs  int64  // Unix timestamp in milliseconds

	Step    int64   // gradient steps taken
	Episode int     // episodes completed
	Epsilon float64 // exploration rate at save time

	// Network shape. Restore refuses weights that disagree with the
	// receiving network's configuration.
	InputWidth   int
	HiddenLayout []int
	OutputWidth  int

	FeatureNames []string // schema in extraction order

	OnlineWeights [][][]float64 // [layer][neuron][input] weights, online net
	TargetWeights [][][]float64 // same layout, target net

	NormMean         []float64 // running mean per feature component
	NormVar          []float64 // running variance per feature component
	NormObservations int64     // events the normalizer has seen
}

// SameShape reports whether the checkpoint's recorded network shape
// matches the given dimensions.
func (c *Checkpoint) SameShape(inputWidth int, hidden []int, outputWidth int) bool {
	if c.InputWidth != inputWidth || c.OutputWidth != outputWidth {
		return false
	}
	if len(c.HiddenLayout) != len(hidden) {
		return false
	}
	for i, h := range hidden {
		if c.HiddenLayout[i] != h {
			return false
		}
	}
	return true
}
