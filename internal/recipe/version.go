package recipe

// Version constants for the snapshot schema and engine.
const (
	// EngineVersion is the ovenledger engine version.
	EngineVersion = "0.1.0"
)
