package ir

// Version constants for records and the engine.
const (
	// RecordVersion is the version of the batch/checkpoint record layout.
	RecordVersion = "1"

	// EngineVersion is the causeway engine version.
	EngineVersion = "0.1.0"
)
