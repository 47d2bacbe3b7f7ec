package ir

// Version constants for the record layout and the pipeline.
const (
	// SchemaVersion is the persisted table layout version.
	SchemaVersion = "1"

	// PipelineVersion is the harvest pipeline version.
	PipelineVersion = "0.1.0"
)
