package models

// RunResult is the outcome of a successful resolution: which source produced
// the stream, through which embed (empty for direct sources), and the chosen
// quality. Constructed fresh per resolution call and never mutated after
// return; any caching by fingerprint is the caller's responsibility.
type RunResult struct {
	SourceID string  `json:"sourceId"`
	EmbedID  string  `json:"embedId,omitempty"`
	Quality  Quality `json:"quality,omitempty"`
	Stream   *Stream `json:"stream"`
}
