// Package dialogue implements the multi-persona interview engine: a
// directed graph of processing steps executed once per student message.
//
// Each turn flows through classification, speaker selection, response
// generation (individual or collaborative), validation, and formatting.
// Conversation state is a value threaded step to step; every step clones
// the state it receives, so a turn is replayable from its inputs.
//
// The interpreter retries low-confidence classification and rejected
// reply batches in-graph, bounded by a hard iteration ceiling. Hitting
// the ceiling abandons the turn with an empty reply set rather than
// surfacing an error to the caller.
package dialogue
