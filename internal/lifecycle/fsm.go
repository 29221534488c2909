// Package lifecycle implements the pipeline run state machine.
package lifecycle

import (
	"fmt"

	"github.com/gschex1112/songflow/pkg/types"
)

// Transition table: from -> allowed tos. The pipeline is strictly linear;
// the only branch is failure, allowed from every non-terminal stage.
var validTransitions = map[types.Stage][]types.Stage{
	types.StagePending:         {types.StageFetched, types.StageFailed},
	types.StageFetched:         {types.StageBatchWritten, types.StageFailed},
	types.StageBatchWritten:    {types.StageRelationDefined, types.StageFailed},
	types.StageRelationDefined: {types.StageStagingLoaded, types.StageFailed},
	types.StageStagingLoaded:   {types.StageDatamartMerged, types.StageFailed},
	types.StageDatamartMerged:  {types.StageArchived, types.StageFailed},
	types.StageArchived:        {},
	types.StageFailed:          {},
}

// CanTransition checks if transitioning from one stage to another is valid.
func CanTransition(from, to types.Stage) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Transition validates the move, or returns an error if it is invalid.
func Transition(from, to types.Stage) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	return nil
}

// IsTerminal returns true if the stage is a terminal (final) state.
func IsTerminal(stage types.Stage) bool {
	return stage == types.StageArchived || stage == types.StageFailed
}
