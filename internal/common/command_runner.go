package common

import (
	"context"
	"io"

	"skillpulse/internal/errors"
	"skillpulse/internal/types"
)

// RunFunc runs one or more pipeline stages and returns their summary.
type RunFunc func(context.Context) (types.RunSummary, error)

// RunPipelineCommand runs the stages, prints the summary in the requested format and
// returns an error when the run could not start or any stage failed.
func RunPipelineCommand(ctx context.Context, logger *errors.Logger, cmdConfig CommandConfig, run RunFunc) error {
	return runPipelineCommand(ctx, NewOutputHandler(logger), cmdConfig, run)
}

// RunPipelineCommandTo is RunPipelineCommand printing the summary to w instead of stdout
func RunPipelineCommandTo(ctx context.Context, logger *errors.Logger, w io.Writer, cmdConfig CommandConfig, run RunFunc) error {
	outputHandler := NewOutputHandler(logger)
	outputHandler.stdout = w
	return runPipelineCommand(ctx, outputHandler, cmdConfig, run)
}

func runPipelineCommand(ctx context.Context, outputHandler *OutputHandler, cmdConfig CommandConfig, run RunFunc) error {
	summary, err := run(ctx)
	if err != nil {
		return err
	}

	if err := outputHandler.HandleOutput(summary, cmdConfig); err != nil {
		return err
	}

	if summary.Failed() {
		failed := make([]string, 0, len(summary.Stages))
		for _, st := range summary.Stages {
			if st.Status == types.StatusFailed {
				failed = append(failed, st.Stage)
			}
		}
		return errors.NewInternalError("STAGE_FAILED", "pipeline stage failed", firstStageError(summary)).
			WithContext("run_id", summary.RunID).
			WithContext("stages", failed)
	}
	return nil
}

func firstStageError(summary types.RunSummary) error {
	for _, st := range summary.Stages {
		if st.Status == types.StatusFailed && st.Err != nil {
			return st.Err
		}
	}
	return nil
}
