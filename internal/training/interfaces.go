package training

import (
	"context"

	"github.com/manohar-125/ThalAI-App/internal/model"
)

// RunRecorder persists the outcome of a training job.
type RunRecorder interface {
	SaveTrainingRun(ctx context.Context, run *model.TrainingRun) error
}

// Progress receives forest fitting progress. Start is called once with the
// number of trees, Step once per fitted tree (possibly concurrently) and
// Finish when fitting ends.
type Progress interface {
	Start(total int)
	Step()
	Finish()
}
