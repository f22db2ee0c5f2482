package jobconfig

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidArgument is returned when a Job is constructed from missing inputs.
var ErrInvalidArgument = errors.New("invalid argument")

// Names of the jobs a Launcher knows how to run.
const (
	JobFullContent  = "clientJob"
	JobDeltaContent = "clientDeltaContentJob"
)

// Launcher submits a job to the execution side and returns its execution id.
// NewJob only rejects an untyped nil Launcher, so a pointer implementation
// must fail its own Launch when the receiver is nil.
type Launcher interface {
	Launch(ctx context.Context, jobName string, params Parameters) (int64, error)
}

// Job is a fully configured transfer job ready for submission.
type Job struct {
	name     string
	params   Parameters
	launcher Launcher
}

// NewJob builds a Job directly. Prefer New for anything but tests and replays.
func NewJob(params map[string]string, jobName string, launcher Launcher) (*Job, error) {
	if params == nil {
		return nil, fmt.Errorf("%w: job parameters must not be nil", ErrInvalidArgument)
	}
	if launcher == nil {
		return nil, fmt.Errorf("%w: launcher must not be nil", ErrInvalidArgument)
	}
	if jobName == "" {
		return nil, fmt.Errorf("%w: job name must not be empty", ErrInvalidArgument)
	}
	return &Job{
		name:     jobName,
		params:   NewParameters(params),
		launcher: launcher,
	}, nil
}

// Name returns the job name the launcher will run.
func (j *Job) Name() string { return j.name }

// Parameters returns the job parameters.
func (j *Job) Parameters() Parameters { return j.params }

// IsDelta reports whether the job only transfers content changed after a prior run.
func (j *Job) IsDelta() bool {
	_, ok := j.params.Lookup(ParamContentAfterDate)
	return j.name == JobDeltaContent && ok
}

// Start submits the job and returns the execution id.
func (j *Job) Start(ctx context.Context) (int64, error) {
	id, err := j.launcher.Launch(ctx, j.name, j.params)
	if err != nil {
		return 0, fmt.Errorf("failed to launch %s for %s: %w", j.name, j.params.Get(ParamPath), err)
	}
	return id, nil
}
