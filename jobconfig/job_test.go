package jobconfig

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJob_RejectsMissingInputs(t *testing.T) {
	_, err := NewJob(nil, JobFullContent, &fakeLauncher{})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewJob(map[string]string{}, JobFullContent, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewJob(map[string]string{}, "", &fakeLauncher{})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestNewJob_CopiesParameters(t *testing.T) {
	m := map[string]string{ParamPath: "/content/a"}
	job, err := NewJob(m, JobFullContent, &fakeLauncher{})
	require.NoError(t, err)

	m[ParamPath] = "/content/b"
	assert.Equal(t, "/content/a", job.Parameters().Get(ParamPath))

	out := job.Parameters().Map()
	out[ParamPath] = "/content/c"
	assert.Equal(t, "/content/a", job.Parameters().Get(ParamPath))
}

func TestJob_Start(t *testing.T) {
	launcher := &fakeLauncher{id: 17}
	job, err := NewJob(map[string]string{ParamPath: "/content/a"}, JobDeltaContent, launcher)
	require.NoError(t, err)

	id, err := job.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(17), id)
	assert.Equal(t, JobDeltaContent, launcher.jobName)
	assert.Equal(t, "/content/a", launcher.params.Get(ParamPath))
}

func TestJob_StartError(t *testing.T) {
	boom := errors.New("queue full")
	job, err := NewJob(map[string]string{ParamPath: "/content/a"}, JobFullContent, &fakeLauncher{err: boom})
	require.NoError(t, err)

	_, err = job.Start(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestJob_IsDeltaRequiresContentAfterDate(t *testing.T) {
	job, err := NewJob(map[string]string{}, JobDeltaContent, &fakeLauncher{})
	require.NoError(t, err)
	assert.False(t, job.IsDelta())
}

func TestParameters_Accessors(t *testing.T) {
	p := NewParameters(map[string]string{ParamPath: "/a", ParamBatchSize: "5"})

	assert.Equal(t, 2, p.Len())
	assert.Equal(t, []string{ParamBatchSize, ParamPath}, p.Keys())
	assert.Equal(t, "", p.Get(ParamHost))

	_, ok := p.Lookup(ParamHost)
	assert.False(t, ok)
}

func TestSplitJoinedLists(t *testing.T) {
	assert.Equal(t, []string{"/a/b", "/a/c"}, SplitExcludePaths("/a/b*/a/c"))
	assert.Nil(t, SplitExcludePaths(""))
	assert.Equal(t, []string{"one", "two"}, SplitWorkflowConfigIDs("one|two"))
	assert.Nil(t, SplitWorkflowConfigIDs(""))
}
