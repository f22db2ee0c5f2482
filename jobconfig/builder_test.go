package jobconfig

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franksops/grabsync/store"
)

type fakeLauncher struct {
	jobName string
	params  Parameters
	id      int64
	err     error
}

func (f *fakeLauncher) Launch(_ context.Context, jobName string, params Parameters) (int64, error) {
	f.jobName = jobName
	f.params = params
	return f.id, f.err
}

var fixedNow = time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

func build(t *testing.T, pc PathConfiguration, history []store.ExecutionRecord, opts ...Option) (*Job, error) {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(&fakeLauncher{}, opts...).
		Server("https", "source.example", "9000").
		Credentials("client", "server-user", "server-pass").
		History(history).
		Configuration(pc, 42).
		Build()
}

func TestBuild_FullTransferParameters(t *testing.T) {
	pc := PathConfiguration{
		Path:              "/content/a",
		ExcludePaths:      []string{"/content/a/tmp", "/content/a/cache"},
		WorkflowConfigIDs: []string{"/etc/workflow/one", "/etc/workflow/two"},
		DeleteBeforeWrite: true,
		BatchSize:         100,
	}

	job, err := build(t, pc, nil)
	require.NoError(t, err)

	assert.Equal(t, JobFullContent, job.Name())
	assert.False(t, job.IsDelta())

	want := map[string]string{
		ParamTimestamp:         "1792229400000",
		ParamPath:              "/content/a",
		ParamScheme:            "https",
		ParamHost:              "source.example",
		ParamPort:              "9000",
		ParamClientUsername:    "client",
		ParamServerUsername:    "server-user",
		ParamServerPassword:    "server-pass",
		ParamTransactionID:     "42",
		ParamExcludePaths:      "/content/a/tmp*/content/a/cache",
		ParamWorkflowConfigIDs: "/etc/workflow/one|/etc/workflow/two",
		ParamDeleteBeforeWrite: "true",
		ParamPathDeltaContent:  "false",
		ParamBatchSize:         "100",
	}
	assert.Equal(t, want, job.Parameters().Map())
}

func TestBuild_NoDeltaNeverConsultsHistory(t *testing.T) {
	history := []store.ExecutionRecord{
		{ID: 1, Path: "/content/a", Status: store.StatusCompleted, EndTime: fixedNow.Add(-time.Hour)},
		// Malformed, but must not be looked at.
		{ID: 2, Path: "/content/a", Status: store.StatusCompleted},
	}

	job, err := build(t, PathConfiguration{Path: "/content/a", BatchSize: 10}, history)
	require.NoError(t, err)

	_, ok := job.Parameters().Lookup(ParamContentAfterDate)
	assert.False(t, ok)
	assert.Equal(t, JobFullContent, job.Name())
}

func TestBuild_DeltaWithCompletedRun(t *testing.T) {
	end := time.Date(2026, 10, 16, 22, 15, 30, 123_000_000, time.UTC)
	history := []store.ExecutionRecord{
		{ID: 1, Path: "/content/a", Status: store.StatusCompleted, EndTime: end},
	}

	job, err := build(t, PathConfiguration{Path: "/content/a", PathDeltaContent: true, BatchSize: 50}, history)
	require.NoError(t, err)

	params := job.Parameters()
	assert.Equal(t, JobDeltaContent, job.Name())
	assert.True(t, job.IsDelta())
	assert.Equal(t, "true", params.Get(ParamPathDeltaContent))
	assert.Equal(t, "50", params.Get(ParamBatchSize))
	assert.Equal(t, "2026-10-16T22:15:30.123Z", params.Get(ParamContentAfterDate))

	parsed, err := ParseContentAfterDate(params.Get(ParamContentAfterDate))
	require.NoError(t, err)
	assert.True(t, parsed.Equal(end))
}

func TestBuild_DeltaPicksLatestCompletedForExactPath(t *testing.T) {
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	history := []store.ExecutionRecord{
		{ID: 5, Path: "/content/a", Status: store.StatusCompleted, EndTime: base.Add(2 * time.Hour)},
		{ID: 6, Path: "/content/a", Status: store.StatusFailed, EndTime: base.Add(5 * time.Hour)},
		{ID: 7, Path: "/content/a/child", Status: store.StatusCompleted, EndTime: base.Add(6 * time.Hour)},
		{ID: 3, Path: "/content/a", Status: store.StatusCompleted, EndTime: base.Add(4 * time.Hour)},
		{ID: 8, Path: "/content/a", Status: store.StatusRunning},
	}

	job, err := build(t, PathConfiguration{Path: "/content/a", PathDeltaContent: true, BatchSize: 1}, history)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-01T04:00:00.000Z", job.Parameters().Get(ParamContentAfterDate))
}

func TestBuild_DeltaWithoutPriorRunFallsBackToFull(t *testing.T) {
	history := []store.ExecutionRecord{
		{ID: 1, Path: "/content/b", Status: store.StatusCompleted, EndTime: fixedNow},
		{ID: 2, Path: "/content/a", Status: store.StatusFailed, EndTime: fixedNow},
	}
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	pc := PathConfiguration{Path: "/content/a", PathDeltaContent: true, BatchSize: 50}
	delta, err := build(t, pc, history, WithLogger(logger))
	require.NoError(t, err)

	assert.Equal(t, JobFullContent, delta.Name())
	_, ok := delta.Parameters().Lookup(ParamContentAfterDate)
	assert.False(t, ok)
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "no prior successful run for this path")

	// Otherwise identical to a full transfer of the same configuration,
	// apart from the requested flag itself.
	pc.PathDeltaContent = false
	full, err := build(t, pc, history)
	require.NoError(t, err)

	want := full.Parameters().Map()
	want[ParamPathDeltaContent] = "true"
	assert.Equal(t, want, delta.Parameters().Map())
}

func TestBuild_DeltaWithMalformedHistory(t *testing.T) {
	history := []store.ExecutionRecord{
		{ID: 9, Path: "/content/a", Status: store.StatusCompleted},
	}

	_, err := build(t, PathConfiguration{Path: "/content/a", PathDeltaContent: true, BatchSize: 50}, history)
	assert.ErrorIs(t, err, ErrMalformedHistory)
}

func TestBuild_InvalidConfiguration(t *testing.T) {
	tests := []struct {
		name string
		pc   PathConfiguration
	}{
		{name: "empty path", pc: PathConfiguration{BatchSize: 10}},
		{name: "relative path", pc: PathConfiguration{Path: "content/a", BatchSize: 10}},
		{name: "zero batch size", pc: PathConfiguration{Path: "/content/a"}},
		{name: "negative batch size", pc: PathConfiguration{Path: "/content/a", BatchSize: -1}},
		{
			name: "exclude path with delimiter",
			pc:   PathConfiguration{Path: "/content/a", ExcludePaths: []string{"/content/a/*"}, BatchSize: 10},
		},
		{
			name: "workflow id with delimiter",
			pc:   PathConfiguration{Path: "/content/a", WorkflowConfigIDs: []string{"a|b"}, BatchSize: 10},
		},
		{
			name: "empty exclude path",
			pc:   PathConfiguration{Path: "/content/a", ExcludePaths: []string{""}, BatchSize: 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := build(t, tt.pc, nil)
			assert.ErrorIs(t, err, ErrInvalidConfiguration)
		})
	}
}

func TestBuild_HistoryIsCopied(t *testing.T) {
	history := []store.ExecutionRecord{
		{ID: 1, Path: "/content/a", Status: store.StatusCompleted, EndTime: fixedNow},
	}
	stage := New(&fakeLauncher{}).
		Server("https", "h", "1").
		Credentials("c", "u", "p").
		History(history)

	history[0].Status = store.StatusFailed

	job, err := stage.Configuration(PathConfiguration{Path: "/content/a", PathDeltaContent: true, BatchSize: 1}, 1).Build()
	require.NoError(t, err)
	assert.True(t, job.IsDelta())
}

func TestBuild_NilLauncher(t *testing.T) {
	_, err := New(nil).
		Server("https", "h", "1").
		Credentials("c", "u", "p").
		History(nil).
		Configuration(PathConfiguration{Path: "/content/a", BatchSize: 1}, 1).
		Build()
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
