// Package jobconfig turns a path configuration and the client's execution history
// into a transfer job. Construction goes through a chain of stage types
// (server, credentials, history, configuration) so a Job cannot be built
// before every required input has been supplied.
package jobconfig

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/franksops/grabsync/store"
)

// ErrMalformedHistory is returned when a completed execution has no end time.
var ErrMalformedHistory = errors.New("malformed execution history")

// Option configures the builder chain.
type Option func(*settings)

type settings struct {
	logger *slog.Logger
	now    func() time.Time
}

// WithLogger sets the logger used for build diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		s.logger = l
	}
}

// WithClock overrides the source of the submission timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		s.now = now
	}
}

// ServerStage is the entry point of the builder chain.
type ServerStage struct {
	settings settings
	launcher Launcher
}

// New starts a builder chain for a job that will be submitted to launcher.
func New(launcher Launcher, opts ...Option) ServerStage {
	s := settings{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return ServerStage{settings: s, launcher: launcher}
}

type server struct {
	scheme string
	host   string
	port   string
}

// Server sets the address of the source system.
func (s ServerStage) Server(scheme, host, port string) CredentialsStage {
	return CredentialsStage{
		prev:   s,
		server: server{scheme: scheme, host: host, port: port},
	}
}

// CredentialsStage collects the client and source-system identities.
type CredentialsStage struct {
	prev   ServerStage
	server server
}

type credentials struct {
	clientUsername string
	serverUsername string
	serverPassword string
}

// Credentials sets the client identity and the source-system credentials.
func (c CredentialsStage) Credentials(clientUsername, serverUsername, serverPassword string) HistoryStage {
	return HistoryStage{
		prev: c,
		credentials: credentials{
			clientUsername: clientUsername,
			serverUsername: serverUsername,
			serverPassword: serverPassword,
		},
	}
}

// HistoryStage collects the executions already known for the client.
type HistoryStage struct {
	prev        CredentialsStage
	credentials credentials
}

// History sets the client's prior executions. Only consulted for delta requests.
func (h HistoryStage) History(records []store.ExecutionRecord) ConfigurationStage {
	return ConfigurationStage{
		prev:    h,
		history: slices.Clone(records),
	}
}

// ConfigurationStage collects the path to transfer.
type ConfigurationStage struct {
	prev    HistoryStage
	history []store.ExecutionRecord
}

// Configuration sets the path configuration and transaction id.
func (c ConfigurationStage) Configuration(pc PathConfiguration, transactionID int64) BuildStage {
	return BuildStage{
		prev:              c,
		pathConfig:        pc,
		transactionID:     transactionID,
		deleteBeforeWrite: pc.DeleteBeforeWrite,
		pathDeltaContent:  pc.PathDeltaContent,
	}
}

// BuildStage assembles the final Job.
type BuildStage struct {
	prev              ConfigurationStage
	pathConfig        PathConfiguration
	transactionID     int64
	deleteBeforeWrite bool
	pathDeltaContent  bool
}

// Build validates the collected inputs and returns the job. A delta request
// without a prior completed run for the path degrades to a full transfer.
func (b BuildStage) Build() (*Job, error) {
	if err := b.pathConfig.Validate(); err != nil {
		return nil, err
	}

	cfg := b.prev.prev.prev.prev
	creds := b.prev.prev.credentials
	srv := b.prev.prev.prev.server

	params := map[string]string{
		ParamTimestamp:         strconv.FormatInt(cfg.settings.now().UnixMilli(), 10),
		ParamPath:              b.pathConfig.Path,
		ParamScheme:            srv.scheme,
		ParamHost:              srv.host,
		ParamPort:              srv.port,
		ParamClientUsername:    creds.clientUsername,
		ParamServerUsername:    creds.serverUsername,
		ParamServerPassword:    creds.serverPassword,
		ParamTransactionID:     strconv.FormatInt(b.transactionID, 10),
		ParamExcludePaths:      strings.Join(b.pathConfig.ExcludePaths, ExcludePathsDelimiter),
		ParamWorkflowConfigIDs: strings.Join(b.pathConfig.WorkflowConfigIDs, WorkflowConfigIDsDelimiter),
		ParamDeleteBeforeWrite: strconv.FormatBool(b.deleteBeforeWrite),
		ParamPathDeltaContent:  strconv.FormatBool(b.pathDeltaContent),
		ParamBatchSize:         strconv.Itoa(b.pathConfig.BatchSize),
	}

	if !b.pathDeltaContent {
		return NewJob(params, JobFullContent, cfg.launcher)
	}

	last, ok, err := lastCompleted(b.prev.history, b.pathConfig.Path)
	if err != nil {
		return nil, err
	}
	if !ok {
		cfg.settings.logger.Warn("no prior successful run for this path, running a full transfer",
			"path", b.pathConfig.Path,
			"client", creds.clientUsername,
		)
		return NewJob(params, JobFullContent, cfg.launcher)
	}

	params[ParamContentAfterDate] = formatContentAfterDate(last.EndTime)
	cfg.settings.logger.Debug("resolved delta transfer",
		"path", b.pathConfig.Path,
		"execution_id", last.ID,
		"content_after", params[ParamContentAfterDate],
	)
	return NewJob(params, JobDeltaContent, cfg.launcher)
}

// lastCompleted picks the completed execution of path with the latest end time.
// Equal end times resolve to the higher execution id so the result does not
// depend on the order of records.
func lastCompleted(records []store.ExecutionRecord, path string) (store.ExecutionRecord, bool, error) {
	var (
		best  store.ExecutionRecord
		found bool
	)
	for _, rec := range records {
		if rec.Path != path || rec.Status != store.StatusCompleted {
			continue
		}
		if rec.EndTime.IsZero() {
			return store.ExecutionRecord{}, false, fmt.Errorf(
				"%w: execution %d of %s is completed without an end time", ErrMalformedHistory, rec.ID, path)
		}
		if !found || rec.EndTime.After(best.EndTime) || (rec.EndTime.Equal(best.EndTime) && rec.ID > best.ID) {
			best = rec
			found = true
		}
	}
	return best, found, nil
}
