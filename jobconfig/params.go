package jobconfig

import (
	"maps"
	"slices"
	"strings"
	"time"
)

// Parameter keys understood by the job execution side. Matched by exact name.
const (
	ParamTimestamp         = "timestamp"
	ParamPath              = "path"
	ParamExcludePaths      = "excludePaths"
	ParamWorkflowConfigIDs = "workflowConfigIds"
	ParamScheme            = "scheme"
	ParamHost              = "host"
	ParamPort              = "port"
	ParamServerUsername    = "serverUsername"
	ParamServerPassword    = "serverPassword"
	ParamTransactionID     = "transactionID"
	ParamClientUsername    = "clientUsername"
	ParamContentAfterDate  = "contentAfterDate"
	ParamDeleteBeforeWrite = "deleteBeforeWrite"
	ParamPathDeltaContent  = "pathDeltaContent"
	ParamBatchSize         = "batchSize"
)

// Delimiters for the joined list parameters. Neither may appear inside an item.
const (
	ExcludePathsDelimiter      = "*"
	WorkflowConfigIDsDelimiter = "|"
)

// ContentAfterDateLayout is the ISO-8601 layout of the contentAfterDate parameter.
const ContentAfterDateLayout = "2006-01-02T15:04:05.000Z07:00"

// Parameters is an immutable set of job parameters.
type Parameters struct {
	m map[string]string
}

// NewParameters copies m into a new Parameters value.
func NewParameters(m map[string]string) Parameters {
	return Parameters{m: maps.Clone(m)}
}

// Get returns the value for key, or "" when absent.
func (p Parameters) Get(key string) string {
	return p.m[key]
}

// Lookup returns the value for key and whether it was present.
func (p Parameters) Lookup(key string) (string, bool) {
	v, ok := p.m[key]
	return v, ok
}

// Len returns the number of parameters.
func (p Parameters) Len() int {
	return len(p.m)
}

// Keys returns the parameter names in sorted order.
func (p Parameters) Keys() []string {
	return slices.Sorted(maps.Keys(p.m))
}

// Map returns a copy of the underlying mapping.
func (p Parameters) Map() map[string]string {
	return maps.Clone(p.m)
}

// SplitExcludePaths parses the excludePaths parameter.
func SplitExcludePaths(v string) []string {
	return splitNonEmpty(v, ExcludePathsDelimiter)
}

// SplitWorkflowConfigIDs parses the workflowConfigIds parameter.
func SplitWorkflowConfigIDs(v string) []string {
	return splitNonEmpty(v, WorkflowConfigIDsDelimiter)
}

// ParseContentAfterDate parses a contentAfterDate parameter value.
func ParseContentAfterDate(v string) (time.Time, error) {
	return time.Parse(ContentAfterDateLayout, v)
}

func formatContentAfterDate(t time.Time) string {
	return t.UTC().Format(ContentAfterDateLayout)
}

func splitNonEmpty(v, sep string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(v, sep) {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
