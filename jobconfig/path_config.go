package jobconfig

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidConfiguration is returned when a PathConfiguration fails validation.
var ErrInvalidConfiguration = errors.New("invalid path configuration")

var validate = validator.New(validator.WithRequiredStructEnabled())

// PathConfiguration describes one content subtree to transfer.
type PathConfiguration struct {
	Path string `yaml:"path" validate:"required,startswith=/,excludesall=*0x7C"`

	// ExcludePaths are removed from the subtree rooted at Path.
	ExcludePaths []string `yaml:"excludePaths" validate:"dive,required,excludesall=*0x7C"`

	// WorkflowConfigIDs are triggered in order once the transfer completes.
	WorkflowConfigIDs []string `yaml:"workflowConfigIds" validate:"dive,required,excludesall=*0x7C"`

	DeleteBeforeWrite bool `yaml:"deleteBeforeWrite"`
	PathDeltaContent  bool `yaml:"pathDeltaContent"`

	// BatchSize is the commit and checkpoint granularity, in items.
	BatchSize int `yaml:"batchSize" validate:"gt=0"`
}

// Validate checks the invariants of c.
func (c PathConfiguration) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidConfiguration, c.Path, err)
	}
	return nil
}
