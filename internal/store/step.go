package store

import "fmt"

// StepAction identifies the kind of a solution step. Each action has its own
// required fields; a step is exactly one variant.
type StepAction string

const (
	// StepExec runs a shell command.
	StepExec StepAction = "exec"

	// StepPatch applies a diff to a target file.
	StepPatch StepAction = "patch"

	// StepCreate writes a new file with the given content.
	StepCreate StepAction = "create"

	// StepDelete removes a target file.
	StepDelete StepAction = "delete"

	// StepDescription is a free-form instruction for the agent.
	StepDescription StepAction = "description"
)

// Step is one action in a solution's fix recipe.
//
// Only the fields belonging to the step's action may be set; Validate enforces
// the per-variant requirements before a step is ever persisted.
type Step struct {
	Action      StepAction `json:"action"`
	Target      string     `json:"target,omitempty"`
	Command     string     `json:"command,omitempty"`
	Diff        string     `json:"diff,omitempty"`
	Content     string     `json:"content,omitempty"`
	Description string     `json:"description,omitempty"`
}

// ExecStep builds a command step.
func ExecStep(command string) Step {
	return Step{Action: StepExec, Command: command}
}

// PatchStep builds a patch step. Either a diff or a target is required.
func PatchStep(target, diff string) Step {
	return Step{Action: StepPatch, Target: target, Diff: diff}
}

// CreateStep builds a file-creation step.
func CreateStep(target, content string) Step {
	return Step{Action: StepCreate, Target: target, Content: content}
}

// DeleteStep builds a file-deletion step.
func DeleteStep(target string) Step {
	return Step{Action: StepDelete, Target: target}
}

// DescriptionStep builds a free-form instruction step.
func DescriptionStep(text string) Step {
	return Step{Action: StepDescription, Description: text}
}

// Validate checks that the step carries the fields its action requires.
func (s Step) Validate() error {
	switch s.Action {
	case StepExec:
		if s.Command == "" {
			return fmt.Errorf("%w: exec step requires command", ErrInvalidStep)
		}
	case StepPatch:
		if s.Diff == "" && s.Target == "" {
			return fmt.Errorf("%w: patch step requires diff or target", ErrInvalidStep)
		}
	case StepCreate:
		if s.Target == "" || s.Content == "" {
			return fmt.Errorf("%w: create step requires target and content", ErrInvalidStep)
		}
	case StepDelete:
		if s.Target == "" {
			return fmt.Errorf("%w: delete step requires target", ErrInvalidStep)
		}
	case StepDescription:
		if s.Description == "" {
			return fmt.Errorf("%w: description step requires description", ErrInvalidStep)
		}
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidStep, s.Action)
	}
	return nil
}

// ValidateSteps validates a whole recipe, reporting the first offending step.
func ValidateSteps(steps []Step) error {
	if len(steps) == 0 {
		return fmt.Errorf("%w: at least one step required", ErrInvalidStep)
	}
	for i, s := range steps {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	return nil
}
