package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Step ops.
const (
	OpNew            = "new"
	OpSet            = "set"
	OpCommit         = "commit"
	OpDeregister     = "deregister"
	OpRevert         = "revert"
	OpUndo           = "undo"
	OpRedo           = "redo"
	OpBegin          = "begin"
	OpEnd            = "end"
	OpDeleteMutation = "delete_mutation"
	OpReload         = "reload"
	OpExpect         = "expect"
)

// Entity types a scenario can create.
const (
	TypeNote    = "note"
	TypeCounter = "counter"
)

// Scenario is a scripted run against a fresh History.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config overrides the runner's base settings.
	Config *ScenarioConfig `yaml:"config,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`
}

// ScenarioConfig holds per-scenario store settings. Unset fields keep the
// runner's base configuration.
type ScenarioConfig struct {
	MaxSlots                 *int  `yaml:"max_slots,omitempty"`
	MaxMutations             *int  `yaml:"max_mutations,omitempty"`
	DeleteOutOfScopeVersions *bool `yaml:"delete_out_of_scope_versions,omitempty"`
}

// Step is one operation.
type Step struct {
	Op string `yaml:"op"`

	// Target names the entity the op applies to.
	Target string `yaml:"target,omitempty"`

	// Type selects the entity type for new. Default: note.
	Type string `yaml:"type,omitempty"`

	// Value is the note title or counter value for new and set.
	Value any `yaml:"value,omitempty"`

	// Index is the log position for delete_mutation.
	Index *int `yaml:"index,omitempty"`

	// Count repeats undo and redo. Default: 1.
	Count int `yaml:"count,omitempty"`

	// Returns is the expected result of undo and redo.
	Returns *bool `yaml:"returns,omitempty"`

	// Error is the expected error code; the step must fail with it.
	Error string `yaml:"error,omitempty"`

	// Expect holds the checks of an expect step.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect lists checks against the store after a step. Target-specific
// checks (value, id, in_scope, versions) need the step's target.
type Expect struct {
	Value           any   `yaml:"value,omitempty"`
	ID              *int  `yaml:"id,omitempty"`
	InScope         *bool `yaml:"in_scope,omitempty"`
	Versions        *int  `yaml:"versions,omitempty"`
	Cursor          *int  `yaml:"cursor,omitempty"`
	MutationCount   *int  `yaml:"mutation_count,omitempty"`
	SlotCount       *int  `yaml:"slot_count,omitempty"`
	EntitiesInScope *int  `yaml:"entities_in_scope,omitempty"`
	OpenGroups      *int  `yaml:"open_groups,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), fails the schema, or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, path)
}

// ParseScenario parses scenario YAML. filename is used in error messages.
func ParseScenario(data []byte, filename string) (*Scenario, error) {
	// Strict decoding catches typos like "step:" vs "steps:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateSchema(data, filename); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks the op-specific requirements the schema leaves
// open.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	declared := make(map[string]string)
	for i, step := range s.Steps {
		switch step.Op {
		case OpNew:
			if step.Target == "" {
				return fmt.Errorf("steps[%d]: target is required for new", i)
			}
			if _, dup := declared[step.Target]; dup {
				return fmt.Errorf("steps[%d]: %q is already declared", i, step.Target)
			}
			typ := step.Type
			if typ == "" {
				typ = TypeNote
			}
			declared[step.Target] = typ
			if err := checkValue(i, typ, step.Value); err != nil {
				return err
			}
		case OpSet, OpCommit, OpDeregister, OpRevert:
			if step.Target == "" {
				return fmt.Errorf("steps[%d]: target is required for %s", i, step.Op)
			}
			typ, ok := declared[step.Target]
			if !ok {
				return fmt.Errorf("steps[%d]: %q is not declared by a new step", i, step.Target)
			}
			if step.Op == OpSet {
				if step.Value == nil {
					return fmt.Errorf("steps[%d]: value is required for set", i)
				}
				if err := checkValue(i, typ, step.Value); err != nil {
					return err
				}
			}
		case OpDeleteMutation:
			if step.Index == nil {
				return fmt.Errorf("steps[%d]: index is required for delete_mutation", i)
			}
		case OpExpect:
			if step.Expect == nil {
				return fmt.Errorf("steps[%d]: expect is required for expect", i)
			}
			e := step.Expect
			needsTarget := e.Value != nil || e.ID != nil || e.InScope != nil || e.Versions != nil
			if needsTarget && step.Target == "" {
				return fmt.Errorf("steps[%d]: target is required for value, id, in_scope and versions checks", i)
			}
			if _, ok := declared[step.Target]; step.Target != "" && !ok {
				return fmt.Errorf("steps[%d]: %q is not declared by a new step", i, step.Target)
			}
		}
		if step.Returns != nil && step.Op != OpUndo && step.Op != OpRedo {
			return fmt.Errorf("steps[%d]: returns only applies to undo and redo", i)
		}
		if step.Expect != nil && step.Op != OpExpect {
			return fmt.Errorf("steps[%d]: expect only applies to expect steps", i)
		}
	}
	return nil
}

func checkValue(index int, typ string, value any) error {
	switch typ {
	case TypeNote:
		return nil
	case TypeCounter:
		if value == nil {
			return nil
		}
		if _, ok := value.(int); !ok {
			return fmt.Errorf("steps[%d]: counter value must be an integer, got %v", index, value)
		}
		return nil
	default:
		return fmt.Errorf("steps[%d]: unknown type %q", index, typ)
	}
}
