package workflow

import (
	"fmt"
	"os"

	"github.com/oldnordic/forge/reasoning"
	yaml "go.yaml.in/yaml/v2"
)

// TaskKind enumerates the YAML workflow schema's task types.
type TaskKind string

const (
	GraphQuery TaskKind = "GRAPH_QUERY"
	AgentLoop  TaskKind = "AGENT_LOOP"
	Shell      TaskKind = "SHELL"
)

// requiredParams lists the params each task kind cannot do without.
var requiredParams = map[TaskKind][]string{
	GraphQuery: {"query_type", "target"},
	AgentLoop:  {"query"},
	Shell:      {"command"},
}

// YAMLTask is one task entry in a YAML workflow document.
type YAMLTask struct {
	ID        string                 `yaml:"id"`
	Name      string                 `yaml:"name"`
	Type      TaskKind               `yaml:"type"`
	DependsOn []string               `yaml:"depends_on"`
	Params    map[string]interface{} `yaml:"params"`
}

// YAMLWorkflow is the top-level YAML workflow document.
type YAMLWorkflow struct {
	Name        string     `yaml:"name"`
	Version     string     `yaml:"version"`
	Description string     `yaml:"description"`
	Tasks       []YAMLTask `yaml:"tasks"`
}

// ParseYAML unmarshals data into a YAMLWorkflow, without yet building
// a runnable DAG or validating task-specific params.
func ParseYAML(data []byte) (YAMLWorkflow, error) {
	var doc YAMLWorkflow
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return YAMLWorkflow{}, reasoning.Wrap(reasoning.KindValidationFailed, "invalid workflow YAML", err)
	}
	if doc.Name == "" {
		return YAMLWorkflow{}, reasoning.New(reasoning.KindValidationFailed, "workflow schema requires a name")
	}
	return doc, nil
}

// LoadYAMLFile reads and parses a YAML workflow document from path.
func LoadYAMLFile(path string) (YAMLWorkflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return YAMLWorkflow{}, reasoning.Wrap(reasoning.KindStorage, fmt.Sprintf("read workflow file %s", path), err)
	}
	return ParseYAML(data)
}

// Validate checks every task's type is known and every type-specific
// required param is present, returning the first violation found.
func (w YAMLWorkflow) Validate() error {
	for _, t := range w.Tasks {
		required, ok := requiredParams[t.Type]
		if !ok {
			return reasoning.New(reasoning.KindValidationFailed, fmt.Sprintf("task %q has unknown type %q", t.ID, t.Type))
		}
		for _, key := range required {
			if _, present := t.Params[key]; !present {
				return reasoning.New(reasoning.KindValidationFailed, fmt.Sprintf("task %q of type %s is missing required param %q", t.ID, t.Type, key))
			}
		}
	}
	return nil
}

// TaskBuilder constructs a runnable Task for a YAML task entry of a
// given kind. Callers register builders for GRAPH_QUERY/AGENT_LOOP/
// SHELL so ToDAG can wire real task bodies (subprocess execution,
// code-graph queries, LLM calls) instead of the stub in
// defaultTaskBuilder.
type TaskBuilder func(t YAMLTask) (Task, error)

// ToDAG validates w and builds a DAG from its tasks and dependencies,
// using builders to construct each task's runnable body. A kind with
// no registered builder falls back to a stub that fails immediately
// if run, so structurally-valid-but-unwired workflows can still be
// inspected (ExecutionOrder, Validate) without a full task runtime.
func (w YAMLWorkflow) ToDAG(builders map[TaskKind]TaskBuilder) (*DAG, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	dag := NewDAG()
	for _, t := range w.Tasks {
		build, ok := builders[t.Type]
		if !ok {
			build = defaultTaskBuilder
		}
		task, err := build(t)
		if err != nil {
			return nil, reasoning.Wrap(reasoning.KindValidationFailed, fmt.Sprintf("building task %q", t.ID), err)
		}
		dag.AddTask(TaskID(t.ID), t.Name, task)
	}

	for _, t := range w.Tasks {
		for _, dep := range t.DependsOn {
			if err := dag.AddDependency(TaskID(dep), TaskID(t.ID)); err != nil {
				return nil, err
			}
		}
	}

	return dag, nil
}

func defaultTaskBuilder(t YAMLTask) (Task, error) {
	return TaskFunc(func(ctx *TaskContext) error {
		return reasoning.New(reasoning.KindInvalidState, fmt.Sprintf("task %q of type %s has no registered builder", t.ID, t.Type))
	}), nil
}
