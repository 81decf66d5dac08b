package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseYAML_Basic(t *testing.T) {
	doc, err := ParseYAML([]byte(`
name: "Test Workflow"
tasks:
  - id: "task1"
    name: "First Task"
    type: GRAPH_QUERY
    params:
      query_type: "find_symbol"
      target: "my_function"
`))
	require.NoError(t, err)
	assert.Equal(t, "Test Workflow", doc.Name)
	require.Len(t, doc.Tasks, 1)
	assert.Equal(t, GraphQuery, doc.Tasks[0].Type)
}

func TestParseYAML_WithDependencies(t *testing.T) {
	doc, err := ParseYAML([]byte(`
name: "Dependent Workflow"
tasks:
  - id: "find"
    name: "Find Symbol"
    type: GRAPH_QUERY
    params:
      query_type: "find_symbol"
      target: "process_data"
  - id: "analyze"
    name: "Analyze Impact"
    type: GRAPH_QUERY
    depends_on: ["find"]
    params:
      query_type: "impact"
      target: "process_data"
`))
	require.NoError(t, err)
	require.Len(t, doc.Tasks, 2)
	assert.Equal(t, []string{"find"}, doc.Tasks[1].DependsOn)
}

func TestParseYAML_OptionalFields(t *testing.T) {
	doc, err := ParseYAML([]byte(`
name: "Simple Workflow"
version: "1.0"
description: "A test workflow"
tasks:
  - id: "task1"
    name: "Task 1"
    type: AGENT_LOOP
    params:
      query: "Find all functions"
`))
	require.NoError(t, err)
	assert.Equal(t, "1.0", doc.Version)
	assert.Equal(t, "A test workflow", doc.Description)
}

func TestParseYAML_MissingNameIsRejected(t *testing.T) {
	_, err := ParseYAML([]byte(`
tasks:
  - id: "task1"
    name: "Task 1"
    type: GRAPH_QUERY
    params:
      query_type: "find_symbol"
      target: "x"
`))
	require.Error(t, err)
}

func TestValidate_RejectsUnknownType(t *testing.T) {
	doc, err := ParseYAML([]byte(`
name: "Bad Workflow"
tasks:
  - id: "task1"
    name: "Task 1"
    type: NOT_A_TYPE
    params: {}
`))
	require.NoError(t, err)
	assert.Error(t, doc.Validate())
}

func TestValidate_RejectsMissingRequiredParam(t *testing.T) {
	doc, err := ParseYAML([]byte(`
name: "Bad Workflow"
tasks:
  - id: "task1"
    name: "Task 1"
    type: SHELL
    params: {}
`))
	require.NoError(t, err)
	assert.Error(t, doc.Validate())
}

func TestToDAG_WiresDependenciesFromYAML(t *testing.T) {
	doc, err := ParseYAML([]byte(`
name: "Wired Workflow"
tasks:
  - id: "find"
    name: "Find"
    type: GRAPH_QUERY
    params:
      query_type: "find_symbol"
      target: "x"
  - id: "analyze"
    name: "Analyze"
    type: GRAPH_QUERY
    depends_on: ["find"]
    params:
      query_type: "impact"
      target: "x"
`))
	require.NoError(t, err)

	dag, err := doc.ToDAG(nil)
	require.NoError(t, err)

	order, err := dag.ExecutionOrder()
	require.NoError(t, err)
	assert.Equal(t, []TaskID{"find", "analyze"}, order)
}

func TestToDAG_UsesRegisteredBuilder(t *testing.T) {
	doc, err := ParseYAML([]byte(`
name: "Wired Workflow"
tasks:
  - id: "find"
    name: "Find"
    type: GRAPH_QUERY
    params:
      query_type: "find_symbol"
      target: "x"
`))
	require.NoError(t, err)

	var built bool
	dag, err := doc.ToDAG(map[TaskKind]TaskBuilder{
		GraphQuery: func(t YAMLTask) (Task, error) {
			built = true
			return noopTask(), nil
		},
	})
	require.NoError(t, err)
	require.NotNil(t, dag)
	assert.True(t, built)
}
