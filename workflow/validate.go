package workflow

import "fmt"

// ValidationReport is the result of validating a DAG before execution:
// structural cycle check, dependency resolution, and orphan-node
// warnings. Orphans never invalidate the workflow.
type ValidationReport struct {
	Valid          bool
	CycleDetected  bool
	MissingDeps    []string
	Orphans        []TaskID
	ExecutionOrder []TaskID
}

// Validate runs the pre-execution checks the executor requires before
// it will run a DAG: every declared dependency must resolve to a
// known task, and the graph must be acyclic. Orphan nodes are
// reported but do not invalidate the workflow.
func Validate(d *DAG) ValidationReport {
	report := ValidationReport{Valid: true}

	for _, id := range d.order {
		for _, dep := range d.nodes[id].dependsOn {
			if _, ok := d.nodes[dep]; !ok {
				report.MissingDeps = append(report.MissingDeps, fmt.Sprintf("%s depends on unknown task %s", id, dep))
				report.Valid = false
			}
		}
	}

	if len(report.MissingDeps) == 0 {
		if d.hasCycle() {
			report.CycleDetected = true
			report.Valid = false
		}
	}

	report.Orphans = d.Orphans()

	if report.Valid {
		order, err := d.ExecutionOrder()
		if err == nil {
			report.ExecutionOrder = order
		}
	}

	return report
}
