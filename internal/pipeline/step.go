package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/agrimacro/agrimacro/internal/contracts"
)

// Outcome is what a step reports back to the executor
type Outcome struct {
	Status    contracts.StepStatus
	Err       error
	CacheNote string
}

// OK is a successful outcome
func OK() Outcome { return Outcome{Status: contracts.StepOK} }

// Failed is an ERROR outcome
func Failed(err error) Outcome { return Outcome{Status: contracts.StepError, Err: err} }

// Warned is a WARN outcome
func Warned(err error) Outcome { return Outcome{Status: contracts.StepWarn, Err: err} }

// Step is one node of the run graph.
// Deps 는 순서만 결정: 선행 step 이 실패해도 후속 step 은 디스크의 기존 결과로 실행
type Step struct {
	Name string
	Kind contracts.StepKind
	Deps []string
	Run  func(ctx context.Context) Outcome
}

// Order sorts steps topologically (Kahn). Among ready steps the
// declaration order wins, so the result is stable.
func Order(steps []Step) ([]Step, error) {
	index := make(map[string]int, len(steps))
	for i, s := range steps {
		if _, dup := index[s.Name]; dup {
			return nil, fmt.Errorf("duplicate step %q", s.Name)
		}
		index[s.Name] = i
	}

	indegree := make([]int, len(steps))
	dependents := make([][]int, len(steps))
	for i, s := range steps {
		for _, d := range s.Deps {
			j, ok := index[d]
			if !ok {
				return nil, fmt.Errorf("step %q depends on unknown step %q", s.Name, d)
			}
			indegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	done := make([]bool, len(steps))
	out := make([]Step, 0, len(steps))
	for len(out) < len(steps) {
		next := -1
		for i := range steps {
			if !done[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			var stuck []string
			for i, s := range steps {
				if !done[i] {
					stuck = append(stuck, s.Name)
				}
			}
			return nil, fmt.Errorf("dependency cycle among steps: %s", strings.Join(stuck, ", "))
		}

		done[next] = true
		out = append(out, steps[next])
		for _, j := range dependents[next] {
			indegree[j]--
		}
	}
	return out, nil
}

// names returns the step names in order
func names(steps []Step) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.Name
	}
	return out
}
