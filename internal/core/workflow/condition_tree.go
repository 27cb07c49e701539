package workflow

import "context"

// ConditionTree is an ordered arena of conditions plus an index from group key
// to member positions. Groups keep the order in which they first appear.
type ConditionTree struct {
	conditions []Condition
	groups     []conditionGroup
}

type conditionGroup struct {
	key     string
	members []int
}

// NewConditionTree orders conditions by position and partitions them by group.
// Conditions without a group key share a single implicit group.
func NewConditionTree(conditions []Condition) *ConditionTree {
	t := &ConditionTree{conditions: orderConditions(conditions)}
	index := make(map[string]int)
	for i, c := range t.conditions {
		g, ok := index[c.Group]
		if !ok {
			g = len(t.groups)
			index[c.Group] = g
			t.groups = append(t.groups, conditionGroup{key: c.Group})
		}
		t.groups[g].members = append(t.groups[g].members, i)
	}
	return t
}

// Groups returns the conditions of each group in evaluation order
func (t *ConditionTree) Groups() [][]Condition {
	out := make([][]Condition, len(t.groups))
	for i, g := range t.groups {
		for _, m := range g.members {
			out[i] = append(out[i], t.conditions[m])
		}
	}
	return out
}

// Len returns the number of conditions in the tree
func (t *ConditionTree) Len() int {
	return len(t.conditions)
}

// Evaluate folds the tree into one verdict. Every condition is evaluated.
// Inside a group results are joined left to right with each condition's
// logical operator; groups are joined with the operator of the last condition
// of the preceding group. An empty tree is true.
func (t *ConditionTree) Evaluate(ctx context.Context, evaluator *ConditionEvaluator, event *DomainEvent) bool {
	if len(t.conditions) == 0 {
		return true
	}

	results := make([]bool, len(t.conditions))
	for i, c := range t.conditions {
		results[i] = evaluator.Evaluate(ctx, c, event)
	}

	var verdict bool
	for gi, g := range t.groups {
		groupResult := results[g.members[0]]
		for k := 1; k < len(g.members); k++ {
			joiner := t.conditions[g.members[k-1]].LogicalOperator
			groupResult = combine(groupResult, joiner, results[g.members[k]])
		}

		if gi == 0 {
			verdict = groupResult
			continue
		}
		prev := t.groups[gi-1]
		joiner := t.conditions[prev.members[len(prev.members)-1]].LogicalOperator
		verdict = combine(verdict, joiner, groupResult)
	}
	return verdict
}

// EvaluateAll builds a tree from conditions and evaluates it
func (e *ConditionEvaluator) EvaluateAll(ctx context.Context, conditions []Condition, event *DomainEvent) bool {
	return NewConditionTree(conditions).Evaluate(ctx, e, event)
}

func combine(left bool, op LogicalOperator, right bool) bool {
	if op == LogicalOr {
		return left || right
	}
	return left && right
}
