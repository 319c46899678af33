package lower

import (
	"fmt"

	"github.com/born-ml/lower/internal/jit"
)

// lowerFunc lowers one node whose operand count has been validated.
type lowerFunc func(tr *translation, node *jit.Node) error

// arity is the fixed or minimum operand count of an operator kind.
type arity struct {
	n       int
	atLeast bool
}

func exactly(n int) arity { return arity{n: n} }

func atLeast(n int) arity { return arity{n: n, atLeast: true} }

func (a arity) accepts(actual int) bool {
	if a.atLeast {
		return actual >= a.n
	}
	return actual == a.n
}

func (a arity) String() string {
	if a.atLeast {
		return fmt.Sprintf(">=%d", a.n)
	}
	return fmt.Sprintf("%d", a.n)
}

type rule struct {
	arity arity
	lower lowerFunc
}

// ruleTable maps operator kinds to their lowering rules. A kind missing from
// the table is unsupported.
type ruleTable map[jit.Kind]rule

func (r ruleTable) register(fn lowerFunc, a arity, kinds ...jit.Kind) {
	for _, k := range kinds {
		if _, dup := r[k]; dup {
			panic(fmt.Sprintf("lowering rule for %s registered twice", k))
		}
		r[k] = rule{arity: a, lower: fn}
	}
}

var rules = newRuleTable()

func newRuleTable() ruleTable {
	r := make(ruleTable)
	r.registerElementwiseRules()
	r.registerLinalgRules()
	r.registerPoolingRules()
	r.registerNormalizationRules()
	r.registerShapeRules()
	r.registerReductionRules()
	r.registerPrimRules()
	return r
}

// RuleInfo describes a supported operator kind.
type RuleInfo struct {
	Kind  jit.Kind
	Arity string
}

// SupportedKinds lists every kind with a lowering rule, in kind order.
func SupportedKinds() []RuleInfo {
	var infos []RuleInfo
	for _, k := range jit.AllKinds() {
		if r, ok := rules[k]; ok {
			infos = append(infos, RuleInfo{Kind: k, Arity: r.arity.String()})
		}
	}
	return infos
}

// Supports reports whether kind has a lowering rule.
func Supports(kind jit.Kind) bool {
	_, ok := rules[kind]
	return ok
}
