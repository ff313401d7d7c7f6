// internal/service/pricing/infrastructure/rule/cel_engine.go
package rule

import (
	"sync"

	"atlas/internal/service/pricing/domain"

	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"
)

// CELRuleEngine 是 domain.RuleEngine 的 CEL 实现。
// 折扣的 RuleDefinition 是一个布尔 CEL 表达式，可引用 Fact 的全部字段，
// 例如 `quantity >= 3 && order_total > 500000.0`。
// 编译结果按表达式缓存，同一条规则只编译一次。
type CELRuleEngine struct {
	env *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program
}

func NewCELRuleEngine() (*CELRuleEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("variant_id", cel.IntType),
		cel.Variable("product_id", cel.IntType),
		cel.Variable("quantity", cel.IntType),
		cel.Variable("unit_price", cel.DoubleType),
		cel.Variable("line_total", cel.DoubleType),
		cel.Variable("item_count", cel.IntType),
		cel.Variable("order_total", cel.DoubleType),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create cel environment")
	}
	return &CELRuleEngine{env: env, programs: make(map[string]cel.Program)}, nil
}

// Evaluate 实现 domain.RuleEngine。
func (e *CELRuleEngine) Evaluate(ruleDefinition string, fact domain.Fact) (bool, error) {
	prg, err := e.program(ruleDefinition)
	if err != nil {
		return false, err
	}

	out, _, err := prg.Eval(map[string]interface{}{
		"variant_id":  int64(fact.VariantID),
		"product_id":  int64(fact.ProductID),
		"quantity":    int64(fact.Quantity),
		"unit_price":  fact.UnitPrice,
		"line_total":  fact.LineTotal,
		"item_count":  int64(fact.ItemCount),
		"order_total": fact.OrderTotal,
	})
	if err != nil {
		return false, errors.Wrap(err, "evaluate rule")
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, errors.Errorf("rule did not evaluate to a boolean: %T", out.Value())
	}
	return result, nil
}

func (e *CELRuleEngine) program(expr string) (cel.Program, error) {
	e.mu.RLock()
	prg, ok := e.programs[expr]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, errors.Wrap(issues.Err(), "compile rule")
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, errors.Wrap(err, "build rule program")
	}

	e.mu.Lock()
	e.programs[expr] = prg
	e.mu.Unlock()
	return prg, nil
}
