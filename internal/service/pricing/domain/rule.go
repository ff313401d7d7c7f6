// internal/service/pricing/domain/rule.go
package domain

// Fact 是规则引擎评估折扣附加规则时可见的事实。
// 行级评估填充行相关字段，单级评估填充订单相关字段。
type Fact struct {
	VariantID  uint    `json:"variant_id"`
	ProductID  uint    `json:"product_id"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	LineTotal  float64 `json:"line_total"`
	ItemCount  int     `json:"item_count"`
	OrderTotal float64 `json:"order_total"`
}

// RuleEngine 评估折扣的 RuleDefinition 表达式。
// 位于领域层，由基础设施层提供具体实现(CEL 适配器)。
type RuleEngine interface {
	Evaluate(ruleDefinition string, fact Fact) (bool, error)
}
