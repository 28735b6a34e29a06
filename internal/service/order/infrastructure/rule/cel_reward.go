// Package rule 用 CEL 表达式计算积分，表达式来自配置，改规则不需要重新发版。
package rule

import (
	"context"

	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"

	"ordercore/internal/service/order/domain"
)

// CELRewardPolicy 实现了 port.RewardPolicy。
// 表达式可使用 total_amount (double)、item_count (int) 和 payment_method (string)，结果必须是 int。
type CELRewardPolicy struct {
	expr    string
	program cel.Program
}

func NewCELRewardPolicy(expr string) (*CELRewardPolicy, error) {
	env, err := cel.NewEnv(
		cel.Variable("total_amount", cel.DoubleType),
		cel.Variable("item_count", cel.IntType),
		cel.Variable("payment_method", cel.StringType),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create cel env")
	}
	ast, iss := env.Compile(expr)
	if iss.Err() != nil {
		return nil, errors.Wrapf(iss.Err(), "compile reward expression %q", expr)
	}
	if !ast.OutputType().IsExactType(cel.IntType) {
		return nil, errors.Errorf("reward expression %q must evaluate to int, got %s", expr, ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, errors.Wrap(err, "build reward program")
	}
	return &CELRewardPolicy{expr: expr, program: prg}, nil
}

// Points 负数结果按 0 处理。
func (p *CELRewardPolicy) Points(ctx context.Context, order *domain.Order) (int64, error) {
	total, _ := order.TotalAmount.Float64()
	items := int64(0)
	for _, it := range order.Items {
		items += int64(it.Quantity)
	}
	out, _, err := p.program.ContextEval(ctx, map[string]any{
		"total_amount":   total,
		"item_count":     items,
		"payment_method": order.PaymentMethod,
	})
	if err != nil {
		return 0, errors.Wrapf(err, "evaluate reward expression for order %s", order.OrderNumber)
	}
	points, ok := out.Value().(int64)
	if !ok {
		return 0, errors.Errorf("reward expression returned %T", out.Value())
	}
	if points < 0 {
		return 0, nil
	}
	return points, nil
}
