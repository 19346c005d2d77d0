package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quant-king299/stratconv/internal/converter/generator"
	"github.com/quant-king299/stratconv/internal/syntax"
)

// applyRule parses src as a call, applies rule like the rewriter does and
// returns the rendered result with the reported and observed arity change.
func applyRule(t *testing.T, rule CallRule, src string) (string, int, int) {
	t.Helper()
	e, err := parseExpr(src)
	require.NoError(t, err)
	call, ok := e.(*syntax.Call)
	require.True(t, ok, "%s is not a call", src)

	before := len(call.Args)
	delta := rule.Apply(call)
	call.Func = syntax.DottedExpr(rule.Target, call.Line())
	return generator.Expr(call), delta, len(call.Args) - before
}

func TestCallRuleApply(t *testing.T) {
	factor := factorVariant(nil).Mapping["MACD"]
	snapshot := simulationVariant(nil).Mapping["get_current_data"]

	tests := []struct {
		name     string
		rule     CallRule
		source   string
		expected string
		delta    int
	}{
		{
			name:     "History with positional security",
			rule:     historyRule(),
			source:   "attribute_history(stock, 20, '1d', ['close'], skip_paused=True)",
			expected: "get_history(20, '1d', ['close'], security_list=stock)",
			delta:    -1,
		},
		{
			name:     "History with renamed keywords",
			rule:     historyRule(),
			source:   "attribute_history(stock, 20, unit='1d', fields=['close'], df=False)",
			expected: "get_history(20, frequency='1d', field=['close'], security_list=stock)",
			delta:    -1,
		},
		{
			name:     "Keyword lands before double star",
			rule:     historyRule(),
			source:   "get_bars(s, 5, **opts)",
			expected: "get_history(5, security_list=s, **opts)",
			delta:    0,
		},
		{
			name:     "All securities drops types",
			rule:     dataMapping()["get_all_securities"],
			source:   "get_all_securities(['stock'], date)",
			expected: "get_Ashares(date)",
			delta:    -1,
		},
		{
			name:     "Daily schedule gains context",
			rule:     tradingMapping()["run_daily"],
			source:   "run_daily(market_open, time='open', reference_security='000300.XSHG')",
			expected: "run_daily(context, market_open, time='09:30')",
			delta:    0,
		},
		{
			name:     "Daily schedule already threaded",
			rule:     tradingMapping()["run_daily"],
			source:   `run_daily(context, f, time="close")`,
			expected: `run_daily(context, f, time="14:55")`,
			delta:    0,
		},
		{
			name:     "Unknown schedule time kept",
			rule:     tradingMapping()["run_daily"],
			source:   "run_daily(context, f, time='10:00')",
			expected: "run_daily(context, f, time='10:00')",
			delta:    0,
		},
		{
			name:     "Slippage unwrapped",
			rule:     tradingMapping()["set_slippage"],
			source:   "set_slippage(FixedSlippage(0.02))",
			expected: "set_fixed_slippage(0.02)",
			delta:    0,
		},
		{
			name:     "Snapshot lookback",
			rule:     snapshot,
			source:   "get_current_data()",
			expected: "lookback_snapshot(context)",
			delta:    1,
		},
		{
			name:     "MACD keywords",
			rule:     factor,
			source:   "MACD(stocks, check_date=d, SHORT=12, LONG=26, MID=9)",
			expected: "get_macd_value(context, stocks)",
			delta:    -3,
		},
		{
			name:     "MACD positional date",
			rule:     factor,
			source:   "MACD(g.stock, '2020-01-01')",
			expected: "get_macd_value(context, g.stock)",
			delta:    0,
		},
		{
			name:     "Identity",
			rule:     CallRule{Target: "order"},
			source:   "order(s, 100)",
			expected: "order(s, 100)",
			delta:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reported, observed := applyRule(t, tt.rule, tt.source)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.delta, reported)
			assert.Equal(t, observed, reported, "reported arity change must match the argument list")
		})
	}
}

func TestArgFixNoops(t *testing.T) {
	tests := []struct {
		name   string
		fix    ArgFix
		source string
	}{
		{"Drop missing keyword", DropKeyword{Name: "df"}, "f(a)"},
		{"Drop positional out of range", DropPositional{Index: 2}, "f(a, b=1)"},
		{"Insert past end", InsertPositional{Index: 3, Expr: "context"}, "f(a)"},
		{"Move existing keyword", PositionalToKeyword{Index: 0, Keyword: "x"}, "f(a, x=1)"},
		{"Move starred", PositionalToKeyword{Index: 0, Keyword: "x"}, "f(*a)"},
		{"Rename onto existing", RenameKeyword{From: "a", To: "b"}, "f(a=1, b=2)"},
		{"Unwrap other callee", UnwrapPositional{Index: 0, Callee: "FixedSlippage"}, "f(PriceSlippage(0.1))"},
		{"Map non-string", MapKeywordValue{Name: "time", Values: scheduleTimes}, "f(time=t)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := parseExpr(tt.source)
			require.NoError(t, err)
			call := e.(*syntax.Call)
			assert.Equal(t, 0, tt.fix.Apply(call))
			assert.Equal(t, tt.source, generator.Expr(call))
		})
	}
}

func TestCallRuleString(t *testing.T) {
	assert.Equal(t, "order", CallRule{Target: "order"}.String())
	assert.Equal(t, "get_Ashares (drop types=; drop arg 0)", dataMapping()["get_all_securities"].String())
}
