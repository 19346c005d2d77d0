package rewriter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quant-king299/stratconv/internal/converter/diag"
	"github.com/quant-king299/stratconv/internal/converter/generator"
	"github.com/quant-king299/stratconv/internal/converter/registry"
	"github.com/quant-king299/stratconv/internal/parser"
	"github.com/quant-king299/stratconv/internal/syntax"
)

func rewrite(t *testing.T, variant, src string) (string, []diag.Diagnostic) {
	t.Helper()
	mod, err := parser.Parse(src)
	require.NoError(t, err)
	v, err := registry.Resolve(variant)
	require.NoError(t, err)

	diags := diag.NewCollector()
	out, err := generator.Generate(Rewrite(mod, v, diags))
	require.NoError(t, err)
	return out, diags.List()
}

type wantDiag struct {
	line int
	sev  diag.Severity
	code diag.Code
}

func summarize(list []diag.Diagnostic) []wantDiag {
	var out []wantDiag
	for _, d := range list {
		out = append(out, wantDiag{d.Line, d.Severity, d.Code})
	}
	return out
}

func TestRewrite(t *testing.T) {
	tests := []struct {
		name     string
		variant  string
		source   string
		expected string
		diags    []wantDiag
	}{
		{
			name:    "Mapped call",
			variant: "generic",
			source: `def initialize(context):
    log.warn('x')
`,
			expected: `def initialize(context):
    log.warning('x')
`,
		},
		{
			name:    "Removed statement",
			variant: "generic",
			source: `def initialize(context):
    set_benchmark('000300.XSHG')
`,
			expected: `def initialize(context):
    # [removed] set_benchmark('000300.XSHG')
    pass
`,
			diags: []wantDiag{{2, diag.Info, diag.RemovedCall}},
		},
		{
			name:    "Removed value",
			variant: "generic",
			source: `def before_trading_start(context):
    x = 1
    df = get_fundamentals(q)
`,
			expected: `def before_trading_start(context):
    x = 1
    df = pd.DataFrame()
`,
			diags: []wantDiag{{3, diag.Warning, diag.PlaceholderSubstituted}},
		},
		{
			name:    "Removed method chain",
			variant: "live",
			source: `def f(context):
    q = query(valuation).filter(valuation.code == s).limit(5)
`,
			expected: `def f(context):
    q = None
`,
			diags: []wantDiag{{2, diag.Warning, diag.PlaceholderSubstituted}},
		},
		{
			name:    "Nested removed calls warn once",
			variant: "live",
			source: `def f(context):
    df = get_fundamentals(query(valuation))
`,
			expected: `def f(context):
    df = pd.DataFrame()
`,
			diags: []wantDiag{{2, diag.Warning, diag.PlaceholderSubstituted}},
		},
		{
			name:    "Snapshot removed",
			variant: "generic",
			source: `def handle_data(context, data):
    cd = get_current_data()
`,
			expected: `def handle_data(context, data):
    cd = {}
`,
			diags: []wantDiag{{2, diag.Warning, diag.PlaceholderSubstituted}},
		},
		{
			name:    "Snapshot kept real-time",
			variant: "live",
			source: `def handle_data(context, data):
    cd = get_current_data()
`,
			expected: `def handle_data(context, data):
    cd = get_snapshot()
`,
		},
		{
			name:    "Snapshot from previous session",
			variant: "simulation",
			source: `def handle_data(context, data):
    cd = get_current_data()
`,
			expected: `def handle_data(context, data):
    cd = lookback_snapshot(context)
`,
		},
		{
			name:    "Weekly schedule flagged",
			variant: "generic",
			source: `def initialize(context):
    run_weekly(weekly_adjustment, 1, time='open')
`,
			expected: `def initialize(context):
    run_weekly(weekly_adjustment, 1, time='open')  # [review] weekly schedules have no target equivalent
`,
			diags: []wantDiag{{2, diag.Blocked, diag.UnsupportedCall}},
		},
		{
			name:    "Schedules collapsed",
			variant: "simulation",
			source: `def initialize(context):
    run_weekly(weekly_adjustment, 1, time='open')
    run_monthly(monthly, monthday=1, time='close', reference_security='000300.XSHG')
`,
			expected: `def initialize(context):
    run_daily(context, weekly_adjustment, time='09:30')
    run_daily(context, monthly, time='14:55')
`,
			diags: []wantDiag{
				{2, diag.Warning, diag.ScheduleCollapsed},
				{3, diag.Warning, diag.ScheduleCollapsed},
			},
		},
		{
			name:    "Global object and security codes",
			variant: "generic",
			source: `def initialize(context):
    g.stocks = ['600000.XSHG', '000001.XSHE']
    log.info(f'pool {g.stocks} of {{g.name}}')
    if hasattr(g, 'n'):
        pass
`,
			expected: `def initialize(context):
    context.stocks = ['600000.SS', '000001.SZ']
    log.info(f'pool {context.stocks} of {{g.name}}')
    if hasattr(context, 'n'):
        pass
`,
		},
		{
			name:    "Context threaded to a fixpoint",
			variant: "generic",
			source: `def initialize(context):
    g.n = 1
    step()


def step():
    helper(2)


def helper(k):
    return g.n + k
`,
			expected: `def initialize(context):
    context.n = 1
    step(context)


def step(context):
    helper(context, 2)


def helper(context, k):
    return context.n + k
`,
			diags: []wantDiag{
				{6, diag.Info, diag.ContextThreaded},
				{10, diag.Info, diag.ContextThreaded},
			},
		},
		{
			name:    "Lifecycle parameters are left to the merger",
			variant: "generic",
			source: `def handle_data(ctx, data):
    g.n = 1
`,
			expected: `def handle_data(ctx, data):
    context.n = 1
`,
		},
		{
			name:    "Source-only imports",
			variant: "generic",
			source: `import jqdata
from jqlib.technical_analysis import *
import pandas as pd, jqfactor
`,
			expected: `import pandas as pd
`,
			diags: []wantDiag{
				{1, diag.Info, diag.ImportRemoved},
				{2, diag.Info, diag.ImportRemoved},
				{3, diag.Info, diag.ImportRemoved},
			},
		},
		{
			name:    "Global declaration",
			variant: "generic",
			source: `def f(context):
    global g, counter
    counter += 1
    global g
`,
			expected: `def f(context):
    global counter
    counter += 1
`,
		},
		{
			name:    "Bare global object references",
			variant: "generic",
			source: `def initialize(context):
    report(g)
    x = g
    d = vars(g)
    log.info(f'{g.n}')
`,
			expected: `def initialize(context):
    report(context)
    x = context
    d = vars(context)
    log.info(f'{context.n}')
`,
		},
		{
			name:    "Locally bound name left alone",
			variant: "generic",
			source: `def f(context):
    g = load()
    return g.close


def h(g):
    return g.x


def k(context):
    def inner():
        return g.n
    for g in items:
        pass
    return inner
`,
			expected: `def f(context):
    g = load()
    return g.close


def h(g):
    return g.x


def k(context):
    def inner():
        return g.n
    for g in items:
        pass
    return inner
`,
		},
		{
			name:    "Global declaration keeps the retarget",
			variant: "generic",
			source: `def f(context):
    global g
    g.n = 1
`,
			expected: `def f(context):
    context.n = 1
`,
		},
		{
			name:    "Nested function closes over context",
			variant: "generic",
			source: `def f(context):
    def inner():
        return g.n
    return inner()
`,
			expected: `def f(context):
    def inner():
        return context.n
    return inner()
`,
		},
		{
			name:    "Class method has no context",
			variant: "generic",
			source: `class Holder:
    def value(self):
        return g.n + len(g.stocks)
`,
			expected: `class Holder:
    def value(self):
        return g.n + len(g.stocks)  # [review] g is not available here; pass context explicitly
`,
			diags: []wantDiag{{3, diag.Warning, diag.GlobalWithoutContext}},
		},
		{
			name:    "Module level has no context",
			variant: "generic",
			source: `N = g.n
log.info(f'{g.n}')
`,
			expected: `N = g.n  # [review] g is not available here; pass context explicitly
log.info(f'{g.n}')  # [review] g is not available here; pass context explicitly
`,
			diags: []wantDiag{
				{1, diag.Warning, diag.GlobalWithoutContext},
				{2, diag.Warning, diag.GlobalWithoutContext},
			},
		},
		{
			name:    "Wrapper keeps the wrapped call",
			variant: "simulation",
			source: `def safe_order_target_value(security, value):
    return order_target_value(security, value)


def trade(context):
    order_target_value(s, 0)
`,
			expected: `def safe_order_target_value(security, value):
    return order_target_value(security, value)


def trade(context):
    safe_order_target_value(s, 0)
`,
		},
		{
			name:    "Factor call",
			variant: "factor-only",
			source: `def f(context):
    v = MACD(g.stock, check_date=d, SHORT=12)
`,
			expected: `def f(context):
    v = get_macd_value(context, context.stock)
`,
		},
		{
			name:    "Realtime data leaves trading calls alone",
			variant: "realtime-data-only",
			source: `def f(context):
    set_benchmark('000300.XSHG')
    h = attribute_history(s, 5, '1d', ['close'])
`,
			expected: `def f(context):
    set_benchmark('000300.SS')
    h = get_history(5, '1d', ['close'], security_list=s)
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, diags := rewrite(t, tt.variant, tt.source)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.diags, summarize(diags))
		})
	}
}

func TestRewriteLeavesInputUntouched(t *testing.T) {
	src := `def initialize(context):
    g.n = get_current_data()
    set_benchmark('000300.XSHG')
    run_weekly(f, 1)


def f():
    return g.n
`
	mod, err := parser.Parse(src)
	require.NoError(t, err)
	before, err := generator.Generate(mod)
	require.NoError(t, err)

	v, err := registry.Resolve("simulation")
	require.NoError(t, err)
	Rewrite(mod, v, diag.NewCollector())

	after, err := generator.Generate(mod)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRewriteConverges(t *testing.T) {
	src := `import jqdata


def initialize(context):
    g.stocks = ['600000.XSHG']
    set_option('use_real_price', True)
    run_weekly(trade, 1, time='open')


def trade(context):
    cd = get_current_data()
    h = attribute_history(g.stocks[0], 5, '1d', ['close'], df=False)
    report()


def report():
    log.info(g.stocks)
`
	for _, variant := range []string{"generic", "simulation", "live", "factor-only", "realtime-data-only"} {
		t.Run(variant, func(t *testing.T) {
			first, diags := rewrite(t, variant, src)
			require.NotEmpty(t, diags)

			second, diags := rewrite(t, variant, first)
			assert.Empty(t, diags)
			assert.Equal(t, first, second)
		})
	}
}

// Calls mapped without argument fixes keep their arity; calls with fixes
// change it by exactly the delta the fixes report.
func TestRewriteArity(t *testing.T) {
	r, err := registry.Builtin()
	require.NoError(t, err)

	for _, name := range r.Names() {
		v, err := r.Resolve(name)
		require.NoError(t, err)

		for call, rule := range v.Mapping {
			src := "def f(context):\n    x = " + call + "(a, b, k=1)\n"
			mod, err := parser.Parse(src)
			require.NoError(t, err)

			orig := syntax.CloneExpr(mod.Body[0].(*syntax.FuncDef).Body[0].(*syntax.Assign).Value).(*syntax.Call)
			want := len(orig.Args) + rule.Apply(orig)

			out := Rewrite(mod, v, diag.NewCollector())
			got := out.Body[0].(*syntax.FuncDef).Body[0].(*syntax.Assign).Value.(*syntax.Call)
			assert.Equal(t, rule.Target, syntax.DottedName(got.Func), "%s/%s", name, call)
			assert.Len(t, got.Args, want, "%s/%s", name, call)
			if len(rule.Fixes) == 0 {
				assert.Len(t, got.Args, 3, "%s/%s", name, call)
			}
		}
	}
}

func TestMapFields(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"f'{g.a}'", "f'{context.a}'"},
		{"f'{g.a + g.b:>{width}}'", "f'{context.a + context.b:>{width}}'"},
		{"f'{{g.a}} {e.g.x}'", "f'{{g.a}} {e.g.x}'"},
		{"f'{dog.a}'", "f'{dog.a}'"},
		// unterminated fields are kept as written
		{"f'{g.a'", "f'{g.a'"},
	}

	re := refPattern("g")
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := mapFields(tt.raw, func(field string) string {
				return re.ReplaceAllString(field, "${1}context.")
			})
			assert.Equal(t, tt.expected, got)
		})
	}
}
