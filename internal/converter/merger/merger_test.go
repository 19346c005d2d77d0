package merger

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quant-king299/stratconv/internal/converter/diag"
	"github.com/quant-king299/stratconv/internal/converter/generator"
	"github.com/quant-king299/stratconv/internal/converter/registry"
	"github.com/quant-king299/stratconv/internal/parser"
)

const header = `# Converted by stratconv from a JoinQuant strategy.
# Review every line marked [removed] or [review] before running.

import datetime
import pandas as pd
import numpy as np
`

func runMerge(t *testing.T, variant, src string) (string, []diag.Diagnostic) {
	t.Helper()
	mod, err := parser.Parse(src)
	require.NoError(t, err)
	v, err := registry.Resolve(variant)
	require.NoError(t, err)

	diags := diag.NewCollector()
	out, err := generator.Generate(Merge(Extract(mod), v, diags))
	require.NoError(t, err)
	return out, diags.List()
}

type wantDiag struct {
	line int
	code diag.Code
}

func summarize(list []diag.Diagnostic) []wantDiag {
	var out []wantDiag
	for _, d := range list {
		out = append(out, wantDiag{d.Line, d.Code})
	}
	return out
}

var topLevelDef = regexp.MustCompile(`(?m)^def (\w+)\(`)

func defNames(text string) []string {
	var out []string
	for _, m := range topLevelDef.FindAllStringSubmatch(text, -1) {
		out = append(out, m[1])
	}
	return out
}

func TestMergePlainTemplate(t *testing.T) {
	src := `import pandas as pd
from math import sqrt

MAX = 5


# sell everything
def handle_data(context, data):
    order_target(s, 0)


def before_market_open(ctx):
    log.info(ctx.portfolio)
`
	got, diags := runMerge(t, "generic", src)
	assert.Equal(t, header+`from math import sqrt

MAX = 5


def initialize(context):
    pass


def before_trading_start(context, data):
    log.info(context.portfolio)


# sell everything
def handle_data(context, data):
    order_target(s, 0)


def after_trading_end(context, data):
    pass
`, got)
	assert.Equal(t, []wantDiag{{12, diag.SignatureAdapted}}, summarize(diags))
}

func TestMergePromotion(t *testing.T) {
	src := `def initialize(context):
    run_daily(context, weekly_adjustment, time='09:30')
    run_daily(context, monthly_check, time='14:55')
    run_daily(context, before_market_open, time='09:15')


def before_market_open(context):
    pass


def weekly_adjustment(context):
    weekly_adjustment_helper()


def monthly_check(context):
    pass


def rebalance(context):
    weekly_adjustment(context)
`
	got, diags := runMerge(t, "simulation", src)
	assert.Equal(t, header+`

def initialize(context):
    run_daily(context, final_strategy, time='09:30')
    run_daily(context, monthly_check, time='14:55')
    # [removed] run_daily(context, before_trading_start, time='09:15')


def before_trading_start(context, data):
    pass


def handle_data(context, data):
    pass


def after_trading_end(context, data):
    pass


def final_strategy(context):
    weekly_adjustment_helper()


def monthly_check(context):
    pass


def rebalance(context):
    final_strategy(context)
`, got)
	assert.Equal(t, []wantDiag{
		{7, diag.SignatureAdapted},
		{4, diag.RemovedCall},
		{11, diag.Promoted},
		{15, diag.AmbiguousPromotion},
		{19, diag.AmbiguousPromotion},
	}, summarize(diags))
}

func TestMergePromotionByName(t *testing.T) {
	src := `def market_open(context):
    snap = lookback_snapshot(context)
`
	got, diags := runMerge(t, "simulation", src)

	assert.Contains(t, got, "def initialize(context):\n    run_daily(context, final_strategy, time='09:30')\n")
	assert.Contains(t, got, "def final_strategy(context):\n    snap = lookback_snapshot(context)\n")
	assert.Equal(t, []string{
		"initialize", "before_trading_start", "handle_data", "after_trading_end", "final_strategy", "lookback_snapshot",
	}, defNames(got))
	assert.Equal(t, []wantDiag{{1, diag.Promoted}}, summarize(diags))
}

func TestMergeKeepsExistingPeriodicSlot(t *testing.T) {
	src := `def initialize(context):
    run_daily(context, final_strategy, time='09:30')


def final_strategy(context):
    pass


def rebalance(context):
    pass
`
	got, diags := runMerge(t, "simulation", src)
	assert.Empty(t, diags)
	assert.Equal(t, []string{
		"initialize", "before_trading_start", "handle_data", "after_trading_end", "final_strategy", "rebalance",
	}, defNames(got))
	assert.Len(t, regexp.MustCompile(`run_daily\(`).FindAllString(got, -1), 1)
}

func TestMergeTemplateHelpers(t *testing.T) {
	tests := []struct {
		name     string
		variant  string
		source   string
		expected []string
	}{
		{
			name:    "Unreferenced helpers are dropped",
			variant: "factor-only",
			source:  "def handle_data(context, data):\n    pass\n",
			expected: []string{
				"initialize", "before_trading_start", "handle_data", "after_trading_end",
			},
		},
		{
			name:    "Helpers follow references",
			variant: "factor-only",
			source:  "def handle_data(context, data):\n    v = get_macd_value(context, s)\n",
			expected: []string{
				"initialize", "before_trading_start", "handle_data", "after_trading_end", "get_macd_value", "get_MACD",
			},
		},
		{
			name:    "Value orders go through the wrapper",
			variant: "simulation",
			source:  "def handle_data(context, data):\n    safe_order_target_value(s, 0)\n",
			expected: []string{
				"initialize", "before_trading_start", "handle_data", "after_trading_end", "safe_order_target_value",
			},
		},
		{
			name:    "Source definition wins",
			variant: "simulation",
			source:  "def handle_data(context, data):\n    v = lookback_snapshot(context)\n\n\ndef lookback_snapshot(context):\n    return {}\n",
			expected: []string{
				"initialize", "before_trading_start", "handle_data", "after_trading_end", "lookback_snapshot",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := runMerge(t, tt.variant, tt.source)
			assert.Equal(t, tt.expected, defNames(got))
		})
	}
}

func TestMergeLifecycleExactlyOnce(t *testing.T) {
	tests := []struct {
		name   string
		source string
		dups   int
	}{
		{"No definitions", "", 0},
		{"One definition", "def handle_data(context, data):\n    order(s, 1)\n", 0},
		{"Duplicated definition", "def handle_data(context, data):\n    order(s, 1)\n\n\ndef handle_data(context, data):\n    order(s, 2)\n", 1},
		{"Alias and direct name", "def before_market_open(context):\n    pass\n\n\ndef before_trading_start(context, data):\n    pass\n", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, diags := runMerge(t, "live", tt.source)
			counts := map[string]int{}
			for _, name := range defNames(got) {
				counts[name]++
			}
			for _, name := range registry.LifecycleFunctions {
				assert.Equal(t, 1, counts[name], name)
			}

			dups := 0
			for _, d := range diags {
				if d.Code == diag.DuplicateDefinition {
					dups++
				}
			}
			assert.Equal(t, tt.dups, dups)
		})
	}
}

func TestMergeDuplicateKeepsLater(t *testing.T) {
	src := "def handle_data(context, data):\n    order(s, 1)\n\n\ndef handle_data(context, data):\n    order(s, 2)\n"
	got, diags := runMerge(t, "generic", src)
	assert.Contains(t, got, "order(s, 2)")
	assert.NotContains(t, got, "order(s, 1)")
	require.Len(t, diags, 1)
	assert.Equal(t, 1, diags[0].Line)
	assert.Contains(t, diags[0].Message, "line 5")
}

func TestMergeModuleStatementOrder(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		ordered []string
	}{
		{
			name:    "Statement follows the helper it calls",
			source:  "def helper():\n    return 1\n\n\nN = helper()\n",
			ordered: []string{"def after_trading_end(", "def helper():", "N = helper()"},
		},
		{
			name: "Source order and comments kept",
			source: `LIMIT = 3


def helper():
    return LIMIT


# derived
N = helper()
M = N + 1
`,
			ordered: []string{"LIMIT = 3", "def initialize(", "def helper():", "# derived", "N = helper()", "M = N + 1"},
		},
		{
			name:    "Reference to a lifecycle function",
			source:  `def handle_data(context, data):
    pass


HOOK = handle_data
`,
			ordered: []string{"def handle_data(", "HOOK = handle_data", "def after_trading_end("},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := runMerge(t, "generic", tt.source)
			last := -1
			for _, want := range tt.ordered {
				at := strings.Index(got, want)
				require.GreaterOrEqual(t, at, 0, "%q missing from\n%s", want, got)
				assert.Greater(t, at, last, "%q out of order in\n%s", want, got)
				last = at
			}
		})
	}
}

func TestMergeParameterClash(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		expected string
		diags    []wantDiag
	}{
		{
			name:     "Renamed when the slot name is free",
			source:   "def handle_data(context, bar_dict):\n    log.info(bar_dict)\n",
			expected: "def handle_data(context, data):\n    log.info(data)\n",
			diags:    []wantDiag{{1, diag.SignatureAdapted}},
		},
		{
			name:     "Bound from the parameter when the body uses the slot name",
			source:   "def handle_data(context, bar_dict):\n    data = 1\n    log.info(bar_dict)\n",
			expected: "def handle_data(context, data):\n    bar_dict = data\n    data = 1\n    log.info(bar_dict)\n",
			diags:    []wantDiag{{1, diag.SignatureAdapted}, {1, diag.SignatureAdapted}},
		},
		{
			name:     "Binding goes after the docstring",
			source:   "def handle_data(context, bar_dict):\n    \"\"\"Trade.\"\"\"\n    data = bar_dict\n",
			expected: "def handle_data(context, data):\n    \"\"\"Trade.\"\"\"\n    bar_dict = data\n    data = bar_dict\n",
			diags:    []wantDiag{{1, diag.SignatureAdapted}, {1, diag.SignatureAdapted}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, diags := runMerge(t, "generic", tt.source)
			assert.Contains(t, got, tt.expected)
			assert.Equal(t, tt.diags, summarize(diags))

			again, diags := runMerge(t, "generic", got)
			assert.Equal(t, got, again)
			assert.Empty(t, diags)
		})
	}
}

func TestMergeLiveReplacements(t *testing.T) {
	tests := []struct {
		name     string
		variant  string
		source   string
		replaced bool
	}{
		{
			name:     "Known filter replaced",
			variant:  "live",
			source:   "def filter_paused_stock(stock_list):\n    return [s for s in stock_list if not paused(s)]\n",
			replaced: true,
		},
		{
			name:    "Different arity kept",
			variant: "live",
			source:  "def filter_paused_stock(context, stock_list):\n    return [s for s in stock_list if not paused(s)]\n",
		},
		{
			name:    "Other variants keep the source",
			variant: "generic",
			source:  "def filter_paused_stock(stock_list):\n    return [s for s in stock_list if not paused(s)]\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, diags := runMerge(t, tt.variant, tt.source)
			if !tt.replaced {
				assert.Contains(t, got, "if not paused(s)]")
				assert.NotContains(t, got, "get_snapshot(")
				assert.Empty(t, diags)
				return
			}
			assert.Contains(t, got, "def filter_paused_stock(stock_list):\n    # live: suspension status from the real-time snapshot\n    current_data = get_snapshot(stock_list)\n")
			assert.NotContains(t, got, "paused(s)")
			assert.Equal(t, []wantDiag{{1, diag.FunctionReplaced}}, summarize(diags))

			again, diags := runMerge(t, tt.variant, got)
			assert.Equal(t, got, again)
			assert.Empty(t, diags)
		})
	}
}

func TestMergeInitNotes(t *testing.T) {
	tests := []struct {
		name    string
		variant string
		source  string
		want    string
	}{
		{
			name:    "Appended to the source initialize",
			variant: "live",
			source:  "def initialize(context):\n    context.n = 1\n",
			want:    "def initialize(context):\n    context.n = 1\n    # ---------- live trading settings (optional) ----------\n",
		},
		{
			name:    "Appended to the placeholder",
			variant: "live",
			source:  "",
			want:    "def initialize(context):\n    pass\n    # ---------- live trading settings (optional) ----------\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := runMerge(t, tt.variant, tt.source)
			assert.Contains(t, got, tt.want)
			assert.Equal(t, 1, strings.Count(got, "live trading settings"))

			again, _ := runMerge(t, tt.variant, got)
			assert.Equal(t, got, again)
		})
	}

	got, _ := runMerge(t, "generic", "def initialize(context):\n    context.n = 1\n")
	assert.NotContains(t, got, "live trading settings")
}

func TestMergeConverges(t *testing.T) {
	src := `import numpy as np
from math import sqrt

# limits
MAX = 5


def handle_data(ctx, data):
    order_target(s, 0)


def market_open(context):
    pass
`
	for _, variant := range []string{"generic", "simulation", "factor-only"} {
		t.Run(variant, func(t *testing.T) {
			first, _ := runMerge(t, variant, src)
			second, diags := runMerge(t, variant, first)
			assert.Equal(t, first, second)
			assert.Empty(t, diags)
		})
	}
}

func TestExtract(t *testing.T) {
	src := `import a
# about f
def f():
    pass
X = 1
# loose
from b import c
def f(x):
    pass
`
	mod, err := parser.Parse(src)
	require.NoError(t, err)
	fns := Extract(mod)

	require.Len(t, fns.Defs, 1)
	assert.Equal(t, "x", fns.Defs[0].Def.Params[0].Name)
	assert.Empty(t, fns.Defs[0].Leading)
	require.Len(t, fns.Duplicates, 1)
	assert.Len(t, fns.Duplicates[0].Earlier.Leading, 1)
	assert.Len(t, fns.Imports, 2)
	assert.Len(t, fns.Module, 2)
	assert.Same(t, fns.Defs[0], fns.Lookup("f"))
	assert.Nil(t, fns.Lookup("g"))
}
