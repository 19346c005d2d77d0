package registry

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quant-king299/stratconv/converr"
	"github.com/quant-king299/stratconv/internal/converter/generator"
	"github.com/quant-king299/stratconv/internal/syntax"
)

func TestBuiltinNames(t *testing.T) {
	r, err := Builtin()
	require.NoError(t, err)
	assert.Equal(t, []string{"generic", "simulation", "live", "factor-only", "realtime-data-only"}, r.Names())
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{"Exact", "simulation", "simulation", false},
		{"Underscore and case", "Factor_Only", "factor-only", false},
		{"Surrounding space", " live ", "live", false},
		{"Unknown", "backtest", "", true},
		{"Empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Resolve(tt.input)
			if tt.wantErr {
				var ce *converr.ConfigError
				require.True(t, errors.As(err, &ce))
				assert.Contains(t, ce.Error(), "generic")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v.Name)
		})
	}
}

func TestBuiltinVariantsAreConsistent(t *testing.T) {
	r, err := Builtin()
	require.NoError(t, err)

	for _, name := range r.Names() {
		t.Run(name, func(t *testing.T) {
			v, err := r.Resolve(name)
			require.NoError(t, err)

			for call := range v.Mapping {
				assert.NotContains(t, v.Removed, call)
				assert.NotContains(t, v.Flagged, call)
			}
			for call := range v.Removed {
				assert.NotContains(t, v.Flagged, call)
			}
			assert.Equal(t, LifecycleFunctions, v.Template.MandatoryNames())

			init := v.Template.Slot("initialize")
			require.NotNil(t, init)
			assert.Equal(t, []string{"context"}, init.Params)
			assert.True(t, syntax.HasCode(init.Placeholder.Body))
		})
	}
}

func TestTemplates(t *testing.T) {
	r, err := Builtin()
	require.NoError(t, err)

	tests := []struct {
		variant  string
		periodic string
		helpers  []string
	}{
		{"generic", "", nil},
		{"live", "", nil},
		{"realtime-data-only", "", nil},
		{"simulation", "final_strategy", []string{"lookback_snapshot", "safe_order_target_value"}},
		{"factor-only", "final_strategy", []string{"lookback_snapshot", "safe_order_target_value", "get_macd_value", "get_MACD"}},
	}

	for _, tt := range tests {
		t.Run(tt.variant, func(t *testing.T) {
			v, err := r.Resolve(tt.variant)
			require.NoError(t, err)
			tpl := v.Template

			var helpers []string
			for _, s := range tpl.Slots {
				if s.Helper {
					helpers = append(helpers, s.Name)
				}
			}
			assert.Equal(t, tt.helpers, helpers)
			assert.Len(t, tpl.Header, 2)
			assert.Len(t, tpl.Imports, 3)

			if tt.periodic == "" {
				assert.Nil(t, tpl.PeriodicSlot())
				assert.Nil(t, tpl.Registration)
				return
			}
			require.NotNil(t, tpl.PeriodicSlot())
			assert.Equal(t, tt.periodic, tpl.PeriodicSlot().Name)
			require.NotNil(t, tpl.Registration)
			assert.Equal(t, "run_daily(context, final_strategy, time='09:30')", generator.Simple(tpl.Registration))

			// the registration is only added back when the slot is filled
			body := tpl.Slot("initialize").Placeholder.Body
			require.Len(t, body, 1)
			assert.IsType(t, &syntax.Pass{}, body[0])
		})
	}
}

func TestLiveTemplate(t *testing.T) {
	tests := []struct {
		variant      string
		replacements []string
		notes        bool
	}{
		{"live", []string{"filter_paused_stock", "filter_st_stock", "filter_limit_stock", "check_limit_up"}, true},
		{"generic", nil, false},
		{"simulation", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.variant, func(t *testing.T) {
			v, err := Resolve(tt.variant)
			require.NoError(t, err)

			var replacements []string
			for _, s := range v.Template.Slots {
				if s.Replaces {
					assert.False(t, s.Helper, s.Name)
					replacements = append(replacements, s.Name)
				}
			}
			assert.Equal(t, tt.replacements, replacements)
			if !tt.notes {
				assert.Empty(t, v.Template.InitNotes)
				return
			}
			require.NotEmpty(t, v.Template.InitNotes)
			assert.Contains(t, v.Template.InitNotes[0].Text, "live trading settings")
		})
	}
}

func TestSimulationRoutesValueOrders(t *testing.T) {
	for _, name := range []string{"simulation", "factor-only"} {
		t.Run(name, func(t *testing.T) {
			v, err := Resolve(name)
			require.NoError(t, err)
			assert.Equal(t, "safe_order_target_value", v.Mapping["order_target_value"].Target)
			slot := v.Template.Slot("safe_order_target_value")
			require.NotNil(t, slot)
			assert.True(t, slot.Helper)
		})
	}

	v, err := Resolve("live")
	require.NoError(t, err)
	assert.Equal(t, "order_target_value", v.Mapping["order_target_value"].Target)
}

func TestSlotFor(t *testing.T) {
	v, err := Resolve("generic")
	require.NoError(t, err)

	tests := []struct {
		name     string
		expected string
	}{
		{"handle_data", "handle_data"},
		{"before_market_open", "before_trading_start"},
		{"after_market_close", "after_trading_end"},
		{"market_open", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := v.Template.SlotFor(tt.name)
			if tt.expected == "" {
				assert.Nil(t, s)
				return
			}
			require.NotNil(t, s)
			assert.Equal(t, tt.expected, s.Name)
		})
	}
}

func TestParseTemplateErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		spec TemplateSpec
	}{
		{"Missing lifecycle", "def initialize(context):\n    pass\n", lifecycleSpec("")},
		{"Missing periodic", lifecycleTemplate, lifecycleSpec("final_strategy")},
		{"Unregistered periodic", lifecycleTemplate + "\n\ndef final_strategy(context):\n    pass\n", lifecycleSpec("final_strategy")},
		{"Stray statement", "x = 1\n" + lifecycleTemplate, lifecycleSpec("")},
		{"Missing replacement", lifecycleTemplate, TemplateSpec{Mandatory: LifecycleFunctions, Replace: []string{"filter_st_stock"}}},
		{"Code in notes", lifecycleTemplate, TemplateSpec{Mandatory: LifecycleFunctions, InitNotes: "# settings\nx = 1\n"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTemplate(tt.text, tt.spec)
			var ie *converr.InternalError
			require.True(t, errors.As(err, &ie))
			assert.Equal(t, "template", ie.Stage)
		})
	}
}

func TestRegisterRejectsOverlap(t *testing.T) {
	tpl, err := ParseTemplate(lifecycleTemplate, lifecycleSpec(""))
	require.NoError(t, err)

	v := baseVariant("broken", "")
	v.Template = tpl
	v.Mapping = CallMapping{"query": {Target: "query"}, "run_weekly": {Target: "run_daily"}}
	v.Removed = RemovedSet{"query": {Sentinel: "None"}}
	v.Flagged = scheduleFlags()

	r := NewRegistry()
	err = r.Register(v)
	var multi *converr.MultiError
	require.True(t, errors.As(err, &multi))
	assert.Len(t, multi.Errors, 2)
	assert.Empty(t, r.Names())

	err = r.Register(baseVariant("empty", ""))
	var ce *converr.ConfigError
	require.True(t, errors.As(err, &ce))
}

func TestRegisterInvalidSentinel(t *testing.T) {
	tpl, err := ParseTemplate(lifecycleTemplate, lifecycleSpec(""))
	require.NoError(t, err)

	v := baseVariant("bad-sentinel", "")
	v.Template = tpl
	v.Removed = RemovedSet{"query": {Sentinel: "x = "}}

	var ce *converr.ConfigError
	require.True(t, errors.As(NewRegistry().Register(v), &ce))
	assert.Equal(t, "query", ce.Key)
}

func TestSentinel(t *testing.T) {
	v, err := Resolve("generic")
	require.NoError(t, err)

	first := v.Sentinel("get_fundamentals")
	second := v.Sentinel("get_fundamentals")
	assert.Equal(t, "pd.DataFrame()", generator.Expr(first))
	assert.NotSame(t, first, second)

	assert.Equal(t, "{}", generator.Expr(v.Sentinel("get_current_data")))
	assert.Equal(t, "None", generator.Expr(v.Sentinel("not_removed")))
}

func TestIsRemovedImport(t *testing.T) {
	v, err := Resolve("live")
	require.NoError(t, err)

	assert.True(t, v.IsRemovedImport("jqdata"))
	assert.True(t, v.IsRemovedImport("jqlib.technical_analysis"))
	assert.False(t, v.IsRemovedImport("jqdatax"))
	assert.False(t, v.IsRemovedImport("pandas"))
}

func TestDescribe(t *testing.T) {
	r, err := Builtin()
	require.NoError(t, err)

	snapshots := map[string]string{}
	periodic := map[string]string{}
	for _, info := range r.Describe() {
		snapshots[info.Name] = info.Snapshot
		periodic[info.Name] = info.Periodic
		assert.NotEmpty(t, info.Description)
		assert.Positive(t, info.Mapped)
	}
	assert.Equal(t, map[string]string{
		"generic":            "removed",
		"simulation":         "lookback_snapshot",
		"live":               "get_snapshot",
		"factor-only":        "lookback_snapshot",
		"realtime-data-only": "get_snapshot",
	}, snapshots)
	assert.Equal(t, "final_strategy", periodic["factor-only"])
	assert.Empty(t, periodic["live"])
}

func TestConcurrentResolve(t *testing.T) {
	r, err := Builtin()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := r.Names()[i%5]
			v, err := r.Resolve(name)
			assert.NoError(t, err)
			assert.Equal(t, name, v.Name)
		}(i)
	}
	wg.Wait()
}
