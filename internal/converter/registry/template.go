package registry

import (
	"fmt"

	"github.com/quant-king299/stratconv/converr"
	"github.com/quant-king299/stratconv/internal/parser"
	"github.com/quant-king299/stratconv/internal/syntax"
)

// Slot is a named function placeholder of a structural template.
type Slot struct {
	Name   string
	Params []string
	// Mandatory slots are lifecycle functions that must appear exactly once in the output.
	Mandatory bool
	// Periodic marks the single scheduled-task slot a source function may be promoted into.
	Periodic bool
	// Helper slots are emitted only when the merged script references them.
	Helper bool
	// Replaces marks a target-specific version of a well-known source helper;
	// a source definition of the same name and arity is swapped for it.
	Replaces bool
	// Aliases are source function names that fill this slot.
	Aliases []string
	// Placeholder is the template's own definition, used when nothing fills the slot.
	Placeholder *syntax.FuncDef
}

// Template is the skeleton a converted script is assembled into.
type Template struct {
	Header  []syntax.Stmt
	Imports []syntax.Stmt
	Slots   []*Slot
	// Registration schedules the periodic slot; it is added to initialize when the slot is filled.
	Registration syntax.Stmt
	// InitNotes are comment lines appended once to the body of initialize.
	InitNotes []*syntax.Comment
}

// TemplateSpec tells ParseTemplate how to classify the functions of a template text.
type TemplateSpec struct {
	Mandatory []string
	Periodic  string
	Aliases   map[string][]string
	Replace   []string
	// InitNotes is comment-only text for Template.InitNotes.
	InitNotes string
}

// LifecycleFunctions are the entry points every target script defines.
var LifecycleFunctions = []string{"initialize", "before_trading_start", "handle_data", "after_trading_end"}

// Slot returns the slot with the given name.
func (t *Template) Slot(name string) *Slot {
	for _, s := range t.Slots {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// SlotFor resolves a source function name, directly or through an alias.
func (t *Template) SlotFor(name string) *Slot {
	if s := t.Slot(name); s != nil {
		return s
	}
	for _, s := range t.Slots {
		for _, a := range s.Aliases {
			if a == name {
				return s
			}
		}
	}
	return nil
}

// PeriodicSlot returns the periodic slot, or nil.
func (t *Template) PeriodicSlot() *Slot {
	for _, s := range t.Slots {
		if s.Periodic {
			return s
		}
	}
	return nil
}

// MandatoryNames lists mandatory slot names in template order.
func (t *Template) MandatoryNames() []string {
	var out []string
	for _, s := range t.Slots {
		if s.Mandatory {
			out = append(out, s.Name)
		}
	}
	return out
}

// ParseTemplate builds a template from target-platform script text.
func ParseTemplate(text string, spec TemplateSpec) (*Template, error) {
	mod, err := parser.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("template: %w", err)
	}
	mandatory := map[string]bool{}
	for _, name := range spec.Mandatory {
		mandatory[name] = true
	}
	replace := map[string]bool{}
	for _, name := range spec.Replace {
		replace[name] = true
	}

	tpl := &Template{}
	for _, st := range mod.Body {
		switch x := st.(type) {
		case *syntax.Comment:
			if len(tpl.Slots) == 0 && len(tpl.Imports) == 0 {
				tpl.Header = append(tpl.Header, x)
			}
		case *syntax.Import, *syntax.FromImport:
			tpl.Imports = append(tpl.Imports, x)
		case *syntax.FuncDef:
			slot := &Slot{
				Name:        x.Name,
				Mandatory:   mandatory[x.Name],
				Periodic:    x.Name == spec.Periodic,
				Replaces:    replace[x.Name],
				Aliases:     spec.Aliases[x.Name],
				Placeholder: x,
			}
			slot.Helper = !slot.Mandatory && !slot.Periodic && !slot.Replaces
			for _, p := range x.Params {
				slot.Params = append(slot.Params, p.Name)
			}
			tpl.Slots = append(tpl.Slots, slot)
		default:
			return nil, converr.NewInternalError("template", fmt.Sprintf("unexpected %s statement at line %d", st.Kind(), st.Line()))
		}
	}

	for _, name := range spec.Mandatory {
		if tpl.Slot(name) == nil {
			return nil, converr.NewInternalError("template", "missing mandatory function "+name)
		}
	}
	for _, name := range spec.Replace {
		if tpl.Slot(name) == nil {
			return nil, converr.NewInternalError("template", "missing replacement function "+name)
		}
	}
	if spec.InitNotes != "" {
		notes, err := parser.Parse(spec.InitNotes)
		if err != nil {
			return nil, fmt.Errorf("template notes: %w", err)
		}
		for _, st := range notes.Body {
			c, ok := st.(*syntax.Comment)
			if !ok {
				return nil, converr.NewInternalError("template", fmt.Sprintf("notes hold a %s statement at line %d", st.Kind(), st.Line()))
			}
			tpl.InitNotes = append(tpl.InitNotes, c)
		}
	}
	if spec.Periodic != "" {
		if tpl.Slot(spec.Periodic) == nil {
			return nil, converr.NewInternalError("template", "missing periodic function "+spec.Periodic)
		}
		init := tpl.Slot("initialize").Placeholder
		for i, st := range init.Body {
			if registersCallback(st, spec.Periodic) {
				tpl.Registration = st
				init.Body = append(init.Body[:i:i], init.Body[i+1:]...)
				break
			}
		}
		if tpl.Registration == nil {
			return nil, converr.NewInternalError("template", "initialize does not schedule "+spec.Periodic)
		}
		if !syntax.HasCode(init.Body) {
			init.Body = append(init.Body, &syntax.Pass{})
		}
	}
	return tpl, nil
}

// registersCallback reports whether st is a call statement passing name as an argument.
func registersCallback(st syntax.Stmt, name string) bool {
	es, ok := st.(*syntax.ExprStmt)
	if !ok {
		return false
	}
	call, ok := es.X.(*syntax.Call)
	if !ok {
		return false
	}
	for _, a := range call.Args {
		if n, ok := a.(*syntax.Name); ok && n.Id == name {
			return true
		}
	}
	return false
}

const templateHeader = `# Converted by stratconv from a JoinQuant strategy.
# Review every line marked [removed] or [review] before running.
`

const templateImports = `
import datetime
import pandas as pd
import numpy as np
`

const lifecycleTemplate = `

def initialize(context):
    pass


def before_trading_start(context, data):
    pass


def handle_data(context, data):
    pass


def after_trading_end(context, data):
    pass
`

const periodicTemplate = `

def initialize(context):
    run_daily(context, final_strategy, time='09:30')


def before_trading_start(context, data):
    pass


def handle_data(context, data):
    pass


def after_trading_end(context, data):
    pass


def final_strategy(context):
    pass
`

// lookbackHelper substitutes the previous session's prices for a real-time
// snapshot, which backtests cannot provide.
const lookbackHelper = `

def lookback_snapshot(context, security_list=None):
    if security_list is None:
        security_list = list(context.portfolio.positions.keys())
    if isinstance(security_list, str):
        security_list = [security_list]
    result = {}
    if not security_list:
        return result
    day = context.previous_date.strftime('%Y-%m-%d')
    try:
        prices = get_price(security_list, start_date=day, end_date=day, fields=['open', 'close', 'high', 'low'], is_dict=False)
        for stock in security_list:
            rows = prices[prices['code'] == stock]
            if not rows.empty:
                result[stock] = {
                    'open': rows['open'].iloc[0],
                    'close': rows['close'].iloc[0],
                    'high': rows['high'].iloc[0],
                    'low': rows['low'].iloc[0],
                }
    except Exception as e:
        log.warning('lookback_snapshot failed: %s' % e)
    return result
`

const macdHelpers = `

def get_macd_value(context, stock):
    h = get_history(50, '1d', ['close'], security_list=[stock])
    close = h['close'].values
    dif, dea, bar = get_MACD(close, 12, 26, 9)
    return bar[-1]


def get_MACD(close_prices, short_period=12, long_period=26, signal_period=9):
    ema_short = pd.Series(close_prices).ewm(span=short_period).mean()
    ema_long = pd.Series(close_prices).ewm(span=long_period).mean()
    dif = ema_short - ema_long
    dea = dif.ewm(span=signal_period).mean()
    bar = (dif - dea) * 2
    return dif.values, dea.values, bar.values
`

// safeOrderHelper keeps a backtest running when the target rejects a value
// order: the failure is logged and a full exit falls back to order_target.
const safeOrderHelper = `

def safe_order_target_value(security, value):
    try:
        return order_target_value(security, value)
    except Exception as e:
        log.warning('order_target_value(%s, %s) failed: %s' % (security, value, e))
    if value == 0:
        try:
            return order_target(security, 0)
        except Exception as e:
            log.warning('order_target(%s, 0) failed: %s' % (security, e))
    return None
`

// liveFilters are real-time versions of stock-pool filters common in source
// strategies, which read the previous close there.
const liveFilters = `

def filter_paused_stock(stock_list):
    # live: suspension status from the real-time snapshot
    current_data = get_snapshot(stock_list)
    if current_data is None:
        return stock_list
    return [stock for stock in stock_list if not current_data[stock].paused]


def filter_st_stock(stock_list):
    # live: ST status from the real-time snapshot
    current_data = get_snapshot(stock_list)
    if current_data is None:
        return stock_list
    return [stock for stock in stock_list if not (current_data[stock].is_st or 'ST' in current_data[stock].name or '*' in current_data[stock].name)]


def filter_limit_stock(context, stock_list):
    # live: price limits from the real-time snapshot
    current_data = get_snapshot(stock_list)
    if current_data is None:
        return stock_list
    holdings = list(context.portfolio.positions)
    return [stock for stock in stock_list if stock in holdings or current_data[stock].low_limit < current_data[stock].last_price < current_data[stock].high_limit]


def check_limit_up(context):
    # live: sell holdings whose limit-up has opened
    current_data = get_snapshot()
    if current_data is None:
        return
    for stock in context.high_limit_list:
        if current_data[stock].last_price < current_data[stock].high_limit:
            log.info('[%s] limit-up opened, selling' % stock)
            position = context.portfolio.positions.get(stock)
            if position:
                close_position(position)
        else:
            log.info('[%s] still at limit-up' % stock)
`

var liveReplacements = []string{"filter_paused_stock", "filter_st_stock", "filter_limit_stock", "check_limit_up"}

const liveNotes = `# ---------- live trading settings (optional) ----------
# commission: set_commission(...)
# slippage: set_slippage(...)
# price limits: set_price_limit(limit_value)
# real-time prices (recommended): set_option('use_real_price', True)
# -------------------------------------------------------
`

var lifecycleAliases = map[string][]string{
	"before_trading_start": {"before_market_open"},
	"after_trading_end":    {"after_market_close"},
}

func lifecycleSpec(periodic string) TemplateSpec {
	return TemplateSpec{Mandatory: LifecycleFunctions, Periodic: periodic, Aliases: lifecycleAliases}
}

func liveSpec() TemplateSpec {
	spec := lifecycleSpec("")
	spec.Replace = liveReplacements
	spec.InitNotes = liveNotes
	return spec
}
