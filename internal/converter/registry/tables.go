package registry

// Built-in call tables. Each builder returns fresh maps so variants never share them.

var scheduleTimes = map[string]string{
	"before_open": "09:15",
	"open":        "09:30",
	"close":       "14:55",
	"after_close": "15:30",
}

func historyRule() CallRule {
	return CallRule{Target: "get_history", Fixes: []ArgFix{
		PositionalToKeyword{Index: 0, Keyword: "security_list"},
		RenameKeyword{From: "unit", To: "frequency"},
		RenameKeyword{From: "fields", To: "field"},
		DropKeyword{Name: "skip_paused"},
		DropKeyword{Name: "df"},
		DropKeyword{Name: "include_now"},
	}}
}

// dataMapping holds market-data calls shared by every variant.
func dataMapping() CallMapping {
	return CallMapping{
		"attribute_history": historyRule(),
		"get_bars":          historyRule(),
		"get_all_securities": {Target: "get_Ashares", Fixes: []ArgFix{
			DropKeyword{Name: "types"},
			DropPositional{Index: 0},
		}},
		"get_security_info":   {Target: "get_stock_info"},
		"get_price":           {Target: "get_price"},
		"get_index_stocks":    {Target: "get_index_stocks"},
		"get_industry_stocks": {Target: "get_industry_stocks"},
		"get_trade_days":      {Target: "get_trade_days"},
	}
}

// tradingMapping holds order, scheduling, settings and logging calls.
func tradingMapping() CallMapping {
	return CallMapping{
		"order":              {Target: "order"},
		"order_value":        {Target: "order_value"},
		"order_target":       {Target: "order_target"},
		"order_target_value": {Target: "order_target_value"},
		"cancel_order":       {Target: "cancel_order"},
		"get_open_orders":    {Target: "get_open_orders"},
		"get_trades":         {Target: "get_trades"},
		"record":             {Target: "record"},
		"log.info":           {Target: "log.info"},
		"log.warn":           {Target: "log.warning"},
		"set_slippage": {Target: "set_fixed_slippage", Fixes: []ArgFix{
			UnwrapPositional{Index: 0, Callee: "FixedSlippage"},
		}},
		"run_daily": {Target: "run_daily", Fixes: []ArgFix{
			InsertPositional{Index: 0, Expr: "context"},
			DropKeyword{Name: "reference_security"},
			MapKeywordValue{Name: "time", Values: scheduleTimes},
		}},
	}
}

func merge(maps ...CallMapping) CallMapping {
	out := CallMapping{}
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

func dataRemovals() RemovedSet {
	return RemovedSet{
		"get_fundamentals": {Sentinel: "pd.DataFrame()"},
		"query":            {Sentinel: "None"},
	}
}

func settingRemovals() RemovedSet {
	return RemovedSet{
		"set_benchmark":  {Sentinel: "None"},
		"set_option":     {Sentinel: "None"},
		"set_order_cost": {Sentinel: "None"},
		"log.set_level":  {Sentinel: "None"},
	}
}

func removals(sets ...RemovedSet) RemovedSet {
	out := RemovedSet{}
	for _, s := range sets {
		for k, v := range s {
			out[k] = v
		}
	}
	return out
}

func scheduleFlags() FlaggedSet {
	return FlaggedSet{
		"run_weekly":  "weekly schedules have no target equivalent",
		"run_monthly": "monthly schedules have no target equivalent",
	}
}

// baseVariant fills the fields every built-in variant shares.
func baseVariant(name, description string) *Variant {
	return &Variant{
		Name:          name,
		Description:   description,
		Flagged:       FlaggedSet{},
		ScheduleCalls: []string{"run_weekly", "run_monthly"},
		ScheduleArgs:  []string{"weekday", "monthday", "force", "reference_security"},
		DailyTrigger:  "run_daily",
		GlobalObject:  "g",
		ContextName:   "context",
		SuffixMap: map[string]string{
			".XSHG": ".SS",
			".XSHE": ".SZ",
		},
		RemovedImports:    []string{"jqdata", "jqfactor", "jqlib"},
		PromotionPatterns: []string{"weekly_adjustment", "market_trade", "rebalance", "trade", "market_open"},
	}
}

func genericVariant(tpl *Template) *Variant {
	v := baseVariant("generic", "Plain conversion; snapshot calls removed, weekly/monthly schedules flagged")
	v.Mapping = merge(dataMapping(), tradingMapping())
	v.Removed = removals(dataRemovals(), settingRemovals(), RemovedSet{
		"get_current_data": {Sentinel: "{}"},
	})
	v.Flagged = scheduleFlags()
	v.Schedule = ScheduleFlag
	v.Template = tpl
	return v
}

func simulationVariant(tpl *Template) *Variant {
	v := baseVariant("simulation", "Backtest; snapshots from the previous session, schedules collapsed onto run_daily")
	v.Mapping = merge(dataMapping(), tradingMapping(), CallMapping{
		"get_current_data": {Target: "lookback_snapshot", Fixes: []ArgFix{
			InsertPositional{Index: 0, Expr: "context"},
		}},
		"order_target_value": {Target: "safe_order_target_value"},
	})
	v.Removed = removals(dataRemovals(), settingRemovals())
	v.Schedule = ScheduleCollapse
	v.Template = tpl
	return v
}

func liveVariant(tpl *Template) *Variant {
	v := baseVariant("live", "Live trading; real-time snapshots kept, weekly/monthly schedules flagged")
	v.Mapping = merge(dataMapping(), tradingMapping(), CallMapping{
		"get_current_data": {Target: "get_snapshot"},
	})
	v.Removed = removals(dataRemovals(), settingRemovals())
	v.Flagged = scheduleFlags()
	v.Schedule = ScheduleFlag
	v.Template = tpl
	return v
}

func factorVariant(tpl *Template) *Variant {
	v := simulationVariant(tpl)
	v.Name = "factor-only"
	v.Description = "Backtest of factor strategies; technical factors computed locally"
	v.Mapping["MACD"] = CallRule{Target: "get_macd_value", Fixes: []ArgFix{
		DropKeyword{Name: "check_date"},
		DropKeyword{Name: "SHORT"},
		DropKeyword{Name: "LONG"},
		DropKeyword{Name: "MID"},
		DropKeyword{Name: "unit"},
		DropKeyword{Name: "include_now"},
		DropPositional{Index: 1},
		InsertPositional{Index: 0, Expr: "context"},
	}}
	v.Removed["get_factor_values"] = Removal{Sentinel: "{}"}
	return v
}

func realtimeDataVariant(tpl *Template) *Variant {
	v := baseVariant("realtime-data-only", "Market-data calls only; snapshots kept real-time")
	v.Mapping = merge(dataMapping(), CallMapping{
		"get_current_data": {Target: "get_snapshot"},
	})
	v.Removed = dataRemovals()
	v.Flagged = scheduleFlags()
	v.Schedule = ScheduleFlag
	v.Template = tpl
	return v
}
