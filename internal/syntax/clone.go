package syntax

// CloneModule returns a deep copy of m.
func CloneModule(m *Module) *Module {
	if m == nil {
		return nil
	}
	return &Module{Body: CloneBody(m.Body)}
}

// CloneBody deep-copies a statement block. A nil block stays nil.
func CloneBody(body []Stmt) []Stmt {
	if body == nil {
		return nil
	}
	out := make([]Stmt, len(body))
	for i, s := range body {
		out[i] = CloneStmt(s)
	}
	return out
}

func cloneMeta(m StmtMeta) StmtMeta {
	m.Marks = append([]string(nil), m.Marks...)
	return m
}

func cloneExprs(list []Expr) []Expr {
	if list == nil {
		return nil
	}
	out := make([]Expr, len(list))
	for i, e := range list {
		out[i] = CloneExpr(e)
	}
	return out
}

func cloneParams(params []*Param) []*Param {
	if params == nil {
		return nil
	}
	out := make([]*Param, len(params))
	for i, p := range params {
		out[i] = &Param{
			Name:       p.Name,
			Star:       p.Star,
			Annotation: CloneExpr(p.Annotation),
			Default:    CloneExpr(p.Default),
		}
	}
	return out
}

func cloneAliases(names []*Alias) []*Alias {
	out := make([]*Alias, len(names))
	for i, a := range names {
		c := *a
		out[i] = &c
	}
	return out
}

// CloneStmt returns a deep copy of s.
func CloneStmt(s Stmt) Stmt {
	switch x := s.(type) {
	case nil:
		return nil
	case *ExprStmt:
		return &ExprStmt{StmtMeta: cloneMeta(x.StmtMeta), X: CloneExpr(x.X)}
	case *Assign:
		return &Assign{StmtMeta: cloneMeta(x.StmtMeta), Targets: cloneExprs(x.Targets), Value: CloneExpr(x.Value)}
	case *AugAssign:
		return &AugAssign{StmtMeta: cloneMeta(x.StmtMeta), Target: CloneExpr(x.Target), Op: x.Op, Value: CloneExpr(x.Value)}
	case *AnnAssign:
		return &AnnAssign{StmtMeta: cloneMeta(x.StmtMeta), Target: CloneExpr(x.Target), Annotation: CloneExpr(x.Annotation), Value: CloneExpr(x.Value)}
	case *FuncDef:
		return &FuncDef{
			StmtMeta:   cloneMeta(x.StmtMeta),
			Decorators: cloneExprs(x.Decorators),
			Async:      x.Async,
			Name:       x.Name,
			Params:     cloneParams(x.Params),
			Returns:    CloneExpr(x.Returns),
			Body:       CloneBody(x.Body),
		}
	case *ClassDef:
		return &ClassDef{
			StmtMeta:   cloneMeta(x.StmtMeta),
			Decorators: cloneExprs(x.Decorators),
			Name:       x.Name,
			Bases:      cloneExprs(x.Bases),
			Body:       CloneBody(x.Body),
		}
	case *If:
		return &If{StmtMeta: cloneMeta(x.StmtMeta), IsElif: x.IsElif, Test: CloneExpr(x.Test), Body: CloneBody(x.Body), Else: CloneBody(x.Else), ElseTrailing: x.ElseTrailing}
	case *For:
		return &For{StmtMeta: cloneMeta(x.StmtMeta), Async: x.Async, Target: CloneExpr(x.Target), Iter: CloneExpr(x.Iter), Body: CloneBody(x.Body), Else: CloneBody(x.Else), ElseTrailing: x.ElseTrailing}
	case *While:
		return &While{StmtMeta: cloneMeta(x.StmtMeta), Test: CloneExpr(x.Test), Body: CloneBody(x.Body), Else: CloneBody(x.Else), ElseTrailing: x.ElseTrailing}
	case *Try:
		handlers := make([]*ExceptHandler, len(x.Handlers))
		for i, h := range x.Handlers {
			handlers[i] = &ExceptHandler{Pos: h.Pos, Type: CloneExpr(h.Type), Name: h.Name, Body: CloneBody(h.Body), Trailing: h.Trailing}
		}
		return &Try{
			StmtMeta:        cloneMeta(x.StmtMeta),
			Body:            CloneBody(x.Body),
			Handlers:        handlers,
			Else:            CloneBody(x.Else),
			ElseTrailing:    x.ElseTrailing,
			Finally:         CloneBody(x.Finally),
			FinallyTrailing: x.FinallyTrailing,
		}
	case *With:
		items := make([]*WithItem, len(x.Items))
		for i, it := range x.Items {
			items[i] = &WithItem{Context: CloneExpr(it.Context), As: CloneExpr(it.As)}
		}
		return &With{StmtMeta: cloneMeta(x.StmtMeta), Async: x.Async, Items: items, Body: CloneBody(x.Body)}
	case *Return:
		return &Return{StmtMeta: cloneMeta(x.StmtMeta), Value: CloneExpr(x.Value)}
	case *Pass:
		return &Pass{StmtMeta: cloneMeta(x.StmtMeta)}
	case *Break:
		return &Break{StmtMeta: cloneMeta(x.StmtMeta)}
	case *Continue:
		return &Continue{StmtMeta: cloneMeta(x.StmtMeta)}
	case *Global:
		return &Global{StmtMeta: cloneMeta(x.StmtMeta), Names: append([]string(nil), x.Names...)}
	case *Nonlocal:
		return &Nonlocal{StmtMeta: cloneMeta(x.StmtMeta), Names: append([]string(nil), x.Names...)}
	case *Import:
		return &Import{StmtMeta: cloneMeta(x.StmtMeta), Names: cloneAliases(x.Names)}
	case *FromImport:
		return &FromImport{StmtMeta: cloneMeta(x.StmtMeta), Module: x.Module, Names: cloneAliases(x.Names)}
	case *Raise:
		return &Raise{StmtMeta: cloneMeta(x.StmtMeta), Exc: CloneExpr(x.Exc), Cause: CloneExpr(x.Cause)}
	case *Assert:
		return &Assert{StmtMeta: cloneMeta(x.StmtMeta), Test: CloneExpr(x.Test), Msg: CloneExpr(x.Msg)}
	case *Del:
		return &Del{StmtMeta: cloneMeta(x.StmtMeta), Targets: cloneExprs(x.Targets)}
	case *Comment:
		return &Comment{StmtMeta: cloneMeta(x.StmtMeta), Text: x.Text}
	case *Tombstone:
		return &Tombstone{StmtMeta: cloneMeta(x.StmtMeta), Original: x.Original, Reason: x.Reason}
	}
	panic("syntax: CloneStmt: unknown statement kind " + s.Kind().String())
}

// CloneExpr returns a deep copy of e.
func CloneExpr(e Expr) Expr {
	switch x := e.(type) {
	case nil:
		return nil
	case *Name:
		c := *x
		return &c
	case *Literal:
		c := *x
		return &c
	case *Attribute:
		return &Attribute{ExprPos: x.ExprPos, X: CloneExpr(x.X), Attr: x.Attr}
	case *Call:
		return &Call{ExprPos: x.ExprPos, Func: CloneExpr(x.Func), Args: cloneExprs(x.Args)}
	case *Keyword:
		return &Keyword{ExprPos: x.ExprPos, Name: x.Name, Value: CloneExpr(x.Value)}
	case *Starred:
		return &Starred{ExprPos: x.ExprPos, Double: x.Double, X: CloneExpr(x.X)}
	case *Subscript:
		return &Subscript{ExprPos: x.ExprPos, X: CloneExpr(x.X), Index: CloneExpr(x.Index)}
	case *Slice:
		return &Slice{ExprPos: x.ExprPos, Lo: CloneExpr(x.Lo), Hi: CloneExpr(x.Hi), Step: CloneExpr(x.Step), HasStep: x.HasStep}
	case *List:
		return &List{ExprPos: x.ExprPos, Elts: cloneExprs(x.Elts)}
	case *Tuple:
		return &Tuple{ExprPos: x.ExprPos, Elts: cloneExprs(x.Elts)}
	case *Set:
		return &Set{ExprPos: x.ExprPos, Elts: cloneExprs(x.Elts)}
	case *Dict:
		return &Dict{ExprPos: x.ExprPos, Keys: cloneExprs(x.Keys), Values: cloneExprs(x.Values)}
	case *BinOp:
		return &BinOp{ExprPos: x.ExprPos, X: CloneExpr(x.X), Op: x.Op, Y: CloneExpr(x.Y)}
	case *UnaryOp:
		return &UnaryOp{ExprPos: x.ExprPos, Op: x.Op, X: CloneExpr(x.X)}
	case *Compare:
		return &Compare{ExprPos: x.ExprPos, X: CloneExpr(x.X), Ops: append([]string(nil), x.Ops...), Comparators: cloneExprs(x.Comparators)}
	case *IfExp:
		return &IfExp{ExprPos: x.ExprPos, Body: CloneExpr(x.Body), Test: CloneExpr(x.Test), Else: CloneExpr(x.Else)}
	case *Lambda:
		return &Lambda{ExprPos: x.ExprPos, Params: cloneParams(x.Params), Body: CloneExpr(x.Body)}
	case *Comprehension:
		clauses := make([]*CompClause, len(x.Clauses))
		for i, c := range x.Clauses {
			clauses[i] = &CompClause{Async: c.Async, Target: CloneExpr(c.Target), Iter: CloneExpr(c.Iter), Ifs: cloneExprs(c.Ifs)}
		}
		return &Comprehension{ExprPos: x.ExprPos, Comp: x.Comp, Key: CloneExpr(x.Key), Elt: CloneExpr(x.Elt), Clauses: clauses, Bare: x.Bare}
	case *Paren:
		return &Paren{ExprPos: x.ExprPos, X: CloneExpr(x.X)}
	case *Await:
		return &Await{ExprPos: x.ExprPos, X: CloneExpr(x.X)}
	case *Yield:
		return &Yield{ExprPos: x.ExprPos, From: x.From, X: CloneExpr(x.X)}
	}
	panic("syntax: CloneExpr: unknown expression kind " + e.Kind().String())
}
