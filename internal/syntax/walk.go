package syntax

// Blocks returns pointers to the nested statement blocks of s, in source order.
// Callers may replace a block through the pointer.
func Blocks(s Stmt) []*[]Stmt {
	switch x := s.(type) {
	case *FuncDef:
		return []*[]Stmt{&x.Body}
	case *ClassDef:
		return []*[]Stmt{&x.Body}
	case *If:
		return []*[]Stmt{&x.Body, &x.Else}
	case *For:
		return []*[]Stmt{&x.Body, &x.Else}
	case *While:
		return []*[]Stmt{&x.Body, &x.Else}
	case *Try:
		blocks := []*[]Stmt{&x.Body}
		for _, h := range x.Handlers {
			blocks = append(blocks, &h.Body)
		}
		return append(blocks, &x.Else, &x.Finally)
	case *With:
		return []*[]Stmt{&x.Body}
	}
	return nil
}

// StmtExprs returns pointers to the expressions owned directly by s. Expressions
// inside nested blocks are not included.
func StmtExprs(s Stmt) []*Expr {
	var out []*Expr
	add := func(ps ...*Expr) {
		for _, p := range ps {
			if *p != nil {
				out = append(out, p)
			}
		}
	}
	addList := func(list []Expr) {
		for i := range list {
			add(&list[i])
		}
	}
	addParams := func(params []*Param) {
		for _, p := range params {
			add(&p.Annotation, &p.Default)
		}
	}

	switch x := s.(type) {
	case *ExprStmt:
		add(&x.X)
	case *Assign:
		addList(x.Targets)
		add(&x.Value)
	case *AugAssign:
		add(&x.Target, &x.Value)
	case *AnnAssign:
		add(&x.Target, &x.Annotation, &x.Value)
	case *FuncDef:
		addList(x.Decorators)
		addParams(x.Params)
		add(&x.Returns)
	case *ClassDef:
		addList(x.Decorators)
		addList(x.Bases)
	case *If:
		add(&x.Test)
	case *For:
		add(&x.Target, &x.Iter)
	case *While:
		add(&x.Test)
	case *Try:
		for _, h := range x.Handlers {
			add(&h.Type)
		}
	case *With:
		for _, item := range x.Items {
			add(&item.Context, &item.As)
		}
	case *Return:
		add(&x.Value)
	case *Raise:
		add(&x.Exc, &x.Cause)
	case *Assert:
		add(&x.Test, &x.Msg)
	case *Del:
		addList(x.Targets)
	}
	return out
}

// ExprChildren returns pointers to the direct sub-expressions of e.
func ExprChildren(e Expr) []*Expr {
	var out []*Expr
	add := func(ps ...*Expr) {
		for _, p := range ps {
			if *p != nil {
				out = append(out, p)
			}
		}
	}
	addList := func(list []Expr) {
		for i := range list {
			add(&list[i])
		}
	}

	switch x := e.(type) {
	case *Attribute:
		add(&x.X)
	case *Call:
		add(&x.Func)
		addList(x.Args)
	case *Keyword:
		add(&x.Value)
	case *Starred:
		add(&x.X)
	case *Subscript:
		add(&x.X, &x.Index)
	case *Slice:
		add(&x.Lo, &x.Hi, &x.Step)
	case *List:
		addList(x.Elts)
	case *Tuple:
		addList(x.Elts)
	case *Set:
		addList(x.Elts)
	case *Dict:
		for i := range x.Keys {
			add(&x.Keys[i], &x.Values[i])
		}
	case *BinOp:
		add(&x.X, &x.Y)
	case *UnaryOp:
		add(&x.X)
	case *Compare:
		add(&x.X)
		addList(x.Comparators)
	case *IfExp:
		add(&x.Body, &x.Test, &x.Else)
	case *Lambda:
		for _, p := range x.Params {
			add(&p.Annotation, &p.Default)
		}
		add(&x.Body)
	case *Comprehension:
		add(&x.Key, &x.Elt)
		for _, c := range x.Clauses {
			add(&c.Target, &c.Iter)
			addList(c.Ifs)
		}
	case *Paren:
		add(&x.X)
	case *Await:
		add(&x.X)
	case *Yield:
		add(&x.X)
	}
	return out
}

// MapExpr rewrites e bottom-up: children are replaced first, then f is applied to
// the (possibly updated) node itself. f returns its argument to keep a node.
func MapExpr(e Expr, f func(Expr) Expr) Expr {
	if e == nil {
		return nil
	}
	for _, p := range ExprChildren(e) {
		*p = MapExpr(*p, f)
	}
	return f(e)
}

// MapStmtExprs applies MapExpr to every expression owned directly by s.
func MapStmtExprs(s Stmt, f func(Expr) Expr) {
	for _, p := range StmtExprs(s) {
		*p = MapExpr(*p, f)
	}
}

// Inspect traverses the tree rooted at n in depth-first order, statements before
// their expressions and expressions before nested blocks. If f returns false the
// children of that node are skipped.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	switch x := n.(type) {
	case Stmt:
		for _, p := range StmtExprs(x) {
			Inspect(*p, f)
		}
		for _, block := range Blocks(x) {
			for _, child := range *block {
				Inspect(child, f)
			}
		}
	case Expr:
		for _, p := range ExprChildren(x) {
			Inspect(*p, f)
		}
	}
}

// InspectBody runs Inspect over every statement of a block.
func InspectBody(body []Stmt, f func(Node) bool) {
	for _, s := range body {
		Inspect(s, f)
	}
}

// WalkStmts calls f for every statement in body and all nested blocks, parents first.
func WalkStmts(body []Stmt, f func(Stmt)) {
	for _, s := range body {
		f(s)
		for _, block := range Blocks(s) {
			WalkStmts(*block, f)
		}
	}
}

// HasCode reports whether a block contains anything other than comments and tombstones.
func HasCode(body []Stmt) bool {
	for _, s := range body {
		switch s.(type) {
		case *Comment, *Tombstone:
			continue
		}
		return true
	}
	return false
}
