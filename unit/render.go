package unit

import (
	"bytes"
	"fmt"
	"go/token"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/dave/dst"
	"github.com/dave/dst/decorator"
	"github.com/toejough/go-reorder"
)

// Render prints the plan as Go source, for logs and transform traces. The output is canonicalized with
// go-reorder when it parses; type names that are not valid Go (e.g. generic instances from other packages)
// leave it in emission order.
func Render(u *Unit) (string, error) {
	typeName := Identifier(u.Name)
	file := &dst.File{Name: dst.NewIdent("generated")}

	file.Decls = append(file.Decls, renderType(u, typeName), renderConstructor(typeName))

	for _, op := range u.Operations {
		file.Decls = append(file.Decls, renderOperation(op, typeName))
	}

	var buf bytes.Buffer

	err := decorator.Fprint(&buf, file)
	if err != nil {
		return "", fmt.Errorf("failed to print unit %s: %w", u.Name, err)
	}

	code := buf.String()

	reordered, err := reorder.Source(code)
	if err != nil {
		return code, nil
	}

	return reordered, nil
}

// Identifier turns a unit name into a valid Go identifier.
func Identifier(name string) string {
	var builder strings.Builder

	for i, r := range name {
		switch {
		case r == '_' || unicode.IsLetter(r):
			builder.WriteRune(r)
		case unicode.IsDigit(r):
			if i == 0 {
				builder.WriteRune('_')
			}

			builder.WriteRune(r)
		default:
			builder.WriteRune('_')
		}
	}

	if builder.Len() == 0 {
		return "_"
	}

	return builder.String()
}

// unexported constants.
const (
	receiverName = "u"
)

// unexported functions.

func ident(name string) *dst.Ident {
	return dst.NewIdent(name)
}

func paramList(types []reflect.Type, prefix string, named bool) *dst.FieldList {
	list := &dst.FieldList{}

	for i, t := range types {
		field := &dst.Field{Type: typeExpr(t)}
		if named {
			field.Names = []*dst.Ident{ident(prefix + strconv.Itoa(i))}
		}

		list.List = append(list.List, field)
	}

	return list
}

func paramRefs(count int) []dst.Expr {
	refs := make([]dst.Expr, 0, count)

	for i := range count {
		refs = append(refs, ident("p"+strconv.Itoa(i)))
	}

	return refs
}

func renderBody(op *Operation) []dst.Stmt {
	fieldRef := func(field string) dst.Expr {
		return &dst.SelectorExpr{X: ident(receiverName), Sel: ident(field)}
	}

	switch op.Kind {
	case BodySetter:
		return []dst.Stmt{&dst.AssignStmt{
			Lhs: []dst.Expr{fieldRef(op.Field)},
			Tok: token.ASSIGN,
			Rhs: []dst.Expr{ident("p0")},
		}}
	case BodyReportSelection:
		args := append([]dst.Expr{&dst.BasicLit{Kind: token.STRING, Value: strconv.Quote(op.Name)}},
			paramRefs(len(op.In))...)

		return []dst.Stmt{&dst.ReturnStmt{Results: []dst.Expr{
			&dst.CallExpr{Fun: fieldRef("callback"), Args: args, Ellipsis: op.Variadic},
		}}}
	case BodyInvoke:
		args := make([]dst.Expr, 0, len(op.Site.Target.In))

		for i, t := range op.Site.Target.In {
			args = append(args, &dst.TypeAssertExpr{
				X:    &dst.IndexExpr{X: ident("p0"), Index: &dst.BasicLit{Kind: token.INT, Value: strconv.Itoa(i)}},
				Type: typeExpr(t),
			})
		}

		call := &dst.CallExpr{
			Fun: &dst.SelectorExpr{
				X:   &dst.TypeAssertExpr{X: fieldRef(op.Site.Field), Type: typeExpr(op.Site.TargetType)},
				Sel: ident(op.Site.Target.Name),
			},
			Args:     args,
			Ellipsis: op.Site.Target.Variadic,
		}

		return []dst.Stmt{&dst.ExprStmt{X: call}, &dst.ReturnStmt{Results: []dst.Expr{ident("nil"), ident("nil")}}}
	default:
		call := &dst.CallExpr{
			Fun:      &dst.SelectorExpr{X: fieldRef("delegate"), Sel: ident(op.Name)},
			Args:     paramRefs(len(op.In)),
			Ellipsis: op.Variadic,
		}

		if len(op.Out) == 0 {
			return []dst.Stmt{&dst.ExprStmt{X: call}}
		}

		return []dst.Stmt{&dst.ReturnStmt{Results: []dst.Expr{call}}}
	}
}

func renderConstructor(typeName string) *dst.FuncDecl {
	return &dst.FuncDecl{
		Name: ident("new" + typeName),
		Type: &dst.FuncType{
			Params:  &dst.FieldList{},
			Results: &dst.FieldList{List: []*dst.Field{{Type: &dst.StarExpr{X: ident(typeName)}}}},
		},
		Body: &dst.BlockStmt{List: []dst.Stmt{&dst.ReturnStmt{Results: []dst.Expr{
			&dst.UnaryExpr{Op: token.AND, X: &dst.CompositeLit{Type: ident(typeName)}},
		}}}},
	}
}

func renderOperation(op *Operation, typeName string) *dst.FuncDecl {
	params := paramList(op.In, "p", true)
	if op.Variadic && len(params.List) > 0 {
		last := params.List[len(params.List)-1]
		last.Type = &dst.Ellipsis{Elt: typeExpr(op.In[len(op.In)-1].Elem())}
	}

	results := paramList(op.Out, "", false)
	if op.Kind == BodyInvoke {
		results = paramList([]reflect.Type{anySliceType, errorType}, "", false)
	}

	decl := &dst.FuncDecl{
		Recv: &dst.FieldList{List: []*dst.Field{{
			Names: []*dst.Ident{ident(receiverName)},
			Type:  &dst.StarExpr{X: ident(typeName)},
		}}},
		Name: ident(op.Name),
		Type: &dst.FuncType{Params: params, Results: results},
		Body: &dst.BlockStmt{List: renderBody(op)},
	}

	for _, advice := range op.Advice {
		decl.Decs.Start.Append("// advised by " + advice)
	}

	return decl
}

func renderType(u *Unit, typeName string) *dst.GenDecl {
	fields := &dst.FieldList{}

	if u.Base != nil && u.Base != objectType {
		fields.List = append(fields.List, &dst.Field{Type: typeExpr(u.Base)})
	}

	for _, field := range u.Fields {
		fields.List = append(fields.List, &dst.Field{Names: []*dst.Ident{ident(field.Name)}, Type: typeExpr(field.Type)})
	}

	decl := &dst.GenDecl{
		Tok: token.TYPE,
		Specs: []dst.Spec{&dst.TypeSpec{
			Name: ident(typeName),
			Type: &dst.StructType{Fields: fields},
		}},
	}

	decl.Decs.Start.Append(fmt.Sprintf("// %s is generated by weavetest (%s).", typeName, markerNames[u.Marker]))

	if len(u.Capabilities) > 0 {
		names := make([]string, 0, len(u.Capabilities))
		for _, capability := range u.Capabilities {
			names = append(names, capability.String())
		}

		decl.Decs.Start.Append("// Capabilities: " + strings.Join(names, ", ") + ".")
	}

	return decl
}

func typeExpr(t reflect.Type) dst.Expr {
	if t == nil {
		return ident("any")
	}

	return ident(t.String())
}

// unexported variables.
var (
	//nolint:gochecknoglobals // reflected type constants
	anySliceType = reflect.TypeFor[[]any]()
	//nolint:gochecknoglobals // reflected type constants
	errorType = reflect.TypeFor[error]()
	//nolint:gochecknoglobals // reflected type constants
	objectType = reflect.TypeFor[Object]()
	//nolint:gochecknoglobals // display names
	markerNames = map[Marker]string{
		MarkerNone:     "plain unit",
		MarkerProxy:    "forwarding proxy",
		MarkerSelector: "method selector",
		MarkerCaller:   "method caller",
	}
)
