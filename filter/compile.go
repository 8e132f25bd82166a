// Package filter implements the filter compiler (spec §4.B): compiling a
// JSON expression tree into a backend predicate string, with correct
// escaping. The JSON tree is walked by the Visitor/Walk pair in
// visitor.go; this file implements the compiler as a Visitor that builds
// up a github.com/huandu/go-sqlbuilder condition tree the way
// internal/ucast.go's AsSQL does, then interpolates it into a literal
// predicate string through the same library's dialect-aware escaping.
package filter

import (
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"

	"github.com/cea-hpc/phobos-sub000/dsserr"
)

// Dialect selects the SQL flavor used for quoting/escaping.
type Dialect string

const (
	Postgres Dialect = "postgres"
)

func (d Dialect) flavor() sqlbuilder.Flavor {
	switch d {
	case Postgres, "":
		return sqlbuilder.PostgreSQL
	default:
		return sqlbuilder.PostgreSQL
	}
}

var compoundOps = map[string]bool{"$AND": true, "$OR": true, "$NOR": true}

var fieldOps = map[string]bool{
	"$NE": true, "$GT": true, "$GTE": true, "$LT": true, "$LTE": true,
	"$LIKE": true, "$REGEXP": true, "$INJSON": true, "$KVINJSON": true, "$XJSON": true,
}

func isRecognizedOperator(key string) bool {
	return compoundOps[key] || fieldOps[key] || key == "$NOT"
}

// frame accumulates the compiled predicate fragments for one container
// (JSON object or array) until its matching EndObject/EndArray combines
// them into a single fragment and hands it up to the parent frame.
type frame struct {
	isArray bool
	// op is the operator whose value this container is: the opStack top
	// at the moment the container was entered ("" for a container with no
	// governing operator, e.g. the root object or an $AND/$OR array
	// element, or one of $AND/$OR/$NOR for a compound operator's array).
	op    string
	parts []string
}

// compiler implements Visitor, compiling a tree into a single predicate
// string as it walks.
type compiler struct {
	fields  FieldMap
	cond    *sqlbuilder.Cond
	opStack []string
	frames  []*frame

	currentKey   string // raw (possibly "$"-prefixed) key just entered
	currentField string // resolved backend column, valid when currentKey is a field

	result string
}

// Compile compiles tree (already decoded by encoding/json, so containers
// are map[string]interface{}/[]interface{}) into a predicate string safe
// to splice into a larger SQL statement, using fields to translate the
// public field namespace (spec §6.2) into backend columns.
func Compile(tree map[string]interface{}, fields FieldMap, dialect Dialect) (string, error) {
	c := &compiler{
		fields: fields,
		cond:   sqlbuilder.NewCond(),
	}
	c.cond.Args.Flavor = dialect.flavor()

	if err := Walk(tree, c); err != nil {
		return "", err
	}
	if c.result == "" {
		return "", dsserr.Kindf(dsserr.InvalidFilter, "empty filter")
	}

	where := sqlbuilder.NewWhereClause()
	where.AddWhereExpr(c.cond.Args, c.result)
	s, args := where.BuildWithFlavor(dialect.flavor())
	interpolated, err := dialect.flavor().Interpolate(s, args)
	if err != nil {
		return "", dsserr.Wrap(dsserr.InvalidFilter, err, "interpolate compiled filter")
	}
	// Interpolate returns "WHERE <predicate>"; callers splice the bare
	// predicate into their own query fragments (spec §4.C select contract).
	return strings.TrimPrefix(interpolated, "WHERE "), nil
}

func (c *compiler) topOp() string {
	if len(c.opStack) == 0 {
		return ""
	}
	return c.opStack[len(c.opStack)-1]
}

func (c *compiler) pushFrame(isArray bool) {
	c.frames = append(c.frames, &frame{isArray: isArray, op: c.topOp()})
}

func (c *compiler) popFrame() *frame {
	n := len(c.frames) - 1
	f := c.frames[n]
	c.frames = c.frames[:n]
	return f
}

// emit hands a fully-built predicate fragment up to whatever container is
// currently open: the enclosing object/array frame, or the compiler's
// final result if the tree root itself just finished.
func (c *compiler) emit(fragment string) {
	if len(c.frames) == 0 {
		c.result = fragment
		return
	}
	top := c.frames[len(c.frames)-1]
	top.parts = append(top.parts, fragment)
}

func (c *compiler) BeginObject() error {
	c.pushFrame(false)
	return nil
}

func (c *compiler) EndObject() error {
	f := c.popFrame()
	if len(f.parts) == 0 {
		return dsserr.Kindf(dsserr.InvalidFilter, "empty filter object")
	}
	c.emit(and(f.parts))
	return nil
}

func (c *compiler) BeginArray() error {
	c.pushFrame(true)
	return nil
}

func (c *compiler) ArrayElement(int) error { return nil }

func (c *compiler) EndArray() error {
	f := c.popFrame()
	if len(f.parts) == 0 {
		return dsserr.Kindf(dsserr.InvalidFilter, "empty filter array")
	}
	switch f.op {
	case "$AND":
		c.emit(and(f.parts))
	case "$OR":
		c.emit(or(f.parts))
	case "$NOR":
		c.emit("NOT (" + strings.Join(f.parts, " OR ") + ")")
	default:
		return dsserr.Kindf(dsserr.InvalidFilter, "array not valid outside $AND/$OR/$NOR")
	}
	return nil
}

func (c *compiler) BeginKey(name string) error {
	c.currentKey = name
	if strings.HasPrefix(name, "$") {
		if !isRecognizedOperator(name) {
			return dsserr.Kindf(dsserr.InvalidFilter, "unrecognized operator %q", name)
		}
		c.opStack = append(c.opStack, name)
		return nil
	}
	internal, err := c.fields.Resolve(name)
	if err != nil {
		return err
	}
	c.currentField = internal
	return nil
}

func (c *compiler) EndKey(name string) error {
	if !strings.HasPrefix(name, "$") {
		return nil
	}
	c.opStack = c.opStack[:len(c.opStack)-1]
	if name == "$NOT" {
		// $NOT's value is always an object nested inside the root (or a
		// deeper) object frame, so c.frames is never empty here.
		top := c.frames[len(c.frames)-1]
		n := len(top.parts)
		if n == 0 {
			return dsserr.Kindf(dsserr.InvalidFilter, "$NOT requires exactly one value")
		}
		top.parts[n-1] = "NOT (" + top.parts[n-1] + ")"
	}
	return nil
}

func (c *compiler) Scalar(value interface{}) error {
	op := c.topOp()
	if op == "$NOT" || compoundOps[op] {
		return dsserr.Kindf(dsserr.InvalidFilter, "%s requires a nested filter, got a scalar", op)
	}
	if op != "" && !fieldOps[op] {
		return dsserr.Kindf(dsserr.InvalidFilter, "unrecognized operator %q", op)
	}
	if c.currentField == "" {
		return dsserr.Kindf(dsserr.InvalidFilter, "value %v has no associated field", value)
	}

	pred, err := c.leaf(op, c.currentField, value)
	if err != nil {
		return err
	}
	c.emit(pred)
	return nil
}

func (c *compiler) leaf(op, field string, value interface{}) (string, error) {
	switch op {
	case "": // implicit equality
		return c.cond.Equal(field, value), nil
	case "$NE":
		return c.cond.NotEqual(field, value), nil
	case "$GT":
		return c.cond.GreaterThan(field, value), nil
	case "$GTE":
		return c.cond.GreaterEqualThan(field, value), nil
	case "$LT":
		return c.cond.LessThan(field, value), nil
	case "$LTE":
		return c.cond.LessEqualThan(field, value), nil
	case "$LIKE":
		return c.cond.Like(field, value), nil
	case "$REGEXP":
		return c.cond.Var(sqlbuilder.Build("$? ~ $?", sqlbuilder.Raw(field), value)), nil
	case "$INJSON":
		return c.cond.Var(sqlbuilder.Build("$? @> array[$?]", sqlbuilder.Raw(field), value)), nil
	case "$KVINJSON":
		kv, ok := value.(string)
		if !ok {
			return "", dsserr.Kindf(dsserr.InvalidFilter, "$KVINJSON requires a \"k=v\" string value")
		}
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			return "", dsserr.Kindf(dsserr.InvalidFilter, "$KVINJSON value %q is not of the form k=v", kv)
		}
		jsonLiteral := fmt.Sprintf(`{"%s":"%s"}`, parts[0], parts[1])
		return c.cond.Var(sqlbuilder.Build("$? @> $?", sqlbuilder.Raw(field), jsonLiteral)), nil
	case "$XJSON":
		return c.cond.Var(sqlbuilder.Build("$? ? $?", sqlbuilder.Raw(field), value)), nil
	default:
		return "", dsserr.Kindf(dsserr.InvalidFilter, "unrecognized operator %q", op)
	}
}

func and(parts []string) string {
	if len(parts) == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, " AND ") + ")"
}

func or(parts []string) string {
	if len(parts) == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}
