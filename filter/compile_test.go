package filter

import (
	"encoding/json"
	"testing"

	"github.com/cea-hpc/phobos-sub000/dsserr"
)

func decode(t *testing.T, js string) map[string]interface{} {
	t.Helper()
	var tree map[string]interface{}
	if err := json.Unmarshal([]byte(js), &tree); err != nil {
		t.Fatalf("invalid test JSON: %v", err)
	}
	return tree
}

// TestCompileSpecExample is the literal example from spec §8 scenario 5.
func TestCompileSpecExample(t *testing.T) {
	tree := decode(t, `{"$AND":[{"DSS::OBJ::oid":"x"},{"$GT":{"DSS::OBJ::version":1}}]}`)
	got, err := Compile(tree, ObjectFields, Postgres)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	want := `(oid = E'x' AND version > 1)`
	if got != want {
		t.Errorf("Compile() = %q, want %q", got, want)
	}
}

func TestCompileImplicitEquality(t *testing.T) {
	tree := decode(t, `{"DSS::OBJ::oid":"bar"}`)
	got, err := Compile(tree, ObjectFields, Postgres)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if got != `oid = E'bar'` {
		t.Errorf("Compile() = %q", got)
	}
}

func TestCompileOrNor(t *testing.T) {
	tree := decode(t, `{"$OR":[{"DSS::OBJ::oid":"a"},{"DSS::OBJ::oid":"b"}]}`)
	got, err := Compile(tree, ObjectFields, Postgres)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if got != `(oid = E'a' OR oid = E'b')` {
		t.Errorf("Compile() = %q", got)
	}

	tree = decode(t, `{"$NOR":[{"DSS::OBJ::oid":"a"},{"DSS::OBJ::oid":"b"}]}`)
	got, err = Compile(tree, ObjectFields, Postgres)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if got != `NOT (oid = E'a' OR oid = E'b')` {
		t.Errorf("Compile() = %q", got)
	}
}

func TestCompileNot(t *testing.T) {
	tree := decode(t, `{"$NOT":{"DSS::OBJ::oid":"bar"}}`)
	got, err := Compile(tree, ObjectFields, Postgres)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if got != `NOT (oid = E'bar')` {
		t.Errorf("Compile() = %q", got)
	}
}

func TestCompileLike(t *testing.T) {
	tree := decode(t, `{"$LIKE":{"DSS::OBJ::oid":"foo%"}}`)
	got, err := Compile(tree, ObjectFields, Postgres)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if got != `oid LIKE E'foo%'` {
		t.Errorf("Compile() LIKE = %q", got)
	}
}

func TestCompileUnrecognizedOperatorFails(t *testing.T) {
	tree := decode(t, `{"$BOGUS":{"DSS::OBJ::oid":"bar"}}`)
	_, err := Compile(tree, ObjectFields, Postgres)
	if dsserr.KindOf(err) != dsserr.InvalidFilter {
		t.Fatalf("Compile() kind = %v, want InvalidFilter", dsserr.KindOf(err))
	}
}

func TestCompileUnknownFieldFails(t *testing.T) {
	tree := decode(t, `{"DSS::OBJ::not_a_field":"bar"}`)
	_, err := Compile(tree, ObjectFields, Postgres)
	if dsserr.KindOf(err) != dsserr.InvalidField {
		t.Fatalf("Compile() kind = %v, want InvalidField", dsserr.KindOf(err))
	}
}

func TestCompileNestedCompound(t *testing.T) {
	tree := decode(t, `{"$AND":[
		{"DSS::OBJ::oid":"x"},
		{"$OR":[{"DSS::OBJ::version":1},{"DSS::OBJ::version":2}]}
	]}`)
	got, err := Compile(tree, ObjectFields, Postgres)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	want := `(oid = E'x' AND (version = 1 OR version = 2))`
	if got != want {
		t.Errorf("Compile() = %q, want %q", got, want)
	}
}
