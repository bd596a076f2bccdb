package core

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func reportTable() Table {
	return Table{Columns: []Column{
		NewColumn("ID", []Value{Int(1), Int(2), Int(3000000000)}),
		NewColumn("Name", []Value{Text("Alice"), Text(" Bob "), Text("Christopher")}),
		NewColumn("Active", []Value{Text("yes"), Text("no"), Null()}),
		NewColumn("Note", []Value{Text("a"), Text("b"), Text("c")}),
	}}
}

func TestTransform(t *testing.T) {
	table := reportTable()
	plan := InferPlan(table).
		Override("Name", TextConfig(5)).
		Override("Active", ColumnConfig{Type: TypeBoolean}).
		Select("Name", "ID", "Active")

	out, findings, err := Transform(context.Background(), table, plan, TransformOptions{Workers: 2})
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}

	if want := []string{"Name", "ID", "Active"}; !reflect.DeepEqual(out.Names(), want) {
		t.Errorf("Names = %v, want %v", out.Names(), want)
	}
	if got := out.Rows(); got != 3 {
		t.Errorf("Rows = %d, want 3", got)
	}
	wantRow := []Value{Text("Chris"), Int(IntegerMax), Bool(false)}
	if got := out.Row(2); !reflect.DeepEqual(got, wantRow) {
		t.Errorf("Row(2) = %v, want %v", got, wantRow)
	}

	var got []string
	for _, f := range findings {
		got = append(got, f.Column+"/"+string(f.Category))
	}
	want := []string{"Name/invalid_encoding", "Name/truncated", "ID/out_of_range"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("findings = %v, want %v", got, want)
	}
}

func TestTransform_LeavesSourceUntouched(t *testing.T) {
	table := reportTable()
	before := reportTable()

	if _, _, err := Transform(context.Background(), table, InferPlan(table).Override("Name", TextConfig(2)), TransformOptions{}); err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if !reflect.DeepEqual(table, before) {
		t.Error("source table was modified")
	}
}

func TestTransform_InvalidPlanProducesNoOutput(t *testing.T) {
	table := reportTable()
	plan := InferPlan(table).Override("Note", ColumnConfig{Type: "decimal"})

	out, findings, err := Transform(context.Background(), table, plan, TransformOptions{})
	var ce *ConfigError
	if !errors.As(err, &ce) || ce.Column != "Note" {
		t.Fatalf("err = %v, want ConfigError for Note", err)
	}
	if len(out.Columns) != 0 || findings != nil {
		t.Errorf("partial output on failure: %v %v", out, findings)
	}
}

func TestTransform_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := Transform(ctx, reportTable(), InferPlan(reportTable()), TransformOptions{Workers: 1})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestTransform_WorkerCountDoesNotChangeResult(t *testing.T) {
	table := reportTable()
	plan := InferPlan(table).Override("Name", TextConfig(3))

	out1, f1, err := Transform(context.Background(), table, plan, TransformOptions{Workers: 1})
	if err != nil {
		t.Fatal(err)
	}
	out8, f8, err := Transform(context.Background(), table, plan, TransformOptions{Workers: 8})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(out1, out8) || !reflect.DeepEqual(f1, f8) {
		t.Error("results differ between worker counts")
	}
}
