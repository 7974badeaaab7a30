package diag_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-kintone-forms/pkg/diag"
)

func TestListMessagesPreservesOrder(t *testing.T) {
	var list diag.List
	list.Warn(diag.CodeFieldCodeRenamed, "status", "renamed to %q", "status_1")
	list.Warn(diag.CodeUnitPositionInferred, "price", "unitPosition set to %s", "BEFORE")
	list.Warn(diag.CodeFieldMissingFromLayout, "", "orphan")

	want := []string{
		`status: renamed to "status_1"`,
		"price: unitPosition set to BEFORE",
		"orphan",
	}
	if diff := cmp.Diff(want, list.Messages()); diff != "" {
		t.Fatalf("messages mismatch (-want +got):\n%s", diff)
	}
	if !list.HasCode(diag.CodeUnitPositionInferred) {
		t.Fatalf("expected HasCode to find UnitPositionInferred")
	}
	if got := len(list.Filter(diag.CodeFieldCodeRenamed)); got != 1 {
		t.Fatalf("expected one renamed diagnostic, got %d", got)
	}
}

func TestEmptyListMessagesIsNil(t *testing.T) {
	var list diag.List
	if list.Messages() != nil {
		t.Fatalf("expected nil messages for empty list")
	}
}

func TestErrorMatchesSentinelThroughWrapping(t *testing.T) {
	err := fmt.Errorf("orchestrator: add fields: %w", diag.Errorf(diag.CodeInvalidFieldSize, "layout[0].fields[1].size.width", "value %q has a unit suffix", "200px"))

	if !errors.Is(err, diag.ErrInvalidFieldSize) {
		t.Fatalf("expected errors.Is to match InvalidFieldSize, got %v", err)
	}
	if errors.Is(err, diag.ErrInvalidLayoutNode) {
		t.Fatalf("did not expect InvalidLayoutNode match")
	}

	var target *diag.Error
	if !errors.As(err, &target) {
		t.Fatalf("expected errors.As to extract *diag.Error")
	}
	want := `InvalidFieldSize: layout[0].fields[1].size.width: value "200px" has a unit suffix`
	if target.Error() != want {
		t.Fatalf("unexpected message:\nwant %s\ngot  %s", want, target.Error())
	}
}

func TestJoinPath(t *testing.T) {
	cases := map[string]string{
		diag.JoinPath("", "status"):                      "status",
		diag.JoinPath("table", "fields", "qty"):          "table.fields.qty",
		diag.JoinPath("layout", "[0]", "fields", "[2]"):  "layout[0].fields[2]",
		diag.JoinPath("options", "", "[A]", "index"):     "options[A].index",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("JoinPath mismatch: want %q got %q", want, got)
		}
	}
}
