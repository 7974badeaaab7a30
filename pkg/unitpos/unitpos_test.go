package unitpos_test

import (
	"testing"

	"github.com/goliatone/go-kintone-forms/pkg/unitpos"
)

func TestClassifyDefaults(t *testing.T) {
	cases := []struct {
		unit string
		want unitpos.Position
	}{
		{unit: "", want: unitpos.After},
		{unit: "kilometers", want: unitpos.After},
		{unit: "kg/h", want: unitpos.After},
		{unit: "$USD", want: unitpos.After},
		{unit: "$-a", want: unitpos.After},
		{unit: "m s", want: unitpos.After},
		{unit: "+", want: unitpos.After},
		{unit: "US$", want: unitpos.After},
		{unit: "$", want: unitpos.Before},
		{unit: "€", want: unitpos.Before},
		{unit: "円", want: unitpos.After},
		{unit: "%", want: unitpos.After},
		{unit: "万円", want: unitpos.After},
		{unit: "ユーロ", want: unitpos.After},
		{unit: "xyz", want: unitpos.After},
	}

	classifier := unitpos.Default()
	for _, tc := range cases {
		if got := classifier.Classify(tc.unit); got != tc.want {
			t.Errorf("Classify(%q) = %s, want %s", tc.unit, got, tc.want)
		}
	}
}

func TestClassifyTieBreaksFavourSuffix(t *testing.T) {
	classifier := unitpos.New([]string{"pt", "US"}, []string{"pt", "g"})

	if got := classifier.Classify("pt"); got != unitpos.After {
		t.Fatalf("exact conflict: got %s, want AFTER", got)
	}
	if got := classifier.Classify("USg"); got != unitpos.After {
		t.Fatalf("partial conflict: got %s, want AFTER", got)
	}
	if got := classifier.Classify("USd"); got != unitpos.Before {
		t.Fatalf("partial prefix: got %s, want BEFORE", got)
	}
	if got := classifier.Classify("kgs"); got != unitpos.After {
		t.Fatalf("partial suffix: got %s, want AFTER", got)
	}
}

func TestExplainReportsRule(t *testing.T) {
	pos, reason := unitpos.Default().Explain("$")
	if pos != unitpos.Before {
		t.Fatalf("expected BEFORE, got %s", pos)
	}
	if reason == "" {
		t.Fatalf("expected a reason string")
	}
}

func TestZeroClassifierUsesDefaults(t *testing.T) {
	var classifier unitpos.Classifier
	if got := classifier.Classify("$"); got != unitpos.Before {
		t.Fatalf("zero classifier: got %s, want BEFORE", got)
	}
}

func TestEmptyPatternsAreIgnored(t *testing.T) {
	classifier := unitpos.New([]string{"", " "}, []string{})
	if got := classifier.Classify("abc"); got != unitpos.After {
		t.Fatalf("got %s, want AFTER default", got)
	}
}
