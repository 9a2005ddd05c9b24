package schedule

import (
	"testing"
	"time"
)

func at(hour, minute int) time.Time {
	return time.Date(2026, 8, 27, hour, minute, 0, 0, time.UTC)
}

func TestContainsSameDayWindow(t *testing.T) {
	w := Window{Start: "09:00", End: "17:30"}

	cases := []struct {
		hour, minute int
		want         bool
	}{
		{8, 59, false},
		{9, 0, true},
		{12, 0, true},
		{17, 29, true},
		{17, 30, false},
		{23, 0, false},
	}

	for _, tc := range cases {
		if got := w.Contains(at(tc.hour, tc.minute)); got != tc.want {
			t.Fatalf("Contains(%02d:%02d) = %v, want %v", tc.hour, tc.minute, got, tc.want)
		}
	}
}

func TestContainsMidnightWrap(t *testing.T) {
	w := Window{Start: "23:00", End: "07:00"}

	cases := []struct {
		hour, minute int
		want         bool
	}{
		{22, 59, false},
		{23, 0, true},
		{0, 30, true},
		{6, 59, true},
		{7, 0, false},
		{12, 0, false},
	}

	for _, tc := range cases {
		if got := w.Contains(at(tc.hour, tc.minute)); got != tc.want {
			t.Fatalf("Contains(%02d:%02d) = %v, want %v", tc.hour, tc.minute, got, tc.want)
		}
	}
}

func TestContainsDisabledAndDegenerate(t *testing.T) {
	if (Window{}).Contains(at(12, 0)) {
		t.Fatal("empty window must contain nothing")
	}

	if (Window{Start: "08:00", End: "08:00"}).Contains(at(8, 0)) {
		t.Fatal("zero-length window must contain nothing")
	}
}

func TestValidateRejectsBadTime(t *testing.T) {
	if err := (Window{Start: "9:0", End: "17:00"}).Validate(); err == nil {
		t.Fatal("expected validation error for bad time format")
	}

	if err := (Window{Start: "25:00", End: "17:00"}).Validate(); err == nil {
		t.Fatal("expected validation error for out-of-range hour")
	}

	if err := (Window{}).Validate(); err != nil {
		t.Fatalf("disabled window must validate, got %v", err)
	}
}

func TestNormalizeTimeHM(t *testing.T) {
	got, err := NormalizeTimeHM("7:05")
	if err != nil {
		t.Fatalf("NormalizeTimeHM returned error: %v", err)
	}

	if got != "07:05" {
		t.Fatalf("expected 07:05, got %s", got)
	}
}
