package features

import (
	"errors"
	"math"
	"testing"
	"time"

	"PriceCast/internal/domain/models"
)

func TestScalerRoundTrip(t *testing.T) {
	series := []float64{101.5, 99.25, 130.75, 87.1, 112.0, 87.1000001}
	s, err := FitScaler(series)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if s.Min != 87.1 || s.Max != 130.75 {
		t.Fatalf("unexpected range %+v", s)
	}
	for _, x := range series {
		got := s.Inverse(s.Transform(x))
		if math.Abs(got-x) > 1e-9 {
			t.Fatalf("round trip %v -> %v", x, got)
		}
	}
	if s.Transform(s.Min) != 0 || s.Transform(s.Max) != 1 {
		t.Fatalf("bounds not mapped to [0,1]")
	}
}

func TestScalerExtrapolates(t *testing.T) {
	s, err := FitScaler([]float64{10, 20})
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if got := s.Transform(30); math.Abs(got-2) > 1e-12 {
		t.Fatalf("expected 2, got %v", got)
	}
	if got := s.Inverse(-0.5); math.Abs(got-5) > 1e-12 {
		t.Fatalf("expected 5, got %v", got)
	}
}

func TestFitScalerDegenerate(t *testing.T) {
	cases := map[string][]float64{
		"empty":    nil,
		"constant": {42, 42, 42, 42},
		"nan":      {1, math.NaN(), 3},
	}
	for name, series := range cases {
		if _, err := FitScaler(series); !errors.Is(err, ErrDegenerateRange) {
			t.Fatalf("%s: expected ErrDegenerateRange, got %v", name, err)
		}
	}
	if err := (Scaler{Min: 3, Max: 3}).Validate(); !errors.Is(err, ErrDegenerateRange) {
		t.Fatalf("zero span must fail validation")
	}
}

func TestBuildTrainingSetCounts(t *testing.T) {
	for _, tc := range []struct{ l, w int }{{100, 60}, {61, 60}, {60, 60}, {10, 60}, {5, 1}} {
		series := make([]float64, tc.l)
		for i := range series {
			series[i] = float64(i)
		}
		set, err := BuildTrainingSet(series, tc.w)
		want := tc.l - tc.w
		if want <= 0 {
			if !errors.Is(err, ErrInsufficientData) {
				t.Fatalf("L=%d W=%d: expected ErrInsufficientData, got %v", tc.l, tc.w, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("L=%d W=%d: %v", tc.l, tc.w, err)
		}
		if set.Len() != want {
			t.Fatalf("L=%d W=%d: got %d samples want %d", tc.l, tc.w, set.Len(), want)
		}
		for i, s := range set.Samples {
			if len(s.Window) != tc.w {
				t.Fatalf("sample %d window len %d", i, len(s.Window))
			}
			for j, v := range s.Window {
				if v != float64(i+j) {
					t.Fatalf("sample %d not contiguous at %d", i, j)
				}
			}
			// label is the index right after the window, never inside it
			if s.Label != float64(i+tc.w) {
				t.Fatalf("sample %d label %v", i, s.Label)
			}
		}
	}
}

func TestBuildTrainingSetWindowsAreCapped(t *testing.T) {
	series := []float64{1, 2, 3, 4}
	set, err := BuildTrainingSet(series, 2)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	w := append(set.Samples[0].Window, 99)
	if series[2] != 3 || w[2] != 99 {
		t.Fatalf("append on a window must not clobber the series")
	}
}

func TestSplitChronological(t *testing.T) {
	series := make([]float64, 15)
	set, _ := BuildTrainingSet(series, 5)
	train, test := set.Split(0.8)
	if train.Len() != 8 || test.Len() != 2 {
		t.Fatalf("split %d/%d", train.Len(), test.Len())
	}
}

func TestClosesRejectsUnordered(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := []models.Bar{{Time: t0, Close: 1}, {Time: t0.Add(time.Hour), Close: 2}}
	got, err := Closes(bars)
	if err != nil || len(got) != 2 || got[1] != 2 {
		t.Fatalf("closes: %v %v", got, err)
	}
	bars = append(bars, models.Bar{Time: t0.Add(time.Hour), Close: 3})
	_, err = Closes(bars)
	if !errors.Is(err, ErrUnorderedSeries) || !errors.Is(err, models.ErrUpstreamData) {
		t.Fatalf("expected unordered upstream data error, got %v", err)
	}
}

func TestScalerRejectsInfiniteSpan(t *testing.T) {
	if _, err := FitScaler([]float64{-math.MaxFloat64, math.MaxFloat64}); !errors.Is(err, ErrDegenerateRange) {
		t.Fatalf("expected degenerate range, got %v", err)
	}
	s := Scaler{Min: -math.MaxFloat64, Max: math.MaxFloat64}
	if err := s.Validate(); !errors.Is(err, ErrDegenerateRange) {
		t.Fatalf("validate: %v", err)
	}
}

func TestTail(t *testing.T) {
	xs := []float64{1, 2, 3, 4}
	if got := Tail(xs, 2); len(got) != 2 || got[0] != 3 {
		t.Fatalf("tail: %v", got)
	}
	if got := Tail(xs, 10); len(got) != 4 {
		t.Fatalf("tail short: %v", got)
	}
}
