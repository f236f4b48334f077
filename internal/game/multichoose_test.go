package game

import (
	"errors"
	"reflect"
	"testing"

	"gonum.org/v1/gonum/stat/combin"
)

func TestMultichooseCountsAndSums(t *testing.T) {
	for n := 1; n <= 5; n++ {
		for total := 0; total <= 6; total++ {
			vectors, err := Multichoose(n, total)
			if err != nil {
				t.Fatalf("multichoose(%d,%d): %v", n, total, err)
			}
			want, err := Compositions(n, total)
			if err != nil {
				t.Fatalf("compositions(%d,%d): %v", n, total, err)
			}
			if len(vectors) != want {
				t.Fatalf("multichoose(%d,%d) yielded %d vectors, want %d", n, total, len(vectors), want)
			}
			seen := make(map[string]struct{}, len(vectors))
			for _, v := range vectors {
				if len(v) != n {
					t.Fatalf("vector %v has length %d, want %d", v, len(v), n)
				}
				sum := 0
				for _, x := range v {
					if x < 0 {
						t.Fatalf("negative entry in %v", v)
					}
					sum += x
				}
				if sum != total {
					t.Fatalf("vector %v sums to %d, want %d", v, sum, total)
				}
			}
			for _, v := range vectors {
				k := keyOf(v)
				if _, dup := seen[k]; dup {
					t.Fatalf("duplicate vector %v in multichoose(%d,%d)", v, n, total)
				}
				seen[k] = struct{}{}
			}
		}
	}
}

func keyOf(v []int) string {
	b := make([]byte, 0, len(v)*2)
	for _, x := range v {
		b = append(b, byte(x), ',')
	}
	return string(b)
}

func TestMultichooseOrderIsLexicographic(t *testing.T) {
	got, err := Multichoose(3, 2)
	if err != nil {
		t.Fatalf("multichoose: %v", err)
	}
	want := [][]int{
		{0, 0, 2},
		{0, 1, 1},
		{0, 2, 0},
		{1, 0, 1},
		{1, 1, 0},
		{2, 0, 0},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected order:\n got %v\nwant %v", got, want)
	}
}

func TestMultichooseDegenerateCases(t *testing.T) {
	zero, err := Multichoose(4, 0)
	if err != nil {
		t.Fatalf("multichoose(4,0): %v", err)
	}
	if !reflect.DeepEqual(zero, [][]int{{0, 0, 0, 0}}) {
		t.Fatalf("expected single zero vector, got %v", zero)
	}

	empty, err := Multichoose(0, 0)
	if err != nil {
		t.Fatalf("multichoose(0,0): %v", err)
	}
	if len(empty) != 1 || len(empty[0]) != 0 {
		t.Fatalf("expected one empty vector, got %v", empty)
	}

	for _, tc := range []struct{ n, total int }{{0, 3}, {-1, 2}, {2, -1}} {
		if _, err := Multichoose(tc.n, tc.total); !errors.Is(err, ErrDegenerateEnumeration) {
			t.Fatalf("multichoose(%d,%d): expected ErrDegenerateEnumeration, got %v", tc.n, tc.total, err)
		}
	}
}

func TestCompositionsMatchesBinomial(t *testing.T) {
	cases := []struct{ n, total, want int }{
		{3, 2, 6},
		{15, 3, 680},
		{1, 9, 1},
		{24, 2, 300},
	}
	for _, tc := range cases {
		got, err := Compositions(tc.n, tc.total)
		if err != nil {
			t.Fatalf("compositions(%d,%d): %v", tc.n, tc.total, err)
		}
		if got != tc.want {
			t.Fatalf("compositions(%d,%d)=%d, want %d", tc.n, tc.total, got, tc.want)
		}
	}
}

func TestCompositionsAgreesWithCombin(t *testing.T) {
	for n := 1; n <= 30; n++ {
		for total := 0; total <= 12; total++ {
			got, err := Compositions(n, total)
			if err != nil {
				t.Fatalf("compositions(%d,%d): %v", n, total, err)
			}
			if want := combin.Binomial(total+n-1, n-1); got != want {
				t.Fatalf("compositions(%d,%d)=%d, want %d", n, total, got, want)
			}
		}
	}
}

func TestCompositionsOverflow(t *testing.T) {
	cases := []struct{ n, total int }{
		{40, 400},
		{200, 200},
		{2, int(^uint(0) >> 1)},
	}
	for _, tc := range cases {
		got, err := Compositions(tc.n, tc.total)
		if !errors.Is(err, ErrStrategySpaceTooLarge) {
			t.Fatalf("compositions(%d,%d)=%d err=%v, want ErrStrategySpaceTooLarge", tc.n, tc.total, got, err)
		}
	}
	// C(66, 33) fits in an int64 with little room to spare.
	if got, err := Compositions(34, 33); err != nil || got != 7219428434016265740 {
		t.Fatalf("compositions(34,33)=%d err=%v", got, err)
	}
}
