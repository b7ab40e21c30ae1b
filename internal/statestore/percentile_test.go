// SPDX-License-Identifier: GPL-3.0-or-later

package statestore

import "testing"

func TestPercentileEmpty(t *testing.T) {
	if got := percentile(nil, 95); got != 0 {
		t.Fatalf("got %d, want 0", got)
	}
}

func TestPercentileNearestRank(t *testing.T) {
	samples := []int{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	if got := percentile(samples, 80); got != 80 {
		t.Fatalf("p80 = %d, want 80", got)
	}
	if got := percentile(samples, 95); got != 100 {
		t.Fatalf("p95 = %d, want 100", got)
	}
}

func TestPercentileDoesNotMutateInput(t *testing.T) {
	samples := []int{5, 1, 3}
	_ = percentile(samples, 95)
	if samples[0] != 5 || samples[1] != 1 || samples[2] != 3 {
		t.Fatalf("percentile mutated input: %v", samples)
	}
}

func TestAppendRollingTotalEvictsFIFO(t *testing.T) {
	var totals []int
	for i := 1; i <= 13; i++ {
		totals = appendRollingTotal(totals, i)
	}
	if len(totals) != MaxRollingTotals {
		t.Fatalf("len = %d, want %d", len(totals), MaxRollingTotals)
	}
	if totals[0] != 2 {
		t.Fatalf("oldest surviving sample = %d, want 2 (1 evicted)", totals[0])
	}
	if totals[len(totals)-1] != 13 {
		t.Fatalf("newest sample = %d, want 13", totals[len(totals)-1])
	}
}
