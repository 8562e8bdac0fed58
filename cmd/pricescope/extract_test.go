package main

import "testing"

func TestResolveStartBlock(t *testing.T) {
	cases := []struct {
		name       string
		configured uint64
		last       uint64
		has        bool
		want       uint64
	}{
		{"no watermark keeps configured", 100, 0, false, 100},
		{"watermark behind configured keeps configured", 500, 200, true, 500},
		{"watermark ahead resumes past it", 100, 400, true, 401},
		{"watermark at configured advances one", 100, 100, true, 101},
	}
	for _, tc := range cases {
		if got := resolveStartBlock(tc.configured, tc.last, tc.has); got != tc.want {
			t.Errorf("%s: got %d, want %d", tc.name, got, tc.want)
		}
	}
}
