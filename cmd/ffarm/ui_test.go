package main

import "testing"

func TestComma(t *testing.T) {
	cases := map[int64]string{
		0:             "0",
		999:           "999",
		1000:          "1,000",
		-1234567:      "-1,234,567",
		1_000_000_000: "1,000,000,000",
		-12:           "-12",
	}
	for in, want := range cases {
		if got := comma(in); got != want {
			t.Fatalf("comma(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("🍓 Strawberry", 16); got != "🍓 Strawberry" {
		t.Fatalf("short string changed: %q", got)
	}
	if got := truncate("Unlock strawberries forever", 10); got != "Unlock ..." {
		t.Fatalf("unexpected truncation %q", got)
	}
}
