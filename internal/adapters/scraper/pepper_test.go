package scraper

import "testing"

func TestParseTemperature(t *testing.T) {
	cases := map[string]int{
		"250°":      250,
		"1 024°":    1,
		"-15°":      -15,
		"Wygasły":   0,
		"":          0,
		"105° Hot!": 105,
	}
	for input, expected := range cases {
		if got := ParseTemperature(input); got != expected {
			t.Fatalf("для %q ожидали %d, получили %d", input, expected, got)
		}
	}
}
