package domain

import (
	"strconv"
	"strings"
)

var freeMarkers = []string{"darm", "free", "bezpłatn"}

// ParsePrice разбирает цену вида "1 299,99 zł". Бесплатные и нечитаемые
// значения дают 0.
func ParsePrice(raw string) float64 {
	if raw == "" {
		return 0
	}
	clean := strings.ToLower(raw)
	clean = strings.ReplaceAll(clean, "zł", "")
	clean = strings.ReplaceAll(clean, "\u00a0", "")
	clean = strings.ReplaceAll(clean, " ", "")
	clean = strings.ReplaceAll(clean, ",", ".")

	for _, marker := range freeMarkers {
		if strings.Contains(clean, marker) {
			return 0
		}
	}

	price, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0
	}
	return price
}
