package plots

import (
	"math"
	"strconv"
	"strings"
)

// FallbackDescription is returned when no property yields a fragment.
const FallbackDescription = "Земельный участок."

// Describe renders properties as a Russian sentence sequence in a fixed
// order: area, ownership right, acquisition method, electricity, water,
// gas, restrictions.
func Describe(p Properties) string {
	var parts []string
	if p.Square != 0 {
		parts = append(parts, "Площадь участка: "+formatArea(p.Square)+" га.")
	}
	if s := value(p.OwnershipRight); s != "" {
		parts = append(parts, "Право: "+s+".")
	}
	if s := value(p.AcquisitionMethod); s != "" {
		parts = append(parts, "Получен: "+s+".")
	}
	if value(p.Electricity) == TruthyFlag {
		parts = append(parts, "Есть электроснабжение.")
	}
	if value(p.Water) == TruthyFlag {
		parts = append(parts, "Есть водоснабжение.")
	}
	if value(p.Gas) == TruthyFlag {
		parts = append(parts, "Есть газоснабжение.")
	}
	if s := value(p.Restrictions); s != "" {
		parts = append(parts, "Ограничения: "+s+".")
	}
	if len(parts) == 0 {
		return FallbackDescription
	}
	return strings.Join(parts, " ")
}

// formatArea renders a float the way stored descriptions have always shown
// it: shortest round-trip digits, at least one decimal place ("1.0"), and
// exponent form only below 1e-4 or from 1e16 up.
func formatArea(v float64) string {
	if a := math.Abs(v); a < 1e-4 || a >= 1e16 {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
