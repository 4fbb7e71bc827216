package aggregator

import (
	"fmt"
	"strings"

	"collections-etl-go/internal/types"
)

// portfolioMarkers maps filename substrings to portfolio types. Ordered: first
// match wins, anything else is OTRAS.
var portfolioMarkers = []struct {
	markers   []string
	portfolio string
}{
	{[]string{"TEMPRANA"}, "TEMPRANA"},
	{[]string{"CF_ANN", "CUOTA_FIJA"}, "CUOTA_FIJA_ANUAL"},
	{[]string{"_AN_", "ALTAS_NUEVAS"}, "ALTAS_NUEVAS"},
	{[]string{"COBRANDING"}, "COBRANDING"},
}

// portfolioType classifies a source file name into a portfolio type.
func portfolioType(sourceFile string) string {
	upper := strings.ToUpper(sourceFile)
	for _, m := range portfolioMarkers {
		for _, marker := range m.markers {
			if strings.Contains(upper, marker) {
				return m.portfolio
			}
		}
	}
	return types.PortfolioOther
}

// recoveryObjectives is the fixed target-rate lookup per management segment.
var recoveryObjectives = map[string]float64{
	"AL VCTO":       0.15,
	"ENTRE 4 Y 15D": 0.25,
	"TEMPRANA":      0.20,
	"TARDIA":        0.30,
}

const defaultRecoveryObjective = 0.20

func recoveryObjective(segment string) float64 {
	if obj, ok := recoveryObjectives[strings.ToUpper(strings.TrimSpace(segment))]; ok {
		return obj
	}
	return defaultRecoveryObjective
}

// managementSegment combines the raw segment with the installment markers the way
// the source files encode them.
func managementSegment(a types.AssignmentRecord) string {
	segment := strings.TrimSpace(a.ManagementSegment)
	if a.Installment {
		segment += " - FRACCIONADO"
	}
	if n := strings.TrimSpace(a.InstallmentNumber); n != "" {
		segment += fmt.Sprintf(" - CUOTA_%s", n)
	}
	if segment == "" {
		return types.SegmentUnspecified
	}
	return segment
}

// outcomeNarrative prefers the most granular classification levels, joined with
// " - ", falling back to the generic outcome code.
func outcomeNarrative(ev types.InteractionEvent) string {
	var parts []string
	for _, level := range []string{ev.Level1, ev.Level2, ev.Level3} {
		if v := strings.TrimSpace(level); v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, " - ")
	}
	if v := strings.TrimSpace(ev.Outcome); v != "" {
		return v
	}
	return types.OutcomeUnavailable
}

// isEffectiveContact reports whether an outcome classifies as a successful
// customer contact.
func isEffectiveContact(outcome string) bool {
	return strings.EqualFold(strings.TrimSpace(outcome), "CONTACTO_EFECTIVO")
}

// isCommitment reports whether the narrative declares a payment commitment.
func isCommitment(narrative string) bool {
	return strings.Contains(strings.ToUpper(narrative), "COMPROMISO")
}
