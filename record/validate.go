package record

import (
	"encoding/json"
	"fmt"
)

// requiredFields lists the JSON keys that must be present for each record
// type.
var requiredFields = map[Type][]string{
	TypeCropRecommendation: {"N", "P", "K", "temperature", "humidity", "ph", "rainfall"},
	TypeMarketPrice:        {"commodity", "market", "min_price", "max_price", "modal_price"},
	TypeWeatherObservation: {"location"},
	TypeSoilAnalysis:       {"field_id", "ph"},
}

// Validate checks a payload against the rules for the given record type and
// returns every violated rule. An empty slice means the payload is valid.
// Validate is pure: it performs no I/O and has no side effects.
func Validate(t Type, p Payload) []string {
	if !t.IsValid() {
		return []string{fmt.Sprintf("Unknown record type: %s", t)}
	}
	if p == nil {
		return []string{"Payload is required"}
	}

	if raw, ok := p.(Raw); ok {
		return validateRaw(t, raw)
	}

	if p.RecordType() != t {
		return []string{fmt.Sprintf("Payload type mismatch: got %s, want %s", p.RecordType(), t)}
	}
	return validateTyped(p)
}

// validateRaw checks field presence against the wire form, then decodes and
// applies the typed rules. Presence must be checked on the raw object:
// decoding fills omitted numeric fields with zero values.
func validateRaw(t Type, raw Raw) []string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw.Data, &fields); err != nil {
		return []string{fmt.Sprintf("Malformed payload: %v", err)}
	}

	var violations []string
	for _, name := range requiredFields[t] {
		if _, ok := fields[name]; !ok {
			violations = append(violations, fmt.Sprintf("Missing required field: %s", name))
		}
	}

	typed, err := DecodePayload(t, raw.Data)
	if err != nil {
		violations = append(violations, fmt.Sprintf("Malformed payload: %v", err))
		return violations
	}

	// A missing string field fails both the presence check and the typed
	// empty-value check; report it once.
	seen := make(map[string]struct{}, len(violations))
	for _, v := range violations {
		seen[v] = struct{}{}
	}
	for _, v := range validateTyped(typed) {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		violations = append(violations, v)
	}
	return violations
}

func validateTyped(p Payload) []string {
	switch v := p.(type) {
	case CropRecommendation:
		return validateCropRecommendation(v)
	case MarketPrice:
		return validateMarketPrice(v)
	case WeatherObservation:
		return validateWeatherObservation(v)
	case SoilAnalysis:
		return validateSoilAnalysis(v)
	}
	return []string{fmt.Sprintf("Unknown payload type: %T", p)}
}

func validateCropRecommendation(p CropRecommendation) []string {
	var violations []string
	if p.Nitrogen < 0 {
		violations = append(violations, "N must be non-negative")
	}
	if p.Phosphorus < 0 {
		violations = append(violations, "P must be non-negative")
	}
	if p.Potassium < 0 {
		violations = append(violations, "K must be non-negative")
	}
	if p.Temperature < -30 || p.Temperature > 60 {
		violations = append(violations, "temperature must be between -30 and 60")
	}
	if p.Humidity < 0 || p.Humidity > 100 {
		violations = append(violations, "humidity must be between 0 and 100")
	}
	if p.PH < 0 || p.PH > 14 {
		violations = append(violations, "ph must be between 0 and 14")
	}
	if p.Rainfall < 0 {
		violations = append(violations, "rainfall must be non-negative")
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		violations = append(violations, "confidence must be between 0 and 1")
	}
	return violations
}

func validateMarketPrice(p MarketPrice) []string {
	var violations []string
	if p.Commodity == "" {
		violations = append(violations, "Missing required field: commodity")
	}
	if p.Market == "" {
		violations = append(violations, "Missing required field: market")
	}
	if p.MinPrice < 0 {
		violations = append(violations, "min_price must be non-negative")
	}
	if p.MaxPrice < 0 {
		violations = append(violations, "max_price must be non-negative")
	}
	if p.ModalPrice < 0 {
		violations = append(violations, "modal_price must be non-negative")
	}
	if p.MinPrice > p.MaxPrice {
		violations = append(violations, "min_price must not exceed max_price")
	}
	if p.ModalPrice < p.MinPrice || p.ModalPrice > p.MaxPrice {
		violations = append(violations, "modal_price must be within min_price and max_price")
	}
	return violations
}

func validateWeatherObservation(p WeatherObservation) []string {
	var violations []string
	if p.Location == "" {
		violations = append(violations, "Missing required field: location")
	}
	if p.Latitude < -90 || p.Latitude > 90 {
		violations = append(violations, "latitude must be between -90 and 90")
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		violations = append(violations, "longitude must be between -180 and 180")
	}
	if p.Humidity < 0 || p.Humidity > 100 {
		violations = append(violations, "humidity must be between 0 and 100")
	}
	if p.RainfallMM < 0 {
		violations = append(violations, "rainfall_mm must be non-negative")
	}
	return violations
}

func validateSoilAnalysis(p SoilAnalysis) []string {
	var violations []string
	if p.FieldID == "" {
		violations = append(violations, "Missing required field: field_id")
	}
	if p.PH < 0 || p.PH > 14 {
		violations = append(violations, "ph must be between 0 and 14")
	}
	if p.NitrogenPPM < 0 {
		violations = append(violations, "nitrogen_ppm must be non-negative")
	}
	if p.PhosphorusPPM < 0 {
		violations = append(violations, "phosphorus_ppm must be non-negative")
	}
	if p.PotassiumPPM < 0 {
		violations = append(violations, "potassium_ppm must be non-negative")
	}
	if p.OrganicMatterPct < 0 || p.OrganicMatterPct > 100 {
		violations = append(violations, "organic_matter_pct must be between 0 and 100")
	}
	return violations
}
