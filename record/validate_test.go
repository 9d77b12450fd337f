package record

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validCrop() CropRecommendation {
	return CropRecommendation{
		Nitrogen:    90,
		Phosphorus:  42,
		Potassium:   43,
		Temperature: 20.88,
		Humidity:    82.0,
		PH:          6.5,
		Rainfall:    202.94,
	}
}

func TestValidateCropRecommendationValid(t *testing.T) {
	require.Empty(t, Validate(TypeCropRecommendation, validCrop()))
}

func TestValidateRawMissingRequiredField(t *testing.T) {
	raw := RawJSON(TypeCropRecommendation, []byte(
		`{"N":90,"P":42,"K":43,"temperature":20.88,"humidity":82.0,"rainfall":202.94}`,
	))
	violations := Validate(TypeCropRecommendation, raw)
	require.Contains(t, violations, "Missing required field: ph")
}

func TestValidateReportsEveryViolation(t *testing.T) {
	raw := RawJSON(TypeCropRecommendation, []byte(
		`{"N":-5,"P":42,"temperature":20.88,"humidity":150,"ph":20,"rainfall":-1}`,
	))
	violations := Validate(TypeCropRecommendation, raw)

	require.Contains(t, violations, "Missing required field: K")
	require.Contains(t, violations, "N must be non-negative")
	require.Contains(t, violations, "humidity must be between 0 and 100")
	require.Contains(t, violations, "ph must be between 0 and 14")
	require.Contains(t, violations, "rainfall must be non-negative")
	require.GreaterOrEqual(t, len(violations), 5)
}

func TestValidateCropRanges(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CropRecommendation)
		message string
	}{
		{"negative nitrogen", func(p *CropRecommendation) { p.Nitrogen = -1 }, "N must be non-negative"},
		{"negative phosphorus", func(p *CropRecommendation) { p.Phosphorus = -1 }, "P must be non-negative"},
		{"negative potassium", func(p *CropRecommendation) { p.Potassium = -1 }, "K must be non-negative"},
		{"temperature too high", func(p *CropRecommendation) { p.Temperature = 75 }, "temperature must be between -30 and 60"},
		{"humidity over 100", func(p *CropRecommendation) { p.Humidity = 101 }, "humidity must be between 0 and 100"},
		{"ph over 14", func(p *CropRecommendation) { p.PH = 14.5 }, "ph must be between 0 and 14"},
		{"negative rainfall", func(p *CropRecommendation) { p.Rainfall = -0.1 }, "rainfall must be non-negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := validCrop()
			tt.mutate(&payload)
			require.Contains(t, Validate(TypeCropRecommendation, payload), tt.message)
		})
	}
}

func TestValidateMarketPrice(t *testing.T) {
	valid := MarketPrice{Commodity: "wheat", Market: "indore", MinPrice: 1800, MaxPrice: 2200, ModalPrice: 2000}
	require.Empty(t, Validate(TypeMarketPrice, valid))

	inverted := valid
	inverted.MinPrice, inverted.MaxPrice = 2200, 1800
	violations := Validate(TypeMarketPrice, inverted)
	require.Contains(t, violations, "min_price must not exceed max_price")

	outOfBand := valid
	outOfBand.ModalPrice = 2500
	require.Contains(t, Validate(TypeMarketPrice, outOfBand), "modal_price must be within min_price and max_price")

	missing := valid
	missing.Commodity = ""
	require.Contains(t, Validate(TypeMarketPrice, missing), "Missing required field: commodity")
}

func TestValidateWeatherObservation(t *testing.T) {
	valid := WeatherObservation{Location: "pune", Latitude: 18.52, Longitude: 73.85, Temperature: 28, Humidity: 60}
	require.Empty(t, Validate(TypeWeatherObservation, valid))

	badLat := valid
	badLat.Latitude = 95
	require.Contains(t, Validate(TypeWeatherObservation, badLat), "latitude must be between -90 and 90")

	noLocation := valid
	noLocation.Location = ""
	require.Contains(t, Validate(TypeWeatherObservation, noLocation), "Missing required field: location")
}

func TestValidateSoilAnalysis(t *testing.T) {
	valid := SoilAnalysis{FieldID: "field-7", PH: 6.8, NitrogenPPM: 40, PhosphorusPPM: 18, PotassiumPPM: 190, OrganicMatterPct: 3.1}
	require.Empty(t, Validate(TypeSoilAnalysis, valid))

	badPH := valid
	badPH.PH = -1
	require.Contains(t, Validate(TypeSoilAnalysis, badPH), "ph must be between 0 and 14")

	noField := valid
	noField.FieldID = ""
	require.Contains(t, Validate(TypeSoilAnalysis, noField), "Missing required field: field_id")
}

func TestValidateTypeMismatch(t *testing.T) {
	violations := Validate(TypeMarketPrice, validCrop())
	require.Len(t, violations, 1)
	require.Contains(t, violations[0], "Payload type mismatch")
}

func TestValidateUnknownTypeAndNilPayload(t *testing.T) {
	require.Contains(t, Validate(Type("bogus"), validCrop())[0], "Unknown record type")
	require.Equal(t, []string{"Payload is required"}, Validate(TypeCropRecommendation, nil))
}

func TestValidateMalformedRaw(t *testing.T) {
	raw := RawJSON(TypeCropRecommendation, []byte(`{not json`))
	violations := Validate(TypeCropRecommendation, raw)
	require.Len(t, violations, 1)
	require.Contains(t, violations[0], "Malformed payload")
}
