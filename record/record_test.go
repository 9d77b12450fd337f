package record

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestChecksumIsStableForIdenticalContent(t *testing.T) {
	a, err := Checksum(validCrop())
	require.NoError(t, err)
	b, err := Checksum(validCrop())
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Len(t, a, 64) // hex SHA-256

	changed := validCrop()
	changed.PH = 7.0
	c, err := Checksum(changed)
	require.NoError(t, err)
	require.NotEqual(t, a, c)
}

func TestChecksumSurvivesDecodeRoundTrip(t *testing.T) {
	payload := validCrop()
	sum, err := Checksum(payload)
	require.NoError(t, err)

	data, err := CanonicalPayload(payload)
	require.NoError(t, err)
	decoded, err := DecodePayload(TypeCropRecommendation, data)
	require.NoError(t, err)

	sum2, err := Checksum(decoded)
	require.NoError(t, err)
	require.Equal(t, sum, sum2)
}

func TestVerifyChecksum(t *testing.T) {
	payload := validCrop()
	sum, err := Checksum(payload)
	require.NoError(t, err)

	rec := &Record{ID: "r1", Type: TypeCropRecommendation, Payload: payload, Checksum: sum}
	require.True(t, rec.VerifyChecksum())

	rec.Checksum = "deadbeef"
	require.False(t, rec.VerifyChecksum())
}

func TestDecodePayloadUnknownType(t *testing.T) {
	_, err := DecodePayload(Type("bogus"), []byte(`{}`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown record type")
}

func TestDecodePayloadEachType(t *testing.T) {
	tests := []struct {
		recordType Type
		data       string
		want       Payload
	}{
		{TypeCropRecommendation, `{"N":1,"P":2,"K":3,"temperature":20,"humidity":50,"ph":7,"rainfall":100}`,
			CropRecommendation{Nitrogen: 1, Phosphorus: 2, Potassium: 3, Temperature: 20, Humidity: 50, PH: 7, Rainfall: 100}},
		{TypeMarketPrice, `{"commodity":"wheat","market":"indore","min_price":1,"max_price":3,"modal_price":2}`,
			MarketPrice{Commodity: "wheat", Market: "indore", MinPrice: 1, MaxPrice: 3, ModalPrice: 2}},
		{TypeWeatherObservation, `{"location":"pune","latitude":18.52,"longitude":73.85}`,
			WeatherObservation{Location: "pune", Latitude: 18.52, Longitude: 73.85}},
		{TypeSoilAnalysis, `{"field_id":"f1","ph":6.5}`,
			SoilAnalysis{FieldID: "f1", PH: 6.5}},
	}

	for _, tt := range tests {
		t.Run(string(tt.recordType), func(t *testing.T) {
			got, err := DecodePayload(tt.recordType, []byte(tt.data))
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.recordType, got.RecordType())
		})
	}
}

func TestRecordJSONRoundTrip(t *testing.T) {
	payload := validCrop()
	sum, err := Checksum(payload)
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Second)
	rec := Record{
		ID:        "r1",
		Type:      TypeCropRecommendation,
		Payload:   payload,
		Metadata:  Metadata{Source: "api", Actor: "farmer-1", Tags: []string{"kharif"}},
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   3,
		Checksum:  sum,
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var decoded Record
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, rec, decoded)
	require.True(t, decoded.VerifyChecksum())
}

func TestTypeIsValid(t *testing.T) {
	for _, typ := range AllTypes() {
		require.True(t, typ.IsValid())
	}
	require.False(t, Type("bogus").IsValid())
}
