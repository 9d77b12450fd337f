// Package record defines the persisted record model: typed payloads per
// record type, integrity checksums over a canonical encoding, and the
// validation rules applied before every insert and update.
package record

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Type identifies the payload schema carried by a record.
type Type string

const (
	TypeCropRecommendation Type = "crop_recommendation"
	TypeMarketPrice        Type = "market_price"
	TypeWeatherObservation Type = "weather_observation"
	TypeSoilAnalysis       Type = "soil_analysis"
)

// AllTypes lists every known record type.
func AllTypes() []Type {
	return []Type{
		TypeCropRecommendation,
		TypeMarketPrice,
		TypeWeatherObservation,
		TypeSoilAnalysis,
	}
}

// IsValid reports whether t is a known record type.
func (t Type) IsValid() bool {
	switch t {
	case TypeCropRecommendation, TypeMarketPrice, TypeWeatherObservation, TypeSoilAnalysis:
		return true
	}
	return false
}

// Status is the lifecycle state of a record.
type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
	StatusDeleted  Status = "deleted"
	StatusPending  Status = "pending"
)

// Payload is the typed content of a record. Exactly one concrete payload
// struct exists per record Type.
type Payload interface {
	// RecordType returns the type tag this payload belongs to.
	RecordType() Type
}

// CropRecommendation is the model output for a crop choice query: soil
// nutrients, climate inputs, and the recommended crop.
type CropRecommendation struct {
	Nitrogen    float64 `json:"N"`
	Phosphorus  float64 `json:"P"`
	Potassium   float64 `json:"K"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	PH          float64 `json:"ph"`
	Rainfall    float64 `json:"rainfall"`
	Crop        string  `json:"crop,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
}

// RecordType implements Payload.
func (CropRecommendation) RecordType() Type { return TypeCropRecommendation }

// MarketPrice captures a mandi price quote for a commodity.
type MarketPrice struct {
	Commodity  string  `json:"commodity"`
	Market     string  `json:"market"`
	State      string  `json:"state,omitempty"`
	MinPrice   float64 `json:"min_price"`
	MaxPrice   float64 `json:"max_price"`
	ModalPrice float64 `json:"modal_price"`
	Unit       string  `json:"unit,omitempty"`
}

// RecordType implements Payload.
func (MarketPrice) RecordType() Type { return TypeMarketPrice }

// WeatherObservation is a point-in-time weather reading for a location.
type WeatherObservation struct {
	Location    string  `json:"location"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	RainfallMM  float64 `json:"rainfall_mm"`
	WindKPH     float64 `json:"wind_kph,omitempty"`
	Condition   string  `json:"condition,omitempty"`
}

// RecordType implements Payload.
func (WeatherObservation) RecordType() Type { return TypeWeatherObservation }

// SoilAnalysis is a lab report for a field sample.
type SoilAnalysis struct {
	FieldID          string  `json:"field_id"`
	PH               float64 `json:"ph"`
	NitrogenPPM      float64 `json:"nitrogen_ppm"`
	PhosphorusPPM    float64 `json:"phosphorus_ppm"`
	PotassiumPPM     float64 `json:"potassium_ppm"`
	OrganicMatterPct float64 `json:"organic_matter_pct"`
	Texture          string  `json:"texture,omitempty"`
}

// RecordType implements Payload.
func (SoilAnalysis) RecordType() Type { return TypeSoilAnalysis }

// Metadata carries provenance for a record.
type Metadata struct {
	Source string            `json:"source,omitempty"`
	Actor  string            `json:"actor,omitempty"`
	Tags   []string          `json:"tags,omitempty"`
	Extra  map[string]string `json:"extra,omitempty"`
}

// Record is a validated, versioned, checksummed payload as persisted by the
// store.
type Record struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Payload   Payload   `json:"payload"`
	Metadata  Metadata  `json:"metadata"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int       `json:"version"`
	Checksum  string    `json:"checksum"`
}

// recordJSON mirrors Record with a raw payload for two-phase decoding.
type recordJSON struct {
	ID        string          `json:"id"`
	Type      Type            `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Metadata  Metadata        `json:"metadata"`
	Status    Status          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Version   int             `json:"version"`
	Checksum  string          `json:"checksum"`
}

// UnmarshalJSON decodes a record, resolving the payload into the typed
// struct for the record's type.
func (r *Record) UnmarshalJSON(data []byte) error {
	var rj recordJSON
	if err := json.Unmarshal(data, &rj); err != nil {
		return err
	}
	payload, err := DecodePayload(rj.Type, rj.Payload)
	if err != nil {
		return err
	}
	*r = Record{
		ID:        rj.ID,
		Type:      rj.Type,
		Payload:   payload,
		Metadata:  rj.Metadata,
		Status:    rj.Status,
		CreatedAt: rj.CreatedAt,
		UpdatedAt: rj.UpdatedAt,
		Version:   rj.Version,
		Checksum:  rj.Checksum,
	}
	return nil
}

// CanonicalPayload returns the canonical JSON encoding of a payload. Struct
// fields encode in declaration order and map keys sort, so the encoding is
// stable for identical content.
func CanonicalPayload(p Payload) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("canonical payload: %w", err)
	}
	return data, nil
}

// Checksum computes the hex SHA-256 digest of the canonical payload encoding.
func Checksum(p Payload) (string, error) {
	data, err := CanonicalPayload(p)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// VerifyChecksum reports whether the record's stored checksum matches its
// payload content.
func (r *Record) VerifyChecksum() bool {
	sum, err := Checksum(r.Payload)
	if err != nil {
		return false
	}
	return sum == r.Checksum
}

// DecodePayload unmarshals raw payload JSON into the typed struct for the
// given record type.
func DecodePayload(t Type, data []byte) (Payload, error) {
	var p Payload
	switch t {
	case TypeCropRecommendation:
		p = &CropRecommendation{}
	case TypeMarketPrice:
		p = &MarketPrice{}
	case TypeWeatherObservation:
		p = &WeatherObservation{}
	case TypeSoilAnalysis:
		p = &SoilAnalysis{}
	default:
		return nil, fmt.Errorf("decode payload: unknown record type %q", t)
	}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("decode payload: type=%s: %w", t, err)
	}
	return deref(p), nil
}

// deref returns the payload by value so two decodes of the same content
// compare equal.
func deref(p Payload) Payload {
	switch v := p.(type) {
	case *CropRecommendation:
		return *v
	case *MarketPrice:
		return *v
	case *WeatherObservation:
		return *v
	case *SoilAnalysis:
		return *v
	}
	return p
}
