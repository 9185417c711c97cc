// Package plots defines the land-plot feature model, strict parsing of
// GeoJSON feature collections and the text description used for embedding.
package plots

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrSchemaValidation is wrapped by every Parse failure.
var ErrSchemaValidation = errors.New("feature collection validation failed")

// TruthyFlag is the literal marker for a present utility.
const TruthyFlag = "True"

// Properties is the closed set of attributes a plot feature may carry.
type Properties struct {
	ID                int64   `json:"id"`
	Square            float64 `json:"square"`
	OwnershipRight    *string `json:"ownership_right"`
	AcquisitionMethod *string `json:"acquisition_method"`
	Restrictions      *string `json:"restrictions"`
	Electricity       *string `json:"electricity"`
	Water             *string `json:"water"`
	Gas               *string `json:"gas"`
}

// Payload returns the properties as stored point payload fields. Absent
// optional fields are explicit nils so an overwrite clears older values.
func (p Properties) Payload() map[string]any {
	return map[string]any{
		"id":                 p.ID,
		"square":             p.Square,
		"ownership_right":    p.OwnershipRight,
		"acquisition_method": p.AcquisitionMethod,
		"restrictions":       p.Restrictions,
		"electricity":        p.Electricity,
		"water":              p.Water,
		"gas":                p.Gas,
	}
}

// Feature is one land plot.
type Feature struct {
	Type       string     `json:"type"`
	Properties Properties `json:"properties"`
	// Geometry is kept raw; nil means absent or JSON null.
	Geometry json.RawMessage `json:"geometry"`
}

// HasGeometry reports whether the feature carries a geometry object.
func (f Feature) HasGeometry() bool {
	g := bytes.TrimSpace(f.Geometry)
	return len(g) > 0 && !bytes.Equal(g, []byte("null"))
}

// CRS is the optional coordinate reference system tag.
type CRS struct {
	Type       string `json:"type"`
	Properties struct {
		Name string `json:"name"`
	} `json:"properties"`
}

// FeatureCollection is a named, ordered set of plot features.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Name     string    `json:"name,omitempty"`
	CRS      *CRS      `json:"crs,omitempty"`
	Features []Feature `json:"features"`
}

// Parse decodes data strictly and validates the whole collection. Any
// failure rejects the entire payload.
func Parse(data []byte) (*FeatureCollection, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var fc FeatureCollection
	if err := dec.Decode(&fc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaValidation, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after feature collection", ErrSchemaValidation)
	}
	if err := fc.Validate(); err != nil {
		return nil, err
	}
	return &fc, nil
}

// Validate checks type literals and required fields of every feature.
func (fc *FeatureCollection) Validate() error {
	if fc.Type != "FeatureCollection" {
		return fmt.Errorf("%w: type must be \"FeatureCollection\", got %q", ErrSchemaValidation, fc.Type)
	}
	if fc.Features == nil {
		return fmt.Errorf("%w: features is required", ErrSchemaValidation)
	}
	for i, f := range fc.Features {
		if err := f.validate(); err != nil {
			return fmt.Errorf("%w: feature %d: %v", ErrSchemaValidation, i, err)
		}
	}
	return nil
}

func (f Feature) validate() error {
	if f.Type != "Feature" {
		return fmt.Errorf("type must be \"Feature\", got %q", f.Type)
	}
	if f.Properties.ID < 0 {
		return fmt.Errorf("id must be non-negative, got %d", f.Properties.ID)
	}
	if f.Properties.Square < 0 {
		return fmt.Errorf("square must be non-negative, got %v", f.Properties.Square)
	}
	if !f.HasGeometry() {
		return nil
	}
	var g struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	}
	if err := json.Unmarshal(f.Geometry, &g); err != nil {
		return fmt.Errorf("geometry: %v", err)
	}
	// Whether the shape is usable is decided per feature at ingestion time.
	if g.Type == "" {
		return errors.New("geometry type is required")
	}
	var coords []json.RawMessage
	if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
		return fmt.Errorf("geometry coordinates must be an array: %v", err)
	}
	return nil
}

// UnmarshalJSON requires id and square to be present.
func (p *Properties) UnmarshalJSON(data []byte) error {
	type plain Properties
	var required struct {
		ID     *json.RawMessage `json:"id"`
		Square *json.RawMessage `json:"square"`
	}
	if err := json.Unmarshal(data, &required); err != nil {
		return err
	}
	if required.ID == nil || string(*required.ID) == "null" {
		return errors.New("properties.id is required")
	}
	if required.Square == nil || string(*required.Square) == "null" {
		return errors.New("properties.square is required")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var v plain
	if err := dec.Decode(&v); err != nil {
		return err
	}
	*p = Properties(v)
	return nil
}
