package model

import (
	"encoding/json"
	"fmt"

	geojson "github.com/paulmach/go.geojson"
)

// Document is either a single GeoJSON Feature or a FeatureCollection.
// Edits made through a Document keep that shape.
type Document struct {
	feature    *geojson.Feature
	collection *geojson.FeatureCollection
}

// FromFeature wraps a single feature.
func FromFeature(f *geojson.Feature) Document {
	return Document{feature: f}
}

// FromCollection wraps a feature collection.
func FromCollection(fc *geojson.FeatureCollection) Document {
	return Document{collection: fc}
}

// FromFeatures builds a collection document from features.
func FromFeatures(features ...*geojson.Feature) Document {
	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		fc.AddFeature(f)
	}
	return Document{collection: fc}
}

// ParseDocument decodes a GeoJSON Feature or FeatureCollection.
func ParseDocument(data []byte) (Document, error) {
	var header struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	switch header.Type {
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		return FromFeature(f), nil
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		return FromCollection(fc), nil
	default:
		return Document{}, fmt.Errorf("%w: type %q", ErrInvalidDocument, header.Type)
	}
}

// IsZero reports whether the document wraps nothing.
func (d Document) IsZero() bool { return d.feature == nil && d.collection == nil }

// IsFeature reports whether the document is a single Feature.
func (d Document) IsFeature() bool { return d.feature != nil }

// Feature returns the wrapped feature, or nil for collections.
func (d Document) Feature() *geojson.Feature { return d.feature }

// Collection returns the wrapped collection, or nil for single features.
func (d Document) Collection() *geojson.FeatureCollection { return d.collection }

// Features returns the features in order. A single Feature is returned as a
// one-element slice.
func (d Document) Features() []*geojson.Feature {
	switch {
	case d.feature != nil:
		return []*geojson.Feature{d.feature}
	case d.collection != nil:
		return d.collection.Features
	default:
		return nil
	}
}

// Validate checks every feature resolves to a supported geometry type.
func (d Document) Validate(resolve GeometryTypeResolver) error {
	if resolve == nil {
		resolve = ResolveGeometryType
	}
	for i, f := range d.Features() {
		if _, err := resolve(f); err != nil {
			if id, ok := FeatureID(f); ok {
				return fmt.Errorf("feature %q: %w", id, err)
			}
			return fmt.Errorf("feature %d: %w", i, err)
		}
	}
	return nil
}

// ReplaceFeature returns a new document of the same shape in which the
// feature sharing updated's id is swapped for updated. Other features are
// shared with d.
func (d Document) ReplaceFeature(updated *geojson.Feature) Document {
	id, ok := FeatureID(updated)
	if !ok {
		return d
	}
	if d.feature != nil {
		if cur, _ := FeatureID(d.feature); cur == id {
			return FromFeature(updated)
		}
		return d
	}
	if d.collection == nil {
		return d
	}
	out := *d.collection
	out.Features = make([]*geojson.Feature, len(d.collection.Features))
	for i, f := range d.collection.Features {
		if cur, ok := FeatureID(f); ok && cur == id {
			out.Features[i] = updated
			continue
		}
		out.Features[i] = f
	}
	return FromCollection(&out)
}

// MarshalJSON encodes the wrapped Feature or FeatureCollection.
func (d Document) MarshalJSON() ([]byte, error) {
	switch {
	case d.feature != nil:
		return d.feature.MarshalJSON()
	case d.collection != nil:
		return d.collection.MarshalJSON()
	default:
		return []byte("null"), nil
	}
}
