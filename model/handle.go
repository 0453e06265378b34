package model

import "fmt"

// HandleKind identifies which part of a feature an edit handle drags.
type HandleKind int

const (
	HandleUnknown HandleKind = iota
	// HandleVertex moves one coordinate of a line or polygon ring.
	HandleVertex
	// HandleSegment inserts a coordinate after Index.
	HandleSegment
	// HandleCircleCenter translates a point or a circle centre.
	HandleCircleCenter
	// HandleCircleBody changes a circle radius.
	HandleCircleBody
)

func (k HandleKind) String() string {
	switch k {
	case HandleVertex:
		return "vertex"
	case HandleSegment:
		return "segment"
	case HandleCircleCenter:
		return "circle-center"
	case HandleCircleBody:
		return "circle-body"
	default:
		return "unknown"
	}
}

// Handle identifies the part of a tracked feature picked for editing.
type Handle struct {
	FeatureID string
	Kind      HandleKind
	Index     int
}

func (h Handle) String() string {
	return fmt.Sprintf("%s[%s %d]", h.FeatureID, h.Kind, h.Index)
}
