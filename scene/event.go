package scene

// ScreenPosition is a pixel position on the canvas, origin top-left.
type ScreenPosition struct {
	X float64
	Y float64
}

// EventType indicates what kind of input the host dispatched.
type EventType int

const (
	EventClick EventType = iota + 1
	EventDoubleClick
	EventMouseMove
	EventKeyDown
	EventCameraMoveEnd
)

func (t EventType) String() string {
	switch t {
	case EventClick:
		return "click"
	case EventDoubleClick:
		return "double-click"
	case EventMouseMove:
		return "mouse-move"
	case EventKeyDown:
		return "key-down"
	case EventCameraMoveEnd:
		return "camera-move-end"
	default:
		return "unknown"
	}
}

// Key names carried by EventKeyDown.
const (
	KeyEscape = "Escape"
)

// Event is pushed to subscribers by the host's dispatcher.
type Event struct {
	Type     EventType
	Position ScreenPosition
	// Key is set for EventKeyDown.
	Key string
}
