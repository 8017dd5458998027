// Package label defines the sample and label data model consumed by the
// rendering engine. Samples arrive from the data layer as serialized
// documents; once decoded they are read-only as far as the engine is
// concerned, and a sample update always produces fresh Label values.
package label

// MediaType identifies how a sample's media should be rendered.
type MediaType string

const (
	MediaImage      MediaType = "image"
	MediaVideo      MediaType = "video"
	MediaPointCloud MediaType = "point-cloud"
)

// Kind tags the closed set of label variants.
type Kind uint8

const (
	KindClassification Kind = iota
	KindDetection
	KindKeypoint
	KindPolyline
	KindSegmentation
)

func (k Kind) String() string {
	switch k {
	case KindClassification:
		return "classification"
	case KindDetection:
		return "detection"
	case KindKeypoint:
		return "keypoint"
	case KindPolyline:
		return "polyline"
	case KindSegmentation:
		return "segmentation"
	}
	return "unknown"
}

// Metadata carries media dimensions and, for video, the frame rate.
type Metadata struct {
	Width     int     `msgpack:"width" json:"width"`
	Height    int     `msgpack:"height" json:"height"`
	FrameRate float64 `msgpack:"frame_rate" json:"frame_rate"`
}

// Label is a tagged-union value over the five renderable variants. Only the
// fields relevant to the variant's Kind are populated. All geometry is
// normalized to [0,1] relative to the media dimensions.
type Label struct {
	Kind          Kind
	ID            string
	Label         string
	Confidence    float64
	HasConfidence bool

	// KindDetection: [x, y, w, h].
	Box [4]float64
	// KindKeypoint: ordered coordinate pairs.
	Points [][2]float64
	// KindPolyline: one or more vertex chains.
	Paths  [][][2]float64
	Closed bool
	Filled bool
	// KindDetection (instance mask) and KindSegmentation: serialized mask
	// payload in the wire format handled by the mask package.
	Mask []byte
}

// Sample is one dataset record. Fields maps a field name to the labels
// stored under it; Scalars holds primitive field values that the engine
// passes through untouched.
type Sample struct {
	ID        string
	Filepath  string
	MediaType MediaType
	Metadata  Metadata
	Fields    map[string][]Label
	Scalars   map[string]any
}

// FieldLabels returns the labels stored under field, or nil.
func (s *Sample) FieldLabels(field string) []Label {
	if s == nil || s.Fields == nil {
		return nil
	}
	return s.Fields[field]
}

// Filter decides whether a label under a given field is visible. The engine
// only ever calls it; filter semantics live with the caller.
type Filter func(field string, l Label) bool

// ColorFunc assigns a color string (#rrggbb) to a key. It must be
// deterministic for a given key within one session.
type ColorFunc func(key string) string
