package label

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Wire documents. The backend serializes one document per sample; label
// fields are discriminated by a "type" tag so unknown variants can be
// skipped without failing the whole sample.

type sampleDoc struct {
	ID        string              `msgpack:"id"`
	Filepath  string              `msgpack:"filepath"`
	MediaType string              `msgpack:"media_type"`
	Metadata  Metadata            `msgpack:"metadata"`
	Fields    map[string]fieldDoc `msgpack:"fields"`
	Scalars   map[string]any      `msgpack:"scalars"`
}

type fieldDoc struct {
	Labels []labelDoc `msgpack:"labels"`
}

type labelDoc struct {
	Type       string         `msgpack:"type"`
	ID         string         `msgpack:"id"`
	Label      string         `msgpack:"label"`
	Confidence *float64       `msgpack:"confidence"`
	Box        []float64      `msgpack:"bounding_box"`
	Points     [][2]float64   `msgpack:"points"`
	Paths      [][][2]float64 `msgpack:"paths"`
	Closed     bool           `msgpack:"closed"`
	Filled     bool           `msgpack:"filled"`
	Mask       []byte         `msgpack:"mask"`
}

// DecodeSample parses a serialized sample document. Label entries with an
// unrecognized type tag are dropped; a malformed document fails as a whole.
func DecodeSample(p []byte) (*Sample, error) {
	var doc sampleDoc
	if err := msgpack.Unmarshal(p, &doc); err != nil {
		return nil, fmt.Errorf("label: decode sample: %w", err)
	}
	s := &Sample{
		ID:        doc.ID,
		Filepath:  doc.Filepath,
		MediaType: MediaType(doc.MediaType),
		Metadata:  doc.Metadata,
		Scalars:   doc.Scalars,
	}
	if s.MediaType == "" {
		s.MediaType = MediaImage
	}
	if len(doc.Fields) > 0 {
		s.Fields = make(map[string][]Label, len(doc.Fields))
		for name, fd := range doc.Fields {
			labels := make([]Label, 0, len(fd.Labels))
			for _, ld := range fd.Labels {
				l, ok := ld.toLabel()
				if !ok {
					continue
				}
				labels = append(labels, l)
			}
			s.Fields[name] = labels
		}
	}
	return s, nil
}

// EncodeSample serializes a sample back into its wire document. Used by
// in-memory data sources and fixtures; the engine itself never writes
// samples.
func EncodeSample(s *Sample) ([]byte, error) {
	doc := sampleDoc{
		ID:        s.ID,
		Filepath:  s.Filepath,
		MediaType: string(s.MediaType),
		Metadata:  s.Metadata,
		Scalars:   s.Scalars,
	}
	if len(s.Fields) > 0 {
		doc.Fields = make(map[string]fieldDoc, len(s.Fields))
		for name, labels := range s.Fields {
			fd := fieldDoc{Labels: make([]labelDoc, 0, len(labels))}
			for _, l := range labels {
				fd.Labels = append(fd.Labels, fromLabel(l))
			}
			doc.Fields[name] = fd
		}
	}
	b, err := msgpack.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("label: encode sample: %w", err)
	}
	return b, nil
}

func (d labelDoc) toLabel() (Label, bool) {
	l := Label{
		ID:     d.ID,
		Label:  d.Label,
		Closed: d.Closed,
		Filled: d.Filled,
		Points: d.Points,
		Paths:  d.Paths,
		Mask:   d.Mask,
	}
	if d.Confidence != nil {
		l.Confidence = *d.Confidence
		l.HasConfidence = true
	}
	switch d.Type {
	case "classification":
		l.Kind = KindClassification
	case "detection":
		l.Kind = KindDetection
		if len(d.Box) != 4 {
			return Label{}, false
		}
		copy(l.Box[:], d.Box)
	case "keypoint":
		l.Kind = KindKeypoint
	case "polyline":
		l.Kind = KindPolyline
	case "segmentation":
		l.Kind = KindSegmentation
	default:
		return Label{}, false
	}
	return l, true
}

func fromLabel(l Label) labelDoc {
	d := labelDoc{
		Type:   l.Kind.String(),
		ID:     l.ID,
		Label:  l.Label,
		Points: l.Points,
		Paths:  l.Paths,
		Closed: l.Closed,
		Filled: l.Filled,
		Mask:   l.Mask,
	}
	if l.HasConfidence {
		c := l.Confidence
		d.Confidence = &c
	}
	if l.Kind == KindDetection {
		d.Box = l.Box[:]
	}
	return d
}
