package main

import (
	"context"
	"fmt"
	"image"
	"math/rand"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/gridlook/gridlook/label"
	"github.com/gridlook/gridlook/mask"
	"github.com/gridlook/gridlook/media"
	"github.com/gridlook/gridlook/spotlight"
)

var classNames = []string{"cat", "dog", "bird", "car", "person", "tree"}

// synthSample fabricates one annotated sample and round-trips it through the
// wire codec, so the CLI exercises the same decode path a real backend would.
func synthSample(rng *rand.Rand) (*label.Sample, error) {
	w := 120 + rng.Intn(280)
	h := 120 + rng.Intn(280)
	s := &label.Sample{
		ID:        uuid.NewString(),
		Filepath:  "/synthetic/" + uuid.NewString() + ".png",
		MediaType: label.MediaImage,
		Metadata:  label.Metadata{Width: w, Height: h},
		Fields:    map[string][]label.Label{},
	}

	var dets []label.Label
	for i, n := 0, 1+rng.Intn(3); i < n; i++ {
		x := rng.Float64() * 0.6
		y := rng.Float64() * 0.6
		dets = append(dets, label.Label{
			Kind:          label.KindDetection,
			ID:            uuid.NewString(),
			Label:         classNames[rng.Intn(len(classNames))],
			Confidence:    0.5 + rng.Float64()*0.5,
			HasConfidence: true,
			Box:           [4]float64{x, y, 0.1 + rng.Float64()*0.3, 0.1 + rng.Float64()*0.3},
		})
	}
	s.Fields["predictions"] = dets

	s.Fields["tags"] = []label.Label{{
		Kind:  label.KindClassification,
		ID:    uuid.NewString(),
		Label: classNames[rng.Intn(len(classNames))],
	}}

	if rng.Intn(3) == 0 {
		payload, err := synthMask(rng)
		if err != nil {
			return nil, err
		}
		s.Fields["ground_truth"] = []label.Label{{
			Kind: label.KindSegmentation,
			ID:   uuid.NewString(),
			Mask: payload,
		}}
	}

	encoded, err := label.EncodeSample(s)
	if err != nil {
		return nil, err
	}
	return label.DecodeSample(encoded)
}

// synthMask encodes a filled disc as a wire-format mask payload.
func synthMask(rng *rand.Rand) ([]byte, error) {
	const n = 16
	buf := &mask.Buffer{ElemSize: 1, Shape: [2]int{n, n}, Data: make([]byte, n*n)}
	cx := float64(4 + rng.Intn(8))
	cy := float64(4 + rng.Intn(8))
	radius := float64(3 + rng.Intn(4))
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			dx, dy := float64(c)-cx, float64(r)-cy
			if dx*dx+dy*dy <= radius*radius {
				buf.Data[r*n+c] = 1
			}
		}
	}
	return mask.Encode(buf)
}

// synthSource pages a fixed synthetic collection.
type synthSource struct {
	pages []*spotlight.Page
}

func newSynthSource(samples, pageSize int, seed int64) (*synthSource, error) {
	rng := rand.New(rand.NewSource(seed))
	src := &synthSource{}
	var page *spotlight.Page
	for i := 0; i < samples; i++ {
		if page == nil {
			page = &spotlight.Page{}
		}
		s, err := synthSample(rng)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		ar := float64(s.Metadata.Width) / float64(s.Metadata.Height)
		page.Items = append(page.Items, spotlight.Item{ID: s.ID, AspectRatio: ar, Sample: s})
		if len(page.Items) == pageSize || i == samples-1 {
			src.pages = append(src.pages, page)
			page = nil
		}
	}
	for i, p := range src.pages {
		if i > 0 {
			p.Previous = tokenFor(i - 1)
		}
		if i < len(src.pages)-1 {
			p.Next = tokenFor(i + 1)
		}
	}
	return src, nil
}

func tokenFor(i int) string { return fmt.Sprintf("page-%d", i) }

func (s *synthSource) Get(_ context.Context, token string) (*spotlight.Page, error) {
	if token == "" {
		if len(s.pages) == 0 {
			return &spotlight.Page{}, nil
		}
		return s.pages[0], nil
	}
	idx, err := strconv.Atoi(strings.TrimPrefix(token, "page-"))
	if err != nil || idx < 0 || idx >= len(s.pages) {
		return nil, fmt.Errorf("unknown page token %q", token)
	}
	return s.pages[idx], nil
}

// synthMedia renders a deterministic gradient at sample resolution and
// scales it down to the cell.
func synthMedia(s *label.Sample, maxW, maxH int) (*image.RGBA, error) {
	w, h := s.Metadata.Width, s.Metadata.Height
	if w <= 0 || h <= 0 {
		w, h = maxW, maxH
	}
	img := media.AcquireFrame(image.Rect(0, 0, w, h))
	var hue byte
	for i := 0; i < len(s.ID); i++ {
		hue += s.ID[i]
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := y*img.Stride + x*4
			img.Pix[off] = hue
			img.Pix[off+1] = byte(255 * x / w)
			img.Pix[off+2] = byte(255 * y / h)
			img.Pix[off+3] = 0xff
		}
	}
	scaled := media.ScaleToFit(img, maxW, maxH)
	if scaled != img {
		media.RecycleFrame(img)
	}
	return scaled, nil
}
