package media

import (
	"image"
	"testing"
)

func TestScaleToFitPreservesAspect(t *testing.T) {
	src := AcquireFrame(image.Rect(0, 0, 400, 200))
	dst := ScaleToFit(src, 100, 100)
	if dst.Bounds().Dx() != 100 || dst.Bounds().Dy() != 50 {
		t.Fatalf("scaled bounds = %v", dst.Bounds())
	}
}

func TestScaleToFitNoopWhenSmaller(t *testing.T) {
	src := AcquireFrame(image.Rect(0, 0, 50, 40))
	if got := ScaleToFit(src, 100, 100); got != src {
		t.Fatal("expected source returned unchanged")
	}
}

func TestAcquireFrameReuse(t *testing.T) {
	a := AcquireFrame(image.Rect(0, 0, 8, 8))
	a.Pix[0] = 0xAB
	RecycleFrame(a)
	b := AcquireFrame(image.Rect(0, 0, 8, 8))
	if b.Pix[0] != 0 {
		t.Fatal("recycled frame not cleared")
	}
	if len(b.Pix) != 8*8*4 {
		t.Fatalf("pix length = %d", len(b.Pix))
	}
}

func TestAcquireFrameZeroSize(t *testing.T) {
	img := AcquireFrame(image.Rect(0, 0, 0, 10))
	if len(img.Pix) != 0 {
		t.Fatalf("expected empty pix, got %d", len(img.Pix))
	}
}
