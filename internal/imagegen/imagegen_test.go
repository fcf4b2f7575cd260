package imagegen

import (
	"bytes"
	"image/png"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func floatPtr(f float64) *float64 { return &f }

func TestRenderCard(t *testing.T) {
	for _, data := range []CardData{
		{City: "Eskişehir", Year: 2024, Score: floatPtr(57.25), Label: "yearly average"},
		{City: "Van", Year: 2027, Score: floatPtr(49)},
		{City: "Muş", Year: 2026},
	} {
		b, err := RenderCard(data)
		if err != nil {
			t.Fatalf("RenderCard(%s): %v", data.City, err)
		}
		img, err := png.Decode(bytes.NewReader(b))
		if err != nil {
			t.Fatalf("decode %s card: %v", data.City, err)
		}
		if got := img.Bounds(); got.Dx() != CardWidth || got.Dy() != CardHeight {
			t.Errorf("%s card bounds = %v, want %dx%d", data.City, got, CardWidth, CardHeight)
		}

		want := CategoryColor(data.Score)
		r, g, bl, _ := img.At(5, CardHeight/2).RGBA()
		if uint8(r>>8) != want.R || uint8(g>>8) != want.G || uint8(bl>>8) != want.B {
			t.Errorf("%s accent band = (%d,%d,%d), want %v", data.City, r>>8, g>>8, bl>>8, want)
		}
	}
}

func TestCategoryColor(t *testing.T) {
	tests := []struct {
		score *float64
		want  string
	}{
		{floatPtr(40), "e74c3c"},
		{floatPtr(51), "e74c3c"},
		{floatPtr(51.01), "f1c40f"},
		{floatPtr(55), "f1c40f"},
		{floatPtr(55.01), "2ecc71"},
		{nil, "95a5a6"},
	}
	for _, tt := range tests {
		c := CategoryColor(tt.score)
		got := hex(c.R) + hex(c.G) + hex(c.B)
		if got != tt.want {
			t.Errorf("CategoryColor(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func hex(b uint8) string {
	const digits = "0123456789abcdef"
	return string([]byte{digits[b>>4], digits[b&0x0f]})
}

func TestCardCache(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cache := NewCardCache(10*time.Minute, clock)

	if _, ok := cache.Get("Ankara/2024"); ok {
		t.Fatal("Get on empty cache hit")
	}

	cache.Set("Ankara/2024", []byte("png"))
	if got, ok := cache.Get("Ankara/2024"); !ok || string(got) != "png" {
		t.Errorf("Get = %q, %v; want hit", got, ok)
	}
	if _, ok := cache.Get("Ankara/2025"); ok {
		t.Error("Get hit for a different year")
	}

	clock.Advance(10 * time.Minute)
	if _, ok := cache.Get("Ankara/2024"); ok {
		t.Error("Get hit after TTL")
	}

	cache.Set("Izmir/2024", []byte("png"))
	if cache.Len() != 1 {
		t.Errorf("Len = %d, want expired entry dropped", cache.Len())
	}
}
