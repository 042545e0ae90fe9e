package dynalite

import (
	"math"
	"math/rand"
	"testing"
)

func TestNormalizeLevel(t *testing.T) {
	tests := []struct {
		raw  int
		want float64
	}{
		{0, 1.0}, // (255-0)/254 > 1, clamped
		{1, 1.0},
		{255, 0.0},
		{128, 127.0 / 254},
		{300, 0.0},
	}
	for _, tt := range tests {
		if got := NormalizeLevel(tt.raw); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("NormalizeLevel(%d) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestAccumulateSnapsToBounds(t *testing.T) {
	tests := []struct {
		name  string
		pos   float64
		delta float64
		scale float64
		want  float64
	}{
		{"full open", 0, 1, 1, 1},
		{"half factor doubles travel", 0, 0.3, 0.5, 0.6},
		{"overshoot clamps high", 0.8, 0.5, 1, 1},
		{"overshoot clamps low", 0.2, -0.5, 1, 0},
		{"near top snaps", 0.5, 0.495, 1, 1},
		{"near bottom snaps", 0.5, -0.495, 1, 0},
		{"zero scale ignored", 0.4, 0.5, 0, 0.4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := accumulate(tt.pos, tt.delta, tt.scale); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("accumulate(%v, %v, %v) = %v, want %v", tt.pos, tt.delta, tt.scale, got, tt.want)
			}
		})
	}
}

func TestCoverPositionStaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	tilt := 0.3

	for _, factor := range []float64{1, 0.5, 0.1} {
		c := newCover(entitySpec{host: "h", key: ChannelKey(1, 1)}, &mockDevice{}, "blind", factor, &tilt)
		for i := 0; i < 2000; i++ {
			raw := rng.Intn(256)
			level := NormalizeLevel(raw)
			c.applyReport(level, level)

			pos := c.Position()
			if pos < 0 || pos > 1 {
				t.Fatalf("factor %v step %d: position %v out of [0,1]", factor, i, pos)
			}
			ti, ok := c.TiltPosition()
			if !ok {
				t.Fatal("TiltPosition() ok = false for cover with tilt")
			}
			if ti < 0 || ti > 1 {
				t.Fatalf("factor %v step %d: tilt %v out of [0,1]", factor, i, ti)
			}
		}
	}
}
