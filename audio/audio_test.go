package audio

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

func TestEncodePCM16(t *testing.T) {
	tests := []struct {
		name string
		in   float32
		want int16
	}{
		{"zero", 0, 0},
		{"full scale", 1, 32767},
		{"negative full scale", -1, -32767},
		{"half", 0.5, 16383},
		{"clamped high", 1.7, 32767},
		{"clamped low", -3, -32767},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := EncodePCM16([]float32{tt.in})
			if len(out) != 2 {
				t.Fatalf("len = %d, want 2", len(out))
			}
			if got := int16(binary.LittleEndian.Uint16(out)); got != tt.want {
				t.Errorf("sample = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEncodePCM16Length(t *testing.T) {
	samples := make([]float32, 16000)
	if got := len(EncodePCM16(samples)); got != 32000 {
		t.Errorf("len = %d, want 32000", got)
	}
}

func TestEncodeWAV(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 1}
	data, err := EncodeWAV(samples, 16000, 1)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}

	if !bytes.Equal(data[0:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		t.Fatalf("missing RIFF/WAVE header: %q", data[:12])
	}
	if got := binary.LittleEndian.Uint32(data[4:8]); int(got) != len(data)-8 {
		t.Errorf("riff size = %d, want %d", got, len(data)-8)
	}
	if got := binary.LittleEndian.Uint32(data[24:28]); got != 16000 {
		t.Errorf("sample rate = %d, want 16000", got)
	}
	if got := binary.LittleEndian.Uint16(data[34:36]); got != 16 {
		t.Errorf("bit depth = %d, want 16", got)
	}

	pcm := EncodePCM16(samples)
	if !bytes.HasSuffix(data, pcm) {
		t.Error("wav payload does not end with the pcm samples")
	}
}

func TestEncodeWAVInvalidFormat(t *testing.T) {
	if _, err := EncodeWAV([]float32{0}, 0, 1); err == nil {
		t.Error("expected error for zero sample rate")
	}
}

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name    string
		samples []float32
		want    Stats
	}{
		{"empty", nil, Stats{}},
		{"silence", make([]float32, 4), Stats{Len: 4}},
		{"mixed", []float32{0, 0.5, -1, 0.5}, Stats{Max: 1, Avg: 0.5, RMS: float32(math.Sqrt(0.375)), NonZero: 3, Len: 4}},
		{"square", []float32{0.5, -0.5}, Stats{Max: 0.5, Avg: 0.5, RMS: 0.5, NonZero: 2, Len: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Analyze(tt.samples)
			if got.Max != tt.want.Max || got.NonZero != tt.want.NonZero || got.Len != tt.want.Len ||
				math.Abs(float64(got.Avg-tt.want.Avg)) > 1e-6 || math.Abs(float64(got.RMS-tt.want.RMS)) > 1e-6 {
				t.Errorf("Analyze() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
