package builtin

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestMeanStdOfConstantSequenceIsZeroVariance(t *testing.T) {
	mean, std := meanStd([]float64{0.5, 0.5, 0.5, 0.5})
	if mean != 0.5 {
		t.Fatalf("expected mean 0.5, got %v", mean)
	}
	if std != 0 {
		t.Fatalf("expected zero std for constant sequence, got %v", std)
	}
}

func TestMeanStdOnEmptyInputReturnsZero(t *testing.T) {
	mean, std := meanStd(nil)
	if mean != 0 || std != 0 {
		t.Fatalf("expected (0,0) on empty input, got (%v,%v)", mean, std)
	}
}

func TestClamp01BoundsOutOfRangeValues(t *testing.T) {
	cases := map[float64]float64{-1: 0, 0: 0, 0.5: 0.5, 1: 1, 2.5: 1}
	for in, want := range cases {
		if got := clamp01(in); got != want {
			t.Fatalf("clamp01(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestSigmoidIsCenteredAtZeroAndMonotonic(t *testing.T) {
	if got := sigmoid(0); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("expected sigmoid(0) = 0.5, got %v", got)
	}
	if sigmoid(5) <= sigmoid(0) || sigmoid(0) <= sigmoid(-5) {
		t.Fatalf("expected sigmoid to be monotonically increasing")
	}
}

func TestGridDeltaOfIdenticalGridsIsZero(t *testing.T) {
	var a [gridSize * gridSize]float64
	for i := range a {
		a[i] = 0.3
	}
	if d := gridDelta(a, a); d != 0 {
		t.Fatalf("expected zero delta between identical grids, got %v", d)
	}
}

func TestGridDeltaOfDifferingGridsIsPositive(t *testing.T) {
	var a, b [gridSize * gridSize]float64
	for i := range b {
		b[i] = 1
	}
	if d := gridDelta(a, b); d <= 0 {
		t.Fatalf("expected positive delta for differing grids, got %v", d)
	}
}

func TestNormalizedCorrelationOfIdenticalSignalIsOne(t *testing.T) {
	sig := []float64{0.1, 0.4, -0.2, 0.3, -0.5, 0.6}
	if c := normalizedCorrelation(sig, sig); math.Abs(c-1) > 1e-9 {
		t.Fatalf("expected correlation of 1 for identical signal, got %v", c)
	}
}

func TestNormalizedCorrelationOfConstantSignalIsZero(t *testing.T) {
	a := []float64{0.2, 0.2, 0.2}
	b := []float64{0.1, 0.4, -0.2}
	if c := normalizedCorrelation(a, b); c != 0 {
		t.Fatalf("expected zero correlation when one signal has no variance, got %v", c)
	}
}

func TestNormalizedCorrelationOfMismatchedLengthIsZero(t *testing.T) {
	if c := normalizedCorrelation([]float64{1, 2}, []float64{1, 2, 3}); c != 0 {
		t.Fatalf("expected zero correlation for mismatched lengths, got %v", c)
	}
}

// writeTestWAV builds a minimal PCM16LE mono RIFF/WAVE file for round-trip
// testing, mirroring the layout internal/sampler.extractAudio produces.
func writeTestWAV(t *testing.T, path string, sampleRate int, samples []int16) {
	t.Helper()
	dataBytes := len(samples) * 2
	buf := make([]byte, 0, 44+dataBytes)

	buf = append(buf, []byte("RIFF")...)
	buf = append(buf, le32(uint32(36+dataBytes))...)
	buf = append(buf, []byte("WAVE")...)

	buf = append(buf, []byte("fmt ")...)
	buf = append(buf, le32(16)...)
	buf = append(buf, le16(1)...)                     // PCM
	buf = append(buf, le16(1)...)                     // mono
	buf = append(buf, le32(uint32(sampleRate))...)     // sample rate
	buf = append(buf, le32(uint32(sampleRate*2))...)   // byte rate
	buf = append(buf, le16(2)...)                      // block align
	buf = append(buf, le16(16)...)                     // bits per sample

	buf = append(buf, []byte("data")...)
	buf = append(buf, le32(uint32(dataBytes))...)
	for _, s := range samples {
		buf = append(buf, le16(uint16(s))...)
	}

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write wav fixture: %v", err)
	}
}

func le32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func le16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

func TestWavSamplesRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.wav")
	writeTestWAV(t, path, 8000, []int16{0, 16384, -16384, 32767, -32768})

	samples, rate, err := wavSamples(path)
	if err != nil {
		t.Fatalf("wavSamples: %v", err)
	}
	if rate != 8000 {
		t.Fatalf("expected sample rate 8000, got %d", rate)
	}
	if len(samples) != 5 {
		t.Fatalf("expected 5 samples, got %d", len(samples))
	}
	if math.Abs(samples[0]) > 1e-9 {
		t.Fatalf("expected first sample ~0, got %v", samples[0])
	}
	if samples[3] <= 0.99 {
		t.Fatalf("expected near-max positive sample close to 1, got %v", samples[3])
	}
	if samples[4] >= -0.99 {
		t.Fatalf("expected near-min negative sample close to -1, got %v", samples[4])
	}
}

func TestWavSamplesOnEmptyFileReturnsNoAudioPlaceholder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.wav")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write empty fixture: %v", err)
	}

	samples, rate, err := wavSamples(path)
	if err != nil {
		t.Fatalf("wavSamples: %v", err)
	}
	if samples != nil || rate != 0 {
		t.Fatalf("expected nil samples and zero rate for empty file, got samples=%v rate=%d", samples, rate)
	}
}

func TestWavSamplesRejectsNonRIFFData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bogus.wav")
	if err := os.WriteFile(path, []byte("not a wave file at all, just text"), 0o644); err != nil {
		t.Fatalf("write bogus fixture: %v", err)
	}

	if _, _, err := wavSamples(path); err == nil {
		t.Fatalf("expected error for non-RIFF data")
	}
}
