package logging

import "testing"

func TestNewProgressSampler(t *testing.T) {
	tests := []struct {
		name       string
		bucketSize float64
		wantSize   float64
	}{
		{"default bucket size for zero", 0, 5},
		{"default bucket size for negative", -1, 5},
		{"custom bucket size", 10, 10},
		{"small bucket size", 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewProgressSampler(tt.bucketSize)
			if s.bucketSize != tt.wantSize {
				t.Errorf("bucketSize = %v, want %v", s.bucketSize, tt.wantSize)
			}
			if s.lastBucket != -1 {
				t.Errorf("lastBucket = %d, want -1", s.lastBucket)
			}
		})
	}
}

func TestProgressSamplerNil(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(50, "normalize", "message") {
		t.Error("ShouldLog on nil sampler should always return true")
	}
	s.Reset() // should not panic
}

func TestProgressSamplerPhaseChange(t *testing.T) {
	s := NewProgressSampler(5)

	if !s.ShouldLog(0, "normalize", "starting") {
		t.Error("first phase should log")
	}
	if s.ShouldLog(0, "normalize", "still starting") {
		t.Error("same phase and percent should not log again")
	}
	if !s.ShouldLog(0, "concat", "starting") {
		t.Error("different phase should log")
	}
	if s.lastPhase != "concat" {
		t.Errorf("lastPhase = %q, want concat", s.lastPhase)
	}
}

func TestProgressSamplerTrimsPhase(t *testing.T) {
	s := NewProgressSampler(5)

	s.ShouldLog(0, "  encode  ", "starting")
	if s.lastPhase != "encode" {
		t.Errorf("lastPhase = %q, want encode (trimmed)", s.lastPhase)
	}
}

func TestProgressSamplerPercentBuckets(t *testing.T) {
	s := NewProgressSampler(5)

	if !s.ShouldLog(0, "encode", "") {
		t.Error("0% should log")
	}
	if s.ShouldLog(3, "encode", "") {
		t.Error("3% is in the same bucket, should not log")
	}
	if !s.ShouldLog(5, "encode", "") {
		t.Error("5% crosses into a new bucket, should log")
	}
	if !s.ShouldLog(23, "encode", "") {
		t.Error("23% skips buckets forward, should log")
	}
	if s.ShouldLog(21, "encode", "") {
		t.Error("going backwards within seen buckets should not log")
	}
	if !s.ShouldLog(100, "encode", "") {
		t.Error("100% should always reach the final bucket")
	}
}

func TestProgressSamplerUnknownPercent(t *testing.T) {
	s := NewProgressSampler(5)

	if !s.ShouldLog(-1, "probe", "") {
		t.Error("phase change with unknown percent should log")
	}
	if s.ShouldLog(-1, "probe", "") {
		t.Error("repeated unknown percent in same phase should not log")
	}
}

func TestProgressSamplerReset(t *testing.T) {
	s := NewProgressSampler(5)
	s.ShouldLog(50, "encode", "")
	s.Reset()

	if s.lastPhase != "" {
		t.Errorf("lastPhase after reset = %q, want empty", s.lastPhase)
	}
	if s.lastBucket != -1 {
		t.Errorf("lastBucket after reset = %d, want -1", s.lastBucket)
	}
	if !s.ShouldLog(50, "encode", "") {
		t.Error("first event after reset should log")
	}
}
