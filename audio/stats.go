package audio

import "math"

// Stats summarizes the amplitude of a sample buffer.
type Stats struct {
	Max     float32 // peak absolute amplitude
	Avg     float32 // mean absolute amplitude
	RMS     float32
	NonZero int
	Len     int
}

// Analyze computes amplitude statistics over samples.
func Analyze(samples []float32) Stats {
	st := Stats{Len: len(samples)}
	if len(samples) == 0 {
		return st
	}

	var sum, sq float64
	for _, s := range samples {
		sq += float64(s) * float64(s)
		a := s
		if a < 0 {
			a = -a
		}
		if a > st.Max {
			st.Max = a
		}
		if s != 0 {
			st.NonZero++
		}
		sum += float64(a)
	}
	n := float64(len(samples))
	st.Avg = float32(sum / n)
	st.RMS = float32(math.Sqrt(sq / n))
	return st
}
