package privacy

import (
	"crypto/rand"
	"encoding/binary"
	"math"

	pkgerrors "github.com/veilhq/veil-backend/internal/pkg/errors"
)

// Epsilon presets. Participant counts are the more re-identifying signal so
// they get the smaller epsilon (more noise); theme counts are already
// aggregated and tolerate less.
const (
	EpsilonParticipants = 0.5
	EpsilonThemes       = 0.8

	// DefaultSensitivity is how much one individual can move a count.
	DefaultSensitivity = 1.0
)

// AddNoise returns trueCount perturbed with Laplace noise of scale
// sensitivity/epsilon, rounded and clamped to zero. Every call draws fresh
// noise; callers must not cache the result, repeated noised reads of a
// cached value would average back to the true count.
func AddNoise(trueCount int, sensitivity, epsilon float64) (int, error) {
	if epsilon <= 0 {
		return 0, pkgerrors.ErrInvalidEpsilon
	}
	if sensitivity <= 0 {
		sensitivity = DefaultSensitivity
	}
	b := sensitivity / epsilon
	noised := int(math.Round(float64(trueCount) + laplace(b)))
	if noised < 0 {
		noised = 0
	}
	return noised, nil
}

// NoiseParticipantCount applies the participant-count preset.
func NoiseParticipantCount(trueCount int) (int, error) {
	return AddNoise(trueCount, DefaultSensitivity, EpsilonParticipants)
}

// NoiseThemeCount applies the theme-count preset.
func NoiseThemeCount(trueCount int) (int, error) {
	return AddNoise(trueCount, DefaultSensitivity, EpsilonThemes)
}

// laplace samples Laplace(0, b) by inverse CDF: u uniform on (-0.5, 0.5),
// result -b * sign(u) * ln(1 - 2|u|). The uniform draw comes from the OS
// CSPRNG; this noise is a privacy control, not simulation, so a seedable
// generator is off the table.
func laplace(b float64) float64 {
	u := uniformOpen() - 0.5
	return -b * sign(u) * math.Log(1-2*math.Abs(u))
}

// uniformOpen draws uniform on the open interval (0, 1).
func uniformOpen() float64 {
	var buf [8]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			// The OS CSPRNG not responding is unrecoverable for a
			// privacy control; there is no safe fallback source.
			panic("privacy: crypto/rand unavailable: " + err.Error())
		}
		// 53 random bits into (0,1).
		v := float64(binary.BigEndian.Uint64(buf[:])>>11) / (1 << 53)
		if v > 0 && v < 1 {
			return v
		}
	}
}

func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	if x > 0 {
		return 1
	}
	return 0
}
