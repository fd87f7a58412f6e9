package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocationFingerprintToleratesPrecisionNoise(t *testing.T) {
	base := LocationFingerprint(10.0, 20.0, 5.0)

	// Noise beyond the fourth decimal must not change the fingerprint.
	assert.Equal(t, base, LocationFingerprint(10.000004, 19.999996, 5.0004))
}

func TestLocationFingerprintDistinguishesSites(t *testing.T) {
	base := LocationFingerprint(10.0, 20.0, 5.0)

	assert.NotEqual(t, base, LocationFingerprint(10.001, 20.0, 5.0))
	assert.NotEqual(t, base, LocationFingerprint(10.0, 20.001, 5.0))
	assert.NotEqual(t, base, LocationFingerprint(10.0, 20.0, 6.0))
}

func TestEvidenceFingerprintBindsAllComponents(t *testing.T) {
	base := EvidenceFingerprint("P1", "h1", "alice")

	assert.Equal(t, base, EvidenceFingerprint("P1", "h1", "alice"))
	assert.NotEqual(t, base, EvidenceFingerprint("P2", "h1", "alice"))
	assert.NotEqual(t, base, EvidenceFingerprint("P1", "h2", "alice"))
	assert.NotEqual(t, base, EvidenceFingerprint("P1", "h1", "bob"))
}
