package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"restoration-portal/registry-backend/pkg/geospatial"
)

// LocationFingerprint derives the uniqueness key for a physical site from
// rounded coordinates and area. Rounding makes the key tolerant of
// negligible precision noise in submitted coordinates: two submissions of
// the same site fingerprint identically even if their raw floats differ in
// the sixth decimal.
func LocationFingerprint(lat, lon, areaHectares float64) string {
	payload := fmt.Sprintf("loc|%.4f|%.4f|%.2f",
		geospatial.RoundCoordinate(lat),
		geospatial.RoundCoordinate(lon),
		geospatial.RoundArea(areaHectares),
	)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// EvidenceFingerprint derives the uniqueness key for an evidence package
// from the project id, the evidence content hash and the submitter identity.
func EvidenceFingerprint(projectID, evidenceHash, submitter string) string {
	payload := fmt.Sprintf("ev|%s|%s|%s", projectID, evidenceHash, submitter)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
