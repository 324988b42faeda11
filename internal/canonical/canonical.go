// Package canonical computes the deterministic public hash of a CraftID
// submission. The canonical form is fixed: a trimmed, fixed-shape object
// serialized per RFC 8785 (JCS) and hashed with SHA-256. Media fields never
// enter the hash.
package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/gowebpki/jcs"
)

// Artisan carries the identity fields fixed by the intake contract.
type Artisan struct {
	Name          string `json:"name"`
	Location      string `json:"location"`
	ContactNumber string `json:"contact_number"`
	Email         string `json:"email"`
	AadhaarNumber string `json:"aadhaar_number"`
}

// Art describes the artifact. PhotoURL is intake-only and excluded from the
// canonical object: media is volatile and out of trust scope.
type Art struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

// Submission is the artisan+art pair as received at intake.
type Submission struct {
	Artisan Artisan `json:"artisan"`
	Art     Art     `json:"art"`
}

type canonicalArtisan struct {
	AadhaarNumber string `json:"aadhaar_number"`
	ContactNumber string `json:"contact_number"`
	Email         string `json:"email"`
	Location      string `json:"location"`
	Name          string `json:"name"`
}

type canonicalArt struct {
	Description string `json:"description"`
	Name        string `json:"name"`
}

type canonicalObject struct {
	Art       canonicalArt     `json:"art"`
	Artisan   canonicalArtisan `json:"artisan"`
	Salt      string           `json:"salt"`
	Timestamp string           `json:"timestamp"`
}

// object builds the exact structure that gets hashed: every string trimmed,
// missing values normalized to "", photo fields dropped.
func object(artisan Artisan, art Art, timestamp, salt string) canonicalObject {
	return canonicalObject{
		Art: canonicalArt{
			Description: strings.TrimSpace(art.Description),
			Name:        strings.TrimSpace(art.Name),
		},
		Artisan: canonicalArtisan{
			AadhaarNumber: strings.TrimSpace(artisan.AadhaarNumber),
			ContactNumber: strings.TrimSpace(artisan.ContactNumber),
			Email:         strings.TrimSpace(artisan.Email),
			Location:      strings.TrimSpace(artisan.Location),
			Name:          strings.TrimSpace(artisan.Name),
		},
		Salt:      strings.TrimSpace(salt),
		Timestamp: strings.TrimSpace(timestamp),
	}
}

// PublicHash returns the lowercase hex SHA-256 of the canonical JSON, without
// a 0x prefix. Byte-for-byte stable across reimplementations: keys sorted at
// every level, compact separators, UTF-8 with non-ASCII preserved.
func PublicHash(artisan Artisan, art Art, timestamp, salt string) (string, error) {
	raw, err := json.Marshal(object(artisan, art, timestamp, salt))
	if err != nil {
		return "", err
	}
	c, err := jcs.Transform(raw)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(c)
	return hex.EncodeToString(sum[:]), nil
}
