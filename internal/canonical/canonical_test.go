package canonical_test

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"craftid/backend/internal/canonical"
)

var (
	meera = canonical.Artisan{
		Name:          "Meera Sharma",
		Location:      "Bhuj",
		ContactNumber: "9800000001",
		Email:         "m@x",
		AadhaarNumber: "123412341234",
	}
	weave = canonical.Art{Name: "Desert Weave", Description: "Handwoven shawl"}

	zeroSalt = "00000000000000000000000000000000"
	ts       = "2025-01-01T00:00:00Z"
)

func TestPublicHashMatchesCanonicalJSON(t *testing.T) {
	// The canonical form is pinned: keys sorted at every level, compact
	// separators, UTF-8. Any reimplementation must produce these exact bytes.
	want := `{"art":{"description":"Handwoven shawl","name":"Desert Weave"},` +
		`"artisan":{"aadhaar_number":"123412341234","contact_number":"9800000001",` +
		`"email":"m@x","location":"Bhuj","name":"Meera Sharma"},` +
		`"salt":"00000000000000000000000000000000","timestamp":"2025-01-01T00:00:00Z"}`
	sum := sha256.Sum256([]byte(want))

	got, err := canonical.PublicHash(meera, weave, ts, zeroSalt)
	require.NoError(t, err)
	require.Equal(t, hex.EncodeToString(sum[:]), got)
}

func TestPublicHashDeterministic(t *testing.T) {
	a, err := canonical.PublicHash(meera, weave, ts, zeroSalt)
	require.NoError(t, err)
	b, err := canonical.PublicHash(meera, weave, ts, zeroSalt)
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Regexp(t, "^[0-9a-f]{64}$", a)
}

func TestPublicHashTrimsWhitespace(t *testing.T) {
	padded := meera
	padded.Name = "  Meera Sharma "
	padded.Email = "m@x\n"
	artPadded := weave
	artPadded.Description = " Handwoven shawl  "

	a, err := canonical.PublicHash(meera, weave, ts, zeroSalt)
	require.NoError(t, err)
	b, err := canonical.PublicHash(padded, artPadded, ts, zeroSalt)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestPublicHashExcludesMedia(t *testing.T) {
	withPhoto := weave
	withPhoto.PhotoURL = "https://cdn.example/img/1.jpg"

	a, err := canonical.PublicHash(meera, weave, ts, zeroSalt)
	require.NoError(t, err)
	b, err := canonical.PublicHash(meera, withPhoto, ts, zeroSalt)
	require.NoError(t, err)
	require.Equal(t, a, b, "photo_url must never change the hash")
}

func TestPublicHashSensitivity(t *testing.T) {
	base, err := canonical.PublicHash(meera, weave, ts, zeroSalt)
	require.NoError(t, err)

	tests := []struct {
		name    string
		artisan canonical.Artisan
		art     canonical.Art
		ts      string
		salt    string
	}{
		{"changed description", meera, canonical.Art{Name: "Desert Weave", Description: "Altered"}, ts, zeroSalt},
		{"changed artisan", canonical.Artisan{Name: "Someone Else"}, weave, ts, zeroSalt},
		{"changed timestamp", meera, weave, "2025-01-01T00:00:01Z", zeroSalt},
		{"changed salt", meera, weave, ts, "ffffffffffffffffffffffffffffffff"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := canonical.PublicHash(tt.artisan, tt.art, tt.ts, tt.salt)
			require.NoError(t, err)
			require.NotEqual(t, base, h)
		})
	}
}

func TestPublicHashPreservesNonASCII(t *testing.T) {
	hindi := meera
	hindi.Location = "भुज"
	a, err := canonical.PublicHash(hindi, weave, ts, zeroSalt)
	require.NoError(t, err)

	// Canonical form keeps UTF-8 unescaped; the expected bytes contain the
	// raw characters.
	want := `{"art":{"description":"Handwoven shawl","name":"Desert Weave"},` +
		`"artisan":{"aadhaar_number":"123412341234","contact_number":"9800000001",` +
		`"email":"m@x","location":"भुज","name":"Meera Sharma"},` +
		`"salt":"00000000000000000000000000000000","timestamp":"2025-01-01T00:00:00Z"}`
	sum := sha256.Sum256([]byte(want))
	require.Equal(t, hex.EncodeToString(sum[:]), a)
}
