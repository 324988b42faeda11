package store

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"craftid/backend/internal/attest"
	"craftid/backend/internal/canonical"
	"craftid/backend/internal/db"
)

var testDB *db.DB

func TestMain(m *testing.M) {
	dsn := os.Getenv("CRAFTID_TEST_DB")
	if dsn == "" {
		os.Exit(0)
	}
	ctx := context.Background()
	var err error
	testDB, err = db.Connect(ctx, dsn)
	if err != nil {
		panic("connect test database: " + err.Error())
	}
	if err := testDB.Migrate(ctx, "../../migrations"); err != nil {
		panic("migrate test database: " + err.Error())
	}
	code := m.Run()
	testDB.Close()
	os.Exit(code)
}

func reset(t *testing.T) {
	t.Helper()
	_, err := testDB.Pool.Exec(context.Background(), `TRUNCATE craftids, counters`)
	require.NoError(t, err)
}

func record(id, norm string) CraftID {
	return CraftID{
		PublicID:    id,
		ArtNameNorm: norm,
		Submission: canonical.Submission{
			Artisan: canonical.Artisan{Name: "Meera Sharma"},
			Art:     canonical.Art{Name: "Desert Weave"},
		},
		Timestamp:   "2025-01-01T00:00:00Z",
		Salt:        "00000000000000000000000000000000",
		PublicHash:  "ab",
		Attestation: attest.Attestation{Payload: attest.Payload{PublicID: id}, Signature: "cd"},
		Status:      StatusQueued,
	}
}

func TestNextSequenceIsMonotonic(t *testing.T) {
	if testDB == nil {
		t.Skip("test database not configured")
	}
	reset(t)
	s := NewCraftIDs(testDB)
	ctx := context.Background()

	prev := int64(0)
	for i := 0; i < 5; i++ {
		seq, err := s.NextSequence(ctx, "craftid_seq")
		require.NoError(t, err)
		require.Greater(t, seq, prev)
		prev = seq
	}
	require.EqualValues(t, 5, prev)
}

func TestInsertAndRoundTrip(t *testing.T) {
	if testDB == nil {
		t.Skip("test database not configured")
	}
	reset(t)
	s := NewCraftIDs(testDB)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, record("CID-00001", "desert weave")))

	got, err := s.GetByPublicID(ctx, "CID-00001")
	require.NoError(t, err)
	require.Equal(t, StatusQueued, got.Status)
	require.Equal(t, "Meera Sharma", got.Submission.Artisan.Name)
	require.Nil(t, got.TxHash)

	exists, err := s.ExistsByArtName(ctx, "desert weave")
	require.NoError(t, err)
	require.True(t, exists)

	_, err = s.GetByPublicID(ctx, "CID-09999")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestArtNameUniqueConstraint(t *testing.T) {
	if testDB == nil {
		t.Skip("test database not configured")
	}
	reset(t)
	s := NewCraftIDs(testDB)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, record("CID-00001", "desert weave")))
	err := s.Insert(ctx, record("CID-00002", "desert weave"))
	require.Error(t, err, "unique index on art_name_norm is the collision point")
}

func TestTerminalTransitions(t *testing.T) {
	if testDB == nil {
		t.Skip("test database not configured")
	}
	reset(t)
	s := NewCraftIDs(testDB)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, record("CID-00001", "desert weave")))
	require.NoError(t, s.MarkAnchored(ctx, "CID-00001", "0xdead", "2025-01-01T00:10:00Z"))

	got, err := s.GetByPublicID(ctx, "CID-00001")
	require.NoError(t, err)
	require.Equal(t, StatusAnchored, got.Status)
	require.NotNil(t, got.TxHash)
	require.Equal(t, "0xdead", *got.TxHash)

	// Anchored is terminal: a late failure write must not regress it.
	require.NoError(t, s.MarkFailed(ctx, "CID-00001", "late failure"))
	got, err = s.GetByPublicID(ctx, "CID-00001")
	require.NoError(t, err)
	require.Equal(t, StatusAnchored, got.Status)

	for i := 2; i <= 3; i++ {
		id := fmt.Sprintf("CID-%05d", i)
		require.NoError(t, s.Insert(ctx, record(id, fmt.Sprintf("piece %d", i))))
	}
	require.NoError(t, s.MarkFailed(ctx, "CID-00002", "tx reverted"))
	got, err = s.GetByPublicID(ctx, "CID-00002")
	require.NoError(t, err)
	require.Equal(t, StatusFailed, got.Status)
	require.NotNil(t, got.LastError)
}
