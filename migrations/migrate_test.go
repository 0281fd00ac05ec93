package migrations

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNames_SortedAndEmbedded(t *testing.T) {
	names, err := Names()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "0001_secure_booking.sql", names[0])
	for i := 1; i < len(names); i++ {
		assert.Less(t, names[i-1], names[i])
	}
}

func TestInitialMigration_DeclaresCoreConstraints(t *testing.T) {
	raw, err := migrationFiles.ReadFile("0001_secure_booking.sql")
	require.NoError(t, err)
	sql := string(raw)

	assert.True(t, strings.Contains(sql, "booking_holds_no_active_overlap"), "holds need the overlap exclusion constraint")
	assert.True(t, strings.Contains(sql, "booking_confirmations_one_pending_idx"), "confirmations need the single pending index")
	assert.True(t, strings.Contains(sql, "hold_id              UUID        NOT NULL UNIQUE"), "a hold converts to at most one booking")
}
