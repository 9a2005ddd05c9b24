package journal

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hparsa/relaycast/internal/core/domain"
)

func TestAppendLevels(t *testing.T) {
	j := New()

	j.Infof("picked up %s", "item-1")
	j.Successf("delivered")
	j.Warnf("skipped target")
	j.Errorf("delivery failed")

	entries := j.Snapshot()
	require.Len(t, entries, 4)

	require.Equal(t, domain.LevelInfo, entries[0].Level)
	require.Equal(t, domain.LevelSuccess, entries[1].Level)
	require.Equal(t, domain.LevelWarn, entries[2].Level)
	require.Equal(t, domain.LevelError, entries[3].Level)
	require.Equal(t, "picked up item-1", entries[0].Message)
}

func TestOverflowKeepsMostRecent(t *testing.T) {
	j := New()

	total := Capacity + 13
	for i := 0; i < total; i++ {
		j.Infof("entry %d", i)
	}

	entries := j.Snapshot()
	require.Len(t, entries, Capacity)

	// Oldest retained entry is the one right after the dropped prefix.
	require.Equal(t, fmt.Sprintf("entry %d", total-Capacity), entries[0].Message)
	require.Equal(t, fmt.Sprintf("entry %d", total-1), entries[Capacity-1].Message)
}

func TestIDsKeepGrowingAcrossEviction(t *testing.T) {
	j := New()

	for i := 0; i < Capacity+1; i++ {
		j.Infof("entry %d", i)
	}

	entries := j.Snapshot()
	require.Equal(t, int64(2), entries[0].ID)
	require.Equal(t, int64(Capacity+1), entries[len(entries)-1].ID)
}

func TestSnapshotIsACopy(t *testing.T) {
	j := New()
	j.Infof("one")

	snap := j.Snapshot()
	snap[0].Message = "mutated"

	require.Equal(t, "one", j.Snapshot()[0].Message)
}
