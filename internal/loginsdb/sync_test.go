package loginsdb

import (
	"context"
	"testing"

	"github.com/mozilla/logins-sync/internal/logins"
	"github.com/stretchr/testify/require"
)

func TestApplyIncomingFreshRecordIsMirrorInsertOnly(t *testing.T) {
	s, err := OpenInMemory()
	require.NoError(t, err)
	defer s.Close()

	changeset := logins.NewIncomingChangeset(1000)
	changeset.Changes = []logins.IncomingRecord{
		{Payload: logins.PayloadFromLogin(mkTestLogin("g1", "https://a.example", "pw")), ServerTS: 1000},
	}

	out, err := s.ApplyIncoming(context.Background(), changeset)
	require.NoError(t, err)
	require.Empty(t, out.Changes)

	mirror, err := s.GetMirrorLogin("g1")
	require.NoError(t, err)
	require.NotNil(t, mirror)
	local, err := s.GetLocalLogin("g1")
	require.NoError(t, err)
	require.Nil(t, local)
}

func TestApplyIncomingTombstoneDeletesBothTables(t *testing.T) {
	s, err := OpenInMemory()
	require.NoError(t, err)
	defer s.Close()

	insertMirror(t, s, mkTestLogin("g1", "https://a.example", "pw"), 500, false)
	insertLocal(t, s, mkTestLogin("g1", "https://a.example", "pw"), logins.StatusChanged, false)

	changeset := logins.NewIncomingChangeset(2000)
	changeset.Changes = []logins.IncomingRecord{
		{Payload: logins.TombstonePayload("g1"), ServerTS: 2000},
	}
	_, err = s.ApplyIncoming(context.Background(), changeset)
	require.NoError(t, err)

	local, mirror, err := s.GetLoginsWithGUID("g1")
	require.NoError(t, err)
	require.Nil(t, local)
	require.Nil(t, mirror)
}

func TestApplyIncomingOnEmptyChangesetIsIdempotent(t *testing.T) {
	s, err := OpenInMemory()
	require.NoError(t, err)
	defer s.Close()

	insertLocal(t, s, mkTestLogin("g1", "https://a.example", "pw"), logins.StatusChanged, false)

	changeset := logins.NewIncomingChangeset(42)
	out, err := s.ApplyIncoming(context.Background(), changeset)
	require.NoError(t, err)
	require.Len(t, out.Changes, 1)

	out2, err := s.ApplyIncoming(context.Background(), changeset)
	require.NoError(t, err)
	require.Len(t, out2.Changes, 1)
}

func TestApplyIncomingTwoWayMergeLocalWinsKeepsPendingRow(t *testing.T) {
	s, err := OpenInMemory()
	require.NoError(t, err)
	defer s.Close()

	local := mkTestLogin("g1", "https://a.example", "local-pw")
	local.TimePasswordChanged = 500
	insertLocal(t, s, local, logins.StatusChanged, false)

	upstream := mkTestLogin("g1", "https://a.example", "server-pw")
	upstream.TimePasswordChanged = 100

	changeset := logins.NewIncomingChangeset(1000)
	changeset.Changes = []logins.IncomingRecord{
		{Payload: logins.PayloadFromLogin(upstream), ServerTS: 1000},
	}
	_, err = s.ApplyIncoming(context.Background(), changeset)
	require.NoError(t, err)

	localRow, err := s.GetLocalLogin("g1")
	require.NoError(t, err)
	require.NotNil(t, localRow)
	require.Equal(t, "local-pw", localRow.Login.Password)

	mirror, err := s.GetMirrorLogin("g1")
	require.NoError(t, err)
	require.NotNil(t, mirror)
	require.True(t, mirror.IsOverridden)
	require.Equal(t, "local-pw", mirror.Login.Password)
}

func TestApplyIncomingTwoWayMergeUpstreamWinsDropsLocalRow(t *testing.T) {
	s, err := OpenInMemory()
	require.NoError(t, err)
	defer s.Close()

	local := mkTestLogin("g1", "https://a.example", "local-pw")
	local.TimePasswordChanged = 100
	insertLocal(t, s, local, logins.StatusChanged, false)

	upstream := mkTestLogin("g1", "https://a.example", "server-pw")
	upstream.TimePasswordChanged = 500

	changeset := logins.NewIncomingChangeset(1000)
	changeset.Changes = []logins.IncomingRecord{
		{Payload: logins.PayloadFromLogin(upstream), ServerTS: 1000},
	}
	_, err = s.ApplyIncoming(context.Background(), changeset)
	require.NoError(t, err)

	localRow, err := s.GetLocalLogin("g1")
	require.NoError(t, err)
	require.Nil(t, localRow)

	mirror, err := s.GetMirrorLogin("g1")
	require.NoError(t, err)
	require.NotNil(t, mirror)
	require.False(t, mirror.IsOverridden)
	require.Equal(t, "server-pw", mirror.Login.Password)
}

func TestSyncFinishedCollapsesRecordsIntoMirror(t *testing.T) {
	s, err := OpenInMemory()
	require.NoError(t, err)
	defer s.Close()

	insertLocal(t, s, mkTestLogin("g1", "https://a.example", "pw"), logins.StatusChanged, false)

	err = s.SyncFinished(context.Background(), logins.ServerTimestampFromMillis(7777), []string{"g1"})
	require.NoError(t, err)

	local, err := s.GetLocalLogin("g1")
	require.NoError(t, err)
	require.Nil(t, local)

	mirror, err := s.GetMirrorLogin("g1")
	require.NoError(t, err)
	require.NotNil(t, mirror)
	require.EqualValues(t, 7777, mirror.ServerModified.Millis())
}

func TestApplyIncomingFetchOutgoingReflectsRemainingPendingRows(t *testing.T) {
	s, err := OpenInMemory()
	require.NoError(t, err)
	defer s.Close()

	insertLocal(t, s, mkTestLogin("pending1", "https://a.example", "pw"), logins.StatusNew, false)
	insertLocal(t, s, mkTestLogin("pending2", "https://b.example", "pw"), logins.StatusChanged, false)

	changeset := logins.NewIncomingChangeset(999)
	out, err := s.ApplyIncoming(context.Background(), changeset)
	require.NoError(t, err)
	require.Len(t, out.Changes, 2)
	require.EqualValues(t, 999, out.Timestamp)
}
