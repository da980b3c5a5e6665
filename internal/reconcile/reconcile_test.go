package reconcile

import (
	"testing"
	"time"

	"github.com/mozilla/logins-sync/internal/logins"
	"github.com/stretchr/testify/assert"
)

func mkLogin(id string, tpc int64) logins.Login {
	return logins.Login{
		ID: id, Hostname: "https://example.com", HTTPRealm: "r",
		Username: "u", Password: "p",
		TimeCreated: 1, TimePasswordChanged: tpc,
	}
}

func TestReconcileEmptyChangesetProducesEmptyPlan(t *testing.T) {
	plan := Reconcile(nil, 0, time.Now())
	assert.True(t, plan.IsEmpty())
}

func TestReconcileTombstoneDeletesBothTables(t *testing.T) {
	rec := SyncLoginData{
		GUID:    "A",
		Inbound: logins.TombstonePayload("A"),
	}
	plan := Reconcile([]SyncLoginData{rec}, 0, time.Now())
	assert.Equal(t, []string{"A"}, plan.DeleteMirror)
	assert.Equal(t, []string{"A"}, plan.DeleteLocal)
	assert.Empty(t, plan.MirrorInserts)
	assert.Empty(t, plan.MirrorUpdates)
	assert.Empty(t, plan.LocalUpdates)
}

func TestReconcileMirrorOnlyIsPlainMirrorUpdate(t *testing.T) {
	mirror := logins.NewMirrorLogin(mkLogin("A", 1))
	rec := SyncLoginData{
		GUID:     "A",
		Inbound:  logins.PayloadFromLogin(mkLogin("A", 2)),
		ServerTS: 100,
		Mirror:   &mirror,
	}
	plan := Reconcile([]SyncLoginData{rec}, 0, time.Now())
	assert.Empty(t, plan.LocalUpdates)
	assert.Empty(t, plan.MirrorInserts)
	assert.Len(t, plan.MirrorUpdates, 1)
	assert.Equal(t, logins.ServerTimestamp(100), plan.MirrorUpdates[0].ServerModified)
	assert.Equal(t, int64(2), plan.MirrorUpdates[0].Login.TimePasswordChanged)
}

func TestReconcileNewRecordNoDupeIsMirrorInsert(t *testing.T) {
	rec := SyncLoginData{
		GUID:     "A",
		Inbound:  logins.PayloadFromLogin(mkLogin("A", 1)),
		ServerTS: 100,
	}
	plan := Reconcile([]SyncLoginData{rec}, 0, time.Now())
	assert.Len(t, plan.MirrorInserts, 1)
	assert.False(t, plan.MirrorInserts[0].IsOverridden)
	assert.Equal(t, "A", plan.MirrorInserts[0].Login.ID)
	assert.Empty(t, plan.LocalUpdates)
	assert.Empty(t, plan.DeleteLocal)
}

func TestReconcileTwoWayMergeLocalNewerKeepsLocalRow(t *testing.T) {
	local := logins.LocalLogin{Login: mkLogin("A", 500), SyncStatus: logins.StatusChanged}
	rec := SyncLoginData{
		GUID:     "A",
		Inbound:  logins.PayloadFromLogin(mkLogin("A", 300)),
		ServerTS: 200,
		Local:    &local,
	}
	plan := Reconcile([]SyncLoginData{rec}, 0, time.Now())

	assert.Len(t, plan.MirrorInserts, 1)
	assert.True(t, plan.MirrorInserts[0].IsOverridden)
	assert.Equal(t, int64(500), plan.MirrorInserts[0].Login.TimePasswordChanged)
	assert.Empty(t, plan.DeleteLocal)
	assert.Empty(t, plan.LocalUpdates)
}

func TestReconcileTwoWayMergeUpstreamNewerDeletesLocalRow(t *testing.T) {
	local := logins.LocalLogin{Login: mkLogin("A", 100), SyncStatus: logins.StatusChanged}
	rec := SyncLoginData{
		GUID:     "A",
		Inbound:  logins.PayloadFromLogin(mkLogin("A", 300)),
		ServerTS: 200,
		Local:    &local,
	}
	plan := Reconcile([]SyncLoginData{rec}, 0, time.Now())

	assert.Len(t, plan.MirrorInserts, 1)
	assert.False(t, plan.MirrorInserts[0].IsOverridden)
	assert.Equal(t, int64(300), plan.MirrorInserts[0].Login.TimePasswordChanged)
	assert.Equal(t, []string{"A"}, plan.DeleteLocal)
}

func TestReconcileDupeOverrideRekeysLocalRowToServerGUID(t *testing.T) {
	dupe := logins.LocalLogin{Login: mkLogin("local-guid", 500), SyncStatus: logins.StatusNew}
	rec := SyncLoginData{
		GUID:     "server-guid",
		Inbound:  logins.PayloadFromLogin(mkLogin("server-guid", 300)),
		ServerTS: 200,
		Dupe:     &dupe,
		DupeGUID: "local-guid",
	}
	plan := Reconcile([]SyncLoginData{rec}, 0, time.Now())

	assert.Len(t, plan.MirrorInserts, 1)
	assert.True(t, plan.MirrorInserts[0].IsOverridden)
	assert.Equal(t, "server-guid", plan.MirrorInserts[0].Login.ID)

	assert.Equal(t, []string{"local-guid"}, plan.DeleteLocal)
	assert.Len(t, plan.LocalUpdates, 1)
	assert.Equal(t, "server-guid", plan.LocalUpdates[0].GUID)
	assert.Equal(t, "server-guid", plan.LocalUpdates[0].Login.ID)
}

func TestReconcileDupeNonOverrideDropsLocalDuplicate(t *testing.T) {
	dupe := logins.LocalLogin{Login: mkLogin("local-guid", 100), SyncStatus: logins.StatusNew}
	rec := SyncLoginData{
		GUID:     "server-guid",
		Inbound:  logins.PayloadFromLogin(mkLogin("server-guid", 300)),
		ServerTS: 200,
		Dupe:     &dupe,
		DupeGUID: "local-guid",
	}
	plan := Reconcile([]SyncLoginData{rec}, 0, time.Now())

	assert.Len(t, plan.MirrorInserts, 1)
	assert.False(t, plan.MirrorInserts[0].IsOverridden)
	assert.Equal(t, "server-guid", plan.MirrorInserts[0].Login.ID)
	assert.Equal(t, []string{"local-guid"}, plan.DeleteLocal)
	assert.Empty(t, plan.LocalUpdates)
}

func TestReconcileThreeWayMergeKeepsDisjointEditsFromBothSides(t *testing.T) {
	shared := logins.NewMirrorLogin(mkLogin("A", 100))
	shared.Login.Username = "shared-user"
	shared.Login.Password = "shared-pw"

	local := logins.LocalLogin{
		Login:         mkLogin("A", 100),
		LocalModified: time.Now().Add(-60 * time.Second),
	}
	local.Login.Username = "local-user" // local edited username only
	local.Login.Password = "shared-pw"

	upstream := mkLogin("A", 190)
	upstream.Username = "shared-user" // unchanged from shared
	upstream.Password = "upstream-pw" // remote edited password

	rec := SyncLoginData{
		GUID:     "A",
		Inbound:  logins.PayloadFromLogin(upstream),
		ServerTS: 190000,
		Mirror:   &shared,
		Local:    &local,
	}

	serverNow := logins.ServerTimestamp(200000) // remote_age is 10s, smaller than local_age (60s)
	plan := Reconcile([]SyncLoginData{rec}, serverNow, time.Now())

	assert.Len(t, plan.MirrorUpdates, 1)
	assert.Equal(t, upstream, plan.MirrorUpdates[0].Login)

	assert.Len(t, plan.LocalUpdates, 1)
	got := plan.LocalUpdates[0].Login
	assert.Equal(t, "local-user", got.Username, "local's username edit should survive")
	assert.Equal(t, "upstream-pw", got.Password, "remote's password edit should survive")
	assert.Equal(t, int64(190), got.TimePasswordChanged)
}
