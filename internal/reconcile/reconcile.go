// Package reconcile implements the five-case classifier from §4.4: given one
// incoming record's matched local/mirror state, decide what should happen to
// it, and accumulate the result into a pure UpdatePlan value. This package
// never touches a database — it is deliberately free of any SQL import so it
// stays trivially testable in isolation, per §9's design note.
package reconcile

import (
	"time"

	"github.com/mozilla/logins-sync/internal/logins"
)

// SyncLoginData bundles one incoming record with whatever local state the
// storage adapter's fetch_login_data matched it against (§4.3). Dupe is
// populated only when Mirror and Local are both nil and the storage layer's
// find_dupe located a local triple-match (§4.4 row 5) — the dupe lookup
// itself is a storage query, so it must run before Reconcile is called.
type SyncLoginData struct {
	GUID     string
	Inbound  logins.Payload
	ServerTS logins.ServerTimestamp
	Mirror   *logins.MirrorLogin
	Local    *logins.LocalLogin

	Dupe     *logins.LocalLogin
	DupeGUID string
}

// MirrorInsert is one row to INSERT OR IGNORE into the mirror table.
type MirrorInsert struct {
	Login          logins.Login
	ServerModified logins.ServerTimestamp
	IsOverridden   bool
}

// MirrorUpdate is one row to overwrite in place in the mirror table.
type MirrorUpdate struct {
	Login          logins.Login
	ServerModified logins.ServerTimestamp
}

// LocalUpdate is one reconciled value to write back into the local table.
// The executor stamps local_modified=now and sync_status=Changed when it
// applies this (§4.5 step 4). ServerModified records the upstream timestamp
// the value was reconciled against; the executor does not write it to the
// local table.
type LocalUpdate struct {
	GUID           string
	Login          logins.Login
	ServerModified logins.ServerTimestamp
}

// UpdatePlan is the pure, stage-ordered output of reconciliation. The
// executor (§4.5) consumes it; the reconciler never executes it itself.
type UpdatePlan struct {
	DeleteMirror  []string
	DeleteLocal   []string
	MirrorInserts []MirrorInsert
	MirrorUpdates []MirrorUpdate
	LocalUpdates  []LocalUpdate
}

// IsEmpty reports whether the plan has nothing to do, used to short-circuit
// apply_incoming on an empty changeset (§8.1 invariant 3).
func (p UpdatePlan) IsEmpty() bool {
	return len(p.DeleteMirror) == 0 && len(p.DeleteLocal) == 0 &&
		len(p.MirrorInserts) == 0 && len(p.MirrorUpdates) == 0 && len(p.LocalUpdates) == 0
}

// Reconcile classifies every record in records and builds the UpdatePlan
// that brings the store in line with them. serverNow is the server's
// notion of "now" (used for remote_age in the three-way merge); wallNow is
// the caller's wall clock (used for local_age).
func Reconcile(records []SyncLoginData, serverNow logins.ServerTimestamp, wallNow time.Time) UpdatePlan {
	var plan UpdatePlan
	for _, rec := range records {
		reconcileOne(&plan, rec, serverNow, wallNow)
	}
	return plan
}

func reconcileOne(plan *UpdatePlan, rec SyncLoginData, serverNow logins.ServerTimestamp, wallNow time.Time) {
	if rec.Inbound.IsTombstone() {
		planDelete(plan, rec.GUID)
		return
	}

	upstream := rec.Inbound.ToLogin()

	switch {
	case rec.Mirror != nil && rec.Local != nil:
		planThreeWayMerge(plan, rec.GUID, *rec.Local, *rec.Mirror, upstream, rec.ServerTS, serverNow, wallNow)

	case rec.Mirror != nil && rec.Local == nil:
		planMirrorUpdate(plan, upstream, rec.ServerTS)

	case rec.Mirror == nil && rec.Local != nil:
		planTwoWayMerge(plan, rec.Local.Login, upstream, rec.ServerTS, rec.GUID)

	default: // both absent
		if rec.Dupe != nil {
			planTwoWayMerge(plan, rec.Dupe.Login, upstream, rec.ServerTS, rec.DupeGUID)
		} else {
			plan.MirrorInserts = append(plan.MirrorInserts, MirrorInsert{
				Login:          upstream,
				ServerModified: rec.ServerTS,
				IsOverridden:   false,
			})
		}
	}
}

// planDelete implements §4.4 row 1: server deletion always wins.
func planDelete(plan *UpdatePlan, guid string) {
	plan.DeleteMirror = append(plan.DeleteMirror, guid)
	plan.DeleteLocal = append(plan.DeleteLocal, guid)
}

// planMirrorUpdate implements §4.4 row 3: mirror present, no local change pending.
func planMirrorUpdate(plan *UpdatePlan, upstream logins.Login, upstreamTS logins.ServerTimestamp) {
	plan.MirrorUpdates = append(plan.MirrorUpdates, MirrorUpdate{Login: upstream, ServerModified: upstreamTS})
}

// planThreeWayMerge implements §4.4.1.
func planThreeWayMerge(plan *UpdatePlan, guid string, local logins.LocalLogin, shared logins.MirrorLogin, upstream logins.Login, upstreamTS, serverNow logins.ServerTimestamp, wallNow time.Time) {
	localDelta := logins.Diff(local.Login, shared.Login)
	upstreamDelta := logins.Diff(upstream, shared.Login)

	localAge := clampNonNegative(wallNow.Sub(local.LocalModified))
	remoteAge := clampNonNegative(time.Duration(serverNow.Millis()-upstreamTS.Millis()) * time.Millisecond)

	preferRemote := remoteAge < localAge
	merged := logins.Merge(localDelta, upstreamDelta, preferRemote)

	plan.MirrorUpdates = append(plan.MirrorUpdates, MirrorUpdate{Login: upstream, ServerModified: upstreamTS})
	plan.LocalUpdates = append(plan.LocalUpdates, LocalUpdate{
		GUID:           guid,
		Login:          shared.Apply(merged),
		ServerModified: upstreamTS,
	})
}

// planTwoWayMerge implements §4.4.2. local and upstream may carry different
// GUIDs (the find_dupe path); the server's GUID (upstream.ID) is always the
// one that survives, since it is the identifier other devices already agree
// on. localGUID is the row that holds local's pending change today, and is
// what gets deleted or re-keyed.
func planTwoWayMerge(plan *UpdatePlan, local, upstream logins.Login, upstreamTS logins.ServerTimestamp, localGUID string) {
	isOverride := local.TimePasswordChanged > upstream.TimePasswordChanged

	if isOverride {
		survivor := local
		survivor.ID = upstream.ID
		plan.MirrorInserts = append(plan.MirrorInserts, MirrorInsert{
			Login:          survivor,
			ServerModified: upstreamTS,
			IsOverridden:   true,
		})
		if localGUID != upstream.ID {
			// The pending local row lived under the old (locally-assigned or
			// duplicate) GUID; it re-uploads under the server's GUID instead.
			plan.DeleteLocal = append(plan.DeleteLocal, localGUID)
			plan.LocalUpdates = append(plan.LocalUpdates, LocalUpdate{
				GUID:           upstream.ID,
				Login:          survivor,
				ServerModified: upstreamTS,
			})
		}
		// else: same GUID already pending under the right key — nothing to do.
		return
	}

	plan.MirrorInserts = append(plan.MirrorInserts, MirrorInsert{
		Login:          upstream,
		ServerModified: upstreamTS,
		IsOverridden:   false,
	})
	plan.DeleteLocal = append(plan.DeleteLocal, localGUID)
}

func clampNonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
