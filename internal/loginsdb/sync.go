package loginsdb

import (
	"context"
	"time"

	"github.com/mozilla/logins-sync/internal/logins"
	"github.com/mozilla/logins-sync/internal/reconcile"
	"github.com/sirupsen/logrus"
)

// ApplyIncoming implements §4.6's apply_incoming: fetch the matched
// local/mirror state for changeset, reconcile it into a plan, execute that
// plan, and return what's left to upload.
func (s *Store) ApplyIncoming(ctx context.Context, changeset logins.IncomingChangeset) (logins.OutgoingChangeset, error) {
	records, err := s.FetchLoginData(ctx, changeset.Changes)
	if err != nil {
		return logins.OutgoingChangeset{}, err
	}

	plan := reconcile.Reconcile(records, changeset.Timestamp, time.Now())
	logrus.WithFields(logrus.Fields{
		"incoming":       len(changeset.Changes),
		"mirror_inserts": len(plan.MirrorInserts),
		"mirror_updates": len(plan.MirrorUpdates),
		"local_updates":  len(plan.LocalUpdates),
		"deletes_local":  len(plan.DeleteLocal),
		"deletes_mirror": len(plan.DeleteMirror),
	}).Debug("applying incoming login changeset")

	if !plan.IsEmpty() {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return logins.OutgoingChangeset{}, logins.WrapError(logins.KindStorage, "apply_incoming", err)
		}
		if err := ExecutePlan(ctx, tx, plan, time.Now()); err != nil {
			tx.Rollback()
			return logins.OutgoingChangeset{}, err
		}
		if err := tx.Commit(); err != nil {
			return logins.OutgoingChangeset{}, logins.WrapError(logins.KindStorage, "apply_incoming commit", err)
		}
	}

	return s.FetchOutgoing(ctx, changeset.Timestamp)
}

// SyncFinished implements §4.6's sync_finished: the transport calls this
// only after the server has durably accepted the upload, at which point
// recordsSynced's local rows collapse into the mirror.
func (s *Store) SyncFinished(ctx context.Context, newTS logins.ServerTimestamp, recordsSynced []string) error {
	return s.MarkAsSynchronized(ctx, recordsSynced, newTS)
}
