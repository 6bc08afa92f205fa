package connector

import (
	"context"
	"time"

	"github.com/openstandia/connector-csv/csvconn/csvfile"
	"github.com/openstandia/connector-csv/csvconn/filesystem/common"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SyncState tells how a synchronization pass ended
type SyncState int

const (
	// SyncStateNoToken means the caller had no valid token; only a new token was issued
	SyncStateNoToken SyncState = iota
	// SyncStateNoBaseline means no snapshot at or after the caller's token was retained
	SyncStateNoBaseline
	// SyncStateUnchanged means the digests of both snapshots were equal
	SyncStateUnchanged
	// SyncStateChanged means the new snapshot was emitted
	SyncStateChanged
)

func (s SyncState) String() string {
	switch s {
	case SyncStateNoToken:
		return "no-token"
	case SyncStateNoBaseline:
		return "no-baseline"
	case SyncStateUnchanged:
		return "unchanged"
	case SyncStateChanged:
		return "changed"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name
func (s SyncState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// SyncResult summarizes one synchronization pass. Token is the token to
// pass to the next call. A failed pass keeps Token only when entries were
// already delivered.
type SyncResult struct {
	PassID  string    `json:"passId" yaml:"passId"`
	Token   Token     `json:"token" yaml:"token"`
	State   SyncState `json:"state" yaml:"state"`
	Emitted int       `json:"emitted" yaml:"emitted"`
	Stopped bool      `json:"stopped,omitempty" yaml:"stopped,omitempty"`
}

// Sync emits a create-or-update entry for every object of the current file
// if it differs from the snapshot of token. An invalid token only issues a
// new one. Deleted objects are not reported.
func (h *Handler) Sync(ctx context.Context, token string, fn ChangeHandler) (*SyncResult, error) {
	start := time.Now()
	result := &SyncResult{PassID: uuid.NewString()}
	logger := h.logger.With().Str("pass_id", result.PassID).Logger()

	err := h.guard.WithLock(ctx, h.store.lockName(), func() error {
		return h.doSync(ctx, token, fn, result, logger)
	})
	err = common.Normalize("sync "+h.cfg.ObjectClass, h.cfg.FilePath, err)

	h.metrics.RecordPass(start, err == nil, result.Emitted, result.State == SyncStateUnchanged, string(result.Token))
	if err != nil {
		// without delivered entries the snapshot was discarded
		if result.Emitted == 0 {
			result.Token = NoToken
		}
		logger.Error().Err(err).Str("token", token).Msg("Synchronization failed")
		return result, err
	}

	logger.Info().
		Str("token", token).
		Str("new_token", string(result.Token)).
		Stringer("state", result.State).
		Int("changes", result.Emitted).
		Bool("stopped", result.Stopped).
		Dur("took", time.Since(start)).
		Msg("Synchronization finished")
	return result, nil
}

// doSync runs under the lock
func (h *Handler) doSync(ctx context.Context, token string, fn ChangeHandler, result *SyncResult, logger zerolog.Logger) error {
	defer h.prune(ctx)

	if err := h.header.Validate(h.cfg); err != nil {
		return err
	}

	newSnap, err := h.store.create(ctx, h.cfg.FilePath)
	if err != nil {
		return err
	}
	result.Token = newSnap.Token

	old, ok := ParseToken(token)
	if !ok {
		logger.Debug().Str("token", token).Msg("Token not valid, returning latest token")
		result.State = SyncStateNoToken
		return nil
	}

	oldSnap, found, err := h.findBaseline(old, logger)
	if err != nil {
		return h.discard(ctx, newSnap, err)
	}
	if !found || oldSnap.Token == newSnap.Token {
		result.State = SyncStateNoBaseline
		return nil
	}

	same, err := h.store.sameContent(oldSnap, newSnap)
	if err != nil {
		return h.discard(ctx, newSnap, err)
	}
	if same {
		logger.Debug().Str("old", oldSnap.Path).Str("new", newSnap.Path).Msg("Snapshots are equal, no changes")
		result.State = SyncStateUnchanged
		return nil
	}

	result.State = SyncStateChanged
	if err := h.emit(newSnap, fn, result); err != nil {
		if result.Emitted > 0 {
			// delivered entries carry the new token, its snapshot stays
			return err
		}
		return h.discard(ctx, newSnap, err)
	}
	return nil
}

// findBaseline looks up the snapshot of token, falling back to the oldest
// snapshot issued after it.
func (h *Handler) findBaseline(token Token, logger zerolog.Logger) (snapshot, bool, error) {
	snap, found, err := h.store.find(token)
	if err != nil || found {
		return snap, found, err
	}

	logger.Warn().Str("token", string(token)).Msg("Snapshot for token not found, looking for the oldest newer one")
	snap, found, err = h.store.oldestNewerThan(token)
	if err != nil {
		return snapshot{}, false, err
	}
	if !found {
		logger.Warn().Str("token", string(token)).Msg("No newer snapshot retained, returning latest token")
	}
	return snap, found, nil
}

func (h *Handler) emit(snap snapshot, fn ChangeHandler, result *SyncResult) error {
	file, err := csvfile.Open(snap.Path, h.cfg.Encoding, h.format)
	if err != nil {
		return err
	}
	defer file.Close()

	mapper := h.mapper.withSource(snap.Path)
	_, err = h.each(file, mapper, func(obj *Object) bool {
		result.Emitted++
		if !fn(&ChangeEntry{Type: ChangeCreateOrUpdate, Token: snap.Token, Object: obj}) {
			result.Stopped = true
			return false
		}
		return true
	})
	return err
}

// discard removes a snapshot whose pass failed before any entry was
// delivered, so that it never pushes the caller's previous snapshot out of
// the retention window.
func (h *Handler) discard(ctx context.Context, snap snapshot, cause error) error {
	if err := h.store.remove(context.WithoutCancel(ctx), snap); err != nil {
		h.logger.Warn().Err(err).Str("snapshot", snap.Path).Msg("Couldn't remove snapshot of failed pass")
	}
	return cause
}

func (h *Handler) prune(ctx context.Context) {
	pruned, failed := h.store.prune(context.WithoutCancel(ctx), h.cfg.PreserveOldSyncFiles)
	h.metrics.RecordPrune(pruned, failed)
}

// LatestToken issues a token bound to the current file content without
// emitting changes.
func (h *Handler) LatestToken(ctx context.Context) (Token, error) {
	var token Token
	err := h.guard.WithLock(ctx, h.store.lockName(), func() error {
		defer h.prune(ctx)

		snap, err := h.store.create(ctx, h.cfg.FilePath)
		if err != nil {
			return err
		}
		token = snap.Token
		return nil
	})
	if err != nil {
		return NoToken, common.Normalize("latest token "+h.cfg.ObjectClass, h.cfg.FilePath, err)
	}

	h.logger.Debug().Str("token", string(token)).Msg("Latest token issued")
	return token, nil
}
