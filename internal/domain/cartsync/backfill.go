package cartsync

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/vaarahi/storefront/internal/infrastructure/kvstore"
)

// BackfillReport summarizes a Backfill run.
type BackfillReport struct {
	Scanned int      `json:"scanned"`
	Changed int      `json:"changed"`
	Failed  []string `json:"failed,omitempty"`
}

// Backfill reconciles every session that holds either cart representation.
// Failures are collected and the scan continues.
func (s *Synchronizer) Backfill(ctx context.Context) (BackfillReport, error) {
	var report BackfillReport

	keys, err := s.kv.Keys(ctx, s.keys.SessionPrefix())
	if err != nil {
		return report, err
	}

	seen := make(map[string]bool)
	for _, key := range keys {
		sessionID, name, ok := s.keys.SplitSession(key)
		if !ok {
			continue
		}
		if name == kvstore.KeyCart || name == kvstore.KeyLegacyCart {
			seen[sessionID] = true
		}
	}

	sessions := make([]string, 0, len(seen))
	for id := range seen {
		sessions = append(sessions, id)
	}
	sort.Strings(sessions)

	for _, sessionID := range sessions {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		report.Scanned++
		result, err := s.Reconcile(ctx, sessionID)
		if err != nil {
			s.log.WithError(err).WithField("session_id", sessionID).Error("Backfill failed for session")
			report.Failed = append(report.Failed, sessionID)
			continue
		}
		if result.Changed {
			report.Changed++
		}
	}

	s.log.WithFields(logrus.Fields{
		"scanned": report.Scanned,
		"changed": report.Changed,
		"failed":  len(report.Failed),
	}).Info("Cart backfill completed")
	return report, nil
}
