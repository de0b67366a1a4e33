// Package snapshot saves and restores engine state between restarts. The
// engine itself is volatile; stores here are the persistence collaborator.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/newsletter-engine/internal/analytics"
	"github.com/ignite/newsletter-engine/internal/config"
	"github.com/ignite/newsletter-engine/internal/domain"
	"github.com/ignite/newsletter-engine/internal/experiment"
)

// FormatVersion is bumped when the Snapshot layout changes incompatibly.
const FormatVersion = 1

// ErrNoSnapshot is returned by Load when nothing has been saved yet.
var ErrNoSnapshot = errors.New("no snapshot saved")

// Snapshot is the point-in-time state of one engine.
type Snapshot struct {
	Version     int              `json:"version"`
	TakenAt     time.Time        `json:"taken_at"`
	Experiments experiment.State `json:"experiments"`
	Analytics   analytics.State  `json:"analytics"`
	Segments    []domain.Segment `json:"segments"`
}

// Counts summarizes a snapshot for manifests and logs.
func (s *Snapshot) Counts() map[string]int {
	return map[string]int{
		"experiments": len(s.Experiments.Experiments),
		"assignments": len(s.Experiments.Assignments),
		"events":      len(s.Experiments.Events),
		"campaigns":   len(s.Analytics.Campaigns),
		"engagements": len(s.Analytics.Engagements),
		"segments":    len(s.Segments),
	}
}

// Store persists snapshots.
type Store interface {
	Save(ctx context.Context, snap *Snapshot) error
	Load(ctx context.Context) (*Snapshot, error)
}

// New builds the store selected by cfg.Type.
func New(ctx context.Context, cfg config.SnapshotConfig) (Store, error) {
	switch cfg.Type {
	case "aws":
		st, err := NewAWSStore(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("initializing AWS snapshot store: %w", err)
		}
		return st, nil
	case "local", "":
		return NewLocalStore(cfg.LocalPath)
	default:
		return nil, fmt.Errorf("unknown snapshot store type %q", cfg.Type)
	}
}

func checkVersion(snap *Snapshot) error {
	if snap.Version != FormatVersion {
		return fmt.Errorf("snapshot format version %d, want %d", snap.Version, FormatVersion)
	}
	return nil
}
