package cfgstore

import (
	"context"
	"fmt"
	"strconv"
)

// CurrentVersion is the schema version new boards start at.
const CurrentVersion uint32 = 1

// DefaultVersionKey is the backend key holding the schema version,
// matching ConfigStore::runMigrations's default "cfg_ver".
const DefaultVersionKey = "cfg_ver"

// MigrationStep moves the backend from one schema version to the next,
// grounded on MigrationStep in ConfigMigrations.h.
type MigrationStep struct {
	From  uint32
	To    uint32
	Apply func(ctx context.Context, b Backend) error
}

// migrateNoop_0to1 is a template step with nothing to do yet, the Go
// analog of ConfigMigrations.h's mig_0_to_1 placeholder.
func migrateNoop_0to1(ctx context.Context, b Backend) error { return nil }

// DefaultSteps ships the same 0->1 no-op step as a template for future
// schema changes.
var DefaultSteps = []MigrationStep{
	{From: 0, To: 1, Apply: migrateNoop_0to1},
}

// Migrate reads the stored schema version and applies ordered steps
// bridging it to target, persisting the new version after each
// successful step. On failure, if clearOnFail is set, the backend is
// wiped and the version reset to 0, matching runMigrations's
// clearOnFail behavior.
func (s *Store) Migrate(ctx context.Context, target uint32, steps []MigrationStep, versionKey string, clearOnFail bool) error {
	if versionKey == "" {
		versionKey = DefaultVersionKey
	}
	if s.backend == nil {
		return nil
	}

	current, err := s.readVersion(versionKey)
	if err != nil {
		return err
	}

	for current < target {
		step, ok := findStep(steps, current)
		if !ok {
			return fmt.Errorf("cfgstore: no migration step from version %d", current)
		}
		if err := step.Apply(ctx, s.backend); err != nil {
			if clearOnFail {
				_ = s.backend.Clear()
				_ = s.backend.Save(versionKey, "0")
			}
			return fmt.Errorf("cfgstore: migration %d->%d failed: %w", step.From, step.To, err)
		}
		if err := s.backend.Save(versionKey, strconv.FormatUint(uint64(step.To), 10)); err != nil {
			return fmt.Errorf("cfgstore: persist version %d: %w", step.To, err)
		}
		current = step.To
	}
	return nil
}

func (s *Store) readVersion(versionKey string) (uint32, error) {
	raw, ok, err := s.backend.Load(versionKey)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, nil
	}
	return uint32(n), nil
}

func findStep(steps []MigrationStep, from uint32) (MigrationStep, bool) {
	for _, st := range steps {
		if st.From == from {
			return st, true
		}
	}
	return MigrationStep{}, false
}
