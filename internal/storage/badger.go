package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specula/internal/artifact"
	"github.com/fyrsmithlabs/specula/internal/state"
)

const badgerSchemaVersion = "1"

// BadgerConfig configures the embedded store.
type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps everything in RAM. Used by tests.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool
}

// Badger stores runtime records in an embedded BadgerDB.
//
// Key layout:
//
//	meta/schema_version
//	project/<project_id>
//	artifact/<artifact_id>
//	validation/<artifact_id>/<validator_id>
//	refusal/<project_id>/<refusal_id>
//	guardian/<project_id>/<guardian_id>
//	audit/<project_id>/<insert nanos>/<seq>
type Badger struct {
	db     *badger.DB
	logger *zap.Logger
	now    func() time.Time
	seq    atomic.Uint64
}

// NewBadger opens (creating if needed) an embedded store.
func NewBadger(cfg BadgerConfig, logger *zap.Logger) (*Badger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badger path is required for a persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create badger directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(&badgerLogger{sugar: logger.Named("badger").Sugar()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return &Badger{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	}, nil
}

// badgerLogger routes BadgerDB's internal logging through zap. Info is
// demoted to debug; badger is chatty at startup.
type badgerLogger struct {
	sugar *zap.SugaredLogger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }
func (l *badgerLogger) Warningf(format string, args ...interface{}) { l.sugar.Warnf(format, args...) }
func (l *badgerLogger) Infof(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *badgerLogger) Debugf(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }

type badgerProject struct {
	ProjectID    string    `json:"project_id"`
	Name         string    `json:"name"`
	CurrentPhase string    `json:"current_phase"`
	CreatedAt    time.Time `json:"created_at"`
}

type badgerArtifact struct {
	ProjectID string            `json:"project_id"`
	Artifact  artifact.Artifact `json:"artifact"`
}

type badgerValidation struct {
	Record state.ValidationRecord `json:"record"`
	Seq    int64                  `json:"seq"`
}

func projectKey(id string) []byte { return []byte("project/" + id) }
func artifactKey(id string) []byte { return []byte("artifact/" + id) }
func validationPrefix(artifactID string) []byte { return []byte("validation/" + artifactID + "/") }
func auditPrefix(projectID string) []byte { return []byte("audit/" + projectID + "/") }

// InitSchema records the layout version.
func (b *Badger) InitSchema(ctx context.Context) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("meta/schema_version"), []byte(badgerSchemaVersion))
	})
}

// UpsertProjectState inserts the project or updates its current phase.
func (b *Badger) UpsertProjectState(ctx context.Context, s *state.ProjectState) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		row := badgerProject{
			ProjectID:    s.ProjectID,
			Name:         s.ProjectID,
			CurrentPhase: string(s.CurrentPhase),
			CreatedAt:    b.now(),
		}
		var existing badgerProject
		found, err := getJSON(txn, projectKey(s.ProjectID), &existing)
		if err != nil {
			return err
		}
		if found {
			row.Name = existing.Name
			row.CreatedAt = existing.CreatedAt
		}
		return setJSON(txn, projectKey(s.ProjectID), row)
	})
	if err != nil {
		return fmt.Errorf("failed to upsert project `%s`: %w", s.ProjectID, err)
	}
	return nil
}

// InsertArtifact stores a and its refusal or guardian rows unless the
// artifact is already known.
func (b *Badger) InsertArtifact(ctx context.Context, projectID string, a artifact.Artifact) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		key := artifactKey(a.Meta.ArtifactID)
		if exists, err := keyExists(txn, key); err != nil || exists {
			return err
		}
		if err := setJSON(txn, key, badgerArtifact{ProjectID: projectID, Artifact: a}); err != nil {
			return err
		}

		refusals, reports := secondaryRows(projectID, a)
		for _, r := range refusals {
			if err := setIfAbsent(txn, []byte("refusal/"+projectID+"/"+r.RefusalID), r); err != nil {
				return err
			}
		}
		for _, g := range reports {
			if err := setIfAbsent(txn, []byte("guardian/"+projectID+"/"+g.GuardianID), g); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to insert artifact `%s`: %w", a.Meta.ArtifactID, err)
	}
	return nil
}

// InsertValidation stores a validation unless the validator already
// signed the artifact.
func (b *Badger) InsertValidation(ctx context.Context, in state.ValidationInput) error {
	rec, err := normalizeValidation(in, b.now())
	if err != nil {
		return err
	}

	key := append(validationPrefix(in.ArtifactID), rec.ValidatorID...)
	return b.db.Update(func(txn *badger.Txn) error {
		exists, err := keyExists(txn, key)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w for artifact `%s` and validator `%s`", ErrDuplicateValidation, in.ArtifactID, rec.ValidatorID)
		}
		return setJSON(txn, key, badgerValidation{Record: rec, Seq: int64(b.seq.Add(1))})
	})
}

// GetValidations returns the validations of artifactID ordered by time,
// then by insertion.
func (b *Badger) GetValidations(ctx context.Context, artifactID string) ([]state.ValidationRecord, error) {
	var rows []badgerValidation
	err := b.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, validationPrefix(artifactID), func(val []byte) error {
			var row badgerValidation
			if err := json.Unmarshal(val, &row); err != nil {
				return err
			}
			rows = append(rows, row)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read validations: %w", err)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		ti, tj := rows[i].Record.ValidatedAt, rows[j].Record.ValidatedAt
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return rows[i].Seq < rows[j].Seq
	})
	out := make([]state.ValidationRecord, len(rows))
	for i, row := range rows {
		out[i] = row.Record
	}
	return out, nil
}

// AppendAudit appends ev to the project's audit log.
func (b *Badger) AppendAudit(ctx context.Context, ev AuditEvent) error {
	ev = fillAudit(ev, b.now())
	key := fmt.Sprintf("%s%020d/%010d", auditPrefix(ev.ProjectID), time.Now().UnixNano(), b.seq.Add(1))
	err := b.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, []byte(key), ev)
	})
	if err != nil {
		return fmt.Errorf("failed to append audit event %s: %w", ev.Event, err)
	}
	return nil
}

// ListAudit returns the newest limit events of projectID, oldest first.
func (b *Badger) ListAudit(ctx context.Context, projectID string, limit int) ([]AuditEvent, error) {
	out := []AuditEvent{}
	err := b.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, auditPrefix(projectID), func(val []byte) error {
			var ev AuditEvent
			if err := json.Unmarshal(val, &ev); err != nil {
				return err
			}
			out = append(out, ev)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// Close closes the database.
func (b *Badger) Close() error {
	return b.db.Close()
}

func keyExists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	default:
		return false, err
	}
}

func getJSON(txn *badger.Txn, key []byte, out interface{}) (bool, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}

func setJSON(txn *badger.Txn, key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

func setIfAbsent(txn *badger.Txn, key []byte, v interface{}) error {
	exists, err := keyExists(txn, key)
	if err != nil || exists {
		return err
	}
	return setJSON(txn, key, v)
}

// scanPrefix calls fn with every value under prefix in key order.
func scanPrefix(txn *badger.Txn, prefix []byte, fn func(val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}

var _ Store = (*Badger)(nil)
