package backup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tillworks/tillworks/internal/platform/store"
	"github.com/tillworks/tillworks/internal/shared"
)

// KeyBackupIndex holds the backup directory, newest first.
const KeyBackupIndex = "enhanced_pos_backups"

// DefaultLimit caps how many backups the directory retains.
const DefaultLimit = 20

// Meta describes one stored backup.
type Meta struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Types     []string  `json:"types"`
	SizeBytes int       `json:"sizeBytes"`
	Format    string    `json:"format"`
}

// Service handles export, import and backup rotation over the store.
type Service struct {
	store  *store.Store
	logger *slog.Logger
	limit  int
}

func NewService(st *store.Store, logger *slog.Logger, limit int) *Service {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Service{store: st, logger: logger, limit: limit}
}

// CreateBackup snapshots the selected collections into a timestamped blob
// and records it in the directory, evicting the oldest entries past the
// retention limit.
func (s *Service) CreateBackup(ctx context.Context, typeKeys []string) (Meta, error) {
	if len(typeKeys) == 0 {
		typeKeys = DefaultTypeKeys
	}
	payload, err := s.exportJSON(ctx, typeKeys)
	if err != nil {
		return Meta{}, err
	}
	now := time.Now()
	meta := Meta{
		ID:        fmt.Sprintf("backup_%d", now.UnixMilli()),
		Timestamp: now.UTC(),
		Types:     append([]string(nil), typeKeys...),
		SizeBytes: len(payload),
		Format:    string(FormatJSON),
	}

	index := store.GetList[Meta](ctx, s.store, KeyBackupIndex, nil)
	index = append([]Meta{meta}, index...)
	var evicted []Meta
	if len(index) > s.limit {
		evicted = index[s.limit:]
		index = index[:s.limit]
	}

	if err := s.store.SetRaw(ctx, meta.ID, payload); err != nil {
		return Meta{}, err
	}
	if err := store.SetList(ctx, s.store, KeyBackupIndex, index); err != nil {
		return Meta{}, err
	}
	for _, old := range evicted {
		if err := s.store.Remove(ctx, old.ID); err != nil {
			s.logger.Warn("backup eviction failed", "id", old.ID, "error", err)
		}
	}
	s.logger.Info("backup created", "id", meta.ID, "types", len(typeKeys), "size_bytes", meta.SizeBytes)
	return meta, nil
}

// RestoreBackup replaces every collection captured in the backup with the
// backed-up contents.
func (s *Service) RestoreBackup(ctx context.Context, id string) error {
	index := store.GetList[Meta](ctx, s.store, KeyBackupIndex, nil)
	var meta *Meta
	for i := range index {
		if index[i].ID == id {
			meta = &index[i]
			break
		}
	}
	if meta == nil {
		return shared.ErrNotFound
	}
	raw, ok, err := s.store.GetRaw(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return shared.ErrNotFound
	}
	if err := s.importJSON(ctx, raw, meta.Types); err != nil {
		return err
	}
	s.logger.Info("backup restored", "id", id, "types", len(meta.Types))
	return nil
}

// DeleteBackup removes a backup blob and its directory entry.
func (s *Service) DeleteBackup(ctx context.Context, id string) error {
	index := store.GetList[Meta](ctx, s.store, KeyBackupIndex, nil)
	kept := index[:0]
	found := false
	for _, meta := range index {
		if meta.ID == id {
			found = true
			continue
		}
		kept = append(kept, meta)
	}
	if !found {
		return shared.ErrNotFound
	}
	if err := store.SetList(ctx, s.store, KeyBackupIndex, kept); err != nil {
		return err
	}
	return s.store.Remove(ctx, id)
}

// ListBackups returns the directory, newest first.
func (s *Service) ListBackups(ctx context.Context) []Meta {
	return store.GetList[Meta](ctx, s.store, KeyBackupIndex, nil)
}

// StorageInfo reports current usage against the configured quota.
func (s *Service) StorageInfo(ctx context.Context) (store.StorageInfo, error) {
	return s.store.Info(ctx)
}
