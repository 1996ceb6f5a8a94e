package service

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"marketplace-service/internal/models"
	"marketplace-service/internal/util"

	"go.uber.org/zap"
)

// BackupService wraps pg_dump/pg_restore for admin-triggered database
// backups. Archives use the custom format so pg_restore can replay them.
type BackupService struct {
	databaseURL string
	dir         string
	timeout     time.Duration
	logger      *zap.Logger
}

// NewBackupService creates a new backup service
func NewBackupService(databaseURL, dir string, timeout time.Duration) *BackupService {
	return &BackupService{
		databaseURL: databaseURL,
		dir:         dir,
		timeout:     timeout,
		logger:      util.GetLogger(),
	}
}

// BackupInfo describes one archive on disk
type BackupInfo struct {
	Name      string    `json:"name"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// Backup runs pg_dump and returns the archive file name
func (s *BackupService) Backup(ctx context.Context) (string, error) {
	ctx, span := util.StartSpan(ctx, "BackupService.Backup")
	defer span.End()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup dir: %w", err)
	}

	name := fmt.Sprintf("backup-%s.dump", time.Now().UTC().Format("20060102-150405"))
	path := filepath.Join(s.dir, name)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "pg_dump", "--format=custom", "--file", path, s.databaseURL)
	if out, err := cmd.CombinedOutput(); err != nil {
		util.BackupsTotal.WithLabelValues("backup", "error").Inc()
		s.logger.Error("pg_dump failed", zap.Error(err), zap.ByteString("output", out))
		return "", fmt.Errorf("pg_dump failed: %w", err)
	}

	util.BackupsTotal.WithLabelValues("backup", "ok").Inc()
	s.logger.Info("Backup created", zap.String("file", name))
	return name, nil
}

// Restore replays a previously created archive with pg_restore
func (s *BackupService) Restore(ctx context.Context, name string) error {
	ctx, span := util.StartSpan(ctx, "BackupService.Restore")
	defer span.End()

	path, err := s.resolve(name)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "pg_restore", "--clean", "--if-exists",
		"--dbname", s.databaseURL, path)
	if out, err := cmd.CombinedOutput(); err != nil {
		util.BackupsTotal.WithLabelValues("restore", "error").Inc()
		s.logger.Error("pg_restore failed", zap.Error(err), zap.ByteString("output", out))
		return fmt.Errorf("pg_restore failed: %w", err)
	}

	util.BackupsTotal.WithLabelValues("restore", "ok").Inc()
	s.logger.Info("Backup restored", zap.String("file", name))
	return nil
}

// List returns the available archives, newest first
func (s *BackupService) List(ctx context.Context) ([]BackupInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return []BackupInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup dir: %w", err)
	}

	backups := make([]BackupInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".dump") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, BackupInfo{
			Name:      entry.Name(),
			SizeBytes: info.Size(),
			CreatedAt: info.ModTime(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups, nil
}

// resolve validates an archive name and maps it to a path inside the
// backup directory. Names with path separators are rejected.
func (s *BackupService) resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid backup name %q: %w", name, models.ErrValidation)
	}

	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", fmt.Errorf("backup %q: %w", name, models.ErrNotFound)
	} else if err != nil {
		return "", err
	}
	return path, nil
}
