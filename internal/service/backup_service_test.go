package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"marketplace-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupList(t *testing.T) {
	dir := t.TempDir()
	svc := NewBackupService("postgres://localhost/db", dir, time.Minute)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "backup-a.dump"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	backups, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Equal(t, "backup-a.dump", backups[0].Name)
}

func TestBackupListMissingDir(t *testing.T) {
	svc := NewBackupService("postgres://localhost/db", filepath.Join(t.TempDir(), "nope"), time.Minute)

	backups, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, backups)
}

func TestRestoreRejectsBadNames(t *testing.T) {
	svc := NewBackupService("postgres://localhost/db", t.TempDir(), time.Minute)

	for _, name := range []string{"", "../etc/passwd", "a/b.dump", ".hidden"} {
		err := svc.Restore(context.Background(), name)
		assert.ErrorIs(t, err, models.ErrValidation, "name %q", name)
	}
}

func TestRestoreMissingArchive(t *testing.T) {
	svc := NewBackupService("postgres://localhost/db", t.TempDir(), time.Minute)

	err := svc.Restore(context.Background(), "backup-missing.dump")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
