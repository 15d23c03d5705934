package storage

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/blake2b"
)

const backupExt = ".db"

// BackupInfo describes a backup file.
type BackupInfo struct {
	Path     string    `json:"path"`
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"mod_time"`
	Checksum string    `json:"checksum"`
}

// BackupDir returns the default backup directory for a database file.
func BackupDir(dbPath string) string {
	return filepath.Join(filepath.Dir(dbPath), "backups")
}

// Backup writes a consistent snapshot of the open database into dir using
// VACUUM INTO. The snapshot is verified before it is reported.
func (db *DB) Backup(ctx context.Context, dir string) (*BackupInfo, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	path := filepath.Join(dir, "cards_"+time.Now().UTC().Format("20060102_150405")+backupExt)
	if _, err := db.conn.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		return nil, fmt.Errorf("failed to write backup: %w", err)
	}

	if err := VerifyBackup(ctx, path); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("backup verification failed: %w", err)
	}

	info, err := describeBackup(path)
	if err != nil {
		return nil, err
	}
	log.Info().Str("path", info.Path).Int64("bytes", info.Size).Msg("Database backup written")
	return info, nil
}

// VerifyBackup checks that path is a readable SQLite database carrying the
// card catalog.
func VerifyBackup(ctx context.Context, path string) error {
	conn, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer func() { _ = conn.Close() }()

	var check string
	if err := conn.QueryRowContext(ctx, "PRAGMA quick_check").Scan(&check); err != nil {
		return fmt.Errorf("failed to check backup: %w", err)
	}
	if check != "ok" {
		return fmt.Errorf("backup integrity check: %s", check)
	}

	var tables int
	err = conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'cards'").Scan(&tables)
	if err != nil {
		return fmt.Errorf("failed to inspect backup schema: %w", err)
	}
	if tables == 0 {
		return fmt.Errorf("backup has no cards table")
	}
	return nil
}

// ListBackups returns the backups in dir, newest first. A missing directory
// has no backups.
func ListBackups(dir string) ([]BackupInfo, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return []BackupInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	backups := []BackupInfo{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), backupExt) {
			continue
		}
		info, err := describeBackup(filepath.Join(dir, entry.Name()))
		if err != nil {
			log.Warn().Err(err).Str("name", entry.Name()).Msg("Skipping unreadable backup")
			continue
		}
		backups = append(backups, *info)
	}
	sort.Slice(backups, func(i, j int) bool { return backups[i].ModTime.After(backups[j].ModTime) })
	return backups, nil
}

// Restore replaces the database file at dbPath with a verified backup. The
// database must be closed. The replaced file is kept next to it with an
// ".old.<timestamp>" suffix.
func Restore(ctx context.Context, backupPath, dbPath string) error {
	if err := VerifyBackup(ctx, backupPath); err != nil {
		return err
	}

	tmp := dbPath + ".restore.tmp"
	if err := copyFile(backupPath, tmp); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to stage restore: %w", err)
	}

	if _, err := os.Stat(dbPath); err == nil {
		old := dbPath + ".old." + time.Now().UTC().Format("20060102_150405")
		if err := os.Rename(dbPath, old); err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("failed to move current database aside: %w", err)
		}
		for _, suffix := range []string{"-wal", "-shm"} {
			_ = os.Remove(dbPath + suffix)
		}
	}

	if err := os.Rename(tmp, dbPath); err != nil {
		return fmt.Errorf("failed to replace database: %w", err)
	}
	return nil
}

func describeBackup(path string) (*BackupInfo, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat backup: %w", err)
	}
	sum, err := checksum(path)
	if err != nil {
		return nil, err
	}
	return &BackupInfo{
		Path:     path,
		Name:     filepath.Base(path),
		Size:     stat.Size(),
		ModTime:  stat.ModTime(),
		Checksum: sum,
	}, nil
}

func checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open backup: %w", err)
	}
	defer func() { _ = f.Close() }()

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash backup: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
