// Package backup snapshots and restores the SQLite database the store
// package operates on.
package backup

import (
	"archive/zip"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"
)

// Manager handles backup and restore operations for a single database file.
type Manager struct {
	dbPath    string
	backupDir string
	logger    *log.Logger
}

// NewManager returns a Manager for dbPath, writing archives under backupDir.
func NewManager(dbPath, backupDir string, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{dbPath: dbPath, backupDir: backupDir, logger: logger}
}

// CreateBackup writes a timestamped zip archive containing the current
// database and returns its path.
func (bm *Manager) CreateBackup(deckName string) (string, error) {
	if err := os.MkdirAll(bm.backupDir, 0755); err != nil {
		return "", fmt.Errorf("backup: create backup directory: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	backupPath := filepath.Join(bm.backupDir, fmt.Sprintf("srs-backup-%s.zip", timestamp))

	zipFile, err := os.Create(backupPath)
	if err != nil {
		return "", fmt.Errorf("backup: create backup file: %w", err)
	}
	defer zipFile.Close()

	zipWriter := zip.NewWriter(zipFile)
	defer zipWriter.Close()

	if err := addFileToZip(zipWriter, bm.dbPath, "collection.db"); err != nil {
		return "", fmt.Errorf("backup: add database to archive: %w", err)
	}

	metadata := fmt.Sprintf("Backup created: %s\nDeck: %s\nDatabase: %s\n",
		time.Now().Format(time.RFC3339), deckName, filepath.Base(bm.dbPath))

	metadataWriter, err := zipWriter.Create("backup-info.txt")
	if err != nil {
		return "", fmt.Errorf("backup: create metadata entry: %w", err)
	}
	if _, err := metadataWriter.Write([]byte(metadata)); err != nil {
		return "", fmt.Errorf("backup: write metadata: %w", err)
	}

	bm.logger.Printf("backup created: %s", backupPath)
	return backupPath, nil
}

// RestoreBackup replaces the current database with the one inside
// backupPath. The caller must close any open connection to dbPath first.
func (bm *Manager) RestoreBackup(backupPath string) error {
	if _, err := os.Stat(backupPath); os.IsNotExist(err) {
		return fmt.Errorf("backup: file not found: %s", backupPath)
	}

	zipReader, err := zip.OpenReader(backupPath)
	if err != nil {
		return fmt.Errorf("backup: open archive: %w", err)
	}
	defer zipReader.Close()

	var dbFile *zip.File
	for _, file := range zipReader.File {
		if file.Name == "collection.db" {
			dbFile = file
			break
		}
	}
	if dbFile == nil {
		return fmt.Errorf("backup: archive does not contain collection.db")
	}

	tempPath := bm.dbPath + ".restore.tmp"
	defer os.Remove(tempPath)

	if err := extractFile(dbFile, tempPath); err != nil {
		return fmt.Errorf("backup: extract database: %w", err)
	}

	preRestorePath := bm.dbPath + ".pre-restore.backup"
	if err := copyFile(bm.dbPath, preRestorePath); err != nil {
		bm.logger.Printf("warning: could not snapshot current database before restore: %v", err)
	} else {
		bm.logger.Printf("current database snapshotted to: %s", preRestorePath)
	}

	if err := os.Rename(tempPath, bm.dbPath); err != nil {
		return fmt.Errorf("backup: replace database: %w", err)
	}

	bm.logger.Printf("database restored from: %s", backupPath)
	return nil
}

// CleanupOldBackups deletes the oldest backup archives beyond retentionCount.
func (bm *Manager) CleanupOldBackups(retentionCount int) error {
	files, err := filepath.Glob(filepath.Join(bm.backupDir, "srs-backup-*.zip"))
	if err != nil {
		return fmt.Errorf("backup: list archives: %w", err)
	}
	if len(files) <= retentionCount {
		return nil
	}

	type fileInfo struct {
		path    string
		modTime time.Time
	}
	var infos []fileInfo
	for _, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		infos = append(infos, fileInfo{path: path, modTime: info.ModTime()})
	}

	for i := 0; i < len(infos); i++ {
		for j := i + 1; j < len(infos); j++ {
			if infos[i].modTime.After(infos[j].modTime) {
				infos[i], infos[j] = infos[j], infos[i]
			}
		}
	}

	deleteCount := len(infos) - retentionCount
	for i := 0; i < deleteCount; i++ {
		if err := os.Remove(infos[i].path); err != nil {
			bm.logger.Printf("warning: failed to delete old backup %s: %v", infos[i].path, err)
		} else {
			bm.logger.Printf("deleted old backup: %s", infos[i].path)
		}
	}
	return nil
}

func addFileToZip(zipWriter *zip.Writer, filePath, nameInZip string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	writer, err := zipWriter.Create(nameInZip)
	if err != nil {
		return err
	}
	_, err = io.Copy(writer, file)
	return err
}

func extractFile(zipFile *zip.File, destPath string) error {
	reader, err := zipFile.Open()
	if err != nil {
		return err
	}
	defer reader.Close()

	writer, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer writer.Close()

	_, err = io.Copy(writer, reader)
	return err
}

func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	_, err = io.Copy(destFile, sourceFile)
	return err
}
