// Command server runs the spaced-repetition HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"microdote/api"
	"microdote/backup"
	"microdote/config"
	"microdote/content"
	"microdote/scheduler"
	"microdote/store"
	"microdote/sync"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "path to the YAML config file")
	flag.Parse()

	logger := log.Default()
	logger.Println("loading configuration...")

	cfgFile, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	schedCfg, err := cfgFile.SchedulerConfig()
	if err != nil {
		logger.Fatalf("failed to resolve scheduler config: %v", err)
	}

	dbPath := cfgFile.Host.DBPath
	if dbPath == "" {
		dbPath = "./data/collection.db"
	}

	st, err := store.NewSQLiteStore(dbPath, logger)
	if err != nil {
		logger.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	ensureDefaultCollection(st, logger)

	backupDir := cfgFile.Host.BackupDir
	if backupDir == "" {
		backupDir = "./backups"
	}
	backupMgr := backup.NewManager(dbPath, backupDir, logger)

	if cfgFile.Host.SyncEndpoint != "" {
		go runSyncLoop(cfgFile, backupDir, logger)
	}

	clock := scheduler.SystemClock{}
	handler := api.NewHandler(st, "default", clock, schedCfg, backupMgr, logger)

	addr := cfgFile.Host.Addr
	if addr == "" {
		addr = ":8080"
	}

	logger.Printf("server listening on %s", addr)
	if err := http.ListenAndServe(addr, handler.Router()); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
}

func ensureDefaultCollection(st *store.SQLiteStore, logger *log.Logger) {
	if _, err := st.GetCollection("default"); err == nil {
		return
	}

	logger.Println("bootstrapping default collection")
	now := time.Now().Unix()
	if err := st.CreateCollection("default", "Default Collection", now-now%86400); err != nil {
		logger.Fatalf("failed to create default collection: %v", err)
	}
	for _, nt := range content.Builtins() {
		if err := st.CreateNoteType("default", &nt); err != nil {
			logger.Fatalf("failed to seed note type %q: %v", nt.Name, err)
		}
	}
}

func runSyncLoop(cfgFile *config.File, backupDir string, logger *log.Logger) {
	secret, err := readSecretFile(cfgFile.Host.SyncClientPath)
	if err != nil {
		logger.Printf("sync disabled: %v", err)
		return
	}

	pusher := sync.NewPusher(context.Background(), sync.Settings{
		Endpoint:     cfgFile.Host.SyncEndpoint,
		ClientID:     cfgFile.Host.SyncClientID,
		ClientSecret: secret,
		TokenURL:     cfgFile.Host.SyncEndpoint + "/oauth/token",
	})
	sync.PushOnInterval(context.Background(), pusher, backupDir, "srs-backup-*.zip", time.Hour)
}

func readSecretFile(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("no sync client secret file configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read sync client secret: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
