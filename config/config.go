// Package config loads host and scheduler settings from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"microdote/scheduler"
)

// SchedulerSettings mirrors scheduler.Config in a YAML-friendly shape; zero
// values fall back to scheduler.DefaultConfig's equivalent field.
type SchedulerSettings struct {
	NewSpread         string  `yaml:"new_spread"`
	NewCardsPerDay    int     `yaml:"new_cards_per_day"`
	ReviewCardsPerDay int     `yaml:"review_cards_per_day"`
	CollapseTime      int64   `yaml:"collapse_time"`
	ReportLimit       int     `yaml:"report_limit"`
	NewSteps          []int   `yaml:"new_steps"`
	LapseSteps        []int   `yaml:"lapse_steps"`
	LapseMinIvl       int64   `yaml:"lapse_min_ivl"`
	LapseMult         float64 `yaml:"lapse_mult"`
	LeechFails        int64   `yaml:"leech_fails"`
	InitialFactor     int64   `yaml:"initial_factor"`
	GraduatingIvl     int64   `yaml:"graduating_ivl"`
	EasyIvl           int64   `yaml:"easy_ivl"`
	TimeZone          string  `yaml:"time_zone"`
}

// HostSettings configures the HTTP server and sync/backup sidecars.
type HostSettings struct {
	Addr           string `yaml:"addr"`
	DBPath         string `yaml:"db_path"`
	BackupDir      string `yaml:"backup_dir"`
	BackupRetain   int    `yaml:"backup_retain"`
	SyncEndpoint   string `yaml:"sync_endpoint"`
	SyncClientID   string `yaml:"sync_client_id"`
	SyncClientPath string `yaml:"sync_client_secret_file"`
}

// File is the top-level shape of the YAML config file.
type File struct {
	Host      HostSettings      `yaml:"host"`
	Scheduler SchedulerSettings `yaml:"scheduler"`
}

// Load reads and parses the YAML config at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &f, nil
}

// SchedulerConfig merges f.Scheduler onto scheduler.DefaultConfig(), leaving
// any zero-valued YAML field at its default.
func (f *File) SchedulerConfig() (scheduler.Config, error) {
	cfg := scheduler.DefaultConfig()
	s := f.Scheduler

	switch s.NewSpread {
	case "":
	case "distribute":
		cfg.NewSpread = scheduler.SpreadDistribute
	case "last":
		cfg.NewSpread = scheduler.SpreadLast
	case "first":
		cfg.NewSpread = scheduler.SpreadFirst
	default:
		return cfg, fmt.Errorf("config: unknown new_spread %q", s.NewSpread)
	}

	if s.NewCardsPerDay != 0 {
		cfg.NewCardsPerDay = s.NewCardsPerDay
	}
	if s.ReviewCardsPerDay != 0 {
		cfg.ReviewCardsPerDay = s.ReviewCardsPerDay
	}
	if s.CollapseTime != 0 {
		cfg.CollapseTime = s.CollapseTime
	}
	if s.ReportLimit != 0 {
		cfg.ReportLimit = s.ReportLimit
	}
	if len(s.NewSteps) > 0 {
		cfg.NewSteps = s.NewSteps
	}
	if len(s.LapseSteps) > 0 {
		cfg.LapseSteps = s.LapseSteps
	}
	if s.LapseMinIvl != 0 {
		cfg.LapseMinIvl = s.LapseMinIvl
	}
	if s.LapseMult != 0 {
		cfg.LapseMult = s.LapseMult
	}
	if s.LeechFails != 0 {
		cfg.LeechFails = s.LeechFails
	}
	if s.InitialFactor != 0 {
		cfg.InitialFactor = s.InitialFactor
	}
	if s.GraduatingIvl != 0 {
		cfg.GraduatingIvl = s.GraduatingIvl
	}
	if s.EasyIvl != 0 {
		cfg.EasyIvl = s.EasyIvl
	}
	if s.TimeZone != "" {
		loc, err := time.LoadLocation(s.TimeZone)
		if err != nil {
			return cfg, fmt.Errorf("config: load time zone %q: %w", s.TimeZone, err)
		}
		cfg.Location = loc
	}

	return cfg, nil
}
