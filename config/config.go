/*
Copyright 2025 Praxis Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5401"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	Port      string `json:"port" envconfig:"PAYSYNC_SERVER_PORT"`
	Secure    bool   `json:"secure" envconfig:"PAYSYNC_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"PAYSYNC_SERVER_SECRET_KEY"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"PAYSYNC_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"PAYSYNC_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"PAYSYNC_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"PAYSYNC_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"PAYSYNC_REDIS_DNS"`
}

type ProviderConfig struct {
	BaseUrl    string `json:"base_url" envconfig:"PAYSYNC_PROVIDER_BASE_URL"`
	ApiKey     string `json:"api_key" envconfig:"PAYSYNC_PROVIDER_API_KEY"`
	TimeoutSec int    `json:"timeout_sec" envconfig:"PAYSYNC_PROVIDER_TIMEOUT_SEC"`
}

type QueueConfig struct {
	SyncQueue string `json:"sync_queue" envconfig:"PAYSYNC_QUEUE_SYNC"`
}

// SyncConfig carries the tunables of the report synchronization engine.
// All durations are plain integers in the unit named by the field so they
// can be overridden from env variables without parsing duration strings.
type SyncConfig struct {
	Timezone           string `json:"timezone" envconfig:"PAYSYNC_SYNC_TIMEZONE"`
	CreateCooldownMin  int    `json:"create_cooldown_min" envconfig:"PAYSYNC_SYNC_CREATE_COOLDOWN_MIN"`
	PollIntervalSec    int    `json:"poll_interval_sec" envconfig:"PAYSYNC_SYNC_POLL_INTERVAL_SEC"`
	PollCeilingSec     int    `json:"poll_ceiling_sec" envconfig:"PAYSYNC_SYNC_POLL_CEILING_SEC"`
	ImportCapPerRun    int    `json:"import_cap_per_run" envconfig:"PAYSYNC_SYNC_IMPORT_CAP"`
	DebounceSec        int    `json:"debounce_sec" envconfig:"PAYSYNC_SYNC_DEBOUNCE_SEC"`
	JitterMaxSec       int    `json:"jitter_max_sec" envconfig:"PAYSYNC_SYNC_JITTER_MAX_SEC"`
	LockTTLSec         int    `json:"lock_ttl_sec" envconfig:"PAYSYNC_SYNC_LOCK_TTL_SEC"`
	PeakStartHour      int    `json:"peak_start_hour" envconfig:"PAYSYNC_SYNC_PEAK_START_HOUR"`
	PeakEndHour        int    `json:"peak_end_hour" envconfig:"PAYSYNC_SYNC_PEAK_END_HOUR"`
	PeakIntervalMin    int    `json:"peak_interval_min" envconfig:"PAYSYNC_SYNC_PEAK_INTERVAL_MIN"`
	OffPeakIntervalMin int    `json:"off_peak_interval_min" envconfig:"PAYSYNC_SYNC_OFF_PEAK_INTERVAL_MIN"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type Notification struct {
	Slack SlackWebhook `json:"slack"`
}

type Configuration struct {
	ProjectName  string           `json:"project_name" envconfig:"PAYSYNC_PROJECT_NAME"`
	Server       ServerConfig     `json:"server"`
	DataSource   DataSourceConfig `json:"data_source"`
	Redis        RedisConfig      `json:"redis"`
	Provider     ProviderConfig   `json:"provider"`
	Queue        QueueConfig      `json:"queue"`
	RateLimit    RateLimitConfig  `json:"rate_limit"`
	Sync         SyncConfig       `json:"sync"`
	Notification Notification     `json:"notification"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("paysync", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called paysync.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Paysync Server"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)
	cnf.Provider.BaseUrl = strings.TrimSpace(cnf.Provider.BaseUrl)

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Provider.TimeoutSec <= 0 {
		cnf.Provider.TimeoutSec = 60
	}

	if cnf.Queue.SyncQueue == "" {
		cnf.Queue.SyncQueue = "report_sync"
	}

	cnf.Sync.applyDefaults()

	if _, err := time.LoadLocation(cnf.Sync.Timezone); err != nil {
		log.Printf("Error: invalid sync timezone %q: %v", cnf.Sync.Timezone, err)
		return errors.New("invalid sync timezone")
	}

	return nil
}

func (s *SyncConfig) applyDefaults() {
	if s.Timezone == "" {
		s.Timezone = "UTC"
	}
	if s.CreateCooldownMin <= 0 {
		s.CreateCooldownMin = 30
	}
	if s.PollIntervalSec <= 0 {
		s.PollIntervalSec = 30
	}
	if s.PollCeilingSec <= 0 {
		s.PollCeilingSec = 600
	}
	if s.ImportCapPerRun <= 0 {
		s.ImportCapPerRun = 4
	}
	if s.DebounceSec <= 0 {
		s.DebounceSec = 5
	}
	if s.JitterMaxSec == 0 {
		s.JitterMaxSec = 45
	} else if s.JitterMaxSec < 0 {
		s.JitterMaxSec = 0
	}
	if s.LockTTLSec <= 0 {
		s.LockTTLSec = 900
	}
	if s.PeakStartHour <= 0 && s.PeakEndHour <= 0 {
		s.PeakStartHour = 7
		s.PeakEndHour = 21
	}
	if s.PeakIntervalMin <= 0 {
		s.PeakIntervalMin = 15
	}
	if s.OffPeakIntervalMin <= 0 {
		s.OffPeakIntervalMin = 120
	}
}

// Location resolves the configured sync timezone. The zone is validated at
// config load, so resolution failures fall back to UTC instead of erroring.
func (s *SyncConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (s *SyncConfig) CreateCooldown() time.Duration {
	return time.Duration(s.CreateCooldownMin) * time.Minute
}

func (s *SyncConfig) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalSec) * time.Second
}

func (s *SyncConfig) PollCeiling() time.Duration {
	return time.Duration(s.PollCeilingSec) * time.Second
}

func (s *SyncConfig) DebounceWindow() time.Duration {
	return time.Duration(s.DebounceSec) * time.Second
}

func (s *SyncConfig) LockTTL() time.Duration {
	return time.Duration(s.LockTTLSec) * time.Second
}

func (s *SyncConfig) PeakInterval() time.Duration {
	return time.Duration(s.PeakIntervalMin) * time.Minute
}

func (s *SyncConfig) OffPeakInterval() time.Duration {
	return time.Duration(s.OffPeakIntervalMin) * time.Minute
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	mockConfig.Sync.applyDefaults()
	if mockConfig.Queue.SyncQueue == "" {
		mockConfig.Queue.SyncQueue = "report_sync"
	}
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
