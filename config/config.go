// Package config loads quartz.properties-style configuration through
// viper and assembles a running scheduler from it.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/goquartz/quartz/quartz"
)

// AutoInstanceID requests a generated instance identifier.
const AutoInstanceID = "AUTO"

// Config is the typed scheduler configuration.
type Config struct {
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	ThreadPool ThreadPoolConfig `mapstructure:"threadPool"`
	JobStore   JobStoreConfig   `mapstructure:"jobStore"`
	DataSource DataSourceConfig `mapstructure:"dataSource"`
}

// SchedulerConfig identifies the scheduler and its cluster instance.
type SchedulerConfig struct {
	// InstanceName is the logical cluster name.
	InstanceName string `mapstructure:"instanceName"`

	// InstanceID identifies this instance; AUTO generates one from the
	// host name and a random suffix.
	InstanceID string `mapstructure:"instanceId"`

	// IdleWaitTime is the scheduling loop look-ahead and idle sleep.
	IdleWaitTime time.Duration `mapstructure:"idleWaitTime"`

	// BatchMaxSize is the maximum number of triggers acquired at once.
	BatchMaxSize int `mapstructure:"batchTriggerAcquisitionMaxCount"`

	// BatchTimeWindow widens the acquire window for batching.
	BatchTimeWindow time.Duration `mapstructure:"batchTriggerAcquisitionFireAheadTimeWindow"`
}

// ThreadPoolConfig sizes the worker pool.
type ThreadPoolConfig struct {
	ThreadCount    int `mapstructure:"threadCount"`
	ThreadPriority int `mapstructure:"threadPriority"`
}

// JobStoreConfig selects and configures the job store.
type JobStoreConfig struct {
	// Class selects the store implementation: "memory" or "sql".
	Class string `mapstructure:"class"`

	// MisfireThreshold is the tolerance by which a late fire is still
	// considered on time.
	MisfireThreshold time.Duration `mapstructure:"misfireThreshold"`

	// DataSource names the data source used by the SQL store.
	DataSource string `mapstructure:"dataSource"`

	// TablePrefix is prepended to all SQL store table names.
	TablePrefix string `mapstructure:"tablePrefix"`

	// IsClustered enables the cluster manager.
	IsClustered bool `mapstructure:"isClustered"`

	// ClusterCheckinInterval is the heartbeat period.
	ClusterCheckinInterval time.Duration `mapstructure:"clusterCheckinInterval"`

	// UseProperties stores job data maps as key=value text.
	UseProperties bool `mapstructure:"useProperties"`

	// AcquireTriggersWithinLock runs acquisition under the row lock.
	AcquireTriggersWithinLock bool `mapstructure:"acquireTriggersWithinLock"`

	// DriverDelegateClass selects the SQL dialect delegate:
	// "std", "postgres", "sqlite" or "mssql".
	DriverDelegateClass string `mapstructure:"driverDelegateClass"`

	// LockHandler configures the row-lock semaphore.
	LockHandler LockHandlerConfig `mapstructure:"lockHandler"`

	// DBRetryInterval is the back-off applied after a store failure.
	DBRetryInterval time.Duration `mapstructure:"dbRetryInterval"`
}

// LockHandlerConfig configures the row-lock semaphore.
type LockHandlerConfig struct {
	Class       string        `mapstructure:"class"`
	MaxRetry    int           `mapstructure:"maxRetry"`
	RetryPeriod time.Duration `mapstructure:"retryPeriod"`
}

// DataSourceConfig describes the database connection of the SQL store.
type DataSourceConfig struct {
	Driver          string `mapstructure:"driver"`
	URL             string `mapstructure:"URL"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	MaxConnections  int    `mapstructure:"maxConnections"`
	ValidationQuery string `mapstructure:"validationQuery"`
}

// Default values applied by Load.
const (
	DefaultInstanceName     = "QuartzScheduler"
	DefaultThreadCount      = 10
	DefaultIdleWaitTime     = 30 * time.Second
	DefaultMisfireThreshold = time.Minute
	DefaultCheckinInterval  = 7500 * time.Millisecond
	DefaultTablePrefix      = "QRTZ_"
	DefaultDBRetryInterval  = 15 * time.Second
)

// Load reads the configuration file at the given path. The format is
// derived from the file extension; yaml, json and toml are accepted.
// Environment variables with the QUARTZ_ prefix override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("QUARTZ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return LoadWithViper(v)
}

// LoadWithViper builds the configuration from an initialized viper
// instance, applying defaults for unset keys.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	applyDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Scheduler.InstanceID == AutoInstanceID {
		cfg.Scheduler.InstanceID = generateInstanceID()
	}
	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("scheduler.instanceName", DefaultInstanceName)
	v.SetDefault("scheduler.instanceId", "NON_CLUSTERED")
	v.SetDefault("scheduler.idleWaitTime", DefaultIdleWaitTime)
	v.SetDefault("scheduler.batchTriggerAcquisitionMaxCount", 1)
	v.SetDefault("threadPool.threadCount", DefaultThreadCount)
	v.SetDefault("jobStore.class", "memory")
	v.SetDefault("jobStore.misfireThreshold", DefaultMisfireThreshold)
	v.SetDefault("jobStore.tablePrefix", DefaultTablePrefix)
	v.SetDefault("jobStore.clusterCheckinInterval", DefaultCheckinInterval)
	v.SetDefault("jobStore.acquireTriggersWithinLock", true)
	v.SetDefault("jobStore.driverDelegateClass", "std")
	v.SetDefault("jobStore.lockHandler.maxRetry", 3)
	v.SetDefault("jobStore.lockHandler.retryPeriod", time.Second)
	v.SetDefault("jobStore.dbRetryInterval", DefaultDBRetryInterval)
}

// generateInstanceID returns a unique instance identifier derived from
// the host name. A random suffix avoids collisions when instances
// restart within the same clock tick.
func generateInstanceID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
}

// Validate checks the configuration for consistency.
func (cfg *Config) Validate() error {
	if cfg.ThreadPool.ThreadCount < 1 {
		return fmt.Errorf("%w: threadPool.threadCount must be >= 1",
			quartz.ErrIllegalArgument)
	}
	switch cfg.JobStore.Class {
	case "memory", "sql":
	default:
		return fmt.Errorf("%w: unknown jobStore.class %q",
			quartz.ErrIllegalArgument, cfg.JobStore.Class)
	}
	if cfg.JobStore.Class == "sql" && cfg.DataSource.Driver == "" {
		return fmt.Errorf("%w: dataSource.driver is required for the sql job store",
			quartz.ErrIllegalArgument)
	}
	if cfg.JobStore.IsClustered && cfg.Scheduler.InstanceID == "NON_CLUSTERED" {
		return fmt.Errorf("%w: a clustered scheduler needs a unique instanceId",
			quartz.ErrIllegalArgument)
	}
	return nil
}
