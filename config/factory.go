package config

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/goquartz/quartz/logger"
	"github.com/goquartz/quartz/quartz"
	"github.com/goquartz/quartz/sqlstore"
)

// NewScheduler assembles a scheduler from the configuration: the job
// store, the worker pool and the scheduling loop. The returned scheduler
// is not started.
func NewScheduler(cfg *Config, registry *quartz.JobRegistry,
	log logger.Logger) (quartz.Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewProductionZapLogger()
	}
	store, err := newJobStore(cfg, log)
	if err != nil {
		return nil, err
	}
	return quartz.NewStdSchedulerWithOptions(quartz.StdSchedulerOptions{
		Name:            cfg.Scheduler.InstanceName,
		InstanceID:      cfg.Scheduler.InstanceID,
		WorkerCount:     cfg.ThreadPool.ThreadCount,
		IdleWaitTime:    cfg.Scheduler.IdleWaitTime,
		BatchMaxSize:    cfg.Scheduler.BatchMaxSize,
		BatchTimeWindow: cfg.Scheduler.BatchTimeWindow,
		DBRetryInterval: cfg.JobStore.DBRetryInterval,
		Logger:          log,
	}, store, registry)
}

func newJobStore(cfg *Config, log logger.Logger) (quartz.JobStore, error) {
	if cfg.JobStore.Class == "memory" {
		return quartz.NewMemoryStoreWithOptions(quartz.MemoryStoreOptions{
			MisfireThreshold: cfg.JobStore.MisfireThreshold,
			Logger:           log,
		}), nil
	}

	db, err := openDataSource(&cfg.DataSource)
	if err != nil {
		return nil, err
	}
	delegate, err := newDelegate(cfg.JobStore.DriverDelegateClass)
	if err != nil {
		return nil, err
	}
	lockHandler := sqlstore.NewStdRowLockSemaphoreWithOptions(
		cfg.JobStore.TablePrefix, cfg.Scheduler.InstanceName,
		sqlstore.StdRowLockSemaphoreOptions{
			MaxRetry:    cfg.JobStore.LockHandler.MaxRetry,
			RetryPeriod: cfg.JobStore.LockHandler.RetryPeriod,
			SelectSQL:   delegate.Rebind(delegate.SelectForLockSQL()),
			Logger:      log,
		})
	acquireWithinLock := cfg.JobStore.AcquireTriggersWithinLock
	return sqlstore.NewStore(sqlstore.Options{
		DB:                         db,
		SchedulerName:              cfg.Scheduler.InstanceName,
		InstanceID:                 cfg.Scheduler.InstanceID,
		TablePrefix:                cfg.JobStore.TablePrefix,
		Delegate:                   delegate,
		LockHandler:                lockHandler,
		UseProperties:              cfg.JobStore.UseProperties,
		Clustered:                  cfg.JobStore.IsClustered,
		ClusterCheckinInterval:     cfg.JobStore.ClusterCheckinInterval,
		MisfireThreshold:           cfg.JobStore.MisfireThreshold,
		AcquireTriggersWithinLock:  &acquireWithinLock,
		RetryInterval:              cfg.JobStore.DBRetryInterval,
		Logger:                     log,
	})
}

func newDelegate(class string) (sqlstore.Delegate, error) {
	switch class {
	case "", "std":
		return sqlstore.NewStdDelegate(), nil
	case "postgres":
		return sqlstore.NewPostgreSQLDelegate(), nil
	case "sqlite":
		return sqlstore.NewSQLiteDelegate(), nil
	case "mssql":
		return sqlstore.NewMSSQLDelegate(), nil
	default:
		return nil, fmt.Errorf("%w: unknown driver delegate %q",
			quartz.ErrIllegalArgument, class)
	}
}

func openDataSource(ds *DataSourceConfig) (*sql.DB, error) {
	dsn := ds.URL
	if ds.User != "" {
		// drivers with user/password outside the URL take them appended
		dsn = fmt.Sprintf("%s user=%s password=%s", ds.URL, ds.User, ds.Password)
	}
	db, err := sql.Open(ds.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open data source: %w", err)
	}
	if ds.MaxConnections > 0 {
		db.SetMaxOpenConns(ds.MaxConnections)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}
