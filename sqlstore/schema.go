package sqlstore

import (
	"context"
	"database/sql"
	"strings"
)

// sqliteDDL is the schema of the clustered store for SQLite, used by
// embedded deployments and the test suite. Other databases ship their
// own DDL; the tables and columns are identical and cluster peers must
// agree on them.
const sqliteDDL = `
CREATE TABLE IF NOT EXISTS {0}JOB_DETAILS (
    SCHED_NAME        TEXT    NOT NULL,
    JOB_NAME          TEXT    NOT NULL,
    JOB_GROUP         TEXT    NOT NULL,
    DESCRIPTION       TEXT,
    JOB_CLASS_NAME    TEXT    NOT NULL,
    IS_DURABLE        INTEGER NOT NULL,
    IS_NONCONCURRENT  INTEGER NOT NULL,
    IS_UPDATE_DATA    INTEGER NOT NULL,
    REQUESTS_RECOVERY INTEGER NOT NULL,
    JOB_DATA          BLOB,
    PRIMARY KEY (SCHED_NAME, JOB_NAME, JOB_GROUP)
);
CREATE TABLE IF NOT EXISTS {0}TRIGGERS (
    SCHED_NAME     TEXT    NOT NULL,
    TRIGGER_NAME   TEXT    NOT NULL,
    TRIGGER_GROUP  TEXT    NOT NULL,
    JOB_NAME       TEXT    NOT NULL,
    JOB_GROUP      TEXT    NOT NULL,
    DESCRIPTION    TEXT,
    NEXT_FIRE_TIME BIGINT,
    PREV_FIRE_TIME BIGINT,
    PRIORITY       INTEGER,
    TRIGGER_STATE  TEXT    NOT NULL,
    TRIGGER_TYPE   TEXT    NOT NULL,
    START_TIME     BIGINT  NOT NULL,
    END_TIME       BIGINT,
    CALENDAR_NAME  TEXT,
    MISFIRE_INSTR  SMALLINT,
    JOB_DATA       BLOB,
    PRIMARY KEY (SCHED_NAME, TRIGGER_NAME, TRIGGER_GROUP),
    FOREIGN KEY (SCHED_NAME, JOB_NAME, JOB_GROUP)
        REFERENCES {0}JOB_DETAILS (SCHED_NAME, JOB_NAME, JOB_GROUP)
);
CREATE TABLE IF NOT EXISTS {0}SIMPLE_TRIGGERS (
    SCHED_NAME      TEXT   NOT NULL,
    TRIGGER_NAME    TEXT   NOT NULL,
    TRIGGER_GROUP   TEXT   NOT NULL,
    REPEAT_COUNT    BIGINT NOT NULL,
    REPEAT_INTERVAL BIGINT NOT NULL,
    TIMES_TRIGGERED BIGINT NOT NULL,
    PRIMARY KEY (SCHED_NAME, TRIGGER_NAME, TRIGGER_GROUP),
    FOREIGN KEY (SCHED_NAME, TRIGGER_NAME, TRIGGER_GROUP)
        REFERENCES {0}TRIGGERS (SCHED_NAME, TRIGGER_NAME, TRIGGER_GROUP)
);
CREATE TABLE IF NOT EXISTS {0}CRON_TRIGGERS (
    SCHED_NAME      TEXT NOT NULL,
    TRIGGER_NAME    TEXT NOT NULL,
    TRIGGER_GROUP   TEXT NOT NULL,
    CRON_EXPRESSION TEXT NOT NULL,
    TIME_ZONE_ID    TEXT,
    PRIMARY KEY (SCHED_NAME, TRIGGER_NAME, TRIGGER_GROUP),
    FOREIGN KEY (SCHED_NAME, TRIGGER_NAME, TRIGGER_GROUP)
        REFERENCES {0}TRIGGERS (SCHED_NAME, TRIGGER_NAME, TRIGGER_GROUP)
);
CREATE TABLE IF NOT EXISTS {0}SIMPROP_TRIGGERS (
    SCHED_NAME    TEXT NOT NULL,
    TRIGGER_NAME  TEXT NOT NULL,
    TRIGGER_GROUP TEXT NOT NULL,
    STR_PROP_1    TEXT,
    STR_PROP_2    TEXT,
    STR_PROP_3    TEXT,
    INT_PROP_1    INTEGER,
    INT_PROP_2    INTEGER,
    LONG_PROP_1   BIGINT,
    LONG_PROP_2   BIGINT,
    DEC_PROP_1    NUMERIC(13,4),
    DEC_PROP_2    NUMERIC(13,4),
    BOOL_PROP_1   INTEGER,
    BOOL_PROP_2   INTEGER,
    PRIMARY KEY (SCHED_NAME, TRIGGER_NAME, TRIGGER_GROUP),
    FOREIGN KEY (SCHED_NAME, TRIGGER_NAME, TRIGGER_GROUP)
        REFERENCES {0}TRIGGERS (SCHED_NAME, TRIGGER_NAME, TRIGGER_GROUP)
);
CREATE TABLE IF NOT EXISTS {0}BLOB_TRIGGERS (
    SCHED_NAME    TEXT NOT NULL,
    TRIGGER_NAME  TEXT NOT NULL,
    TRIGGER_GROUP TEXT NOT NULL,
    BLOB_DATA     BLOB,
    PRIMARY KEY (SCHED_NAME, TRIGGER_NAME, TRIGGER_GROUP),
    FOREIGN KEY (SCHED_NAME, TRIGGER_NAME, TRIGGER_GROUP)
        REFERENCES {0}TRIGGERS (SCHED_NAME, TRIGGER_NAME, TRIGGER_GROUP)
);
CREATE TABLE IF NOT EXISTS {0}CALENDARS (
    SCHED_NAME    TEXT NOT NULL,
    CALENDAR_NAME TEXT NOT NULL,
    CALENDAR      BLOB NOT NULL,
    PRIMARY KEY (SCHED_NAME, CALENDAR_NAME)
);
CREATE TABLE IF NOT EXISTS {0}PAUSED_TRIGGER_GRPS (
    SCHED_NAME    TEXT NOT NULL,
    TRIGGER_GROUP TEXT NOT NULL,
    PRIMARY KEY (SCHED_NAME, TRIGGER_GROUP)
);
CREATE TABLE IF NOT EXISTS {0}FIRED_TRIGGERS (
    SCHED_NAME        TEXT    NOT NULL,
    ENTRY_ID          TEXT    NOT NULL,
    TRIGGER_NAME      TEXT    NOT NULL,
    TRIGGER_GROUP     TEXT    NOT NULL,
    INSTANCE_NAME     TEXT    NOT NULL,
    FIRED_TIME        BIGINT  NOT NULL,
    SCHED_TIME        BIGINT  NOT NULL,
    PRIORITY          INTEGER NOT NULL,
    STATE             TEXT    NOT NULL,
    JOB_NAME          TEXT,
    JOB_GROUP         TEXT,
    IS_NONCONCURRENT  INTEGER,
    REQUESTS_RECOVERY INTEGER,
    PRIMARY KEY (SCHED_NAME, ENTRY_ID)
);
CREATE TABLE IF NOT EXISTS {0}SCHEDULER_STATE (
    SCHED_NAME        TEXT   NOT NULL,
    INSTANCE_NAME     TEXT   NOT NULL,
    LAST_CHECKIN_TIME BIGINT NOT NULL,
    CHECKIN_INTERVAL  BIGINT NOT NULL,
    PRIMARY KEY (SCHED_NAME, INSTANCE_NAME)
);
CREATE TABLE IF NOT EXISTS {0}LOCKS (
    SCHED_NAME TEXT NOT NULL,
    LOCK_NAME  TEXT NOT NULL,
    PRIMARY KEY (SCHED_NAME, LOCK_NAME)
);
CREATE INDEX IF NOT EXISTS IDX_{0}T_NEXT_FIRE_TIME
    ON {0}TRIGGERS (SCHED_NAME, TRIGGER_STATE, NEXT_FIRE_TIME);
CREATE INDEX IF NOT EXISTS IDX_{0}FT_INST_NAME
    ON {0}FIRED_TRIGGERS (SCHED_NAME, INSTANCE_NAME);
`

// CreateSQLiteSchema creates the store tables in a SQLite database.
func CreateSQLiteSchema(ctx context.Context, db *sql.DB, tablePrefix string) error {
	for _, statement := range strings.Split(sqliteDDL, ";") {
		statement = strings.TrimSpace(statement)
		if statement == "" {
			continue
		}
		statement = strings.ReplaceAll(statement, "{0}", tablePrefix)
		if _, err := db.ExecContext(ctx, statement); err != nil {
			return err
		}
	}
	return nil
}
