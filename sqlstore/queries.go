package sqlstore

import "strings"

// Table name suffixes of the persisted schema. The full table name is
// the configured table prefix followed by the suffix.
const (
	TableJobDetails       = "JOB_DETAILS"
	TableTriggers         = "TRIGGERS"
	TableSimpleTriggers   = "SIMPLE_TRIGGERS"
	TableCronTriggers     = "CRON_TRIGGERS"
	TableSimpropTriggers  = "SIMPROP_TRIGGERS"
	TableBlobTriggers     = "BLOB_TRIGGERS"
	TableCalendars        = "CALENDARS"
	TablePausedTriggerGrps = "PAUSED_TRIGGER_GRPS"
	TableFiredTriggers    = "FIRED_TRIGGERS"
	TableSchedulerState   = "SCHEDULER_STATE"
	TableLocks            = "LOCKS"
)

// Names of the cluster-wide row locks.
const (
	LockTriggerAccess = "TRIGGER_ACCESS"
	LockStateAccess   = "STATE_ACCESS"
)

// SQL templates. Every template expands {0} to the table prefix and {1}
// to the schedule name literal.
const (
	sqlInsertJobDetail = `INSERT INTO {0}JOB_DETAILS
 (SCHED_NAME, JOB_NAME, JOB_GROUP, DESCRIPTION, JOB_CLASS_NAME, IS_DURABLE,
 IS_NONCONCURRENT, IS_UPDATE_DATA, REQUESTS_RECOVERY, JOB_DATA)
 VALUES ('{1}', ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	sqlUpdateJobDetail = `UPDATE {0}JOB_DETAILS
 SET DESCRIPTION = ?, JOB_CLASS_NAME = ?, IS_DURABLE = ?, IS_NONCONCURRENT = ?,
 IS_UPDATE_DATA = ?, REQUESTS_RECOVERY = ?, JOB_DATA = ?
 WHERE SCHED_NAME = '{1}' AND JOB_NAME = ? AND JOB_GROUP = ?`

	sqlSelectJobDetail = `SELECT JOB_NAME, JOB_GROUP, DESCRIPTION, JOB_CLASS_NAME,
 IS_DURABLE, IS_NONCONCURRENT, IS_UPDATE_DATA, REQUESTS_RECOVERY, JOB_DATA
 FROM {0}JOB_DETAILS WHERE SCHED_NAME = '{1}' AND JOB_NAME = ? AND JOB_GROUP = ?`

	sqlSelectJobExists = `SELECT 1 FROM {0}JOB_DETAILS
 WHERE SCHED_NAME = '{1}' AND JOB_NAME = ? AND JOB_GROUP = ?`

	sqlSelectAllJobKeys = `SELECT JOB_NAME, JOB_GROUP FROM {0}JOB_DETAILS
 WHERE SCHED_NAME = '{1}'`

	sqlDeleteJobDetail = `DELETE FROM {0}JOB_DETAILS
 WHERE SCHED_NAME = '{1}' AND JOB_NAME = ? AND JOB_GROUP = ?`

	sqlUpdateJobData = `UPDATE {0}JOB_DETAILS SET JOB_DATA = ?
 WHERE SCHED_NAME = '{1}' AND JOB_NAME = ? AND JOB_GROUP = ?`

	sqlSelectNumTriggersForJob = `SELECT COUNT(TRIGGER_NAME) FROM {0}TRIGGERS
 WHERE SCHED_NAME = '{1}' AND JOB_NAME = ? AND JOB_GROUP = ?`

	sqlInsertTrigger = `INSERT INTO {0}TRIGGERS
 (SCHED_NAME, TRIGGER_NAME, TRIGGER_GROUP, JOB_NAME, JOB_GROUP, DESCRIPTION,
 NEXT_FIRE_TIME, PREV_FIRE_TIME, PRIORITY, TRIGGER_STATE, TRIGGER_TYPE,
 START_TIME, END_TIME, CALENDAR_NAME, MISFIRE_INSTR, JOB_DATA)
 VALUES ('{1}', ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	sqlUpdateTrigger = `UPDATE {0}TRIGGERS
 SET JOB_NAME = ?, JOB_GROUP = ?, DESCRIPTION = ?, NEXT_FIRE_TIME = ?,
 PREV_FIRE_TIME = ?, PRIORITY = ?, TRIGGER_STATE = ?, TRIGGER_TYPE = ?,
 START_TIME = ?, END_TIME = ?, CALENDAR_NAME = ?, MISFIRE_INSTR = ?, JOB_DATA = ?
 WHERE SCHED_NAME = '{1}' AND TRIGGER_NAME = ? AND TRIGGER_GROUP = ?`

	sqlSelectTrigger = `SELECT TRIGGER_NAME, TRIGGER_GROUP, JOB_NAME, JOB_GROUP,
 DESCRIPTION, NEXT_FIRE_TIME, PREV_FIRE_TIME, PRIORITY, TRIGGER_STATE,
 TRIGGER_TYPE, START_TIME, END_TIME, CALENDAR_NAME, MISFIRE_INSTR, JOB_DATA
 FROM {0}TRIGGERS WHERE SCHED_NAME = '{1}' AND TRIGGER_NAME = ? AND TRIGGER_GROUP = ?`

	sqlSelectTriggerExists = `SELECT 1 FROM {0}TRIGGERS
 WHERE SCHED_NAME = '{1}' AND TRIGGER_NAME = ? AND TRIGGER_GROUP = ?`

	sqlSelectAllTriggerKeys = `SELECT TRIGGER_NAME, TRIGGER_GROUP FROM {0}TRIGGERS
 WHERE SCHED_NAME = '{1}'`

	sqlSelectTriggersForJob = `SELECT TRIGGER_NAME, TRIGGER_GROUP FROM {0}TRIGGERS
 WHERE SCHED_NAME = '{1}' AND JOB_NAME = ? AND JOB_GROUP = ?`

	sqlSelectTriggersForCalendar = `SELECT TRIGGER_NAME, TRIGGER_GROUP FROM {0}TRIGGERS
 WHERE SCHED_NAME = '{1}' AND CALENDAR_NAME = ?`

	sqlDeleteTrigger = `DELETE FROM {0}TRIGGERS
 WHERE SCHED_NAME = '{1}' AND TRIGGER_NAME = ? AND TRIGGER_GROUP = ?`

	sqlSelectTriggerState = `SELECT TRIGGER_STATE FROM {0}TRIGGERS
 WHERE SCHED_NAME = '{1}' AND TRIGGER_NAME = ? AND TRIGGER_GROUP = ?`

	sqlUpdateTriggerState = `UPDATE {0}TRIGGERS SET TRIGGER_STATE = ?
 WHERE SCHED_NAME = '{1}' AND TRIGGER_NAME = ? AND TRIGGER_GROUP = ?`

	sqlUpdateTriggerStateFromOtherState = `UPDATE {0}TRIGGERS SET TRIGGER_STATE = ?
 WHERE SCHED_NAME = '{1}' AND TRIGGER_NAME = ? AND TRIGGER_GROUP = ?
 AND TRIGGER_STATE = ?`

	sqlUpdateTriggerStatesFromOtherStates = `UPDATE {0}TRIGGERS SET TRIGGER_STATE = ?
 WHERE SCHED_NAME = '{1}' AND TRIGGER_STATE IN (?, ?)`

	sqlUpdateJobTriggerStatesFromOtherStates = `UPDATE {0}TRIGGERS SET TRIGGER_STATE = ?
 WHERE SCHED_NAME = '{1}' AND JOB_NAME = ? AND JOB_GROUP = ? AND TRIGGER_STATE IN (?, ?)`

	sqlSelectMisfiredTriggersInState = `SELECT TRIGGER_NAME, TRIGGER_GROUP
 FROM {0}TRIGGERS WHERE SCHED_NAME = '{1}' AND NOT (MISFIRE_INSTR = -1)
 AND NEXT_FIRE_TIME < ? AND TRIGGER_STATE = ?
 ORDER BY NEXT_FIRE_TIME ASC, PRIORITY DESC`

	sqlSelectTriggerToAcquire = `SELECT TRIGGER_NAME, TRIGGER_GROUP, NEXT_FIRE_TIME, PRIORITY
 FROM {0}TRIGGERS WHERE SCHED_NAME = '{1}' AND TRIGGER_STATE = ?
 AND NEXT_FIRE_TIME <= ? AND (MISFIRE_INSTR = -1 OR NEXT_FIRE_TIME >= ?)
 ORDER BY NEXT_FIRE_TIME ASC, PRIORITY DESC, TRIGGER_NAME ASC, TRIGGER_GROUP ASC`

	sqlInsertCalendar = `INSERT INTO {0}CALENDARS (SCHED_NAME, CALENDAR_NAME, CALENDAR)
 VALUES ('{1}', ?, ?)`

	sqlUpdateCalendar = `UPDATE {0}CALENDARS SET CALENDAR = ?
 WHERE SCHED_NAME = '{1}' AND CALENDAR_NAME = ?`

	sqlSelectCalendar = `SELECT CALENDAR FROM {0}CALENDARS
 WHERE SCHED_NAME = '{1}' AND CALENDAR_NAME = ?`

	sqlSelectCalendarExists = `SELECT 1 FROM {0}CALENDARS
 WHERE SCHED_NAME = '{1}' AND CALENDAR_NAME = ?`

	sqlDeleteCalendar = `DELETE FROM {0}CALENDARS
 WHERE SCHED_NAME = '{1}' AND CALENDAR_NAME = ?`

	sqlSelectReferencedCalendar = `SELECT 1 FROM {0}TRIGGERS
 WHERE SCHED_NAME = '{1}' AND CALENDAR_NAME = ?`

	sqlInsertPausedTriggerGroup = `INSERT INTO {0}PAUSED_TRIGGER_GRPS
 (SCHED_NAME, TRIGGER_GROUP) VALUES ('{1}', ?)`

	sqlDeletePausedTriggerGroup = `DELETE FROM {0}PAUSED_TRIGGER_GRPS
 WHERE SCHED_NAME = '{1}' AND TRIGGER_GROUP = ?`

	sqlDeleteAllPausedTriggerGroups = `DELETE FROM {0}PAUSED_TRIGGER_GRPS
 WHERE SCHED_NAME = '{1}'`

	sqlSelectPausedTriggerGroups = `SELECT TRIGGER_GROUP FROM {0}PAUSED_TRIGGER_GRPS
 WHERE SCHED_NAME = '{1}'`

	sqlSelectPausedTriggerGroup = `SELECT 1 FROM {0}PAUSED_TRIGGER_GRPS
 WHERE SCHED_NAME = '{1}' AND TRIGGER_GROUP = ?`

	sqlInsertFiredTrigger = `INSERT INTO {0}FIRED_TRIGGERS
 (SCHED_NAME, ENTRY_ID, TRIGGER_NAME, TRIGGER_GROUP, INSTANCE_NAME, FIRED_TIME,
 SCHED_TIME, PRIORITY, STATE, JOB_NAME, JOB_GROUP, IS_NONCONCURRENT, REQUESTS_RECOVERY)
 VALUES ('{1}', ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	sqlUpdateFiredTrigger = `UPDATE {0}FIRED_TRIGGERS
 SET INSTANCE_NAME = ?, FIRED_TIME = ?, SCHED_TIME = ?, STATE = ?,
 JOB_NAME = ?, JOB_GROUP = ?, IS_NONCONCURRENT = ?, REQUESTS_RECOVERY = ?
 WHERE SCHED_NAME = '{1}' AND ENTRY_ID = ?`

	sqlSelectFiredTriggersOfInstance = `SELECT ENTRY_ID, TRIGGER_NAME, TRIGGER_GROUP,
 INSTANCE_NAME, FIRED_TIME, SCHED_TIME, PRIORITY, STATE, JOB_NAME, JOB_GROUP,
 IS_NONCONCURRENT, REQUESTS_RECOVERY FROM {0}FIRED_TRIGGERS
 WHERE SCHED_NAME = '{1}' AND INSTANCE_NAME = ?`

	sqlDeleteFiredTrigger = `DELETE FROM {0}FIRED_TRIGGERS
 WHERE SCHED_NAME = '{1}' AND ENTRY_ID = ?`

	sqlDeleteFiredTriggersOfInstance = `DELETE FROM {0}FIRED_TRIGGERS
 WHERE SCHED_NAME = '{1}' AND INSTANCE_NAME = ?`

	sqlInsertSchedulerState = `INSERT INTO {0}SCHEDULER_STATE
 (SCHED_NAME, INSTANCE_NAME, LAST_CHECKIN_TIME, CHECKIN_INTERVAL)
 VALUES ('{1}', ?, ?, ?)`

	sqlUpdateSchedulerState = `UPDATE {0}SCHEDULER_STATE SET LAST_CHECKIN_TIME = ?
 WHERE SCHED_NAME = '{1}' AND INSTANCE_NAME = ?`

	sqlSelectSchedulerStates = `SELECT INSTANCE_NAME, LAST_CHECKIN_TIME, CHECKIN_INTERVAL
 FROM {0}SCHEDULER_STATE WHERE SCHED_NAME = '{1}'`

	sqlDeleteSchedulerState = `DELETE FROM {0}SCHEDULER_STATE
 WHERE SCHED_NAME = '{1}' AND INSTANCE_NAME = ?`

	sqlSelectForLock = `SELECT * FROM {0}LOCKS
 WHERE SCHED_NAME = '{1}' AND LOCK_NAME = ? FOR UPDATE`

	sqlInsertLock = `INSERT INTO {0}LOCKS (SCHED_NAME, LOCK_NAME) VALUES ('{1}', ?)`

	sqlDeleteJobDetailsOfSchedule     = `DELETE FROM {0}JOB_DETAILS WHERE SCHED_NAME = '{1}'`
	sqlDeleteTriggersOfSchedule       = `DELETE FROM {0}TRIGGERS WHERE SCHED_NAME = '{1}'`
	sqlDeleteSimpleTriggersOfSchedule = `DELETE FROM {0}SIMPLE_TRIGGERS WHERE SCHED_NAME = '{1}'`
	sqlDeleteCronTriggersOfSchedule   = `DELETE FROM {0}CRON_TRIGGERS WHERE SCHED_NAME = '{1}'`
	sqlDeleteSimpropTriggersOfSchedule = `DELETE FROM {0}SIMPROP_TRIGGERS WHERE SCHED_NAME = '{1}'`
	sqlDeleteBlobTriggersOfSchedule   = `DELETE FROM {0}BLOB_TRIGGERS WHERE SCHED_NAME = '{1}'`
	sqlDeleteCalendarsOfSchedule      = `DELETE FROM {0}CALENDARS WHERE SCHED_NAME = '{1}'`
	sqlDeletePausedGroupsOfSchedule   = `DELETE FROM {0}PAUSED_TRIGGER_GRPS WHERE SCHED_NAME = '{1}'`
)

// rtp expands the {0} table prefix and {1} schedule name placeholders of
// a SQL template.
func rtp(query, tablePrefix, schedName string) string {
	expanded := strings.ReplaceAll(query, "{0}", tablePrefix)
	return strings.ReplaceAll(expanded, "{1}", schedName)
}
