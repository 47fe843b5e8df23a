package quartz

import (
	"fmt"
	"sort"
	"strconv"
)

// JobDataMap holds state information that is made available to job
// instances when they execute, and to triggers as per-fire parameters.
// Values must be strings when the backing store runs in properties mode.
type JobDataMap map[string]any

// NewJobDataMap returns a new empty JobDataMap.
func NewJobDataMap() JobDataMap {
	return make(JobDataMap)
}

// Clone returns a shallow copy of the map.
func (m JobDataMap) Clone() JobDataMap {
	if m == nil {
		return nil
	}
	clone := make(JobDataMap, len(m))
	for k, v := range m {
		clone[k] = v
	}
	return clone
}

// Merged returns a new map with the entries of m overridden by other.
func (m JobDataMap) Merged(other JobDataMap) JobDataMap {
	merged := make(JobDataMap, len(m)+len(other))
	for k, v := range m {
		merged[k] = v
	}
	for k, v := range other {
		merged[k] = v
	}
	return merged
}

// GetString returns the string stored under the key.
func (m JobDataMap) GetString(key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetInt returns the integer stored under the key. Values stored as
// numeric strings are converted.
func (m JobDataMap) GetInt(key string) (int, bool) {
	switch v := m[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case string:
		i, err := strconv.Atoi(v)
		return i, err == nil
	default:
		return 0, false
	}
}

// GetInt64 returns the 64-bit integer stored under the key.
func (m JobDataMap) GetInt64(key string) (int64, bool) {
	switch v := m[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case string:
		i, err := strconv.ParseInt(v, 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

// GetBool returns the boolean stored under the key.
func (m JobDataMap) GetBool(key string) (bool, bool) {
	switch v := m[key].(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(v)
		return b, err == nil
	default:
		return false, false
	}
}

// Keys returns the map keys in sorted order.
func (m JobDataMap) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CheckStringOnly verifies that all values are strings. Stores operating
// in properties mode require this before persisting the map.
func (m JobDataMap) CheckStringOnly() error {
	for k, v := range m {
		if _, ok := v.(string); !ok {
			return illegalArgumentError(fmt.Sprintf(
				"value of key %q is non-string and the store is in properties mode", k))
		}
	}
	return nil
}
