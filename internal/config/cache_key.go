package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// TaskWorkingCopyKey returns the cache key holding the latest code a
// candidate has typed for one coding task (crash-recovery mirror).
func (r *CacheKeyStruct) TaskWorkingCopyKey(sessionID, taskID string) string {
	return fmt.Sprintf("session:%s:task:%s:working_copy", sessionID, taskID)
}

// SessionMonitorChannel returns the Redis PubSub channel name carrying
// emitted proctor alerts for a session's live monitor stream.
func (r *CacheKeyStruct) SessionMonitorChannel(sessionID string) string {
	return fmt.Sprintf("session:%s:monitor", sessionID)
}

var CacheKey = NewCacheKeyStruct()
