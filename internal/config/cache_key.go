package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// UserSessionKey returns the cache key for a user's login session
func (r *CacheKeyStruct) UserSessionKey(userID int) string {
	return fmt.Sprintf("login:%d", userID)
}

// AttemptSnapshotKey returns the cache key for the latest progress snapshot
// of a user's attempt in a module
func (r *CacheKeyStruct) AttemptSnapshotKey(userID int, module string) string {
	return fmt.Sprintf("user:%d:module:%s:attempt", userID, module)
}

// ModulePayloadKey returns the cache key for a module's question payload
func (r *CacheKeyStruct) ModulePayloadKey(module string) string {
	return fmt.Sprintf("module:%s:payload", module)
}

// AttemptEventsChannel returns the Redis PubSub channel for attempt
// persistence acks
func (r *CacheKeyStruct) AttemptEventsChannel(userID int, module string) string {
	return fmt.Sprintf("user:%d:module:%s:events", userID, module)
}

var CacheKey = NewCacheKeyStruct()
