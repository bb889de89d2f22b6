package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// GuardianInviteKey returns the cache key holding a pending activation token.
func (r *CacheKeyStruct) GuardianInviteKey(token string) string {
	return fmt.Sprintf("guardian:invite:%s", token)
}

// SectionGradebookKey returns the cache key for a section's gradebook grid.
func (r *CacheKeyStruct) SectionGradebookKey(sectionID int) string {
	return fmt.Sprintf("section:%d:gradebook", sectionID)
}

// SectionRosterKey returns the cache key for a section's roster payload.
func (r *CacheKeyStruct) SectionRosterKey(sectionID int) string {
	return fmt.Sprintf("section:%d:roster", sectionID)
}

// SchoolFeedChannel returns the Redis Pub/Sub channel carrying a school's
// live domain-event feed.
func (r *CacheKeyStruct) SchoolFeedChannel(schoolID int) string {
	return fmt.Sprintf("school:%d:events", schoolID)
}

// ConversationChannel returns the Redis Pub/Sub channel for a conversation's
// message stream.
func (r *CacheKeyStruct) ConversationChannel(conversationID string) string {
	return fmt.Sprintf("conversation:%s:stream", conversationID)
}

// GuardianUnreadKey returns the cache key for a guardian's unread counter.
func (r *CacheKeyStruct) GuardianUnreadKey(guardianID int) string {
	return fmt.Sprintf("guardian:%d:unread", guardianID)
}

var CacheKey = NewCacheKeyStruct()
