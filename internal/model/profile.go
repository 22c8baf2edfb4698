package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// MemoryBucketEntry is one consolidated memory line inside a memory_profile bucket.
type MemoryBucketEntry struct {
	Content         string    `json:"content"`
	ImportanceScore float64   `json:"importance_score"`
	SourceCount     int       `json:"source_count"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ConsolidationSettings is user-editable, lives at memory_profile.consolidation_settings.
type ConsolidationSettings struct {
	AutoConsolidate          bool    `json:"auto_consolidate"`
	ConsolidationThreshold   float64 `json:"consolidation_threshold"`
	MaxMemoriesPerType       int     `json:"max_memories_per_type"`
	ConsolidationStrategy    string  `json:"consolidation_strategy"`
}

func DefaultConsolidationSettings() ConsolidationSettings {
	return ConsolidationSettings{
		AutoConsolidate:        true,
		ConsolidationThreshold: 0.8,
		MaxMemoriesPerType:     50,
		ConsolidationStrategy:  "similarity",
	}
}

// MemoryProfile is the REDESIGN-FLAG-mandated tagged fixed-bucket structure
// replacing a dynamic/untyped JSON memory document. Readers must tolerate
// missing buckets (a profile row created before a bucket existed).
type MemoryProfile struct {
	SchemaVersion        int                   `json:"schema_version"`
	Preferences          []MemoryBucketEntry   `json:"preferences,omitempty"`
	Facts                []MemoryBucketEntry   `json:"facts,omitempty"`
	Context              []MemoryBucketEntry   `json:"context,omitempty"`
	Insights             []MemoryBucketEntry   `json:"insights,omitempty"`
	LastConsolidated     *time.Time            `json:"last_consolidated,omitempty"`
	ConsolidationSettings ConsolidationSettings `json:"consolidation_settings"`
}

const MemoryProfileSchemaVersion = 1

func NewMemoryProfile() MemoryProfile {
	return MemoryProfile{
		SchemaVersion:         MemoryProfileSchemaVersion,
		ConsolidationSettings: DefaultConsolidationSettings(),
	}
}

// Bucket returns a pointer to the named bucket slice, or nil for an unknown name.
func (p *MemoryProfile) Bucket(memType MemoryType) *[]MemoryBucketEntry {
	switch memType {
	case MemoryTypePreference:
		return &p.Preferences
	case MemoryTypeFact:
		return &p.Facts
	case MemoryTypeContext:
		return &p.Context
	case MemoryTypeInsight:
		return &p.Insights
	default:
		return nil
	}
}

// Value implements driver.Valuer so MemoryProfile round-trips through the
// profile's jsonb memory_profile column without an intermediate json.RawMessage.
func (p MemoryProfile) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements sql.Scanner for the reverse direction.
func (p *MemoryProfile) Scan(src interface{}) error {
	if src == nil {
		*p = NewMemoryProfile()
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("model: unsupported scan type %T for MemoryProfile", src)
	}
	if len(raw) == 0 {
		*p = NewMemoryProfile()
		return nil
	}
	return json.Unmarshal(raw, p)
}

// Profile is 1:1 with the externally-owned auth identity.
type Profile struct {
	ID            string        `db:"id" json:"id"`
	Username      string        `db:"username" json:"username"`
	Nickname      string        `db:"nickname" json:"nickname"`
	Email         string        `db:"email" json:"email"`
	AvatarURL     string        `db:"avatar_url" json:"avatar_url"`
	Bio           string        `db:"bio" json:"bio"`
	MemoryProfile MemoryProfile `db:"memory_profile" json:"memory_profile"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}
