package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/xxxsen/quill/internal/model"
	"github.com/xxxsen/quill/internal/repo"
)

var bucketTypes = []model.MemoryType{
	model.MemoryTypePreference,
	model.MemoryTypeFact,
	model.MemoryTypeContext,
	model.MemoryTypeInsight,
}

// Consolidator implements spec §4.11's consolidation stage.
type Consolidator struct {
	memories *repo.ChatMemoryRepo
	profiles *repo.ProfileRepo
}

func NewConsolidator(memories *repo.ChatMemoryRepo, profiles *repo.ProfileRepo) *Consolidator {
	return &Consolidator{memories: memories, profiles: profiles}
}

// Consolidate merges each memory-type bucket for a user according to the
// strategy in profile.memory_profile.consolidation_settings, writes the
// result into the profile, and deactivates every raw ChatMemory row that
// fed into this pass — the profile bucket becomes the authoritative record.
// types restricts the pass to a subset of buckets (spec §6's
// memory_types filter); an empty slice runs every bucket.
func (c *Consolidator) Consolidate(ctx context.Context, userID string, types []model.MemoryType) error {
	profile, err := c.profiles.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	settings := profile.MemoryProfile.ConsolidationSettings

	targets := bucketTypes
	if len(types) > 0 {
		targets = types
	}

	changed := false
	for _, memType := range targets {
		mems, err := c.memories.ListActiveByType(ctx, userID, memType)
		if err != nil {
			return fmt.Errorf("list active memories: %w", err)
		}
		if len(mems) == 0 {
			continue
		}

		entries := consolidateBucket(mems, settings)
		bucket := profile.MemoryProfile.Bucket(memType)
		if bucket != nil {
			*bucket = entries
		}

		ids := make([]string, len(mems))
		for i, m := range mems {
			ids[i] = m.ID
		}
		if err := c.memories.Deactivate(ctx, ids); err != nil {
			return fmt.Errorf("deactivate consolidated memories: %w", err)
		}
		changed = true
	}
	if !changed {
		return nil
	}

	now := time.Now().UTC()
	profile.MemoryProfile.LastConsolidated = &now
	return c.profiles.UpdateMemoryProfile(ctx, userID, profile.MemoryProfile)
}

func consolidateBucket(mems []model.ChatMemory, settings model.ConsolidationSettings) []model.MemoryBucketEntry {
	maxPerType := settings.MaxMemoriesPerType
	if maxPerType <= 0 {
		maxPerType = model.DefaultConsolidationSettings().MaxMemoriesPerType
	}
	switch settings.ConsolidationStrategy {
	case "importance":
		return consolidateByImportance(mems, maxPerType)
	case "time":
		return consolidateByTime(mems, maxPerType)
	default:
		threshold := settings.ConsolidationThreshold
		if threshold <= 0 {
			threshold = model.DefaultConsolidationSettings().ConsolidationThreshold
		}
		return consolidateBySimilarity(mems, threshold, maxPerType)
	}
}

type mergedGroup struct {
	content    string
	importance float64
	sources    int
	updatedAt  time.Time
}

// consolidateBySimilarity greedily merges memories whose word-level
// similarity exceeds threshold: merged content is the longer of the two
// plus a deduplicated delta of words unique to the shorter one, per spec
// §4.11's `similarity` strategy.
func consolidateBySimilarity(mems []model.ChatMemory, threshold float64, maxPerType int) []model.MemoryBucketEntry {
	groups := make([]mergedGroup, 0, len(mems))
	for _, m := range mems {
		merged := false
		for i := range groups {
			if similarity(groups[i].content, m.Content) > threshold {
				groups[i].content = mergeContent(groups[i].content, m.Content)
				if m.ImportanceScore > groups[i].importance {
					groups[i].importance = m.ImportanceScore
				}
				groups[i].sources++
				if m.UpdatedAt.After(groups[i].updatedAt) {
					groups[i].updatedAt = m.UpdatedAt
				}
				merged = true
				break
			}
		}
		if !merged {
			groups = append(groups, mergedGroup{content: m.Content, importance: m.ImportanceScore, sources: 1, updatedAt: m.UpdatedAt})
		}
	}

	sort.SliceStable(groups, func(i, j int) bool { return groups[i].importance > groups[j].importance })
	if len(groups) > maxPerType {
		groups = groups[:maxPerType]
	}

	out := make([]model.MemoryBucketEntry, 0, len(groups))
	for _, g := range groups {
		out = append(out, model.MemoryBucketEntry{Content: g.content, ImportanceScore: g.importance, SourceCount: g.sources, UpdatedAt: g.updatedAt})
	}
	return out
}

func consolidateByImportance(mems []model.ChatMemory, maxPerType int) []model.MemoryBucketEntry {
	sorted := append([]model.ChatMemory(nil), mems...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ImportanceScore > sorted[j].ImportanceScore })
	if len(sorted) > maxPerType {
		sorted = sorted[:maxPerType]
	}
	return toBucketEntries(sorted)
}

func consolidateByTime(mems []model.ChatMemory, maxPerType int) []model.MemoryBucketEntry {
	sorted := append([]model.ChatMemory(nil), mems...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.After(sorted[j].CreatedAt) })
	if len(sorted) > maxPerType {
		sorted = sorted[:maxPerType]
	}
	return toBucketEntries(sorted)
}

func toBucketEntries(mems []model.ChatMemory) []model.MemoryBucketEntry {
	out := make([]model.MemoryBucketEntry, 0, len(mems))
	for _, m := range mems {
		out = append(out, model.MemoryBucketEntry{Content: m.Content, ImportanceScore: m.ImportanceScore, SourceCount: 1, UpdatedAt: m.UpdatedAt})
	}
	return out
}

// similarity is a word-level ratio via go-difflib's sequence matcher,
// case-insensitive so "Prefers Go" and "prefers go" register as identical.
func similarity(a, b string) float64 {
	aw := strings.Fields(strings.ToLower(a))
	bw := strings.Fields(strings.ToLower(b))
	if len(aw) == 0 && len(bw) == 0 {
		return 1
	}
	matcher := difflib.NewMatcher(aw, bw)
	return matcher.Ratio()
}

// mergeContent takes the longer of the two contents as the base and appends
// the words unique to the shorter one, deduplicated, per spec §4.11.
func mergeContent(a, b string) string {
	base, other := a, b
	if len([]rune(b)) > len([]rune(a)) {
		base, other = b, a
	}

	baseWords := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(base)) {
		baseWords[w] = struct{}{}
	}

	seen := make(map[string]struct{})
	var delta []string
	for _, w := range strings.Fields(other) {
		lw := strings.ToLower(w)
		if _, ok := baseWords[lw]; ok {
			continue
		}
		if _, ok := seen[lw]; ok {
			continue
		}
		seen[lw] = struct{}{}
		delta = append(delta, w)
	}
	if len(delta) == 0 {
		return base
	}
	return base + " " + strings.Join(delta, " ")
}
