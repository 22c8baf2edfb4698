// Package digest implements C12 (weekly digest payload construction) and
// C13 (timezone-aware dispatch) from spec §4.12/§4.13.
package digest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xxxsen/quill/internal/ai"
	"github.com/xxxsen/quill/internal/model"
	"github.com/xxxsen/quill/internal/repo"
)

const (
	maxHighlights  = 3
	maxMoreContent = 7
	maxSuggestions = 3
	maxStackGroups = 5
)

// Item is one insight rendered into a digest section.
type Item struct {
	InsightID string   `json:"insight_id"`
	Title     string   `json:"title"`
	Summary   string   `json:"summary,omitempty"`
	URL       string   `json:"url,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	CreatedAt string   `json:"created_at"`
}

// StackGroup is a tag-keyed grouping of insights, standing in for the
// donor's separate "stacks" entity: this data model has no dedicated stack
// object, so C12's "optional grouping" is realized by grouping insights
// under the tags they share.
type StackGroup struct {
	Name       string `json:"name"`
	ItemCount  int    `json:"item_count"`
}

// Suggestion is a heuristic recommendation surfaced alongside the digest.
type Suggestion struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Action      string `json:"action"`
	URL         string `json:"url,omitempty"`
}

// TagSummary groups a tag's insight titles for the tags section.
type TagSummary struct {
	Name     string `json:"name"`
	Articles string `json:"articles"`
}

type Sections struct {
	Highlights  []Item       `json:"highlights"`
	MoreContent []Item       `json:"more_content"`
	Stacks      []StackGroup `json:"stacks"`
	Suggestions []Suggestion `json:"suggestions"`
	Tags        []TagSummary `json:"tags"`
}

type PayloadUser struct {
	Nickname string `json:"nickname"`
	Email    string `json:"email"`
	Timezone string `json:"timezone"`
}

type ActivitySummary struct {
	InsightsCount int `json:"insights_count"`
	TaggedCount   int `json:"tagged_count"`
}

type Metadata struct {
	GeneratedAt time.Time `json:"generated_at"`
	WeekStart   time.Time `json:"week_start"`
}

// Payload is C12's complete digest document, persisted verbatim into
// email_digests.payload and handed to the email provider as template params.
type Payload struct {
	User            PayloadUser     `json:"user"`
	ActivitySummary ActivitySummary `json:"activity_summary"`
	Sections        Sections        `json:"sections"`
	AISummary       string          `json:"ai_summary"`
	Metadata        Metadata        `json:"metadata"`
}

const noActivityFallback = "You didn't save anything new this week. Come back and drop in a link whenever something catches your eye."

// Builder assembles a Payload for one user over a time window.
type Builder struct {
	insights *repo.InsightRepo
	contents *repo.InsightContentRepo
	tags     *repo.InsightTagRepo
	profiles *repo.ProfileRepo
	chat     ai.Provider
	chatModel string
}

func NewBuilder(insights *repo.InsightRepo, contents *repo.InsightContentRepo, tags *repo.InsightTagRepo, profiles *repo.ProfileRepo, chat ai.Provider, chatModel string) *Builder {
	return &Builder{insights: insights, contents: contents, tags: tags, profiles: profiles, chat: chat, chatModel: chatModel}
}

// Build implements spec §4.12: load the user's active-since-windowStart
// insights, join tags, and assemble the sectioned payload plus a narrative
// AI summary. windowEnd is accepted for symmetry with the dispatcher's
// computed window but unused: the insight query is deliberately one-sided
// per spec's "intentionally inclusive" note.
func (b *Builder) Build(ctx context.Context, userID, timezone string, windowStart, windowEnd time.Time) (Payload, error) {
	profile, err := b.profiles.GetByID(ctx, userID)
	if err != nil {
		return Payload{}, fmt.Errorf("load profile: %w", err)
	}

	insights, err := b.insights.ListActiveSince(ctx, userID, windowStart)
	if err != nil {
		return Payload{}, fmt.Errorf("list active insights: %w", err)
	}

	payload := Payload{
		User: PayloadUser{
			Nickname: firstNonEmpty(profile.Nickname, profile.Username, "there"),
			Email:    profile.Email,
			Timezone: timezone,
		},
		Metadata: Metadata{WeekStart: windowStart, GeneratedAt: time.Now().UTC()},
	}

	if len(insights) == 0 {
		payload.AISummary = noActivityFallback
		payload.Sections = Sections{}
		return payload, nil
	}

	ids := make([]string, len(insights))
	for i, ins := range insights {
		ids[i] = ins.ID
	}

	contents, err := b.contents.ListByInsightIDs(ctx, ids)
	if err != nil {
		return Payload{}, fmt.Errorf("list insight contents: %w", err)
	}
	summaryByID := make(map[string]string, len(contents))
	for _, c := range contents {
		summaryByID[c.InsightID] = c.Summary
	}

	tagRows, err := b.tags.ListTagsForInsights(ctx, ids)
	if err != nil {
		return Payload{}, fmt.Errorf("list insight tags: %w", err)
	}
	tagsByInsight := make(map[string][]string, len(insights))
	insightsByTag := make(map[string][]string)
	for _, row := range tagRows {
		tagsByInsight[row.InsightID] = append(tagsByInsight[row.InsightID], row.TagName)
		insightsByTag[row.TagName] = append(insightsByTag[row.TagName], row.InsightID)
	}

	scored := scoreInsights(insights, summaryByID, tagsByInsight)

	highlights := make([]Item, 0, maxHighlights)
	for _, s := range scored[:min(maxHighlights, len(scored))] {
		highlights = append(highlights, s.item)
	}
	more := make([]Item, 0, maxMoreContent)
	rest := scored[min(maxHighlights, len(scored)):]
	for _, s := range rest[:min(maxMoreContent, len(rest))] {
		more = append(more, s.item)
	}

	taggedCount := 0
	titleByID := make(map[string]string, len(insights))
	for _, ins := range insights {
		titleByID[ins.ID] = displayTitle(ins.Title, ins.URL)
		if len(tagsByInsight[ins.ID]) > 0 {
			taggedCount++
		}
	}

	payload.ActivitySummary = ActivitySummary{InsightsCount: len(insights), TaggedCount: taggedCount}
	payload.Sections = Sections{
		Highlights:  highlights,
		MoreContent: more,
		Stacks:      buildStacks(insightsByTag),
		Suggestions: buildSuggestions(insights, tagsByInsight),
		Tags:        buildTagSummaries(insightsByTag, titleByID),
	}

	payload.AISummary = b.narrativeSummary(ctx, insights, summaryByID)
	return payload, nil
}

type scoredInsight struct {
	item  Item
	score float64
}

// scoreInsights ranks insights by a lightweight engagement heuristic
// (has a summary, has tags, is a URL, recency) so highlights surface the
// most substantial recent saves first, per the donor's engagement scoring.
func scoreInsights(insights []model.Insight, summaryByID map[string]string, tagsByInsight map[string][]string) []scoredInsight {
	now := time.Now().UTC()
	out := make([]scoredInsight, 0, len(insights))
	for _, ins := range insights {
		score := 0.0
		if ins.Title != "" {
			score++
		}
		if summaryByID[ins.ID] != "" {
			score += 2
		}
		if len(tagsByInsight[ins.ID]) > 0 {
			score++
		}
		if ins.URL != "" {
			score++
		}
		age := now.Sub(ins.CreatedAt)
		switch {
		case age < 24*time.Hour:
			score += 3
		case age < 3*24*time.Hour:
			score += 2
		case age < 7*24*time.Hour:
			score++
		}
		out = append(out, scoredInsight{
			item: Item{
				InsightID: ins.ID,
				Title:     displayTitle(ins.Title, ins.URL),
				Summary:   summaryByID[ins.ID],
				URL:       ins.URL,
				Tags:      tagsByInsight[ins.ID],
				CreatedAt: ins.CreatedAt.Format(time.RFC3339),
			},
			score: score,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].item.CreatedAt > out[j].item.CreatedAt
	})
	return out
}

func buildStacks(insightsByTag map[string][]string) []StackGroup {
	if len(insightsByTag) == 0 {
		return nil
	}
	names := make([]string, 0, len(insightsByTag))
	for name := range insightsByTag {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return len(insightsByTag[names[i]]) > len(insightsByTag[names[j]]) })
	out := make([]StackGroup, 0, min(maxStackGroups, len(names)))
	for _, name := range names[:min(maxStackGroups, len(names))] {
		out = append(out, StackGroup{Name: name, ItemCount: len(insightsByTag[name])})
	}
	return out
}

func buildTagSummaries(insightsByTag map[string][]string, titleByID map[string]string) []TagSummary {
	if len(insightsByTag) == 0 {
		return nil
	}
	names := make([]string, 0, len(insightsByTag))
	for name := range insightsByTag {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]TagSummary, 0, len(names))
	for _, name := range names {
		titles := make([]string, 0, len(insightsByTag[name]))
		for _, id := range insightsByTag[name] {
			titles = append(titles, titleByID[id])
		}
		out = append(out, TagSummary{Name: name, Articles: strings.Join(titles, ", ")})
	}
	return out
}

// buildSuggestions mirrors the donor's activity-shaped nudges: organize
// untagged saves, or (for very light weeks) encourage more saving.
func buildSuggestions(insights []model.Insight, tagsByInsight map[string][]string) []Suggestion {
	var out []Suggestion
	untagged := 0
	for _, ins := range insights {
		if len(tagsByInsight[ins.ID]) == 0 {
			untagged++
		}
	}
	if untagged > 3 {
		out = append(out, Suggestion{
			Type:        "organization",
			Title:       "Add tags to your recent saves",
			Description: fmt.Sprintf("You have %d insights without tags this week.", untagged),
			Action:      "Add tags now",
		})
	}
	if len(insights) < 5 {
		out = append(out, Suggestion{
			Type:        "engagement",
			Title:       "Keep building your collection",
			Description: "You're off to a good start. Keep saving insights to build your knowledge base.",
			Action:      "Add more insights",
		})
	}
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}

// narrativeSummary calls C4 for a short weekly recap over the week's titles
// and summaries; failure degrades to a plain fallback rather than blocking
// digest generation.
func (b *Builder) narrativeSummary(ctx context.Context, insights []model.Insight, summaryByID map[string]string) string {
	var body strings.Builder
	for _, ins := range insights {
		fmt.Fprintf(&body, "- %s", displayTitle(ins.Title, ins.URL))
		if s := summaryByID[ins.ID]; s != "" {
			fmt.Fprintf(&body, ": %s", s)
		}
		body.WriteByte('\n')
	}
	resp, err := b.chat.Complete(ctx, ai.ChatRequest{
		Model: b.chatModel,
		Messages: []ai.ChatMessage{
			{Role: "system", Content: "You write a short, warm two-to-three sentence recap of someone's week of reading, given their saved titles and summaries. No bullet points, no headers."},
			{Role: "user", Content: body.String()},
		},
		Temperature: 0.5,
		MaxTokens:   200,
	})
	if err != nil {
		return fmt.Sprintf("You saved %d insights this week.", len(insights))
	}
	return resp.Content
}

func displayTitle(title, url string) string {
	if strings.TrimSpace(title) != "" {
		return title
	}
	if url != "" {
		return url
	}
	return "Untitled"
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
