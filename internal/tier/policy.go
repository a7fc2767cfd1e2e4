// Package tier holds the static subscription policy tables: monthly
// quotas, feature flags and retention windows per tier. Pure data,
// read-only after initialization.
package tier

import "github.com/arialabs/aria-backend/internal/models"

// Quota is the monthly message allowance for one tier. Free tier uses a
// single pool shared between text and voice; paid tiers meter each
// channel independently.
type Quota struct {
	Combined bool
	Text     int
	Voice    int
}

// Limit returns the cap that applies to the given channel.
func (q Quota) Limit(ch models.Channel) int {
	if q.Combined || ch == models.ChannelText {
		return q.Text
	}
	return q.Voice
}

// Features is the per-tier feature flag set.
type Features struct {
	VoiceNudges  bool
	WebSearch    bool
	CreatorTools bool
	TraitDrift   bool
}

var quotas = map[models.Tier]Quota{
	models.TierFree:  {Combined: true, Text: 50, Voice: 50},
	models.TierBasic: {Text: 500, Voice: 100},
	models.TierPro:   {Text: 2000, Voice: 500},
}

var features = map[models.Tier]Features{
	models.TierFree:  {},
	models.TierBasic: {VoiceNudges: true, WebSearch: true},
	models.TierPro:   {VoiceNudges: true, WebSearch: true, CreatorTools: true, TraitDrift: true},
}

var retentionDays = map[models.Tier]int{
	models.TierFree:  30,
	models.TierBasic: 180,
	models.TierPro:   365,
}

// QuotaFor returns the monthly quota table entry for t. Unknown tiers
// get the free-tier quota.
func QuotaFor(t models.Tier) Quota {
	if q, ok := quotas[t]; ok {
		return q
	}
	return quotas[models.TierFree]
}

// FeaturesFor returns the feature flag set for t.
func FeaturesFor(t models.Tier) Features {
	return features[t]
}

// RetentionDays returns how long messages are kept for t.
func RetentionDays(t models.Tier) int {
	if d, ok := retentionDays[t]; ok {
		return d
	}
	return retentionDays[models.TierFree]
}

// minimumTiers declares the lowest tier allowed to run each gated
// intent. Intents absent from the table are available to every tier.
var minimumTiers = map[models.Intent]models.Tier{
	models.IntentWebSearch:            models.TierBasic,
	models.IntentToggleVoiceNudges:    models.TierBasic,
	models.IntentGenerateCaption:      models.TierPro,
	models.IntentGenerateContentIdeas: models.TierPro,
	models.IntentGenerateScript:       models.TierPro,
	models.IntentPersonaWeeklySummary: models.TierPro,
}

// MinimumTier returns the tier required to run the given intent.
func MinimumTier(intent models.Intent) models.Tier {
	if t, ok := minimumTiers[intent]; ok {
		return t
	}
	return models.TierFree
}
