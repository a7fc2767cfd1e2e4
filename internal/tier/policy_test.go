package tier

import (
	"testing"

	"github.com/arialabs/aria-backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestQuotaFor(t *testing.T) {
	free := QuotaFor(models.TierFree)
	assert.True(t, free.Combined)
	assert.Equal(t, 50, free.Limit(models.ChannelText))
	assert.Equal(t, 50, free.Limit(models.ChannelVoice))

	basic := QuotaFor(models.TierBasic)
	assert.False(t, basic.Combined)
	assert.Equal(t, 500, basic.Limit(models.ChannelText))
	assert.Equal(t, 100, basic.Limit(models.ChannelVoice))

	pro := QuotaFor(models.TierPro)
	assert.Equal(t, 2000, pro.Limit(models.ChannelText))
	assert.Equal(t, 500, pro.Limit(models.ChannelVoice))
}

func TestQuotaForUnknownTierFallsBackToFree(t *testing.T) {
	q := QuotaFor(models.Tier("platinum"))
	assert.Equal(t, QuotaFor(models.TierFree), q)
}

func TestFeaturesFor(t *testing.T) {
	assert.False(t, FeaturesFor(models.TierFree).WebSearch)
	assert.False(t, FeaturesFor(models.TierFree).CreatorTools)

	assert.True(t, FeaturesFor(models.TierBasic).WebSearch)
	assert.True(t, FeaturesFor(models.TierBasic).VoiceNudges)
	assert.False(t, FeaturesFor(models.TierBasic).CreatorTools)

	assert.True(t, FeaturesFor(models.TierPro).CreatorTools)
	assert.True(t, FeaturesFor(models.TierPro).TraitDrift)
}

func TestRetentionDays(t *testing.T) {
	assert.Equal(t, 30, RetentionDays(models.TierFree))
	assert.Equal(t, 180, RetentionDays(models.TierBasic))
	assert.Equal(t, 365, RetentionDays(models.TierPro))
	assert.Equal(t, 30, RetentionDays(models.Tier("unknown")))
}

func TestMinimumTier(t *testing.T) {
	assert.Equal(t, models.TierPro, MinimumTier(models.IntentGenerateCaption))
	assert.Equal(t, models.TierPro, MinimumTier(models.IntentPersonaWeeklySummary))
	assert.Equal(t, models.TierBasic, MinimumTier(models.IntentWebSearch))
	assert.Equal(t, models.TierFree, MinimumTier(models.IntentChat))
	assert.Equal(t, models.TierFree, MinimumTier(models.IntentFallback))
}

func TestTierOrdering(t *testing.T) {
	assert.True(t, models.TierPro.AtLeast(models.TierBasic))
	assert.True(t, models.TierBasic.AtLeast(models.TierFree))
	assert.False(t, models.TierFree.AtLeast(models.TierBasic))
	assert.False(t, models.TierBasic.AtLeast(models.TierPro))
	assert.True(t, models.TierFree.AtLeast(models.TierFree))
}
