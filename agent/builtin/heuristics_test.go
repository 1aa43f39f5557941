package builtin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veriflow-ai/veriflow/testutil"
	"github.com/veriflow-ai/veriflow/types"
)

func TestFactCheck_Verdicts(t *testing.T) {
	t.Parallel()

	a := NewFactCheck(DefaultConfig(), zap.NewNop())
	ctx := testutil.TestContext(t)

	tests := []struct {
		name    string
		content string
		verdict types.Verdict
	}{
		{
			name:    "quantified claims pass",
			content: "The company reported revenue of 4.2 billion in 2024, up 12% from the prior year.",
			verdict: types.VerdictVerifiedTrue,
		},
		{
			name:    "absolute claims are misleading",
			content: "This treatment always works and everyone agrees it is guaranteed to cure you.",
			verdict: types.VerdictMisleading,
		},
		{
			name:    "hedged claims stay unverified",
			content: "Reportedly the mayor resigned and sources say the decision came under pressure.",
			verdict: types.VerdictUnverified,
		},
		{
			name:    "too short to check",
			content: "Water is wet",
			verdict: types.VerdictInsufficientEvidence,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := a.Analyze(ctx, textRequest(tt.content))
			require.NoError(t, err)
			assert.Equal(t, tt.verdict, resp.Verdict, "content: %s", tt.content)
		})
	}
}

func TestFactCheck_QuantifiedClaimEvidence(t *testing.T) {
	t.Parallel()

	a := NewFactCheck(DefaultConfig(), zap.NewNop())
	resp, err := a.Analyze(testutil.TestContext(t),
		textRequest("Unemployment fell to 3.9% in March according to the bureau figures."))
	require.NoError(t, err)

	require.Len(t, resp.Evidence, 1)
	assert.Equal(t, types.EvidenceFactCheck, resp.Evidence[0].Type)
	assert.NotEmpty(t, resp.Metadata["numeric_claims"])
}

func TestLanguageSpecialist_HomoglyphSpoofing(t *testing.T) {
	t.Parallel()

	a := NewLanguageSpecialist(DefaultConfig(), zap.NewNop())
	// "pаypal" carries a cyrillic а inside a latin token.
	resp, err := a.Analyze(testutil.TestContext(t),
		textRequest("Confirm your pаypal account credentials now"))
	require.NoError(t, err)

	assert.Equal(t, types.VerdictMisleading, resp.Verdict)
	assert.InDelta(t, 0.7, resp.Confidence, 1e-9)
	assert.Contains(t, resp.Reasoning, "homoglyph")
}

func TestLanguageSpecialist_UnsupportedLanguage(t *testing.T) {
	t.Parallel()

	a := NewLanguageSpecialist(DefaultConfig(), zap.NewNop())
	resp, err := a.Analyze(testutil.TestContext(t), types.NewVerificationRequest(
		"tekst in een niet ondersteunde taal", types.ContentKindText,
		types.RequestMetadata{Language: "xx"}, types.PriorityMedium))
	require.NoError(t, err)

	assert.Equal(t, types.VerdictInsufficientEvidence, resp.Verdict)
	assert.Equal(t, "xx", resp.Metadata["language"])
}

func TestLanguageSpecialist_CleanContent(t *testing.T) {
	t.Parallel()

	a := NewLanguageSpecialist(DefaultConfig(), zap.NewNop())
	resp, err := a.Analyze(testutil.TestContext(t), types.NewVerificationRequest(
		"A perfectly ordinary sentence.", types.ContentKindText,
		types.RequestMetadata{Language: "en"}, types.PriorityMedium))
	require.NoError(t, err)

	assert.Equal(t, types.VerdictVerifiedTrue, resp.Verdict)
	require.Len(t, resp.Evidence, 1)
	assert.Equal(t, types.EvidenceExpertOpinion, resp.Evidence[0].Type)

	// Missing language metadata is treated as undetermined, not unsupported.
	resp, err = a.Analyze(testutil.TestContext(t), textRequest("No language metadata here."))
	require.NoError(t, err)
	assert.Equal(t, types.VerdictVerifiedTrue, resp.Verdict)
	assert.Equal(t, "und", resp.Metadata["language"])
}

func TestMixedScriptWord(t *testing.T) {
	t.Parallel()

	word, ok := mixedScriptWord("visit pаypal today")
	assert.True(t, ok)
	assert.Equal(t, "pаypal", word)

	// Separate words in different scripts are legitimate.
	_, ok = mixedScriptWord("hello мир")
	assert.False(t, ok)

	_, ok = mixedScriptWord("だよ plain latin text")
	assert.False(t, ok)
}

func TestSocialMediaAnalyst_UrgencyPhrasing(t *testing.T) {
	t.Parallel()

	a := NewSocialMediaAnalyst(DefaultConfig(), zap.NewNop())
	resp, err := a.Analyze(testutil.TestContext(t), types.NewVerificationRequest(
		"Share before they delete this! Wake up people, the truth is out.",
		types.ContentKindSocialMedia, types.RequestMetadata{Platform: "twitter"}, types.PriorityMedium))
	require.NoError(t, err)

	assert.Equal(t, types.VerdictMisleading, resp.Verdict)
	assert.GreaterOrEqual(t, resp.Confidence, 0.65)
	assert.Contains(t, resp.Reasoning, "urgency")
}

func TestSocialMediaAnalyst_HashtagStuffing(t *testing.T) {
	t.Parallel()

	a := NewSocialMediaAnalyst(DefaultConfig(), zap.NewNop())
	resp, err := a.Analyze(testutil.TestContext(t), types.NewVerificationRequest(
		"#breaking #viral #truth wow", types.ContentKindSocialMedia,
		types.RequestMetadata{}, types.PriorityMedium))
	require.NoError(t, err)

	assert.Equal(t, types.VerdictMisleading, resp.Verdict)
	assert.Contains(t, resp.Reasoning, "hashtag stuffing")
	assert.Equal(t, "3", resp.Metadata["hashtags"])
}

func TestSocialMediaAnalyst_CleanPost(t *testing.T) {
	t.Parallel()

	a := NewSocialMediaAnalyst(DefaultConfig(), zap.NewNop())
	resp, err := a.Analyze(testutil.TestContext(t), types.NewVerificationRequest(
		"Lovely weather in the park today, photos coming later.",
		types.ContentKindSocialMedia, types.RequestMetadata{Platform: "instagram"}, types.PriorityMedium))
	require.NoError(t, err)

	assert.Equal(t, types.VerdictVerifiedTrue, resp.Verdict)
	require.Len(t, resp.Evidence, 1)
	assert.Contains(t, resp.Evidence[0].Title, "instagram")
}

func TestCountMarkers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 2, countMarkers("#one and #two", '#'))
	assert.Equal(t, 1, countMarkers("email @user now", '@'))
	assert.Equal(t, 0, countMarkers("50 # not a tag", '#'))
	assert.Equal(t, 0, countMarkers("trailing #", '#'))
}

func TestEducationSpecialist_Verdicts(t *testing.T) {
	t.Parallel()

	a := NewEducationSpecialist(DefaultConfig(), zap.NewNop())
	ctx := testutil.TestContext(t)

	academic := func(content string) *types.VerificationRequest {
		return types.NewVerificationRequest(content, types.ContentKindAcademic,
			types.RequestMetadata{}, types.PriorityMedium)
	}

	resp, err := a.Analyze(ctx, academic("The effect replicates across cohorts [1] [2], see doi.org/10.1000/xyz."))
	require.NoError(t, err)
	assert.Equal(t, types.VerdictVerifiedTrue, resp.Verdict)
	assert.Equal(t, "3", resp.Metadata["citations"])
	require.Len(t, resp.Evidence, 1)

	resp, err = a.Analyze(ctx, academic("A new study shows chocolate cures cancer overnight."))
	require.NoError(t, err)
	assert.Equal(t, types.VerdictMisleading, resp.Verdict)
	assert.Contains(t, resp.Reasoning, "without any citation")

	resp, err = a.Analyze(ctx, academic("We argue the following position without referencing prior art."))
	require.NoError(t, err)
	assert.Equal(t, types.VerdictUnverified, resp.Verdict)

	resp, err = a.Analyze(ctx, textRequest("Plain text with no academic apparatus."))
	require.NoError(t, err)
	assert.Equal(t, types.VerdictInsufficientEvidence, resp.Verdict)
}

func TestMediaForensics_Verdicts(t *testing.T) {
	t.Parallel()

	a := NewMediaForensics(DefaultConfig(), zap.NewNop())
	ctx := testutil.TestContext(t)

	image := func(content string, meta types.RequestMetadata) *types.VerificationRequest {
		return types.NewVerificationRequest(content, types.ContentKindImage, meta, types.PriorityMedium)
	}

	// Declared provenance credentials are accepted.
	resp, err := a.Analyze(ctx, image("festival crowd photo",
		types.RequestMetadata{Extra: map[string]string{"c2pa": "claim:abc123"}}))
	require.NoError(t, err)
	assert.Equal(t, types.VerdictVerifiedTrue, resp.Verdict)
	assert.Contains(t, resp.Reasoning, "c2pa")

	// Inline data URLs evade attribution.
	resp, err = a.Analyze(ctx, image("data:image/png;base64,iVBORw0KGgo=", types.RequestMetadata{}))
	require.NoError(t, err)
	assert.Equal(t, types.VerdictVerifiedFalse, resp.Verdict)

	// Disguised double extension.
	resp, err = a.Analyze(ctx, image("crowd photo",
		types.RequestMetadata{URL: "https://cdn.test/photo.jpg.exe"}))
	require.NoError(t, err)
	assert.Equal(t, types.VerdictVerifiedFalse, resp.Verdict)
	assert.Contains(t, resp.Reasoning, "double extension")

	// Recognized media format without provenance.
	resp, err = a.Analyze(ctx, image("crowd photo",
		types.RequestMetadata{URL: "https://cdn.test/photo.jpg"}))
	require.NoError(t, err)
	assert.Equal(t, types.VerdictInsufficientEvidence, resp.Verdict)
	assert.InDelta(t, 0.45, resp.Confidence, 1e-9)

	// No analyzable reference at all.
	resp, err = a.Analyze(ctx, image("a photograph of a cat", types.RequestMetadata{}))
	require.NoError(t, err)
	assert.Equal(t, types.VerdictInsufficientEvidence, resp.Verdict)
	assert.InDelta(t, 0.35, resp.Confidence, 1e-9)
}
