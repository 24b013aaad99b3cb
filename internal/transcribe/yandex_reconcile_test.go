package transcribe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func finalChunk(channel, text string, startMs, endMs int64, confidence float64) pollChunk {
	return pollChunk{Result: &chunkResult{
		ChannelTag: channel,
		Final: &alternativesBlock{Alternatives: []alternative{{
			Text:        text,
			Confidence:  confidence,
			StartTimeMs: millis(startMs),
			EndTimeMs:   millis(endMs),
		}}},
	}}
}

func refinementChunk(channel, text string, startMs, endMs int64, confidence float64) pollChunk {
	return pollChunk{Result: &chunkResult{
		ChannelTag: channel,
		FinalRefinement: &refinementBlock{NormalizedText: &alternativesBlock{
			Alternatives: []alternative{{
				Text:        text,
				Confidence:  confidence,
				StartTimeMs: millis(startMs),
				EndTimeMs:   millis(endMs),
			}},
		}},
	}}
}

func TestReconcilePrefersRefinementOverAlternative(t *testing.T) {
	chunks := []pollChunk{
		finalChunk("1", "raw first pass", 1000, 2500, 0.99),
		refinementChunk("1", "Refined first pass.", 1200, 2500, 0.80),
	}

	tr, err := reconcile(chunks, "general", time.Now())
	require.NoError(t, err)
	require.Len(t, tr.Segments, 1)
	assert.Equal(t, "Refined first pass.", tr.Segments[0].Content)
}

func TestReconcileKeepsHigherConfidenceWithinSameKind(t *testing.T) {
	chunks := []pollChunk{
		finalChunk("1", "low confidence", 1000, 2000, 0.40),
		finalChunk("1", "high confidence", 1100, 2000, 0.90),
	}

	tr, err := reconcile(chunks, "general", time.Now())
	require.NoError(t, err)
	require.Len(t, tr.Segments, 1)
	assert.Equal(t, "high confidence", tr.Segments[0].Content)
}

func TestReconcileSeparatesDistantBuckets(t *testing.T) {
	chunks := []pollChunk{
		finalChunk("1", "first utterance", 0, 900, 0.9),
		finalChunk("1", "second utterance", 3000, 4200, 0.9),
	}

	tr, err := reconcile(chunks, "general", time.Now())
	require.NoError(t, err)
	require.Len(t, tr.Segments, 2)
	assert.Equal(t, "first utterance second utterance", tr.Text)
}

func TestReconcileUsesWordLevelTimestamps(t *testing.T) {
	chunks := []pollChunk{{Result: &chunkResult{
		ChannelTag: "1",
		Final: &alternativesBlock{Alternatives: []alternative{{
			Text:        "tight bounds",
			StartTimeMs: 0,
			EndTimeMs:   10000,
			Words: []word{
				{Text: "tight", StartTimeMs: 1250, EndTimeMs: 1700},
				{Text: "bounds", StartTimeMs: 1750, EndTimeMs: 2300},
			},
		}}},
	}}}

	tr, err := reconcile(chunks, "general", time.Now())
	require.NoError(t, err)
	require.Len(t, tr.Segments, 1)
	assert.Equal(t, int64(1250), tr.Segments[0].StartMs)
	assert.Equal(t, int64(2300), tr.Segments[0].EndMs)
}

func TestReconcileSynthesizesSpeakersInChannelOrder(t *testing.T) {
	chunks := []pollChunk{
		finalChunk("7", "from channel seven", 0, 1000, 0.9),
		finalChunk("3", "from channel three", 2000, 3000, 0.9),
	}

	tr, err := reconcile(chunks, "general", time.Now())
	require.NoError(t, err)
	require.Len(t, tr.Segments, 2)
	// First-seen channel gets speaker_1 regardless of tag value.
	assert.Equal(t, "speaker_1", tr.Segments[0].Speaker)
	assert.Equal(t, "speaker_2", tr.Segments[1].Speaker)
}

func TestReconcileUsesSpeakerAnalysisWhenPresent(t *testing.T) {
	chunks := []pollChunk{
		finalChunk("1", "hello", 0, 800, 0.9),
		{Result: &chunkResult{
			ChannelTag:      "1",
			SpeakerAnalysis: &speakerAnalysis{SpeakerTag: "speaker_A"},
		}},
	}

	tr, err := reconcile(chunks, "general", time.Now())
	require.NoError(t, err)
	require.Len(t, tr.Segments, 1)
	assert.Equal(t, "speaker_A", tr.Segments[0].Speaker)
}

func TestReconcileSortsAndDropsEmptyText(t *testing.T) {
	chunks := []pollChunk{
		finalChunk("1", "later", 5000, 6000, 0.9),
		finalChunk("2", "   ", 1000, 1500, 0.9),
		finalChunk("2", "earlier", 2000, 2600, 0.9),
	}

	tr, err := reconcile(chunks, "general", time.Now())
	require.NoError(t, err)
	require.Len(t, tr.Segments, 2)
	assert.Equal(t, "earlier", tr.Segments[0].Content)
	assert.Equal(t, "later", tr.Segments[1].Content)

	var prev int64
	for _, s := range tr.Segments {
		assert.GreaterOrEqual(t, s.StartMs, prev)
		assert.NotEmpty(t, s.Content)
		prev = s.StartMs
	}
}

func TestReconcileFailsOnEmptyResults(t *testing.T) {
	_, err := reconcile(nil, "general", time.Now())
	assert.ErrorIs(t, err, ErrJobFailed)
}

func TestParsePollBodyMultipleObjects(t *testing.T) {
	body := []byte(`{"result":{"channelTag":"1","final":{"alternatives":[{"text":"a","startTimeMs":"100","endTimeMs":"900"}]}}}
{"result":{"channelTag":"2","final":{"alternatives":[{"text":"b","startTimeMs":2000,"endTimeMs":2900}]}}}`)

	chunks, err := parsePollBody(body)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	// String and numeric millisecond encodings both parse.
	assert.Equal(t, millis(100), chunks[0].Result.Final.Alternatives[0].StartTimeMs)
	assert.Equal(t, millis(2000), chunks[1].Result.Final.Alternatives[0].StartTimeMs)
}

func TestParsePollBodyRejectsGarbage(t *testing.T) {
	_, err := parsePollBody([]byte(`{"result":`))
	assert.Error(t, err)
}

func TestPollChunkDoneFlag(t *testing.T) {
	chunks, err := parsePollBody([]byte(`{"done":false}`))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	require.NotNil(t, chunks[0].Done)
	assert.False(t, *chunks[0].Done)
}
