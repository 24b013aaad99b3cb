package transcribe

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mindlog/session-worker/internal/domain"
)

// dedupBucketMs groups near-simultaneous recognitions of the same
// channel into half-second buckets.
const dedupBucketMs = 500

// millis is a millisecond timestamp that the API serializes either as a
// JSON number or as a quoted decimal string.
type millis int64

func (m *millis) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*m = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid millisecond value %q", s)
	}
	*m = millis(v)
	return nil
}

// pollChunk is one independent JSON object from the poll response.
type pollChunk struct {
	Done   *bool        `json:"done,omitempty"`
	Error  *apiError    `json:"error,omitempty"`
	Result *chunkResult `json:"result,omitempty"`
}

type chunkResult struct {
	ChannelTag      string             `json:"channelTag"`
	Final           *alternativesBlock `json:"final"`
	FinalRefinement *refinementBlock   `json:"finalRefinement"`
	SpeakerAnalysis *speakerAnalysis   `json:"speakerAnalysis"`
	EouUpdate       *eouUpdate         `json:"eouUpdate"`
}

type alternativesBlock struct {
	Alternatives []alternative `json:"alternatives"`
}

type refinementBlock struct {
	NormalizedText *alternativesBlock `json:"normalizedText"`
}

type alternative struct {
	Text        string  `json:"text"`
	Confidence  float64 `json:"confidence"`
	StartTimeMs millis  `json:"startTimeMs"`
	EndTimeMs   millis  `json:"endTimeMs"`
	Words       []word  `json:"words"`
}

type word struct {
	Text        string `json:"text"`
	StartTimeMs millis `json:"startTimeMs"`
	EndTimeMs   millis `json:"endTimeMs"`
}

type speakerAnalysis struct {
	SpeakerTag string `json:"speakerTag"`
}

type eouUpdate struct {
	TimeMs millis `json:"timeMs"`
}

// utterance is an internal reconciliation record keyed by a time bucket
// derived from its start time.
type utterance struct {
	text       string
	startMs    int64
	endMs      int64
	confidence float64
	refined    bool
}

// reconcile merges the poll response objects into a transcription.
//
// Per channel, refinement text is preferred over raw alternative text
// for overlapping half-second start buckets; within the same quality
// level the higher-confidence entry wins. Word-level timestamps take
// precedence over utterance-level ones for tighter boundaries. Speaker
// identity per channel comes from the speaker-analysis block when
// present, otherwise speaker_N in first-seen channel order. The final
// segments are sorted by start time with zero-length text dropped.
func reconcile(chunks []pollChunk, model string, now time.Time) (*domain.Transcription, error) {
	utterances := make(map[string]map[int64]utterance)
	speakerByChannel := make(map[string]string)
	var channelOrder []string

	seeChannel := func(ch string) string {
		if ch == "" {
			ch = "0"
		}
		if _, ok := utterances[ch]; !ok {
			utterances[ch] = make(map[int64]utterance)
			channelOrder = append(channelOrder, ch)
		}
		return ch
	}

	for _, c := range chunks {
		if c.Result == nil {
			continue
		}
		ch := seeChannel(c.Result.ChannelTag)

		if sa := c.Result.SpeakerAnalysis; sa != nil && sa.SpeakerTag != "" {
			speakerByChannel[ch] = sa.SpeakerTag
		}

		if c.Result.Final != nil {
			mergeAlternatives(utterances[ch], c.Result.Final.Alternatives, false)
		}
		if ref := c.Result.FinalRefinement; ref != nil && ref.NormalizedText != nil {
			mergeAlternatives(utterances[ch], ref.NormalizedText.Alternatives, true)
		}
	}

	if len(channelOrder) == 0 {
		return nil, fmt.Errorf("%w: response carried no recognition results", ErrJobFailed)
	}

	speakers := make(map[string]string, len(channelOrder))
	for i, ch := range channelOrder {
		if tag, ok := speakerByChannel[ch]; ok {
			speakers[ch] = tag
		} else {
			speakers[ch] = fmt.Sprintf("speaker_%d", i+1)
		}
	}

	var segments []domain.Segment
	for _, ch := range channelOrder {
		for _, u := range utterances[ch] {
			content := strings.TrimSpace(u.text)
			if content == "" {
				continue
			}
			segments = append(segments, domain.Segment{
				StartMs: u.startMs,
				EndMs:   u.endMs,
				Speaker: speakers[ch],
				Content: content,
			})
		}
	}

	sort.Slice(segments, func(i, j int) bool {
		if segments[i].StartMs != segments[j].StartMs {
			return segments[i].StartMs < segments[j].StartMs
		}
		return segments[i].EndMs < segments[j].EndMs
	})

	texts := make([]string, 0, len(segments))
	for _, s := range segments {
		texts = append(texts, s.Content)
	}

	return &domain.Transcription{
		Text:       strings.Join(texts, " "),
		Model:      model,
		Timestamp:  now,
		Segments:   segments,
		Classified: false,
	}, nil
}

// mergeAlternatives folds the first alternative of each entry into the
// channel's bucket map, applying the refinement-over-raw and
// higher-confidence preferences.
func mergeAlternatives(buckets map[int64]utterance, alts []alternative, refined bool) {
	for _, alt := range alts {
		start, end := altTimes(alt)
		candidate := utterance{
			text:       alt.Text,
			startMs:    start,
			endMs:      end,
			confidence: alt.Confidence,
			refined:    refined,
		}

		bucket := start / dedupBucketMs
		existing, ok := buckets[bucket]
		if !ok || prefer(candidate, existing) {
			buckets[bucket] = candidate
		}
	}
}

// prefer reports whether the candidate should replace the existing
// entry for the same bucket.
func prefer(candidate, existing utterance) bool {
	if candidate.refined != existing.refined {
		return candidate.refined
	}
	return candidate.confidence > existing.confidence
}

// altTimes returns the utterance boundaries, using word-level
// timestamps (first and last word) when present for tighter bounds.
func altTimes(alt alternative) (int64, int64) {
	start := int64(alt.StartTimeMs)
	end := int64(alt.EndTimeMs)
	if len(alt.Words) > 0 {
		start = int64(alt.Words[0].StartTimeMs)
		end = int64(alt.Words[len(alt.Words)-1].EndTimeMs)
	}
	return start, end
}
