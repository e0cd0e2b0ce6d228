package entities

// WordTimestamp represents a single word with time and confidence info
type WordTimestamp struct {
	Word       string  `json:"word"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

// TranscriptSegment is a contiguous speech segment with word-level detail.
// Segments are ordered by start time and never reordered after creation.
// The speaker token is empty until the merge phase assigns one.
type TranscriptSegment struct {
	Start        float64         `json:"start"`
	End          float64         `json:"end"`
	Text         string          `json:"text"`
	Words        []WordTimestamp `json:"words,omitempty"`
	SpeakerToken string          `json:"speaker_token,omitempty"`
	SpeakerLabel string          `json:"speaker_label,omitempty"`
	Confidence   float64         `json:"confidence"`
	CrossTalk    bool            `json:"cross_talk,omitempty"`
}

// Duration returns the segment length in seconds
func (s TranscriptSegment) Duration() float64 {
	return s.End - s.Start
}

// SpeakerInterval is one diarization-engine interval: an opaque speaker
// token with the time span it covers
type SpeakerInterval struct {
	Token string  `json:"token"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// UnknownSpeakerToken is the synthetic token used when diarization is
// unavailable and all speech is attributed to a single speaker
const UnknownSpeakerToken = "UNKNOWN"

// UnidentifiedLabelPrefix prefixes tokens that could not be resolved
// against the known-participant roster
const UnidentifiedLabelPrefix = "unidentified-"

// SpeakerMap maps diarization tokens to human-readable labels.
// Append-only during merge, frozen afterward.
type SpeakerMap map[string]string

// Label returns the resolved label for a token, falling back to the
// unidentified form for tokens the merge never saw
func (m SpeakerMap) Label(token string) string {
	if label, ok := m[token]; ok {
		return label
	}
	return UnidentifiedLabelPrefix + token
}

// DistinctLabels returns the number of distinct resolved labels
func (m SpeakerMap) DistinctLabels() int {
	seen := make(map[string]struct{}, len(m))
	for _, label := range m {
		seen[label] = struct{}{}
	}
	return len(seen)
}
