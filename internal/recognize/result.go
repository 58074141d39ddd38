package recognize

import (
	"encoding/json"
	"fmt"
	"time"
)

// Line is one transcribed segment. Speaker is nil when no diarization ran.
type Line struct {
	Speaker *int    `json:"speaker"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
}

// SpeakerLabel renders the speaker as speaker_NN, or "" when unattributed.
func (l Line) SpeakerLabel() string {
	if l.Speaker == nil {
		return ""
	}
	return fmt.Sprintf("speaker_%02d", *l.Speaker)
}

// Result is the chronologically ordered transcript of one request.
type Result struct {
	RequestID            string
	Lines                []Line
	DiarizationLatency   time.Duration
	TranscriptionLatency time.Duration
}

type resultJSON struct {
	RequestID         string  `json:"request_id,omitempty"`
	Sentences         []Line  `json:"sentences"`
	DiarizationTime   float64 `json:"diarization_time"`
	TranscriptionTime float64 `json:"transcription_time"`
}

// MarshalJSON renders latencies as seconds.
func (r Result) MarshalJSON() ([]byte, error) {
	lines := r.Lines
	if lines == nil {
		lines = []Line{}
	}
	return json.Marshal(resultJSON{
		RequestID:         r.RequestID,
		Sentences:         lines,
		DiarizationTime:   r.DiarizationLatency.Seconds(),
		TranscriptionTime: r.TranscriptionLatency.Seconds(),
	})
}

// UnmarshalJSON accepts the MarshalJSON shape.
func (r *Result) UnmarshalJSON(data []byte) error {
	var raw resultJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Result{
		RequestID:            raw.RequestID,
		Lines:                raw.Sentences,
		DiarizationLatency:   time.Duration(raw.DiarizationTime * float64(time.Second)),
		TranscriptionLatency: time.Duration(raw.TranscriptionTime * float64(time.Second)),
	}
	return nil
}
