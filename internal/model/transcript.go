package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

type TranscriptStatus string

const (
	TranscriptStatusPending    TranscriptStatus = "pending"
	TranscriptStatusProcessing TranscriptStatus = "processing"
	TranscriptStatusCompleted  TranscriptStatus = "completed"
	TranscriptStatusFailed     TranscriptStatus = "failed"
)

// Segment is one time-aligned unit of speech from the transcription
// provider. Segments are stored in chronological order.
type Segment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript holds the raw transcription output and, after the
// extraction stage, the structured clinical data derived from it.
// One transcript per consultation, created lazily on first pipeline
// entry.
type Transcript struct {
	Base
	ConsultationID  uuid.UUID        `db:"consultation_id" json:"consultation_id"`
	RawTranscript   *string          `db:"raw_transcript" json:"raw_transcript,omitempty"`
	SpeakerSegments json.RawMessage  `db:"speaker_segments" json:"speaker_segments,omitempty"`
	StructuredData  json.RawMessage  `db:"structured_data" json:"structured_data,omitempty"`
	Status          TranscriptStatus `db:"processing_status" json:"processing_status"`
	ErrorMessage    *string          `db:"error_message" json:"error_message,omitempty"`
}

// StructuredClinicalData is the fixed-schema record the extraction stage
// asks the generation model to return. All free-text fields are nullable
// in the provider output; absent values unmarshal to "".
type StructuredClinicalData struct {
	PresentingComplaint string   `json:"presenting_complaint"`
	History             string   `json:"history"`
	ExaminationFindings string   `json:"examination_findings"`
	Diagnosis           string   `json:"diagnosis"`
	TreatmentPlan       string   `json:"treatment_plan"`
	FollowUpPlan        string   `json:"follow_up_plan"`
	BillingTriggers     []string `json:"billing_triggers"`
	LettersRequired     []string `json:"letters_required"`
}

// StructuredDataKeys are the eight keys the extraction prompt demands.
var StructuredDataKeys = []string{
	"presenting_complaint",
	"history",
	"examination_findings",
	"diagnosis",
	"treatment_plan",
	"follow_up_plan",
	"billing_triggers",
	"letters_required",
}

// MissingStructuredKeys returns the required keys absent from raw. A
// non-empty result is a warning, not a failure: the pipeline proceeds.
func MissingStructuredKeys(raw map[string]interface{}) []string {
	var missing []string
	for _, key := range StructuredDataKeys {
		if _, ok := raw[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing
}
