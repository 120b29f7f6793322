package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/consult-api/internal/ai"
	"github.com/jwalitptl/consult-api/internal/model"
	"github.com/jwalitptl/consult-api/internal/service/audit"
	apperrors "github.com/jwalitptl/consult-api/pkg/errors"
	"github.com/jwalitptl/consult-api/pkg/logger"
	"github.com/jwalitptl/consult-api/pkg/messaging"
	"github.com/jwalitptl/consult-api/pkg/metrics"
)

// In-memory repository fakes shared by the pipeline tests.

type fakeConsultations struct {
	mu    sync.Mutex
	items map[uuid.UUID]*model.Consultation
	// statusHistory records effective transitions, same-state rewrites
	// excluded.
	statusHistory []model.ProcessingStatus
}

func newFakeConsultations() *fakeConsultations {
	return &fakeConsultations{items: make(map[uuid.UUID]*model.Consultation)}
}

func (f *fakeConsultations) Create(ctx context.Context, c *model.Consultation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[c.ID] = c
	return nil
}

func (f *fakeConsultations) Get(ctx context.Context, id uuid.UUID) (*model.Consultation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.items[id]
	if !ok {
		return nil, apperrors.NewNotFound("consultation", nil)
	}
	copied := *c
	return &copied, nil
}

func (f *fakeConsultations) Update(ctx context.Context, c *model.Consultation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[c.ID]; !ok {
		return apperrors.NewNotFound("consultation", nil)
	}
	f.items[c.ID] = c
	return nil
}

func (f *fakeConsultations) List(ctx context.Context, filters *model.ConsultationFilters) ([]*model.Consultation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Consultation
	for _, c := range f.items {
		copied := *c
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeConsultations) UpdateProcessingStatus(ctx context.Context, id uuid.UUID, status model.ProcessingStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.items[id]
	if !ok {
		return apperrors.NewNotFound("consultation", nil)
	}
	if !c.ProcessingStatus.CanAdvanceTo(status) {
		return apperrors.NewConflict(fmt.Sprintf("illegal processing status transition %s -> %s", c.ProcessingStatus, status))
	}
	if c.ProcessingStatus != status {
		f.statusHistory = append(f.statusHistory, status)
	}
	c.ProcessingStatus = status
	return nil
}

func (f *fakeConsultations) status(id uuid.UUID) model.ProcessingStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[id].ProcessingStatus
}

func (f *fakeConsultations) history() []model.ProcessingStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.ProcessingStatus(nil), f.statusHistory...)
}

type fakeTranscripts struct {
	mu    sync.Mutex
	items map[uuid.UUID]*model.Transcript // keyed by consultation id
}

func newFakeTranscripts() *fakeTranscripts {
	return &fakeTranscripts{items: make(map[uuid.UUID]*model.Transcript)}
}

func (f *fakeTranscripts) Create(ctx context.Context, tr *model.Transcript) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[tr.ConsultationID] = tr
	return nil
}

func (f *fakeTranscripts) GetByConsultation(ctx context.Context, consultationID uuid.UUID) (*model.Transcript, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tr, ok := f.items[consultationID]
	if !ok {
		return nil, apperrors.NewNotFound("transcript", nil)
	}
	copied := *tr
	return &copied, nil
}

func (f *fakeTranscripts) Update(ctx context.Context, tr *model.Transcript) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[tr.ConsultationID]; !ok {
		return apperrors.NewNotFound("transcript", nil)
	}
	f.items[tr.ConsultationID] = tr
	return nil
}

func (f *fakeTranscripts) get(consultationID uuid.UUID) *model.Transcript {
	f.mu.Lock()
	defer f.mu.Unlock()
	tr := f.items[consultationID]
	if tr == nil {
		return nil
	}
	copied := *tr
	return &copied
}

type fakeDocuments struct {
	mu    sync.Mutex
	items []*model.ClinicalDocument
}

func (f *fakeDocuments) Create(ctx context.Context, doc *model.ClinicalDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *doc
	f.items = append(f.items, &copied)
	return nil
}

func (f *fakeDocuments) Get(ctx context.Context, id uuid.UUID) (*model.ClinicalDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, doc := range f.items {
		if doc.ID == id {
			copied := *doc
			return &copied, nil
		}
	}
	return nil, apperrors.NewNotFound("clinical document", nil)
}

func (f *fakeDocuments) Update(ctx context.Context, doc *model.ClinicalDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.items {
		if existing.ID == doc.ID {
			copied := *doc
			f.items[i] = &copied
			return nil
		}
	}
	return apperrors.NewNotFound("clinical document", nil)
}

func (f *fakeDocuments) ListByConsultation(ctx context.Context, consultationID uuid.UUID) ([]*model.ClinicalDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.ClinicalDocument
	for _, doc := range f.items {
		if doc.ConsultationID == consultationID {
			copied := *doc
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeDocuments) CountUnapproved(ctx context.Context, consultationID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, doc := range f.items {
		if doc.ConsultationID == consultationID && doc.Status == model.DocumentStatusDraft {
			count++
		}
	}
	return count, nil
}

func (f *fakeDocuments) byType(consultationID uuid.UUID, docType model.DocumentType) []*model.ClinicalDocument {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.ClinicalDocument
	for _, doc := range f.items {
		if doc.ConsultationID == consultationID && doc.DocumentType == docType {
			out = append(out, doc)
		}
	}
	return out
}

type fakePatients struct {
	mu       sync.Mutex
	items    map[uuid.UUID]*model.Patient
	getCalls int
}

func newFakePatients() *fakePatients {
	return &fakePatients{items: make(map[uuid.UUID]*model.Patient)}
}

func (f *fakePatients) Create(ctx context.Context, p *model.Patient) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[p.ID] = p
	return nil
}

func (f *fakePatients) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	p, ok := f.items[id]
	if !ok {
		return nil, apperrors.NewNotFound("patient", nil)
	}
	copied := *p
	return &copied, nil
}

func (f *fakePatients) Update(ctx context.Context, p *model.Patient) error { return nil }

func (f *fakePatients) Delete(ctx context.Context, id uuid.UUID) error { return nil }

func (f *fakePatients) List(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, error) {
	return nil, nil
}

type fakeAuditRepo struct {
	mu    sync.Mutex
	items []*model.AuditLog
}

func (f *fakeAuditRepo) Create(ctx context.Context, log *model.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, log)
	return nil
}

func (f *fakeAuditRepo) List(ctx context.Context, entityType string, entityID uuid.UUID) ([]*model.AuditLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*model.AuditLog(nil), f.items...), nil
}

func (f *fakeAuditRepo) DeleteBefore(ctx context.Context, cutoff time.Time) error { return nil }

func (f *fakeAuditRepo) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, log := range f.items {
		out = append(out, log.Action)
	}
	return out
}

// fakeStore is an in-memory AudioStore.
type fakeStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{files: make(map[string][]byte)}
}

func (f *fakeStore) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	path := "/uploads/recordings/" + filename
	f.mu.Lock()
	f.files[path] = data
	f.mu.Unlock()
	return path, nil
}

func (f *fakeStore) Read(ctx context.Context, storedPath string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[storedPath]
	if !ok {
		return nil, fmt.Errorf("no such recording %s", storedPath)
	}
	return data, nil
}

// fakeAI scripts both provider calls. generateFn receives the prompt so
// tests can answer extraction and generation prompts differently.
type fakeAI struct {
	mu              sync.Mutex
	transcription   *ai.Transcription
	transcribeErr   error
	transcribeCalls int
	generateFn      func(prompt string) (string, error)
	generateCalls   []string
}

func (f *fakeAI) Transcribe(ctx context.Context, audio []byte, filename string) (*ai.Transcription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcribeCalls++
	if f.transcribeErr != nil {
		return nil, f.transcribeErr
	}
	return f.transcription, nil
}

func (f *fakeAI) Generate(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.generateCalls = append(f.generateCalls, prompt)
	fn := f.generateFn
	f.mu.Unlock()
	if fn == nil {
		return "generated content", nil
	}
	return fn(prompt)
}

func (f *fakeAI) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.generateCalls)
}

// fixture wires fakes into ready-to-run tasks around one seeded
// consultation.
type fixture struct {
	consultations *fakeConsultations
	transcripts   *fakeTranscripts
	documents     *fakeDocuments
	patients      *fakePatients
	auditRepo     *fakeAuditRepo
	audit         *audit.Service
	store         *fakeStore
	ai            *fakeAI
	broker        *messaging.MemoryBroker
	orchestrator  *Orchestrator
	logger        *logger.Logger
	metrics       *metrics.Metrics
	actorID       uuid.UUID

	consultationID uuid.UUID
	patientID      uuid.UUID
}

const testChannel = "pipeline.tasks"

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	broker := messaging.NewMemoryBroker()
	t.Cleanup(func() { broker.Close() })

	fx := &fixture{
		consultations: newFakeConsultations(),
		transcripts:   newFakeTranscripts(),
		documents:     &fakeDocuments{},
		patients:      newFakePatients(),
		auditRepo:     &fakeAuditRepo{},
		store:         newFakeStore(),
		ai:            &fakeAI{},
		broker:        broker,
		logger:        log,
		metrics:       metrics.NewUnregistered("test"),
		actorID:       uuid.New(),
	}
	fx.audit = audit.NewService(fx.auditRepo, log)
	fx.orchestrator = NewOrchestrator(broker, testChannel, log)

	dob := time.Date(1985, 3, 14, 0, 0, 0, 0, time.UTC)
	fx.patientID = uuid.New()
	require.NoError(t, fx.patients.Create(context.Background(), &model.Patient{
		Base:        model.Base{ID: fx.patientID},
		ClinicianID: uuid.New(),
		Name:        "Jane Smith",
		DateOfBirth: &dob,
	}))

	recording, err := fx.store.Save(context.Background(), "consultation.mp3", bytes.NewReader([]byte("audio-bytes")))
	require.NoError(t, err)

	fx.consultationID = uuid.New()
	require.NoError(t, fx.consultations.Create(context.Background(), &model.Consultation{
		Base:             model.Base{ID: fx.consultationID},
		PatientID:        fx.patientID,
		ClinicianID:      uuid.New(),
		ConsultationDate: time.Date(2026, 2, 18, 0, 0, 0, 0, time.UTC),
		ConsultationTime: "10:30",
		ConsultationType: "Initial consultation",
		Status:           model.ConsultationStatusCompleted,
		ProcessingStatus: model.ProcessingPending,
		RecordingURL:     &recording,
	}))

	return fx
}

func (fx *fixture) transcriptionTask() *TranscriptionTask {
	return NewTranscriptionTask(fx.consultations, fx.transcripts, fx.store, fx.ai,
		fx.orchestrator, fx.audit, fx.actorID, fx.logger)
}

func (fx *fixture) extractionTask() *ExtractionTask {
	return NewExtractionTask(fx.consultations, fx.transcripts, fx.patients, fx.ai,
		fx.orchestrator, fx.audit, fx.actorID, fx.logger)
}

func (fx *fixture) generationTask() *GenerationTask {
	return NewGenerationTask(fx.consultations, fx.transcripts, fx.patients, fx.documents,
		fx.ai, fx.audit, fx.metrics, fx.actorID, fx.logger)
}

// setProcessingStatus walks the consultation forward through the legal
// chain to the wanted stage.
func (fx *fixture) setProcessingStatus(t *testing.T, status model.ProcessingStatus) {
	t.Helper()
	chain := []model.ProcessingStatus{
		model.ProcessingTranscribing,
		model.ProcessingExtracting,
		model.ProcessingGeneratingDocuments,
		model.ProcessingReadyForReview,
		model.ProcessingApproved,
	}
	for _, next := range chain {
		require.NoError(t, fx.consultations.UpdateProcessingStatus(context.Background(), fx.consultationID, next))
		if next == status {
			return
		}
	}
	t.Fatalf("unreachable processing status %s", status)
}

// seedTranscript stores a completed raw transcript, as the
// transcription stage would leave it.
func (fx *fixture) seedTranscript(t *testing.T, text string) {
	t.Helper()
	tr, err := getOrCreateTranscript(context.Background(), fx.transcripts, fx.consultationID)
	require.NoError(t, err)
	tr.RawTranscript = &text
	tr.Status = model.TranscriptStatusCompleted
	require.NoError(t, fx.transcripts.Update(context.Background(), tr))
}

// seedStructuredData stores extracted data, as the extraction stage
// would leave it.
func (fx *fixture) seedStructuredData(t *testing.T, data string) {
	t.Helper()
	tr, err := getOrCreateTranscript(context.Background(), fx.transcripts, fx.consultationID)
	require.NoError(t, err)
	tr.StructuredData = []byte(data)
	tr.Status = model.TranscriptStatusCompleted
	require.NoError(t, fx.transcripts.Update(context.Background(), tr))
}

// drainTask reads the next enqueued task message, failing after the
// timeout.
func drainTask(t *testing.T, msgs <-chan []byte) string {
	t.Helper()
	select {
	case payload := <-msgs:
		var msg struct {
			Task string `json:"task"`
		}
		require.NoError(t, json.Unmarshal(payload, &msg))
		return msg.Task
	case <-time.After(2 * time.Second):
		t.Fatal("no task message published")
		return ""
	}
}
