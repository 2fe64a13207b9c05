package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/clinscribe/clinical-scribe/internal/core/domain"
	"github.com/clinscribe/clinical-scribe/internal/core/ports"
)

type scriptedTranscription struct {
	jobID     string
	startErr  error
	statuses  []ports.TranscriptionJobStatus
	statusErr error

	spec  ports.TranscriptionJobSpec
	calls int
}

func (s *scriptedTranscription) Start(_ context.Context, spec ports.TranscriptionJobSpec) (string, error) {
	s.spec = spec
	return s.jobID, s.startErr
}

func (s *scriptedTranscription) Status(context.Context, string) (ports.TranscriptionJobStatus, error) {
	if s.statusErr != nil {
		return "", s.statusErr
	}
	i := s.calls
	s.calls++
	if i >= len(s.statuses) {
		i = len(s.statuses) - 1
	}
	return s.statuses[i], nil
}

func newRunnerFixture(service *scriptedTranscription, storage *fakeStorage, maxWait time.Duration) *TranscriptionRunner {
	runner := NewTranscriptionRunner(service, storage, TranscriptionRunnerConfig{
		PollInterval: time.Millisecond,
		MaxWait:      maxWait,
	})
	runner.now = func() time.Time { return time.UnixMilli(1700000000000).UTC() }
	return runner
}

func TestTranscribeWaitsThroughQueuedAndInProgress(t *testing.T) {
	service := &scriptedTranscription{
		jobID: "vx-42",
		statuses: []ports.TranscriptionJobStatus{
			ports.TranscriptionQueued,
			ports.TranscriptionInProgress,
			ports.TranscriptionCompleted,
		},
	}
	storage := newFakeStorage()
	storage.objects["transcripts/job-1700000000000.json"] = `{"results":{"transcripts":[{"transcript":"patient presents with cough"}]}}`

	runner := newRunnerFixture(service, storage, time.Second)

	transcript, err := runner.Transcribe(context.Background(), "recordings/1-a.webm")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if transcript != "patient presents with cough" {
		t.Fatalf("transcript = %q", transcript)
	}
	if service.calls != 3 {
		t.Fatalf("expected 3 status polls, got %d", service.calls)
	}

	if service.spec.AudioKey != "recordings/1-a.webm" {
		t.Fatalf("spec audio key = %q", service.spec.AudioKey)
	}
	if service.spec.OutputKey != "transcripts/job-1700000000000.json" {
		t.Fatalf("spec output key = %q", service.spec.OutputKey)
	}
	if service.spec.Language != "en-US" || service.spec.Specialty != "PRIMARYCARE" || service.spec.Type != "DICTATION" {
		t.Fatalf("spec defaults = %+v", service.spec)
	}
}

func TestTranscribeFailedJobIsTerminal(t *testing.T) {
	service := &scriptedTranscription{
		statuses: []ports.TranscriptionJobStatus{ports.TranscriptionFailed},
	}
	runner := newRunnerFixture(service, newFakeStorage(), time.Second)

	_, err := runner.Transcribe(context.Background(), "recordings/1-a.webm")
	if !domain.IsKind(err, domain.ErrTranscription) {
		t.Fatalf("expected transcription error, got %v", err)
	}
	if service.calls != 1 {
		t.Fatalf("FAILED should stop polling immediately, got %d polls", service.calls)
	}
}

func TestTranscribeStartFailure(t *testing.T) {
	service := &scriptedTranscription{startErr: errors.New("bad audio uri")}
	runner := newRunnerFixture(service, newFakeStorage(), time.Second)

	_, err := runner.Transcribe(context.Background(), "recordings/1-a.webm")
	if !domain.IsKind(err, domain.ErrTranscription) {
		t.Fatalf("expected transcription error, got %v", err)
	}
	if service.calls != 0 {
		t.Fatal("polled after failed start")
	}
}

func TestTranscribeGivesUpAfterMaxWait(t *testing.T) {
	service := &scriptedTranscription{
		statuses: []ports.TranscriptionJobStatus{ports.TranscriptionInProgress},
	}
	runner := newRunnerFixture(service, newFakeStorage(), 30*time.Millisecond)

	_, err := runner.Transcribe(context.Background(), "recordings/1-a.webm")
	if !domain.IsKind(err, domain.ErrTranscription) {
		t.Fatalf("expected transcription error, got %v", err)
	}
	if service.calls < 2 {
		t.Fatalf("expected repeated polls before giving up, got %d", service.calls)
	}
}

func TestTranscribeStopsOnCallerCancel(t *testing.T) {
	service := &scriptedTranscription{
		statuses: []ports.TranscriptionJobStatus{ports.TranscriptionInProgress},
	}
	runner := newRunnerFixture(service, newFakeStorage(), time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := runner.Transcribe(ctx, "recordings/1-a.webm")
	if !domain.IsKind(err, domain.ErrTranscription) {
		t.Fatalf("expected transcription error, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("cancelled context did not stop the poll loop promptly")
	}
}

func TestTranscribeRejectsEmptyResult(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"no transcripts", `{"results":{"transcripts":[]}}`},
		{"empty transcript", `{"results":{"transcripts":[{"transcript":""}]}}`},
		{"malformed json", `{"results":`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			service := &scriptedTranscription{
				statuses: []ports.TranscriptionJobStatus{ports.TranscriptionCompleted},
			}
			storage := newFakeStorage()
			storage.objects["transcripts/job-1700000000000.json"] = tc.body
			runner := newRunnerFixture(service, storage, time.Second)

			_, err := runner.Transcribe(context.Background(), "recordings/1-a.webm")
			if !domain.IsKind(err, domain.ErrTranscription) {
				t.Fatalf("expected transcription error, got %v", err)
			}
		})
	}
}

func TestTranscribeMissingResultObject(t *testing.T) {
	service := &scriptedTranscription{
		statuses: []ports.TranscriptionJobStatus{ports.TranscriptionCompleted},
	}
	runner := newRunnerFixture(service, newFakeStorage(), time.Second)

	_, err := runner.Transcribe(context.Background(), "recordings/1-a.webm")
	if !domain.IsKind(err, domain.ErrTranscription) {
		t.Fatalf("expected transcription error, got %v", err)
	}
}
