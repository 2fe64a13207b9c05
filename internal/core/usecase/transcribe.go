package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/clinscribe/clinical-scribe/internal/core/domain"
	"github.com/clinscribe/clinical-scribe/internal/core/ports"
)

var errJobStillRunning = errors.New("transcription job still running")

type TranscriptionRunnerConfig struct {
	Language     string
	Specialty    string
	JobType      string
	PollInterval time.Duration
	MaxWait      time.Duration
}

func (c TranscriptionRunnerConfig) normalize() TranscriptionRunnerConfig {
	out := c
	if out.Language == "" {
		out.Language = "en-US"
	}
	if out.Specialty == "" {
		out.Specialty = "PRIMARYCARE"
	}
	if out.JobType == "" {
		out.JobType = "DICTATION"
	}
	if out.PollInterval <= 0 {
		out.PollInterval = 2 * time.Second
	}
	if out.MaxWait <= 0 {
		out.MaxWait = 10 * time.Minute
	}
	return out
}

// TranscriptionRunner drives one asynchronous speech-to-text job to a
// terminal state: submit, poll on a fixed interval until the status
// leaves QUEUED/IN_PROGRESS, then read the transcript object from
// storage. The wait is bounded by MaxWait and by the caller's context.
type TranscriptionRunner struct {
	service ports.TranscriptionService
	storage ports.ObjectStorage
	cfg     TranscriptionRunnerConfig
	now     func() time.Time
}

func NewTranscriptionRunner(service ports.TranscriptionService, storage ports.ObjectStorage, cfg TranscriptionRunnerConfig) *TranscriptionRunner {
	return &TranscriptionRunner{
		service: service,
		storage: storage,
		cfg:     cfg.normalize(),
		now:     time.Now,
	}
}

// transcriptResult is the structured output written by the transcription
// service to the job's output key.
type transcriptResult struct {
	Results struct {
		Transcripts []struct {
			Transcript string `json:"transcript"`
		} `json:"transcripts"`
	} `json:"results"`
}

func (r *TranscriptionRunner) Transcribe(ctx context.Context, audioKey string) (string, error) {
	jobName := fmt.Sprintf("job-%d", r.now().UnixMilli())
	outputKey := fmt.Sprintf("transcripts/%s.json", jobName)

	jobID, err := r.service.Start(ctx, ports.TranscriptionJobSpec{
		AudioKey:  audioKey,
		OutputKey: outputKey,
		Language:  r.cfg.Language,
		Specialty: r.cfg.Specialty,
		Type:      r.cfg.JobType,
	})
	if err != nil {
		return "", domain.WrapError(domain.ErrTranscription, "start transcription job", err)
	}
	if jobID == "" {
		jobID = jobName
	}

	status, err := r.pollUntilTerminal(ctx, jobID)
	if err != nil {
		return "", domain.WrapError(domain.ErrTranscription, "poll transcription job", err)
	}
	if status != ports.TranscriptionCompleted {
		return "", domain.WrapError(
			domain.ErrTranscription,
			"transcription job",
			fmt.Errorf("terminal status %s", status),
		)
	}

	transcript, err := r.readTranscript(ctx, outputKey)
	if err != nil {
		return "", domain.WrapError(domain.ErrTranscription, "read transcription result", err)
	}
	return transcript, nil
}

func (r *TranscriptionRunner) pollUntilTerminal(ctx context.Context, jobID string) (ports.TranscriptionJobStatus, error) {
	pollCtx, cancel := context.WithTimeout(ctx, r.cfg.MaxWait)
	defer cancel()

	var status ports.TranscriptionJobStatus
	attempts := 0
	check := func() error {
		attempts++
		current, err := r.service.Status(pollCtx, jobID)
		if err != nil {
			return err
		}
		status = current
		if current == ports.TranscriptionQueued || current == ports.TranscriptionInProgress {
			return errJobStillRunning
		}
		return nil
	}

	wait := backoff.WithContext(backoff.NewConstantBackOff(r.cfg.PollInterval), pollCtx)
	if err := backoff.Retry(check, wait); err != nil {
		if errors.Is(err, errJobStillRunning) {
			slog.Warn("transcription_poll_exhausted", "job_id", jobID, "attempts", attempts, "max_wait", r.cfg.MaxWait.String())
			return status, fmt.Errorf("no terminal status within %s: %w", r.cfg.MaxWait, err)
		}
		return status, err
	}
	return status, nil
}

func (r *TranscriptionRunner) readTranscript(ctx context.Context, outputKey string) (string, error) {
	body, err := r.storage.Open(ctx, outputKey)
	if err != nil {
		return "", fmt.Errorf("open result object: %w", err)
	}
	defer body.Close()

	var result transcriptResult
	if err := json.NewDecoder(body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode result object: %w", err)
	}
	if len(result.Results.Transcripts) == 0 || result.Results.Transcripts[0].Transcript == "" {
		return "", errors.New("empty transcript generated")
	}
	return result.Results.Transcripts[0].Transcript, nil
}
