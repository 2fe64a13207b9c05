package voxmed

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/clinscribe/clinical-scribe/internal/core/ports"
)

// Client talks to the voxmed medical speech-to-text API. A job is started
// against an audio key in shared object storage; the service writes the
// structured transcript to the requested output key when it finishes.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type startJobRequest struct {
	AudioKey     string `json:"audio_key"`
	OutputKey    string `json:"output_key"`
	LanguageCode string `json:"language_code"`
	Specialty    string `json:"specialty"`
	Type         string `json:"type"`
}

type jobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

func (c *Client) Start(ctx context.Context, spec ports.TranscriptionJobSpec) (string, error) {
	req := startJobRequest{
		AudioKey:     spec.AudioKey,
		OutputKey:    spec.OutputKey,
		LanguageCode: spec.Language,
		Specialty:    spec.Specialty,
		Type:         spec.Type,
	}

	var resp jobResponse
	if err := c.postJSON(ctx, "/v1/jobs", req, &resp, "start job"); err != nil {
		return "", err
	}
	if resp.JobID == "" {
		return "", fmt.Errorf("voxmed start job: response carries no job id")
	}
	return resp.JobID, nil
}

func (c *Client) Status(ctx context.Context, jobID string) (ports.TranscriptionJobStatus, error) {
	var resp jobResponse
	if err := c.getJSON(ctx, "/v1/jobs/"+jobID, &resp, "job status"); err != nil {
		return "", err
	}

	switch status := ports.TranscriptionJobStatus(resp.Status); status {
	case ports.TranscriptionQueued, ports.TranscriptionInProgress, ports.TranscriptionCompleted, ports.TranscriptionFailed:
		return status, nil
	default:
		// The runner treats any unknown status as a terminal failure
		// rather than polling forever on it.
		return ports.TranscriptionFailed, nil
	}
}
