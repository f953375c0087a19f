package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/Daniromero1410/Sistema-Positiva/model"
	"github.com/google/uuid"
)

const consolidadorPath = "/api/consolidador"

// UploadMaster sends the master spreadsheet as multipart field "file".
func (c *Client) UploadMaster(ctx context.Context, file model.MasterFile) (*model.MasterUpload, error) {
	const op = "upload master"

	if file.Content == nil {
		return nil, &model.ValidationError{Field: "file", Message: "master file content is required"}
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", file.Filename)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create form file: %w", op, err)
	}
	if _, err := io.Copy(part, file.Content); err != nil {
		return nil, fmt.Errorf("%s: failed to read master file: %w", op, err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("%s: failed to close multipart body: %w", op, err)
	}

	body, err := c.do(ctx, request{
		op:          op,
		method:      http.MethodPost,
		path:        consolidadorPath + "/upload-maestra",
		body:        &buf,
		contentType: writer.FormDataContentType(),
	})
	if err != nil {
		return nil, err
	}

	var result model.MasterUpload
	if err := decode(op, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// StartRun validates cfg and asks the backend to start a run. An invalid cfg
// never reaches the network.
func (c *Client) StartRun(ctx context.Context, cfg model.ConsolidationConfig) (*model.RunHandle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var handle model.RunHandle
	if err := c.postJSON(ctx, "start run", consolidadorPath+"/iniciar", cfg, &handle); err != nil {
		return nil, err
	}
	handle.CreatedAt = time.Now()
	return &handle, nil
}

// PollProgress reads the current progress of a run. It has no side effects.
func (c *Client) PollProgress(ctx context.Context, runID int) (*model.RunProgress, error) {
	var progress model.RunProgress
	if err := c.getJSON(ctx, "poll progress", fmt.Sprintf("%s/progreso/%d", consolidadorPath, runID), nil, &progress); err != nil {
		return nil, err
	}
	return &progress, nil
}

// CancelRun requests cancellation. The transition is asynchronous: keep polling
// to observe CANCELADO. The backend refuses with 400 once the run is no longer
// in progress; that is reported as success since there is nothing left to cancel.
func (c *Client) CancelRun(ctx context.Context, runID int) error {
	err := c.postJSON(ctx, "cancel run", fmt.Sprintf("%s/cancelar/%d", consolidadorPath, runID), nil, nil)
	if StatusCode(err) == http.StatusBadRequest {
		return nil
	}
	return err
}

// Results lists the summary and output files of a run.
func (c *Client) Results(ctx context.Context, runID int) (*model.RunResults, error) {
	var results model.RunResults
	if err := c.getJSON(ctx, "run results", fmt.Sprintf("%s/resultados/%d", consolidadorPath, runID), nil, &results); err != nil {
		return nil, err
	}
	return &results, nil
}

// SubmitOptions tunes a tagged submission.
type SubmitOptions struct {
	// IdempotencyKey tags both requests; a fresh UUID is used when empty.
	IdempotencyKey string
	Retry          RetryPolicy
}

// Submission is the outcome of a tagged upload + start.
type Submission struct {
	IdempotencyKey string
	Upload         *model.MasterUpload
	Handle         *model.RunHandle
}

// Submit uploads the master file and starts a run as one tagged request pair.
// Both calls carry the same idempotency key and are retried under opts.Retry, so
// a backend that deduplicates on the key never creates two runs for one submit.
// When the upload fails the run is not started and the upload error is returned as is.
// When only the start fails the partial Submission is returned with the error so the
// caller can retry with the same key.
func (c *Client) Submit(ctx context.Context, file model.MasterFile, cfg model.ConsolidationConfig, opts SubmitOptions) (*Submission, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := model.ValidateMasterFilename(file.Filename); err != nil {
		return nil, err
	}
	if file.Content == nil {
		return nil, &model.ValidationError{Field: "file", Message: "master file content is required"}
	}

	content, err := io.ReadAll(file.Content)
	if err != nil {
		return nil, fmt.Errorf("submit: failed to read master file: %w", err)
	}

	key := opts.IdempotencyKey
	if key == "" {
		key = uuid.New().String()
	}
	ctx = WithIdempotencyKey(ctx, key)
	sub := &Submission{IdempotencyKey: key}

	err = Retry(ctx, opts.Retry, func(ctx context.Context) error {
		upload, err := c.UploadMaster(ctx, model.MasterFile{
			Filename: file.Filename,
			Content:  bytes.NewReader(content),
			Size:     int64(len(content)),
		})
		if err != nil {
			return err
		}
		sub.Upload = upload
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = Retry(ctx, opts.Retry, func(ctx context.Context) error {
		handle, err := c.StartRun(ctx, cfg)
		if err != nil {
			return err
		}
		sub.Handle = handle
		return nil
	})
	if err != nil {
		return sub, err
	}

	return sub, nil
}
