// Package upload drives one attachment upload end to end: folder
// creation, async submit, status polling, and the optional publish and
// metadata steps.
package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/diskrelay/diskrelay/internal/disk"
)

// ErrExceededStatusChecks means the attempt budget ran out before the
// remote side reported a terminal status. The operation outcome is
// permanently unknown to this job; the user must check manually.
var ErrExceededStatusChecks = errors.New("upload: exceeded number of status checks")

// ErrUploadFailed is the remote side's terminal failure status.
var ErrUploadFailed = errors.New("upload: remote operation failed")

// CreateFolderError and SubmitError keep the failing phase visible to
// handlers that word user messages differently per phase.
type CreateFolderError struct{ Err error }

func (e *CreateFolderError) Error() string { return "upload: create folder: " + e.Err.Error() }
func (e *CreateFolderError) Unwrap() error { return e.Err }

type SubmitError struct{ Err error }

func (e *SubmitError) Error() string { return "upload: submit: " + e.Err.Error() }
func (e *SubmitError) Unwrap() error { return e.Err }

// DiskClient is the remote storage surface the orchestrator consumes.
type DiskClient interface {
	CreateFolder(ctx context.Context, accessToken, path string) (int, error)
	UploadFromURL(ctx context.Context, accessToken, path, sourceURL string) (disk.Link, error)
	CheckOperation(ctx context.Context, accessToken string, link disk.Link) (disk.OperationStatus, error)
	Publish(ctx context.Context, accessToken, path string) error
	ResourceInfo(ctx context.Context, accessToken, path string, fields []string, previewSize string) (disk.Resource, error)
}

// Job is the closure of one orchestration run. It has no identity
// beyond these fields and is never persisted.
type Job struct {
	AccessToken string
	Folder      string
	FileName    string
	SourceURL   string
	Publish     bool
	FetchInfo   bool
}

// Result of a successful run. PublishErr and InfoErr are secondary,
// recoverable warnings that do not unwind the upload.
type Result struct {
	Path       string
	Resource   disk.Resource
	PublishErr error
	InfoErr    error
}

// ProgressFunc receives every observed poll status, terminal ones
// included.
type ProgressFunc func(status disk.OperationStatus)

type Orchestrator struct {
	log         *slog.Logger
	disk        DiskClient
	interval    time.Duration
	maxAttempts int
}

func NewOrchestrator(log *slog.Logger, diskClient DiskClient, interval time.Duration, maxAttempts int) *Orchestrator {
	return &Orchestrator{
		log:         log.With(slog.String("service", "upload")),
		disk:        diskClient,
		interval:    interval,
		maxAttempts: maxAttempts,
	}
}

// Run executes the job to a terminal outcome. It blocks for up to
// maxAttempts x interval and is not retried on any failure.
func (o *Orchestrator) Run(ctx context.Context, job Job, progress ProgressFunc) (Result, error) {
	if _, err := o.disk.CreateFolder(ctx, job.AccessToken, job.Folder); err != nil {
		return Result{}, &CreateFolderError{Err: err}
	}

	path := job.Folder + "/" + job.FileName
	link, err := o.disk.UploadFromURL(ctx, job.AccessToken, path, job.SourceURL)
	if err != nil {
		return Result{}, &SubmitError{Err: err}
	}

	if err := o.poll(ctx, job.AccessToken, link, progress); err != nil {
		return Result{}, err
	}

	result := Result{Path: path}
	if job.Publish {
		if err := o.disk.Publish(ctx, job.AccessToken, path); err != nil {
			o.log.Warn("publish after upload failed",
				slog.String("path", path), slog.Any("error", err))
			result.PublishErr = err
		}
	}
	if job.FetchInfo {
		res, err := o.disk.ResourceInfo(ctx, job.AccessToken, path,
			[]string{"name", "size", "mime_type", "public_url"}, "")
		if err != nil {
			o.log.Warn("resource info after upload failed",
				slog.String("path", path), slog.Any("error", err))
			result.InfoErr = err
		} else {
			result.Resource = res
		}
	}
	return result, nil
}

func (o *Orchestrator) poll(ctx context.Context, accessToken string, link disk.Link, progress ProgressFunc) error {
	for attempt := 0; attempt < o.maxAttempts; attempt++ {
		if err := sleep(ctx, o.interval); err != nil {
			return err
		}
		status, err := o.disk.CheckOperation(ctx, accessToken, link)
		if err != nil {
			return err
		}
		if progress != nil {
			progress(status)
		}
		switch status {
		case disk.OperationSuccess:
			return nil
		case disk.OperationFailed:
			return ErrUploadFailed
		}
	}
	return ErrExceededStatusChecks
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// BuildJobName derives a file name for attachments that arrive without
// one, keyed by kind and the message date.
func BuildJobName(kind string, fileName string, date int64) string {
	if fileName != "" {
		return fileName
	}
	return fmt.Sprintf("%s_%d", kind, date)
}
