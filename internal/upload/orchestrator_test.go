package upload

import (
	"context"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diskrelay/diskrelay/internal/disk"
)

type fakeDisk struct {
	folderStatus int
	folderErr    error
	submitErr    error
	statuses     []disk.OperationStatus
	statusIdx    int
	publishErr   error
	resource     disk.Resource
	infoErr      error

	createdFolders []string
	submittedPaths []string
	publishedPaths []string
	checks         int
}

func (f *fakeDisk) CreateFolder(_ context.Context, _ string, path string) (int, error) {
	f.createdFolders = append(f.createdFolders, path)
	if f.folderErr != nil {
		return 0, f.folderErr
	}
	if f.folderStatus == 0 {
		return http.StatusCreated, nil
	}
	return f.folderStatus, nil
}

func (f *fakeDisk) UploadFromURL(_ context.Context, _ string, path, _ string) (disk.Link, error) {
	f.submittedPaths = append(f.submittedPaths, path)
	if f.submitErr != nil {
		return disk.Link{}, f.submitErr
	}
	return disk.Link{Href: "https://api.example/operations/1"}, nil
}

func (f *fakeDisk) CheckOperation(_ context.Context, _ string, _ disk.Link) (disk.OperationStatus, error) {
	f.checks++
	if f.statusIdx >= len(f.statuses) {
		return disk.OperationInProgress, nil
	}
	status := f.statuses[f.statusIdx]
	f.statusIdx++
	return status, nil
}

func (f *fakeDisk) Publish(_ context.Context, _ string, path string) error {
	f.publishedPaths = append(f.publishedPaths, path)
	return f.publishErr
}

func (f *fakeDisk) ResourceInfo(_ context.Context, _ string, _ string, _ []string, _ string) (disk.Resource, error) {
	if f.infoErr != nil {
		return disk.Resource{}, f.infoErr
	}
	return f.resource, nil
}

func newTestOrchestrator(fd *fakeDisk, maxAttempts int) *Orchestrator {
	return NewOrchestrator(slog.Default(), fd, 0, maxAttempts)
}

func TestRunPollsToSuccess(t *testing.T) {
	fd := &fakeDisk{
		statuses: []disk.OperationStatus{disk.OperationInProgress, disk.OperationInProgress, disk.OperationSuccess},
		resource: disk.Resource{Name: "cat.jpg", Size: 1024, PublicURL: "https://yadi.sk/i/x"},
	}
	o := newTestOrchestrator(fd, 5)

	var seen []disk.OperationStatus
	result, err := o.Run(context.Background(), Job{
		AccessToken: "token",
		Folder:      "Telegram Bot",
		FileName:    "cat.jpg",
		SourceURL:   "https://files.example/cat.jpg",
		FetchInfo:   true,
	}, func(status disk.OperationStatus) { seen = append(seen, status) })
	require.NoError(t, err)

	// Every observed status is yielded, terminal one included.
	assert.Equal(t, []disk.OperationStatus{
		disk.OperationInProgress, disk.OperationInProgress, disk.OperationSuccess,
	}, seen)
	assert.Equal(t, 3, fd.checks)
	assert.Equal(t, "Telegram Bot/cat.jpg", result.Path)
	assert.Equal(t, "cat.jpg", result.Resource.Name)
	assert.Empty(t, fd.publishedPaths)
}

func TestRunExhaustsAttemptBudget(t *testing.T) {
	fd := &fakeDisk{
		statuses: []disk.OperationStatus{
			disk.OperationInProgress, disk.OperationInProgress, disk.OperationInProgress,
			disk.OperationInProgress, disk.OperationInProgress,
		},
	}
	o := newTestOrchestrator(fd, 5)

	var seen []disk.OperationStatus
	_, err := o.Run(context.Background(), Job{Folder: "f", FileName: "x"}, func(status disk.OperationStatus) {
		seen = append(seen, status)
	})

	assert.ErrorIs(t, err, ErrExceededStatusChecks)
	assert.Equal(t, 5, fd.checks)
	assert.Len(t, seen, 5)
	for _, status := range seen {
		assert.Equal(t, disk.OperationInProgress, status)
	}
}

func TestRunRemoteFailureIsTerminal(t *testing.T) {
	fd := &fakeDisk{
		statuses: []disk.OperationStatus{disk.OperationInProgress, disk.OperationFailed},
	}
	o := newTestOrchestrator(fd, 5)

	_, err := o.Run(context.Background(), Job{Folder: "f", FileName: "x"}, nil)
	assert.ErrorIs(t, err, ErrUploadFailed)
	assert.Equal(t, 2, fd.checks)
}

func TestRunCreateFolderFailureAbortsBeforeSubmit(t *testing.T) {
	fd := &fakeDisk{
		folderErr: &disk.Error{StatusCode: http.StatusLocked, Code: "DiskResourceLockedError", Message: "locked"},
	}
	o := newTestOrchestrator(fd, 5)

	_, err := o.Run(context.Background(), Job{Folder: "f", FileName: "x"}, nil)

	var folderErr *CreateFolderError
	require.ErrorAs(t, err, &folderErr)
	assert.Empty(t, fd.submittedPaths)
	assert.Zero(t, fd.checks)
}

func TestRunSubmitFailureAbortsBeforePolling(t *testing.T) {
	fd := &fakeDisk{
		submitErr: &disk.Error{StatusCode: http.StatusInsufficientStorage, Code: "DiskSpaceExhaustedError"},
	}
	o := newTestOrchestrator(fd, 5)

	_, err := o.Run(context.Background(), Job{Folder: "f", FileName: "x"}, nil)

	var submitErr *SubmitError
	require.ErrorAs(t, err, &submitErr)
	assert.Zero(t, fd.checks)
}

func TestRunPublishFailureIsSecondary(t *testing.T) {
	fd := &fakeDisk{
		statuses:   []disk.OperationStatus{disk.OperationSuccess},
		publishErr: &disk.Error{StatusCode: http.StatusForbidden, Code: "ForbiddenError"},
		resource:   disk.Resource{Name: "x"},
	}
	o := newTestOrchestrator(fd, 5)

	result, err := o.Run(context.Background(), Job{
		Folder: "f", FileName: "x", Publish: true, FetchInfo: true,
	}, nil)
	require.NoError(t, err)

	assert.Error(t, result.PublishErr)
	assert.NoError(t, result.InfoErr)
	assert.Equal(t, []string{"f/x"}, fd.publishedPaths)
	assert.Equal(t, "x", result.Resource.Name)
}

func TestRunContextCancellationStopsPolling(t *testing.T) {
	fd := &fakeDisk{}
	o := NewOrchestrator(slog.Default(), fd, 0, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Run(ctx, Job{Folder: "f", FileName: "x"}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildJobName(t *testing.T) {
	assert.Equal(t, "cat.jpg", BuildJobName("photo", "cat.jpg", 100))
	assert.Equal(t, "photo_100", BuildJobName("photo", "", 100))
}
