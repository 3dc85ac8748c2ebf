package disk

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateFolderConflictsAreSuccess(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "OAuth token", r.Header.Get("Authorization"))
		path := r.URL.Query().Get("path")
		paths = append(paths, path)
		switch path {
		case "A", "A/B":
			w.WriteHeader(http.StatusConflict)
		default:
			w.WriteHeader(http.StatusCreated)
		}
	}))
	defer srv.Close()

	client := NewClient(slog.Default(), srv.URL)
	status, err := client.CreateFolder(context.Background(), "token", "A/B/C")
	require.NoError(t, err)

	// Existing parents do not fail the job; the last segment's status
	// is the operation result.
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, []string{"A", "A/B", "A/B/C"}, paths)
}

func TestCreateFolderAbortsOnRealError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("path") == "A/B" {
			w.WriteHeader(http.StatusLocked)
			w.Write([]byte(`{"error":"DiskResourceLockedError","message":"Resource is locked"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := NewClient(slog.Default(), srv.URL)
	_, err := client.CreateFolder(context.Background(), "token", "A/B/C")
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "DiskResourceLockedError", apiErr.Code)
	assert.Equal(t, http.StatusLocked, apiErr.StatusCode)
	assert.Equal(t, 2, calls)
}

func TestUploadFromURLAndPoll(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/resources/upload", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Folder/file.jpg", r.URL.Query().Get("path"))
		require.Equal(t, "https://example.com/file.jpg", r.URL.Query().Get("url"))
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"href":"` + srv.URL + `/operations/abc","method":"GET"}`))
	})
	mux.HandleFunc("/operations/abc", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"in-progress"}`))
	})

	client := NewClient(slog.Default(), srv.URL)
	link, err := client.UploadFromURL(context.Background(), "token", "Folder/file.jpg", "https://example.com/file.jpg")
	require.NoError(t, err)
	require.NotEmpty(t, link.Href)

	status, err := client.CheckOperation(context.Background(), "token", link)
	require.NoError(t, err)
	assert.Equal(t, OperationInProgress, status)
}

func TestUploadFromURLError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInsufficientStorage)
		w.Write([]byte(`{"error":"DiskSpaceExhaustedError","message":"Not enough space"}`))
	}))
	defer srv.Close()

	client := NewClient(slog.Default(), srv.URL)
	_, err := client.UploadFromURL(context.Background(), "token", "f/x", "https://example.com/x")

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Not enough space", apiErr.Human())
}

func TestQuotaInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/", r.URL.Path)
		w.Write([]byte(`{"total_space":10737418240,"used_space":5368709120,"trash_size":1024}`))
	}))
	defer srv.Close()

	client := NewClient(slog.Default(), srv.URL)
	quota, err := client.QuotaInfo(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, int64(10737418240), quota.TotalSpace)
	assert.Equal(t, int64(5368709120), quota.UsedSpace)
	assert.Equal(t, int64(1024), quota.TrashSize)
}

func TestResourceInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/resources", r.URL.Path)
		require.Equal(t, "name,size,public_url", r.URL.Query().Get("fields"))
		w.Write([]byte(`{"name":"file.jpg","path":"disk:/Folder/file.jpg","size":2048,"public_url":"https://yadi.sk/i/x"}`))
	}))
	defer srv.Close()

	client := NewClient(slog.Default(), srv.URL)
	res, err := client.ResourceInfo(context.Background(), "token", "Folder/file.jpg", []string{"name", "size", "public_url"}, "")
	require.NoError(t, err)
	assert.Equal(t, "file.jpg", res.Name)
	assert.Equal(t, int64(2048), res.Size)
	assert.Equal(t, "https://yadi.sk/i/x", res.PublicURL)
}
