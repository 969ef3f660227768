package attachments

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"design-desk/request-portal/request-portal-backend/pkg/storage"
)

func TestStoreFiles(t *testing.T) {
	client := storage.NewMemoryClient()
	store := NewStore(client, "design-files", "uploads", zap.NewNop())
	ctx := context.Background()
	requestID := uuid.New()

	stored, err := store.StoreFiles(ctx, requestID, []Upload{
		{Name: "brief.pdf", ContentType: "application/pdf", Size: 4, Content: strings.NewReader("data")},
		{Name: "../../etc/logo final.png", ContentType: "image/png", Size: 3, Content: strings.NewReader("png")},
	})
	require.NoError(t, err)
	require.Len(t, stored, 2)

	assert.Equal(t, "brief.pdf", stored[0].OriginalName)
	assert.True(t, strings.HasPrefix(stored[0].StoredRef, "uploads/requests/"+requestID.String()+"/"))
	assert.True(t, strings.HasSuffix(stored[1].StoredRef, "/logo_final.png"))
	assert.Equal(t, 2, client.Len())

	rc, err := store.Open(ctx, stored[0].StoredRef)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "data", string(data))

	store.RemoveFiles(ctx, []string{stored[0].StoredRef, stored[1].StoredRef})
	assert.Equal(t, 0, client.Len())
}

type failingClient struct {
	*storage.MemoryClient
	failOn string
}

func (f failingClient) Upload(ctx context.Context, bucket, key, contentType string, body io.Reader) error {
	if strings.HasSuffix(key, f.failOn) {
		return errors.New("network down")
	}
	return f.MemoryClient.Upload(ctx, bucket, key, contentType, body)
}

func TestStoreFilesCleansUpOnFailure(t *testing.T) {
	mem := storage.NewMemoryClient()
	store := NewStore(failingClient{MemoryClient: mem, failOn: "second.png"}, "b", "", zap.NewNop())

	_, err := store.StoreFiles(context.Background(), uuid.New(), []Upload{
		{Name: "first.png", Content: strings.NewReader("1")},
		{Name: "second.png", Content: strings.NewReader("2")},
	})
	require.Error(t, err)
	assert.Equal(t, 0, mem.Len())
}

func TestStoreFilesRejectsOversized(t *testing.T) {
	store := NewStore(storage.NewMemoryClient(), "b", "", zap.NewNop())
	_, err := store.StoreFiles(context.Background(), uuid.New(), []Upload{
		{Name: "huge.mov", Size: MaxFileSize + 1, Content: strings.NewReader("")},
	})
	assert.Error(t, err)
}
