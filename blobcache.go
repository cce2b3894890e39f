package netoff

import (
	"bytes"
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// BlobCache is C11: an optional worker-side cache for GET_FILE payloads,
// keyed by the remote path the driver asked for. A Worker with no BlobCache
// configured reads the simulation file fresh on every GET_FILE.
type BlobCache interface {
	// Get returns the cached blob for path and true on a hit.
	Get(path string) ([]byte, bool, error)
	// Put stores blob under path, replacing any previous entry.
	Put(path string, blob []byte) error
}

// AzureBlobCache implements BlobCache against a single Azure Blob Storage
// container, adapted from the teacher's blobDriver. Unlike the teacher's
// handshake/token container pair, netoff's cache needs exactly one
// container: blob names are the GET_FILE remote paths themselves.
type AzureBlobCache struct {
	ctx           context.Context
	client        *azblob.Client
	containerName string
}

// NewAzureBlobCache builds a BlobCache backed by containerName in the
// storage account client points at. The container is created if absent.
func NewAzureBlobCache(ctx context.Context, client *azblob.Client, containerName string) (*AzureBlobCache, error) {
	if _, err := client.CreateContainer(ctx, containerName, nil); err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return nil, fmt.Errorf("netoff: blob cache create container: %w", err)
	}
	return &AzureBlobCache{ctx: ctx, client: client, containerName: containerName}, nil
}

func (c *AzureBlobCache) Get(path string) ([]byte, bool, error) {
	resp, err := c.client.DownloadStream(c.ctx, c.containerName, path, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("netoff: blob cache download %s: %w", path, err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, false, fmt.Errorf("netoff: blob cache read %s: %w", path, err)
	}
	return buf.Bytes(), true, nil
}

func (c *AzureBlobCache) Put(path string, blob []byte) error {
	_, err := c.client.UploadBuffer(c.ctx, c.containerName, path, blob, nil)
	if err != nil {
		return fmt.Errorf("netoff: blob cache upload %s: %w", path, err)
	}
	return nil
}
