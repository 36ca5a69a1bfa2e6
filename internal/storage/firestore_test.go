package storage

import (
	"context"
	"testing"

	"github.com/dgellow/line-relay/internal/crypto"
	"github.com/stretchr/testify/assert"
)

func TestFirestoreTokenStoreConfig(t *testing.T) {
	t.Run("missing GCP project ID", func(t *testing.T) {
		ctx := context.Background()
		encryptor, _ := crypto.NewEncryptor([]byte("test-encryption-key-32-bytes-ok!"))

		_, err := NewFirestoreTokenStore(ctx, "", "(default)", "tokens", encryptor)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "projectID is required")
	})

	t.Run("nil encryptor", func(t *testing.T) {
		ctx := context.Background()

		_, err := NewFirestoreTokenStore(ctx, "test-project", "(default)", "tokens", nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "encryptor is required")
	})

	t.Run("missing collection", func(t *testing.T) {
		ctx := context.Background()
		encryptor, _ := crypto.NewEncryptor([]byte("test-encryption-key-32-bytes-ok!"))

		_, err := NewFirestoreTokenStore(ctx, "test-project", "(default)", "", encryptor)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "collection is required")
	})
}
