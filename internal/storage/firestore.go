package storage

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/dgellow/line-relay/internal/crypto"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// relayTokenDocID is the one document the relay reads and writes
const relayTokenDocID = "relay"

var _ TokenStore = (*FirestoreTokenStore)(nil)

// FirestoreTokenStore persists the relay token in a single Firestore
// document so it survives restarts. The token is encrypted at rest.
type FirestoreTokenStore struct {
	client     *firestore.Client
	collection string
	encryptor  crypto.Encryptor
}

// TokenDoc is the stored document shape
type TokenDoc struct {
	AccessToken string    `firestore:"access_token"`
	UpdatedAt   time.Time `firestore:"updated_at"`
}

// NewFirestoreTokenStore creates a new Firestore-backed token store
func NewFirestoreTokenStore(ctx context.Context, projectID, database, collection string, encryptor crypto.Encryptor) (*FirestoreTokenStore, error) {
	if encryptor == nil {
		return nil, fmt.Errorf("encryptor is required")
	}
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required")
	}
	if collection == "" {
		return nil, fmt.Errorf("collection is required")
	}

	var client *firestore.Client
	var err error
	if database != "" && database != "(default)" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, database)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return &FirestoreTokenStore{
		client:     client,
		collection: collection,
		encryptor:  encryptor,
	}, nil
}

func (s *FirestoreTokenStore) GetAccessToken(ctx context.Context) (string, error) {
	doc, err := s.client.Collection(s.collection).Doc(relayTokenDocID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", ErrTokenNotFound
		}
		return "", fmt.Errorf("failed to get token from Firestore: %w", err)
	}

	var tokenDoc TokenDoc
	if err := doc.DataTo(&tokenDoc); err != nil {
		return "", fmt.Errorf("failed to unmarshal token: %w", err)
	}
	if tokenDoc.AccessToken == "" {
		return "", ErrTokenNotFound
	}

	token, err := s.encryptor.Decrypt(tokenDoc.AccessToken)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt access token: %w", err)
	}
	return token, nil
}

func (s *FirestoreTokenStore) SetAccessToken(ctx context.Context, token string) error {
	encrypted, err := s.encryptor.Encrypt(token)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}

	_, err = s.client.Collection(s.collection).Doc(relayTokenDocID).Set(ctx, TokenDoc{
		AccessToken: encrypted,
		UpdatedAt:   time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to store token in Firestore: %w", err)
	}
	return nil
}

// Close closes the Firestore client
func (s *FirestoreTokenStore) Close() error {
	return s.client.Close()
}
