package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fairwavehq/fairwave-backend/pkg/config"
	"github.com/fairwavehq/fairwave-backend/pkg/logger"
)

const datastoreScope = "https://www.googleapis.com/auth/datastore"

var errProjectIDRequired = errors.New("gcp project id is required")

// FirestoreStore backs the Store contract with Cloud Firestore.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore connects to Firestore. When inline credentials are
// configured their token source is wrapped in a TokenCache so token minting
// stays bounded and observable; otherwise application-default credentials
// apply.
func NewFirestoreStore(ctx context.Context, cfg config.FirestoreConfig, logg *logger.Logger) (*FirestoreStore, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errProjectIDRequired
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsJSON) != "" {
		creds, err := google.CredentialsFromJSON(ctx, []byte(cfg.CredentialsJSON), datastoreScope)
		if err != nil {
			return nil, fmt.Errorf("parsing gcp credentials: %w", err)
		}
		cache, err := NewTokenCache(creds.TokenSource, cfg.TokenTTL)
		if err != nil {
			return nil, err
		}
		opts = append(opts, option.WithTokenSource(cache))
	}

	client, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	if logg != nil {
		logg.Info(ctx, "firestore client initialized")
	}
	return &FirestoreStore{client: client}, nil
}

// Close releases the underlying client.
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

// Ping verifies connectivity by listing collections with a bounded context.
func (s *FirestoreStore) Ping(ctx context.Context) error {
	_, err := s.client.Collections(ctx).Next()
	if err != nil && err != iterator.Done {
		return err
	}
	return nil
}

func (s *FirestoreStore) Get(ctx context.Context, collection, id string, out any) (bool, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	raw, err := json.Marshal(snap.Data())
	if err != nil {
		return false, fmt.Errorf("marshal %s/%s: %w", collection, id, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return true, nil
}

func (s *FirestoreStore) Set(ctx context.Context, collection, id string, doc any) error {
	flat, err := encode(doc)
	if err != nil {
		return err
	}
	if _, err := s.client.Collection(collection).Doc(id).Set(ctx, flat); err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *FirestoreStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	updates := make([]firestore.Update, 0, len(fields))
	for key, value := range fields {
		normalized, err := normalizeValue(value)
		if err != nil {
			return err
		}
		updates = append(updates, firestore.Update{Path: key, Value: normalized})
	}
	if _, err := s.client.Collection(collection).Doc(id).Update(ctx, updates); err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *FirestoreStore) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.client.Collection(collection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *FirestoreStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	fsQuery := s.client.Collection(collection).Query
	for _, f := range q.Filters {
		value, err := normalizeValue(f.Value)
		if err != nil {
			return nil, err
		}
		fsQuery = fsQuery.Where(f.Field, string(f.Op), value)
	}
	if q.OrderBy != "" {
		direction := firestore.Asc
		if q.Desc {
			direction = firestore.Desc
		}
		fsQuery = fsQuery.OrderBy(q.OrderBy, direction)
	}
	if q.Limit > 0 {
		fsQuery = fsQuery.Limit(q.Limit)
	}

	iter := fsQuery.Documents(ctx)
	defer iter.Stop()

	var docs []Document
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", collection, err)
		}
		raw, err := json.Marshal(snap.Data())
		if err != nil {
			return nil, fmt.Errorf("marshal %s/%s: %w", collection, snap.Ref.ID, err)
		}
		docs = append(docs, NewDocument(snap.Ref.ID, raw))
	}
	return docs, nil
}
