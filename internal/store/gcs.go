package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"georisk/internal/domain"
	"georisk/internal/observability"
)

const (
	reportPrefix = "reports/"
	chatPrefix   = "chats/"
)

// GCS persists analysis records and chat transcripts as JSON objects in a
// Google Cloud Storage bucket, one object per record under reports/ and
// one per session under chats/. Credentials come from the ambient
// application-default chain.
type GCS struct {
	bucket  *storage.BucketHandle
	metrics *observability.Metrics
	logger  *slog.Logger
}

func NewGCS(ctx context.Context, bucketName string, metrics *observability.Metrics, logger *slog.Logger) (*GCS, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	return &GCS{
		bucket:  client.Bucket(bucketName),
		metrics: metrics,
		logger:  logger,
	}, nil
}

func (s *GCS) SaveRecord(ctx context.Context, record domain.AnalysisRecord) error {
	err := s.writeObject(ctx, reportPrefix+record.ID+".json", record)
	s.observe("save_record", err)
	return err
}

func (s *GCS) ListRecords(ctx context.Context) ([]domain.AnalysisRecord, error) {
	var records []domain.AnalysisRecord

	it := s.bucket.Objects(ctx, &storage.Query{Prefix: reportPrefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			s.observe("list_records", err)
			return nil, fmt.Errorf("list records: %w: %v", domain.ErrStorageUnavailable, err)
		}
		if !strings.HasSuffix(attrs.Name, ".json") {
			continue
		}

		var record domain.AnalysisRecord
		if err := s.readObject(ctx, attrs.Name, &record); err != nil {
			// Deleted between list and read.
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			s.observe("list_records", err)
			return nil, err
		}
		records = append(records, record)
	}
	s.observe("list_records", nil)

	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
	return records, nil
}

func (s *GCS) GetRecord(ctx context.Context, id string) (domain.AnalysisRecord, error) {
	var record domain.AnalysisRecord
	err := s.readObject(ctx, reportPrefix+id+".json", &record)
	s.observe("get_record", err)
	if err != nil {
		return domain.AnalysisRecord{}, err
	}
	return record, nil
}

func (s *GCS) GetSession(ctx context.Context, id string) (domain.ChatSession, error) {
	var session domain.ChatSession
	err := s.readObject(ctx, chatPrefix+id+".json", &session)
	s.observe("get_session", err)
	if err != nil {
		return domain.ChatSession{}, err
	}
	session.ID = id
	return session, nil
}

// AppendToSession rewrites the whole transcript object. Concurrent
// appends to one session are last-writer-wins, which is acceptable for a
// single user talking to their own session.
func (s *GCS) AppendToSession(ctx context.Context, id string, entry domain.ChatEntry) error {
	var session domain.ChatSession
	if err := s.readObject(ctx, chatPrefix+id+".json", &session); err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.observe("append_session", err)
		return err
	}

	session.ID = id
	session.Entries = append(session.Entries, entry)

	err := s.writeObject(ctx, chatPrefix+id+".json", session)
	s.observe("append_session", err)
	return err
}

func (s *GCS) DeleteSession(ctx context.Context, id string) error {
	err := s.bucket.Object(chatPrefix + id + ".json").Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		err = domain.ErrNotFound
	} else if err != nil {
		err = fmt.Errorf("delete session: %w: %v", domain.ErrStorageUnavailable, err)
	}
	s.observe("delete_session", err)
	return err
}

func (s *GCS) writeObject(ctx context.Context, key string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}

	w := s.bucket.Object(key).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write %s: %w: %v", key, domain.ErrStorageUnavailable, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("write %s: %w: %v", key, domain.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *GCS) readObject(ctx context.Context, key string, v interface{}) error {
	r, err := s.bucket.Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("read %s: %w: %v", key, domain.ErrStorageUnavailable, err)
	}
	defer r.Close()

	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w: %v", key, domain.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *GCS) observe(operation string, err error) {
	outcome := "ok"
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		outcome = "error"
	}
	s.metrics.StoreOperations.WithLabelValues(operation, outcome).Inc()
}
