package storage

import (
	"SHLink/internal/repo"
	"context"
	"errors"
)

// DBStore хранит конверты в таблице/коллекции blobs основного хранилища.
type DBStore struct {
	blobs repo.BlobRepository
}

func NewDBStore(blobs repo.BlobRepository) *DBStore {
	return &DBStore{blobs: blobs}
}

// Put сохраняет объект. Ключ уникален, повторная запись того же ключа игнорируется.
func (s *DBStore) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.blobs.CreateIfAbsent(ctx, key, EnvelopeContentType, data)
	return err
}

func (s *DBStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.blobs.Get(ctx, key)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}
	return b.Data, nil
}

func (s *DBStore) Delete(ctx context.Context, key string) error {
	return s.blobs.Delete(ctx, key)
}

func (s *DBStore) Name() string { return DriverDB }
