// Package storage хранит зашифрованные конверты содержимого.
// Ключ объекта строится детерминированно: <prefix><shlId>/<contentId>.jwe.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Драйверы хранилища.
const (
	DriverDB    = "db"
	DriverMinio = "minio"
	DriverS3    = "s3"
)

// EnvelopeContentType — MIME-тип сохраняемых объектов.
const EnvelopeContentType = "application/jose"

// DefaultPrefix — префикс ключей по умолчанию.
const DefaultPrefix = "payloads/"

// ErrObjectNotFound возвращается, если объекта с таким ключом нет.
var ErrObjectNotFound = errors.New("object not found")

// Store — хранилище конвертов по строковому ключу.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Name() string
}

// PayloadKey возвращает ключ объекта для содержимого ссылки.
func PayloadKey(prefix, shlID, contentID string) string {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return fmt.Sprintf("%s%s/%s.jwe", prefix, shlID, contentID)
}
