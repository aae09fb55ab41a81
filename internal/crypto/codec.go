package crypto

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/go-jose/go-jose/v4"
)

// KeySize — длина симметричного ключа A256GCM (в байтах).
const KeySize = 32

var (
	ErrInvalidKey       = errors.New("invalid encryption key")
	ErrDecryptionFailed = errors.New("decryption failed")
)

// Codec шифрует содержимое в компактный JWE: alg "dir", enc "A256GCM",
// опционально zip "DEF"; тип содержимого пишется в заголовок cty.
type Codec struct {
	compress bool
}

// NewCodec создаёт кодек. compress включает DEFLATE перед шифрованием.
func NewCodec(compress bool) *Codec {
	return &Codec{compress: compress}
}

// Encrypt шифрует plaintext ключом key и возвращает компактную сериализацию JWE.
func (c *Codec) Encrypt(plaintext, key []byte, contentType string) (string, error) {
	if len(key) != KeySize {
		return "", ErrInvalidKey
	}
	opts := &jose.EncrypterOptions{}
	if c.compress {
		opts.Compression = jose.DEFLATE
	}
	if contentType != "" {
		opts = opts.WithContentType(jose.ContentType(contentType))
	}
	enc, err := jose.NewEncrypter(jose.A256GCM, jose.Recipient{Algorithm: jose.DIRECT, Key: key}, opts)
	if err != nil {
		return "", fmt.Errorf("create encrypter: %w", err)
	}
	obj, err := enc.Encrypt(plaintext)
	if err != nil {
		return "", fmt.Errorf("encrypt payload: %w", err)
	}
	return obj.CompactSerialize()
}

// Decrypt расшифровывает компактный JWE. Любая ошибка разбора или
// несовпадение тега аутентификации даёт ErrDecryptionFailed.
func (c *Codec) Decrypt(envelope string, key []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	obj, err := parseEnvelope(envelope)
	if err != nil {
		return nil, err
	}
	plain, err := obj.Decrypt(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return plain, nil
}

// ContentType возвращает значение cty из защищённого заголовка (без расшифровки).
func (c *Codec) ContentType(envelope string) (string, error) {
	obj, err := parseEnvelope(envelope)
	if err != nil {
		return "", err
	}
	cty, _ := obj.Header.ExtraHeaders[jose.HeaderContentType].(string)
	return cty, nil
}

func parseEnvelope(envelope string) (*jose.JSONWebEncryption, error) {
	if strings.Count(envelope, ".") != 4 {
		return nil, fmt.Errorf("%w: not a compact JWE", ErrDecryptionFailed)
	}
	obj, err := jose.ParseEncryptedCompact(envelope,
		[]jose.KeyAlgorithm{jose.DIRECT},
		[]jose.ContentEncryption{jose.A256GCM},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return obj, nil
}

// EncodeKey кодирует ключ в base64url без паддинга.
func EncodeKey(key []byte) string {
	return base64.RawURLEncoding.EncodeToString(key)
}

// DecodeKey декодирует ключ из base64url и проверяет длину.
func DecodeKey(s string) ([]byte, error) {
	key, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	return key, nil
}
