package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// SecretSize — число случайных байт в идентификаторах манифестов и токенов (256 бит).
const SecretSize = 32

// Generator выдаёт криптографически стойкие ключи и непредсказуемые идентификаторы.
// Источник случайности передаётся явно; nil означает crypto/rand.
type Generator struct {
	rand io.Reader
}

func NewGenerator(r io.Reader) *Generator {
	if r == nil {
		r = rand.Reader
	}
	return &Generator{rand: r}
}

// Bytes читает n случайных байт.
func (g *Generator) Bytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(g.rand, b); err != nil {
		return nil, fmt.Errorf("read random bytes: %w", err)
	}
	return b, nil
}

// Token возвращает SecretSize случайных байт в base64url без паддинга.
func (g *Generator) Token() (string, error) {
	b, err := g.Bytes(SecretSize)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Key генерирует новый ключ A256GCM.
func (g *Generator) Key() ([]byte, error) {
	return g.Bytes(KeySize)
}
