package crypto

import "golang.org/x/crypto/bcrypt"

// MaxPasscodeBytes — предел bcrypt: более длинный пароль не хешируется.
const MaxPasscodeBytes = 72

// PasscodeHasher хеширует и проверяет пасскоды ссылок через bcrypt.
type PasscodeHasher struct {
	cost int
}

func NewPasscodeHasher(cost int) *PasscodeHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasscodeHasher{cost: cost}
}

func (h *PasscodeHasher) Hash(passcode string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(passcode), h.cost)
	return string(hash), err
}

// Verify сравнивает пасскод с хешем за постоянное время.
func (h *PasscodeHasher) Verify(passcode, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(passcode)) == nil
}
