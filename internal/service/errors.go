package service

import (
	"SHLink/internal/crypto"
	"SHLink/internal/model"
	"errors"
	"fmt"
)

// Ошибки протокола и управления ссылками.
var (
	ErrLinkNotFound           = errors.New("link not found")
	ErrInactiveLink           = errors.New("link is no longer valid")
	ErrExpiredLink            = errors.New("link has expired")
	ErrDirectAccessNotEnabled = errors.New("direct access is not enabled for this link")
	ErrContentNotFound        = errors.New("link has no content")

	ErrTokenNotFound = errors.New("download token not found")
	ErrTokenExpired  = errors.New("download token expired")

	ErrPasscodeRequired = errors.New("passcode required")
)

// Ошибки входных данных: состояние не изменяется.
var (
	ErrInvalidFlagCombination = model.ErrInvalidFlagCombination
	ErrMissingDataSource      = errors.New("at least one data source is required: content, file or categories")
	ErrPatientIDRequired      = errors.New("patientId is required when categories are specified")
	ErrLabelTooLong           = fmt.Errorf("label must not exceed %d characters", model.MaxLabelLength)
	ErrInvalidExpiration      = errors.New("expiration must be a positive number of seconds")
	ErrInvalidContent         = errors.New("content must be valid JSON")
	ErrPasscodeTooLong        = fmt.Errorf("passcode must not exceed %d bytes", crypto.MaxPasscodeBytes)
	ErrNotLongTerm            = errors.New("content can only be added to long-term links")
)

// PasscodeError — пасскод не передан или неверен. Remaining — оставшиеся попытки.
type PasscodeError struct {
	Remaining int
}

func (e *PasscodeError) Error() string {
	return fmt.Sprintf("invalid or missing passcode (%d attempts remaining)", e.Remaining)
}

// Is позволяет проверять errors.Is(err, ErrPasscodeRequired).
func (e *PasscodeError) Is(target error) bool {
	return target == ErrPasscodeRequired
}

// IsValidationError сообщает, вызвана ли ошибка некорректным запросом.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidFlagCombination,
		ErrMissingDataSource,
		ErrPatientIDRequired,
		ErrLabelTooLong,
		ErrInvalidExpiration,
		ErrInvalidContent,
		ErrPasscodeTooLong,
		ErrNotLongTerm,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
