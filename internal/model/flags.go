package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Символы флагов во внешнем строковом представлении (порядок фиксирован).
const (
	FlagLongTerm     = 'L'
	FlagPasscode     = 'P'
	FlagDirectAccess = 'U'
)

var (
	ErrUnknownFlag             = errors.New("unknown flag")
	ErrInvalidFlagCombination  = errors.New("direct access (U) cannot be combined with long-term (L) or passcode (P)")
	errUnsupportedFlagsStorage = errors.New("unsupported flags storage type")
)

// Flags — набор независимых возможностей ссылки.
// В строку "LPU" кодируется только на границе: БД, BSON, JSON и payload.
type Flags struct {
	LongTerm     bool
	Passcode     bool
	DirectAccess bool
}

// String кодирует флаги в упорядоченную строку, например "LP".
func (f Flags) String() string {
	var sb strings.Builder
	if f.LongTerm {
		sb.WriteByte(FlagLongTerm)
	}
	if f.Passcode {
		sb.WriteByte(FlagPasscode)
	}
	if f.DirectAccess {
		sb.WriteByte(FlagDirectAccess)
	}
	return sb.String()
}

// Validate проверяет взаимоисключение U с L и P.
func (f Flags) Validate() error {
	if f.DirectAccess && (f.LongTerm || f.Passcode) {
		return ErrInvalidFlagCombination
	}
	return nil
}

// ParseFlags разбирает строку флагов. Порядок символов не важен, повторы допустимы.
func ParseFlags(s string) (Flags, error) {
	var f Flags
	for _, r := range s {
		switch r {
		case FlagLongTerm:
			f.LongTerm = true
		case FlagPasscode:
			f.Passcode = true
		case FlagDirectAccess:
			f.DirectAccess = true
		default:
			return Flags{}, fmt.Errorf("%w: %q", ErrUnknownFlag, r)
		}
	}
	return f, nil
}

// Value — driver.Valuer для gorm.
func (f Flags) Value() (driver.Value, error) {
	return f.String(), nil
}

// Scan — sql.Scanner для gorm.
func (f *Flags) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case nil:
		s = ""
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("%w: %T", errUnsupportedFlagsStorage, src)
	}
	parsed, err := ParseFlags(s)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

func (f Flags) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

func (f *Flags) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseFlags(s)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

func (f Flags) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(f.String())
}

func (f *Flags) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	s, ok := bson.RawValue{Type: t, Value: data}.StringValueOK()
	if !ok {
		return fmt.Errorf("%w: bson %s", errUnsupportedFlagsStorage, t)
	}
	parsed, err := ParseFlags(s)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
