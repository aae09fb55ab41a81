package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestFlags_StringOrder(t *testing.T) {
	assert.Equal(t, "", Flags{}.String())
	assert.Equal(t, "LP", Flags{Passcode: true, LongTerm: true}.String())
	assert.Equal(t, "U", Flags{DirectAccess: true}.String())
	assert.Equal(t, "LPU", Flags{LongTerm: true, Passcode: true, DirectAccess: true}.String())
}

func TestParseFlags(t *testing.T) {
	f, err := ParseFlags("PL")
	require.NoError(t, err)
	assert.Equal(t, Flags{LongTerm: true, Passcode: true}, f)

	_, err = ParseFlags("LX")
	assert.ErrorIs(t, err, ErrUnknownFlag)
}

func TestFlags_Validate(t *testing.T) {
	assert.NoError(t, Flags{}.Validate())
	assert.NoError(t, Flags{LongTerm: true, Passcode: true}.Validate())
	assert.NoError(t, Flags{DirectAccess: true}.Validate())
	assert.ErrorIs(t, Flags{DirectAccess: true, LongTerm: true}.Validate(), ErrInvalidFlagCombination)
	assert.ErrorIs(t, Flags{DirectAccess: true, Passcode: true}.Validate(), ErrInvalidFlagCombination)
}

func TestFlags_ScanValue(t *testing.T) {
	v, err := Flags{LongTerm: true}.Value()
	require.NoError(t, err)
	assert.Equal(t, "L", v)

	var f Flags
	require.NoError(t, f.Scan([]byte("PU")))
	assert.Equal(t, Flags{Passcode: true, DirectAccess: true}, f)

	require.NoError(t, f.Scan(nil))
	assert.Equal(t, Flags{}, f)

	assert.Error(t, f.Scan(42))
}

// флаги в JSON и BSON — строка, а не объект
func TestFlags_Encoding(t *testing.T) {
	b, err := json.Marshal(struct {
		F Flags `json:"f"`
	}{Flags{LongTerm: true, Passcode: true}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"f":"LP"}`, string(b))

	doc, err := bson.Marshal(struct {
		F Flags `bson:"f"`
	}{Flags{DirectAccess: true}})
	require.NoError(t, err)
	var raw bson.M
	require.NoError(t, bson.Unmarshal(doc, &raw))
	assert.Equal(t, "U", raw["f"])

	var back struct {
		F Flags `bson:"f"`
	}
	require.NoError(t, bson.Unmarshal(doc, &back))
	assert.True(t, back.F.DirectAccess)
}

func TestLink_ExpiryAndAttempts(t *testing.T) {
	l := &Link{}
	assert.False(t, l.IsExpired(time.Now().UTC()))
	assert.Equal(t, 0, l.RemainingAttempts())

	past := time.Now().UTC().Add(-1)
	n := 3
	l.ExpiresAt = &past
	l.PasscodeAttemptsRemaining = &n
	assert.True(t, l.IsExpired(time.Now().UTC()))
	assert.Equal(t, 3, l.RemainingAttempts())
}
