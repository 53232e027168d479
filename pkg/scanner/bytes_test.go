package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringField(t *testing.T) {
	payload := []byte(`{"channel": "market_updates", "event_id": "evt1", "n": 3}`)

	got, ok := StringField(payload, "channel")
	assert.True(t, ok)
	assert.Equal(t, "market_updates", string(got))

	got, ok = StringField(payload, "event_id")
	assert.True(t, ok)
	assert.Equal(t, "evt1", string(got))
}

func TestStringFieldMissingOrNonString(t *testing.T) {
	payload := []byte(`{"channel": "wager_updates", "n": 3}`)

	_, ok := StringField(payload, "absent")
	assert.False(t, ok)

	_, ok = StringField(payload, "n")
	assert.False(t, ok)

	_, ok = StringField([]byte(`{"channel": "truncated`), "channel")
	assert.False(t, ok)
}

func TestStringFieldToleratesWhitespace(t *testing.T) {
	payload := []byte("{\n  \"channel\" :\t\"market_updates\"\n}")
	got, ok := StringField(payload, "channel")
	assert.True(t, ok)
	assert.Equal(t, "market_updates", string(got))
}
