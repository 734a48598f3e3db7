package values

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoneyArithmetic(t *testing.T) {
	nine := MustNewMoneyFromString("9.00")
	eight := MustNewMoneyFromString("8.00")

	assert.True(t, nine.AbsDiff(eight).Equal(MustNewMoneyFromString("1.00")))
	assert.True(t, eight.AbsDiff(nine).Equal(MustNewMoneyFromString("1.00")))
	assert.True(t, nine.AbsDiff(nine).IsZero())
	assert.True(t, nine.IsPositive())
	assert.False(t, ZeroMoney().IsPositive())
}

func TestMoneyFixedSerialization(t *testing.T) {
	m := NewMoneyFromFloat(9.5)
	assert.Equal(t, "9.50", m.String())

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `"9.50"`, string(data))

	v, err := m.Value()
	require.NoError(t, err)
	assert.Equal(t, "9.50", v)
}

func TestMoneyUnmarshalJSON(t *testing.T) {
	var fromString Money
	require.NoError(t, json.Unmarshal([]byte(`"12.34"`), &fromString))
	assert.Equal(t, "12.34", fromString.String())

	var fromNumber Money
	require.NoError(t, json.Unmarshal([]byte(`12.34`), &fromNumber))
	assert.Equal(t, "12.34", fromNumber.String())

	var bad Money
	assert.Error(t, json.Unmarshal([]byte(`"not money"`), &bad))
}

func TestMoneyScan(t *testing.T) {
	var m Money
	require.NoError(t, m.Scan("8.00"))
	assert.Equal(t, "8.00", m.String())

	require.NoError(t, m.Scan([]byte("0.01")))
	assert.Equal(t, "0.01", m.String())

	require.NoError(t, m.Scan(nil))
	assert.True(t, m.IsZero())

	assert.Error(t, m.Scan(struct{}{}))
}
