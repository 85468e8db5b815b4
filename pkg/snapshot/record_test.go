package snapshot

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeObjectsTotal(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    map[string]int
		wantErr bool
	}{
		{name: "valid", raw: `{"car":10,"truck":5}`, want: map[string]int{"car": 10, "truck": 5}},
		{name: "empty object", raw: `{}`, want: map[string]int{}},
		{name: "null", raw: `null`, want: map[string]int{}},
		{name: "empty string", raw: ``, wantErr: true},
		{name: "truncated", raw: `{"car":`, wantErr: true},
		{name: "wrong value type", raw: `{"car":"ten"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeObjectsTotal(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrMalformed))
				assert.Contains(t, err.Error(), FieldObjectsTotal)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeObjectsByLane(t *testing.T) {
	got, err := DecodeObjectsByLane(`{"lane_1":{"car":5,"truck":2},"lane_2":{}}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]map[string]int{
		"lane_1": {"car": 5, "truck": 2},
		"lane_2": {},
	}, got)

	_, err = DecodeObjectsByLane(`{"lane_1":5}`)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeAvgSpeedByLane(t *testing.T) {
	got, err := DecodeAvgSpeedByLane(`{"lane_1":12.5,"lane_2":40}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"lane_1": 12.5, "lane_2": 40}, got)

	_, err = DecodeAvgSpeedByLane(`not json`)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParseDate(t *testing.T) {
	ts, err := ParseDate("2024-03-05 17:42:09")
	require.NoError(t, err)
	assert.Equal(t, 17, ts.Hour())
	assert.Equal(t, 42, ts.Minute())

	_, err = ParseDate("2024-03-05T17:42:09Z")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestOrderString(t *testing.T) {
	assert.Equal(t, "ASC", Ascending.String())
	assert.Equal(t, "DESC", Descending.String())
}
