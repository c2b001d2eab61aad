package changefeed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeLocationEvent(t *testing.T) {
	ev, err := decodeEvent(KindLocation, []byte(`{"session_id":"s1","lat":51.5,"lng":-0.12,"accuracy":8.5,"created_at":"2026-08-30T12:00:00Z"}`))
	require.NoError(t, err)
	require.NotNil(t, ev.Location)
	assert.Equal(t, KindLocation, ev.Kind)
	assert.Equal(t, 51.5, ev.Location.Lat)
	assert.Equal(t, -0.12, ev.Location.Lng)
	require.NotNil(t, ev.Location.Accuracy)
	assert.Equal(t, 8.5, *ev.Location.Accuracy)
}

func TestDecodeRejectsMalformedRows(t *testing.T) {
	cases := map[string]struct {
		kind    Kind
		payload string
	}{
		"not json":         {KindLocation, `{"lat":`},
		"lat out of range": {KindLocation, `{"session_id":"s1","lat":91,"lng":0}`},
		"lng out of range": {KindLocation, `{"session_id":"s1","lat":0,"lng":181}`},
		"lat wrong type":   {KindLocation, `{"session_id":"s1","lat":"51.5","lng":0}`},
		"visit not json":   {KindVisit, `[]`},
		"episode not json": {KindSos, `"x"`},
		"unknown kind":     {Kind("bogus"), `{}`},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := decodeEvent(tc.kind, []byte(tc.payload))
			assert.ErrorIs(t, err, errMalformedRow)
		})
	}
}

func TestDecodeVisitAndEpisodeEvents(t *testing.T) {
	visit, err := decodeEvent(KindVisit, []byte(`{"session_id":"s1","ended_at":"2026-08-30T12:00:00Z"}`))
	require.NoError(t, err)
	require.NotNil(t, visit.Visit)
	assert.NotNil(t, visit.Visit.EndedAt)

	episode, err := decodeEvent(KindSos, []byte(`{"session_id":"s1","started_at":"2026-08-30T11:00:00Z"}`))
	require.NoError(t, err)
	require.NotNil(t, episode.Episode)
	assert.Nil(t, episode.Episode.EndedAt)
}

func TestChannelName(t *testing.T) {
	assert.Equal(t, "feed:location:s1", channelName(KindLocation, "s1"))
	assert.Equal(t, "feed:visit:s1", channelName(KindVisit, "s1"))
	assert.Equal(t, "feed:sos:s1", channelName(KindSos, "s1"))
}
