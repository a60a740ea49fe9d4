package stream

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const definitionMessage = `{
	"op": "mcm", "id": 2, "clk": "AAA", "pt": 1705330800000,
	"mc": [
		{"id": "1.23", "img": true, "marketDefinition": {
			"eventTypeId": "7", "eventId": "31", "eventName": "Ascot 1st Jan",
			"countryCode": "GB", "openDate": "2024-01-15T13:00:00.000Z",
			"marketTime": "2024-01-15T14:00:00.000Z", "bettingType": "ODDS",
			"marketType": "WIN", "name": "2m Hcap", "status": "OPEN", "version": 12,
			"runners": [
				{"id": 101, "name": "Horse A", "hc": 0, "status": "ACTIVE"},
				{"id": 102, "selectionId": 202, "hc": -0.50, "status": "ACTIVE"}
			]
		}},
		{"id": "1.24", "rc": [{"id": 1, "ltp": 2.0}]}
	]
}`

func TestDecode_MarketChange(t *testing.T) {
	decoded, err := Decode([]byte(definitionMessage))
	require.NoError(t, err)

	msg, ok := decoded.(*MarketChangeMessage)
	require.True(t, ok, "got %T", decoded)
	assert.Equal(t, int64(1705330800000), msg.Pt)
	require.Len(t, msg.Mc, 2)

	defs := Definitions(msg)
	require.Len(t, defs, 1)

	def := defs[0]
	assert.Equal(t, "1.23", def.MarketID)
	assert.Equal(t, "2m Hcap", def.MarketName)
	assert.Equal(t, "7", def.EventTypeID)
	assert.Equal(t, "WIN", def.MarketType)
	assert.Equal(t, int64(12), def.Version)
	require.Len(t, def.Runners, 2)
	assert.Equal(t, int64(101), def.Runners[0].ID)
	assert.Equal(t, "Horse A", def.Runners[0].Name)
	assert.Equal(t, json.Number("0"), def.Runners[0].Handicap)
	assert.Equal(t, int64(202), def.Runners[1].SelectionID)
	assert.Equal(t, json.Number("-0.50"), def.Runners[1].Handicap)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(def.Raw, &raw))
	assert.Equal(t, "2m Hcap", raw["name"])
}

func TestDecode_Heartbeat(t *testing.T) {
	decoded, err := Decode([]byte(`{"op":"mcm","id":2,"ct":"HEARTBEAT","clk":"AB","pt":99}`))
	require.NoError(t, err)

	msg, ok := decoded.(*MarketChangeMessage)
	require.True(t, ok)
	assert.Equal(t, "HEARTBEAT", msg.Ct)
	assert.Equal(t, int64(99), msg.Pt)
	assert.Empty(t, Definitions(msg))
}

func TestDecode_Status(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		decoded, err := Decode([]byte(`{"op":"status","id":1,"statusCode":"SUCCESS","connectionClosed":false}`))
		require.NoError(t, err)
		status, ok := decoded.(*StatusMessage)
		require.True(t, ok)
		assert.Equal(t, StatusSuccess, status.StatusCode)
	})

	t.Run("failure", func(t *testing.T) {
		decoded, err := Decode([]byte(`{"op":"status","id":1,"statusCode":"FAILURE","errorCode":"INVALID_SESSION_INFORMATION","errorMessage":"bad session","connectionClosed":true}`))
		require.Error(t, err)
		assert.IsType(t, &StatusMessage{}, decoded)

		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, "INVALID_SESSION_INFORMATION", statusErr.ErrorCode)
		assert.True(t, statusErr.ConnectionClosed)
		assert.True(t, statusErr.Fatal())
	})

	t.Run("transient failure", func(t *testing.T) {
		_, err := Decode([]byte(`{"op":"status","statusCode":"FAILURE","errorCode":"TIMEOUT"}`))
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.False(t, statusErr.Fatal())
	})
}

func TestDecode_Connection(t *testing.T) {
	decoded, err := Decode([]byte(`{"op":"connection","connectionId":"002-051134157842-432409"}`))
	require.NoError(t, err)
	conn, ok := decoded.(*ConnectionMessage)
	require.True(t, ok)
	assert.Equal(t, "002-051134157842-432409", conn.ConnectionID)
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode([]byte(`{"op":`))
	assert.Error(t, err)

	_, err = Decode([]byte(`{"op":"ocm","id":3}`))
	assert.ErrorIs(t, err, ErrUnknownOp)
}

func TestDefinitions_Nil(t *testing.T) {
	assert.Nil(t, Definitions(nil))
}
