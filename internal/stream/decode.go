package stream

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// StatusError is a FAILURE status returned by the stream.
type StatusError struct {
	ID               int64
	ErrorCode        string
	ErrorMessage     string
	ConnectionClosed bool
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("stream status failure (id %d): %s: %s", e.ID, e.ErrorCode, e.ErrorMessage)
}

// Fatal reports whether reconnecting with the same credentials cannot succeed.
func (e *StatusError) Fatal() bool {
	switch e.ErrorCode {
	case "NO_APP_KEY", "INVALID_APP_KEY", "NO_SESSION", "INVALID_SESSION_INFORMATION",
		"NOT_AUTHORIZED", "SUBSCRIPTION_LIMIT_EXCEEDED":
		return true
	}
	return false
}

// Decode parses one stream message. The op is peeked before the full decode and selects
// the result type: *ConnectionMessage, *StatusMessage or *MarketChangeMessage.
// A FAILURE status is returned as both the message and a *StatusError.
func Decode(data []byte) (any, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("decode stream message: invalid json")
	}

	switch op := gjson.GetBytes(data, "op").String(); op {
	case OpConnection:
		var msg ConnectionMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode connection message: %w", err)
		}
		return &msg, nil

	case OpStatus:
		var msg StatusMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode status message: %w", err)
		}
		if msg.StatusCode == StatusFailure {
			return &msg, &StatusError{
				ID:               msg.ID,
				ErrorCode:        msg.ErrorCode,
				ErrorMessage:     msg.ErrorMessage,
				ConnectionClosed: msg.ConnectionClosed,
			}
		}
		return &msg, nil

	case OpMarketChange:
		// Heartbeats and price-only changes carry no definitions; skip the full decode.
		if len(gjson.GetBytes(data, "mc.#.marketDefinition").Array()) == 0 {
			return &MarketChangeMessage{
				Op:  op,
				ID:  gjson.GetBytes(data, "id").Int(),
				Clk: gjson.GetBytes(data, "clk").String(),
				Pt:  gjson.GetBytes(data, "pt").Int(),
				Ct:  gjson.GetBytes(data, "ct").String(),
			}, nil
		}
		var msg MarketChangeMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode market change message: %w", err)
		}
		for i := range msg.Mc {
			if def := msg.Mc[i].MarketDefinition; def != nil {
				def.MarketID = msg.Mc[i].ID
			}
		}
		return &msg, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOp, op)
	}
}

// Definitions returns the market definitions carried by msg, in message order.
func Definitions(msg *MarketChangeMessage) []MarketDefinition {
	if msg == nil {
		return nil
	}
	var defs []MarketDefinition
	for _, mc := range msg.Mc {
		if mc.MarketDefinition != nil {
			defs = append(defs, *mc.MarketDefinition)
		}
	}
	return defs
}
