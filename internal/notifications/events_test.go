package notifications

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeAndDecodeFrames(t *testing.T) {
	t.Parallel()

	raw, err := Encode(EventPrivateMessage, PrivateMessageData{SenderID: 1, ReceiverID: 2, Msg: "hey"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"private_message","data":{"sender_id":1,"receiver_id":2,"msg":"hey"}}`, string(raw))

	var frame Frame
	require.NoError(t, json.Unmarshal(raw, &frame))
	var data PrivateMessageData
	require.NoError(t, frame.Decode(&data))
	assert.Equal(t, "hey", data.Msg)

	assert.Error(t, Frame{Event: EventJoin}.Decode(&JoinData{}))
	assert.Error(t, Frame{Event: EventJoin, Data: json.RawMessage(`"nope"`)}.Decode(&JoinData{}))
}

func TestFailureFrame(t *testing.T) {
	t.Parallel()
	assert.JSONEq(t, `{"event":"failure","data":{"error":"chat not found"}}`, string(FailureFrame("chat not found")))
}

func TestRoomChannel(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "chat:room:12", RoomChannel(12))
}
