package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightforge/relay/internal/transport"
)

func TestVideoRouter_StreamStartedProducerOnlyExcludesSender(t *testing.T) {
	r, _, _ := newTestRouter("video")

	producer := transport.NewClient(&fakeConn{}, r, "video", "ws1", "room1")
	r.Route(context.Background(), producer, []byte(`{"participant_id":"p1","role":"producer"}`))
	drainAll(producer)

	consumer := transport.NewClient(&fakeConn{}, r, "video", "ws1", "room1")
	r.Route(context.Background(), consumer, []byte(`{"participant_id":"c1","role":"consumer"}`))
	drainAll(producer)
	drainAll(consumer)

	r.Route(context.Background(), producer, []byte(`{"type":"stream_started"}`))

	assert.Empty(t, drainAll(producer))
	frames := drainAll(consumer)
	require.Len(t, frames, 1)
	assert.Equal(t, "stream_started", frames[0]["type"])
}

func TestVideoRouter_StreamStartedRejectsConsumer(t *testing.T) {
	r, _, _ := newTestRouter("video")

	consumer := transport.NewClient(&fakeConn{}, r, "video", "ws1", "room1")
	r.Route(context.Background(), consumer, []byte(`{"participant_id":"c1","role":"consumer"}`))
	drainAll(consumer)

	r.Route(context.Background(), consumer, []byte(`{"type":"stream_started"}`))
	frames := drainAll(consumer)
	require.Len(t, frames, 1)
	assert.Equal(t, "error", frames[0]["type"])
}

func TestVideoRouter_VideoConfigUpdateMergesPartialFields(t *testing.T) {
	r, _, reg := newTestRouter("video")

	producer := transport.NewClient(&fakeConn{}, r, "video", "ws1", "room1")
	r.Route(context.Background(), producer, []byte(`{"participant_id":"p1","role":"producer"}`))
	drainAll(producer)

	r.Route(context.Background(), producer, []byte(`{"type":"video_config_update","bitrate":1500}`))
	r.Route(context.Background(), producer, []byte(`{"type":"video_config_update","resolution":"720p"}`))

	room, err := reg.GetRoom("ws1", "room1")
	require.NoError(t, err)
	cfg := room.GetVideoConfig()
	assert.Equal(t, 1500, cfg.Bitrate)
	assert.Equal(t, "720p", cfg.Resolution)
}

func TestVideoRouter_EmergencyStopIncludesEveryone(t *testing.T) {
	r, _, _ := newTestRouter("video")

	producer := transport.NewClient(&fakeConn{}, r, "video", "ws1", "room1")
	r.Route(context.Background(), producer, []byte(`{"participant_id":"p1","role":"producer"}`))
	drainAll(producer)

	r.Route(context.Background(), producer, []byte(`{"type":"emergency_stop","reason":"x"}`))
	frames := drainAll(producer)
	require.Len(t, frames, 1)
	assert.Equal(t, "emergency_stop", frames[0]["type"])
}

func TestVideoRouter_WebRTCOfferDeliversToTargetConsumer(t *testing.T) {
	r, _, _ := newTestRouter("video")

	producer := transport.NewClient(&fakeConn{}, r, "video", "ws1", "room1")
	r.Route(context.Background(), producer, []byte(`{"participant_id":"p1","role":"producer"}`))
	drainAll(producer)

	consumer := transport.NewClient(&fakeConn{}, r, "video", "ws1", "room1")
	r.Route(context.Background(), consumer, []byte(`{"participant_id":"c1","role":"consumer"}`))
	drainAll(consumer)

	r.Route(context.Background(), producer, []byte(`{"type":"webrtc_offer","sdp":"S","target_consumer":"c1"}`))

	frames := drainAll(consumer)
	require.Len(t, frames, 1)
	assert.Equal(t, "webrtc_offer", frames[0]["type"])
	offer := frames[0]["offer"].(map[string]interface{})
	assert.Equal(t, "S", offer["sdp"])
	assert.Equal(t, "p1", frames[0]["from_producer"])
}
