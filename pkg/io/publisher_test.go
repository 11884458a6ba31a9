package io

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xpanvictor/xtutor/pkg/io/render"
)

type recorder struct{ msgs []string }

func (r *recorder) Send(msg any) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	r.msgs = append(r.msgs, string(b))
	return nil
}

func TestPublisherWireFormat(t *testing.T) {
	rec := &recorder{}
	p := New(rec)

	require.NoError(t, p.SendSpeechText("hi"))
	require.NoError(t, p.SendAudioChunk([]byte("abc")))
	require.NoError(t, p.SendStrokes(render.StrokeBatch{Strokes: []render.Stroke{}, AnimationSpeed: 1}))
	require.NoError(t, p.SendBoardAction(map[string]string{"type": "clear"}))
	require.NoError(t, p.SendStateUpdate("guiding", true))
	require.NoError(t, p.SendBargeIn())
	require.NoError(t, p.SendSnapshotReceived(3))

	assert.JSONEq(t, `{"type":"speech_text","text":"hi"}`, rec.msgs[0])
	assert.JSONEq(t, `{"type":"audio_chunk","data":"YWJj"}`, rec.msgs[1])
	assert.JSONEq(t, `{"type":"strokes","strokes":{"strokes":[],"position":{"x":0,"y":0},"animation_speed":1}}`, rec.msgs[2])
	assert.JSONEq(t, `{"type":"board_action","action":{"type":"clear"}}`, rec.msgs[3])
	assert.JSONEq(t, `{"type":"state_update","tutor_state":"guiding","wait_for_student":true}`, rec.msgs[4])
	assert.JSONEq(t, `{"type":"barge_in"}`, rec.msgs[5])
	assert.JSONEq(t, `{"type":"snapshot_received","count":3}`, rec.msgs[6])
}

func TestPublisherWithoutSender(t *testing.T) {
	assert.ErrorIs(t, Publisher{}.SendBargeIn(), ErrNoSender)
}
