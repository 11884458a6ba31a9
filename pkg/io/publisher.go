package io

import (
	"encoding/base64"
	"errors"

	"github.com/xpanvictor/xtutor/pkg/io/render"
)

// Outbound message types of the client protocol.
const (
	MsgConnected         = "connected"
	MsgSpeechText        = "speech_text"
	MsgAudioChunk        = "audio_chunk"
	MsgStrokes           = "strokes"
	MsgBoardAction       = "board_action"
	MsgStateUpdate       = "state_update"
	MsgTranscriptInterim = "transcript_interim"
	MsgSnapshotReceived  = "snapshot_received"
	MsgBargeIn           = "barge_in"
	MsgError             = "error"
)

var ErrNoSender = errors.New("publisher has no client")

// Sender writes one JSON message to a client connection. Implementations
// must be safe for concurrent use.
type Sender interface {
	Send(msg any) error
}

type ConnectedMsg struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type TextMsg struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type AudioChunkMsg struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

type StrokesMsg struct {
	Type    string             `json:"type"`
	Strokes render.StrokeBatch `json:"strokes"`
}

type BoardActionMsg struct {
	Type   string `json:"type"`
	Action any    `json:"action"`
}

type StateUpdateMsg struct {
	Type           string `json:"type"`
	TutorState     string `json:"tutor_state"`
	WaitForStudent bool   `json:"wait_for_student"`
}

type SnapshotReceivedMsg struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type TypeOnlyMsg struct {
	Type string `json:"type"`
}

type ErrorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Publisher builds protocol messages for one client.
type Publisher struct {
	out Sender
}

func New(out Sender) Publisher {
	return Publisher{out: out}
}

func (p Publisher) send(msg any) error {
	if p.out == nil {
		return ErrNoSender
	}
	return p.out.Send(msg)
}

func (p Publisher) SendConnected(sessionID, message string) error {
	return p.send(ConnectedMsg{Type: MsgConnected, SessionID: sessionID, Message: message})
}

func (p Publisher) SendSpeechText(text string) error {
	return p.send(TextMsg{Type: MsgSpeechText, Text: text})
}

// SendAudioChunk base64-encodes raw synthesized audio.
func (p Publisher) SendAudioChunk(chunk []byte) error {
	return p.send(AudioChunkMsg{Type: MsgAudioChunk, Data: base64.StdEncoding.EncodeToString(chunk)})
}

func (p Publisher) SendStrokes(batch render.StrokeBatch) error {
	return p.send(StrokesMsg{Type: MsgStrokes, Strokes: batch})
}

func (p Publisher) SendBoardAction(action any) error {
	return p.send(BoardActionMsg{Type: MsgBoardAction, Action: action})
}

func (p Publisher) SendStateUpdate(tutorState string, waitForStudent bool) error {
	return p.send(StateUpdateMsg{Type: MsgStateUpdate, TutorState: tutorState, WaitForStudent: waitForStudent})
}

func (p Publisher) SendTranscriptInterim(text string) error {
	return p.send(TextMsg{Type: MsgTranscriptInterim, Text: text})
}

func (p Publisher) SendSnapshotReceived(count int) error {
	return p.send(SnapshotReceivedMsg{Type: MsgSnapshotReceived, Count: count})
}

func (p Publisher) SendBargeIn() error {
	return p.send(TypeOnlyMsg{Type: MsgBargeIn})
}

func (p Publisher) SendError(message string) error {
	return p.send(ErrorMsg{Type: MsgError, Message: message})
}
