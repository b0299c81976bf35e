package protocol

import "fmt"

var (
	windowTags            = []MsgType{TypeWindow}
	windowProbeTags       = []MsgType{TypeWindowProbe}
	stopTags              = []MsgType{TypeStop}
	resetGenerationIDTags = []MsgType{TypeResetGenerationID}
)

// WindowMsg grants the peer NumAck more messages of send window.
type WindowMsg struct {
	NumAck int
}

func (m *WindowMsg) Type() MsgType          { return TypeWindow }
func (m *WindowMsg) AllowedTags() []MsgType { return windowTags }

func (m *WindowMsg) Bytes(Version) ([]byte, error) {
	return NewBuilder(Octets(1)+IntUTF8Size(int64(m.NumAck))).
		AppendByte(byte(TypeWindow)).
		AppendIntUTF8(m.NumAck).
		Finish()
}

func DecodeWindowMsg(buf []byte) (*WindowMsg, error) {
	s := NewScanner(buf)
	if _, err := checkTag(s, "WindowMsg", windowTags); err != nil {
		return nil, err
	}
	m := &WindowMsg{NumAck: s.NextIntUTF8()}
	s.ExpectEnd()
	if err := s.Err(); err != nil {
		return nil, annotate(err, "WindowMsg")
	}
	return m, nil
}

func (m *WindowMsg) String() string {
	return fmt.Sprintf("WindowMsg{numAck=%d}", m.NumAck)
}

// WindowProbeMsg asks a peer whose window looks exhausted to resend a WindowMsg.
type WindowProbeMsg struct{}

func (WindowProbeMsg) Type() MsgType          { return TypeWindowProbe }
func (WindowProbeMsg) AllowedTags() []MsgType { return windowProbeTags }

func (WindowProbeMsg) Bytes(Version) ([]byte, error) {
	return []byte{byte(TypeWindowProbe)}, nil
}

func DecodeWindowProbeMsg(buf []byte) (*WindowProbeMsg, error) {
	return decodeTagOnly[WindowProbeMsg](buf, "WindowProbeMsg", windowProbeTags)
}

// StopMsg tells the peer the session is being closed on purpose.
type StopMsg struct{}

func (StopMsg) Type() MsgType          { return TypeStop }
func (StopMsg) AllowedTags() []MsgType { return stopTags }

func (StopMsg) Bytes(Version) ([]byte, error) {
	return []byte{byte(TypeStop)}, nil
}

func DecodeStopMsg(buf []byte) (*StopMsg, error) {
	return decodeTagOnly[StopMsg](buf, "StopMsg", stopTags)
}

// ResetGenerationIDMsg asks every server of a domain to adopt a new
// generation id, typically after a full re-initialization.
type ResetGenerationIDMsg struct {
	GenerationID int64
}

func (m *ResetGenerationIDMsg) Type() MsgType          { return TypeResetGenerationID }
func (m *ResetGenerationIDMsg) AllowedTags() []MsgType { return resetGenerationIDTags }

func (m *ResetGenerationIDMsg) Bytes(Version) ([]byte, error) {
	return NewBuilder(Octets(1)+IntUTF8Size(m.GenerationID)).
		AppendByte(byte(TypeResetGenerationID)).
		AppendLongUTF8(m.GenerationID).
		Finish()
}

func DecodeResetGenerationIDMsg(buf []byte) (*ResetGenerationIDMsg, error) {
	s := NewScanner(buf)
	if _, err := checkTag(s, "ResetGenerationIDMsg", resetGenerationIDTags); err != nil {
		return nil, err
	}
	m := &ResetGenerationIDMsg{GenerationID: s.NextLongUTF8()}
	s.ExpectEnd()
	if err := s.Err(); err != nil {
		return nil, annotate(err, "ResetGenerationIDMsg")
	}
	return m, nil
}

// decodeTagOnly handles messages made of a single tag byte.
func decodeTagOnly[T any](buf []byte, typ string, allowed []MsgType) (*T, error) {
	s := NewScanner(buf)
	if _, err := checkTag(s, typ, allowed); err != nil {
		return nil, err
	}
	s.ExpectEnd()
	if err := s.Err(); err != nil {
		return nil, annotate(err, typ)
	}
	return new(T), nil
}
