package websocket

import (
	"bytes"
	"errors"
	"unicode/utf8"
)

// Message is one reassembled data message.
type Message struct {
	Opcode Opcode
	Data   []byte
}

func (m Message) IsText() bool {
	return m.Opcode == OpText
}

func (m Message) Text() string {
	return string(m.Data)
}

// messageAssembler joins data frames into messages.
type messageAssembler struct {
	maxLength uint64

	active     bool
	opcode     Opcode
	compressed bool
	buf        bytes.Buffer
}

// push adds a data frame. It returns the message once f completes it.
func (a *messageAssembler) push(f *Frame) (*Message, error) {
	if f.Opcode == OpContinuation {
		if !a.active {
			return nil, newProtocolError(CloseProtocolError, ErrUnexpectedContinue)
		}
	} else {
		if a.active {
			return nil, newProtocolError(CloseProtocolError, ErrMessageInterrupted)
		}
		a.active = true
		a.opcode = f.Opcode
		a.compressed = f.Rsv1
		a.buf.Reset()
	}

	if uint64(a.buf.Len())+uint64(len(f.Payload)) > a.maxLength {
		return nil, newProtocolError(CloseTooBig, ErrPayloadTooBig)
	}
	a.buf.Write(f.Payload)
	if f.Fin == FinMore {
		return nil, nil
	}

	a.active = false
	data := bytes.Clone(a.buf.Bytes())
	if data == nil {
		data = []byte{}
	}

	if a.compressed {
		var err error
		data, err = decompressMessage(data, a.maxLength)
		if errors.Is(err, ErrPayloadTooBig) {
			return nil, newProtocolError(CloseTooBig, err)
		}
		if err != nil {
			return nil, newProtocolError(CloseInvalidPayloadData, err)
		}
	}

	if a.opcode == OpText && !utf8.Valid(data) {
		return nil, newProtocolError(CloseInvalidPayloadData, ErrInvalidUTF8)
	}

	return &Message{Opcode: a.opcode, Data: data}, nil
}
