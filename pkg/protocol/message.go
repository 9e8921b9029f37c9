package protocol

// Message is the chat message composite. Field order is fixed:
// sender name, text, recipient (channel name or player name), sender id.
type Message struct {
	Sender    string
	Text      string
	Recipient string
	SenderID  int32
}

// EncodeTo encodes the message using the provided encoder.
func (m *Message) EncodeTo(e *Encoder) {
	e.WriteString(m.Sender)
	e.WriteString(m.Text)
	e.WriteString(m.Recipient)
	e.WriteInt32(m.SenderID)
}

// DecodeMessageFrom decodes a message from a decoder.
func DecodeMessageFrom(d *Decoder) (Message, error) {
	var m Message
	var err error
	if m.Sender, err = d.ReadString(); err != nil {
		return Message{}, err
	}
	if m.Text, err = d.ReadString(); err != nil {
		return Message{}, err
	}
	if m.Recipient, err = d.ReadString(); err != nil {
		return Message{}, err
	}
	if m.SenderID, err = d.ReadInt32(); err != nil {
		return Message{}, err
	}
	return m, nil
}
