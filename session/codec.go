package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const formatVersion = 1

// Encode serializes a session into the versioned binary wire form stored in
// Redis. The session id is the key and is not part of the blob.
func Encode(s *Session) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(formatVersion)

	for _, field := range []string{s.UserID, s.IP, s.UserAgent} {
		if len(field) > 255 {
			return nil, errors.New("session field too long")
		}
		buf.WriteByte(byte(len(field)))
		buf.WriteString(field)
	}

	for _, ts := range []int64{s.CreatedAt, s.LastSeen, s.ExpiresAt} {
		if err := binary.Write(&buf, binary.BigEndian, ts); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// Decode parses a blob produced by [Encode].
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != formatVersion {
		return nil, errors.New("unknown session format version")
	}

	s := &Session{}
	for _, field := range []*string{&s.UserID, &s.IP, &s.UserAgent} {
		length, err := reader.ReadByte()
		if err != nil {
			return nil, err
		}
		raw := make([]byte, length)
		if _, err := io.ReadFull(reader, raw); err != nil {
			return nil, err
		}
		*field = string(raw)
	}

	for _, ts := range []*int64{&s.CreatedAt, &s.LastSeen, &s.ExpiresAt} {
		if err := binary.Read(reader, binary.BigEndian, ts); err != nil {
			return nil, err
		}
	}

	return s, nil
}
