package domain

import (
	"bytes"
	"fmt"
	"strconv"
)

// PlayerID is a game account id. The API sends ids as numbers, but
// anonymous attacks carry "" and some fields arrive as numeric strings.
type PlayerID int64

func ParsePlayerID(s string) (PlayerID, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid player id %q: %w", s, err)
	}
	return PlayerID(n), nil
}

func (id PlayerID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

func (id *PlayerID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		s, err := strconv.Unquote(string(data))
		if err != nil {
			return fmt.Errorf("invalid player id %s: %w", data, err)
		}
		parsed, err := ParsePlayerID(s)
		if err != nil {
			return err
		}
		*id = parsed
		return nil
	}
	parsed, err := ParsePlayerID(string(data))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
