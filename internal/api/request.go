package api

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

var errInvalidUID = errors.New("uid must be an integer between 0 and 4294967295")

// parseUID accepts a JSON number or a numeric string. Absent, null and ""
// all mean "no uid".
func parseUID(raw json.RawMessage) (*uint32, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return nil, nil
	}
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, errInvalidUID
		}
		if s = strings.TrimSpace(s); s == "" {
			return nil, nil
		}
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return nil, errInvalidUID
	}
	uid := uint32(v)
	return &uid, nil
}

// parseTokens accepts a single token string or an array of them and drops
// blank entries.
func parseTokens(raw json.RawMessage) ([]string, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return nil, nil
	}

	var list []string
	if strings.HasPrefix(s, "[") {
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, err
		}
	} else {
		var single string
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, err
		}
		list = []string{single}
	}

	tokens := make([]string, 0, len(list))
	for _, t := range list {
		if t = strings.TrimSpace(t); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens, nil
}
