package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// User is a provider user record. Accessors return "" for absent fields.
type User struct {
	raw map[string]any
}

// NewUser wraps an already decoded record.
func NewUser(raw map[string]any) *User {
	if raw == nil {
		raw = map[string]any{}
	}
	return &User{raw: raw}
}

// DecodeUser decodes a JSON object into a *User.
func DecodeUser(data []byte) (any, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("user: %w", err)
	}
	return NewUser(raw), nil
}

func (u *User) ID() string        { return u.field("id") }
func (u *User) Name() string      { return u.field("name") }
func (u *User) LastName() string  { return u.field("lastname") }
func (u *User) FirstName() string { return u.field("firstname") }
func (u *User) Email() string     { return u.field("email") }

// JSON returns the underlying record.
func (u *User) JSON() map[string]any { return u.raw }

func (u *User) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.raw)
}

func (u *User) field(key string) string {
	switch v := u.raw[key].(type) {
	case string:
		return v
	case float64:
		// Numeric ids come back from encoding/json as float64.
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
