package bot

import (
	"encoding/json"
	"slices"
	"time"
)

// AccessToken is a bearer credential and the scopes it was granted.
// It is a value: replace it wholesale, never edit it in place.
type AccessToken struct {
	value  string
	typ    string
	scopes []string
	expiry time.Time
}

// NewAccessToken builds a token. Duplicate and empty scopes are dropped.
func NewAccessToken(value, typ string, scopes []string) AccessToken {
	set := make([]string, 0, len(scopes))
	for _, s := range scopes {
		if s != "" && !slices.Contains(set, s) {
			set = append(set, s)
		}
	}
	return AccessToken{value: value, typ: typ, scopes: set}
}

func (t AccessToken) Value() string { return t.value }

// Type is provider defined and may be empty.
func (t AccessToken) Type() string { return t.typ }

// Scopes returns a copy of the granted scope set.
func (t AccessToken) Scopes() []string { return slices.Clone(t.scopes) }

func (t AccessToken) IsZero() bool { return t.value == "" }

// WithExpiry returns a copy of t that expires at exp. A zero exp never expires.
func (t AccessToken) WithExpiry(exp time.Time) AccessToken {
	t.scopes = slices.Clone(t.scopes)
	t.expiry = exp
	return t
}

// Expiry is zero for tokens that do not expire.
func (t AccessToken) Expiry() time.Time { return t.expiry }

// Expired reports whether t has an expiry at or before now.
func (t AccessToken) Expired(now time.Time) bool {
	return !t.expiry.IsZero() && !now.Before(t.expiry)
}

// MissingScopes returns the required scopes the token was not granted, in order.
func (t AccessToken) MissingScopes(required ...string) []string {
	var missing []string
	for _, s := range required {
		if !slices.Contains(t.scopes, s) {
			missing = append(missing, s)
		}
	}
	return missing
}

// HasScopes reports whether the token covers every required scope.
func (t AccessToken) HasScopes(required ...string) bool {
	return len(t.MissingScopes(required...)) == 0
}

type tokenJSON struct {
	Value     string    `json:"access_token"`
	Type      string    `json:"token_type,omitempty"`
	Scopes    []string  `json:"scopes,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

func (t AccessToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(tokenJSON{Value: t.value, Type: t.typ, Scopes: t.scopes, ExpiresAt: t.expiry})
}

func (t *AccessToken) UnmarshalJSON(b []byte) error {
	var raw tokenJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*t = NewAccessToken(raw.Value, raw.Type, raw.Scopes).WithExpiry(raw.ExpiresAt)
	return nil
}
