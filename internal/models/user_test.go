package models_test

import (
	"encoding/json"
	"testing"

	"github.com/gsarma/botkit/internal/models"
)

func TestDecodeUser_Fields(t *testing.T) {
	v, err := models.DecodeUser([]byte(`{"id":2529,"name":"dz","lastname":"Doe","firstname":"Jane","email":"jane@example.com"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	u, ok := v.(*models.User)
	if !ok {
		t.Fatalf("expected *models.User, got %T", v)
	}
	if u.ID() != "2529" {
		t.Errorf("ID = %q", u.ID())
	}
	if u.Name() != "dz" || u.LastName() != "Doe" || u.FirstName() != "Jane" || u.Email() != "jane@example.com" {
		t.Errorf("unexpected fields: %+v", u.JSON())
	}
}

func TestDecodeUser_MissingFieldsAreEmpty(t *testing.T) {
	v, err := models.DecodeUser([]byte(`{"name":null,"email":42.5}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	u := v.(*models.User)
	if u.Name() != "" || u.LastName() != "" || u.FirstName() != "" {
		t.Errorf("expected empty accessors, got %+v", u.JSON())
	}
	if u.Email() != "42.5" {
		t.Errorf("numeric field should render as text, got %q", u.Email())
	}
}

func TestDecodeUser_NotAnObject(t *testing.T) {
	if _, err := models.DecodeUser([]byte(`[1,2]`)); err == nil {
		t.Error("expected error for JSON array")
	}
	if _, err := models.DecodeUser([]byte(`wrong code`)); err == nil {
		t.Error("expected error for non-JSON body")
	}
}

func TestNewUser_Nil(t *testing.T) {
	u := models.NewUser(nil)
	if u.Name() != "" {
		t.Error("nil record should behave as empty")
	}
	b, err := json.Marshal(u)
	if err != nil || string(b) != "{}" {
		t.Errorf("marshal = %s, %v", b, err)
	}
}
