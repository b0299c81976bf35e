package ldapmod

import (
	"bytes"
	"encoding/hex"
	"errors"
	"reflect"
	"testing"

	"github.com/go-ldap/ldap/v3"
)

// replaceDescription is "replace: description / description: new value".
const replaceDescription = "301f0a0102301a040b6465736372697074696f6e310b04096e65772076616c7565"

func TestEncodeModsKnownBytes(t *testing.T) {
	changes := []ldap.Change{{
		Operation:    ldap.ReplaceAttribute,
		Modification: ldap.PartialAttribute{Type: "description", Vals: []string{"new value"}},
	}}

	got := hex.EncodeToString(EncodeMods(changes))
	if got != replaceDescription {
		t.Errorf("EncodeMods() = %s, want %s", got, replaceDescription)
	}
}

func TestModsRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		changes []ldap.Change
	}{
		{"single", []ldap.Change{{Operation: ldap.AddAttribute, Modification: ldap.PartialAttribute{Type: "cn", Vals: []string{"a"}}}}},
		{"multi", []ldap.Change{
			{Operation: ldap.DeleteAttribute, Modification: ldap.PartialAttribute{Type: "mail", Vals: []string{"x@y", "z@w"}}},
			{Operation: ldap.IncrementAttribute, Modification: ldap.PartialAttribute{Type: "uidNumber", Vals: []string{"1"}}},
		}},
		{"no_values", []ldap.Change{{Operation: ldap.DeleteAttribute, Modification: ldap.PartialAttribute{Type: "seeAlso"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			back, err := DecodeMods(EncodeMods(tt.changes))
			if err != nil {
				t.Fatalf("DecodeMods() error: %v", err)
			}
			if !reflect.DeepEqual(back, tt.changes) {
				t.Errorf("round trip = %+v, want %+v", back, tt.changes)
			}
		})
	}
}

func TestDecodeModsEmpty(t *testing.T) {
	changes, err := DecodeMods(nil)
	if err != nil || len(changes) != 0 {
		t.Errorf("DecodeMods(nil) = %v, %v", changes, err)
	}
}

// TestDecodeModsTruncated tests that every strict prefix of a valid list is rejected
func TestDecodeModsTruncated(t *testing.T) {
	full, _ := hex.DecodeString(replaceDescription)
	for n := 1; n < len(full); n++ {
		if _, err := DecodeMods(full[:n]); !errors.Is(err, ErrMalformed) {
			t.Fatalf("DecodeMods(prefix %d) error = %v, want ErrMalformed", n, err)
		}
	}
}

func TestDecodeModsRejectsUnknownOp(t *testing.T) {
	data, _ := hex.DecodeString(replaceDescription)
	data = bytes.Clone(data)
	data[4] = 9 // ENUMERATED value

	if _, err := DecodeMods(data); !errors.Is(err, ErrUnknownOp) {
		t.Errorf("DecodeMods() error = %v, want ErrUnknownOp", err)
	}
}

func TestAttributesRoundTrip(t *testing.T) {
	attrs := []ldap.PartialAttribute{
		{Type: "cn", Vals: []string{"John Doe"}},
		{Type: "objectClass", Vals: []string{"top", "person"}},
	}
	back, err := DecodeAttributes(EncodeAttributes(attrs))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(back, attrs) {
		t.Errorf("round trip = %+v, want %+v", back, attrs)
	}

	// a modification list is not an attribute list
	data, _ := hex.DecodeString(replaceDescription)
	if _, err := DecodeAttributes(data); !errors.Is(err, ErrMalformed) {
		t.Errorf("DecodeAttributes(mods) error = %v, want ErrMalformed", err)
	}
}

func TestNewModifyRequest(t *testing.T) {
	changes := []ldap.Change{{Operation: ldap.ReplaceAttribute, Modification: ldap.PartialAttribute{Type: "sn", Vals: []string{"x"}}}}

	req, err := NewModifyRequest("uid=jdoe,ou=People,dc=example,dc=com", changes)
	if err != nil {
		t.Fatalf("NewModifyRequest() error: %v", err)
	}
	if req.DN != "uid=jdoe,ou=People,dc=example,dc=com" || len(req.Changes) != 1 {
		t.Errorf("request = %+v", req)
	}

	if _, err := NewModifyRequest("not a dn", changes); !errors.Is(err, ErrInvalidDN) {
		t.Errorf("bad DN error = %v, want ErrInvalidDN", err)
	}
	if _, err := NewModifyRequest("dc=com", []ldap.Change{{Operation: ldap.AddAttribute}}); !errors.Is(err, ErrEmptyChange) {
		t.Errorf("empty change error = %v, want ErrEmptyChange", err)
	}
}

func TestDescribe(t *testing.T) {
	changes := []ldap.Change{{Operation: ldap.ReplaceAttribute, Modification: ldap.PartialAttribute{Type: "description", Vals: []string{"new value"}}}}
	want := "replace: description\ndescription: new value\n-\n"
	if got := Describe(changes); got != want {
		t.Errorf("Describe() = %q, want %q", got, want)
	}
}

func TestNewAddRequest(t *testing.T) {
	attrs := []ldap.PartialAttribute{
		{Type: "objectClass", Vals: []string{"organization"}},
		{Type: "o", Vals: []string{"com"}},
	}
	req, err := NewAddRequest("dc=example,dc=com", attrs)
	if err != nil {
		t.Fatalf("NewAddRequest() error: %v", err)
	}
	if req.DN != "dc=example,dc=com" || len(req.Attributes) != 2 || req.Attributes[1].Type != "o" {
		t.Errorf("request = %+v", req)
	}

	if _, err := NewAddRequest("dc=com", []ldap.PartialAttribute{{Vals: []string{"x"}}}); !errors.Is(err, ErrEmptyChange) {
		t.Errorf("untyped attribute error = %v, want ErrEmptyChange", err)
	}
}

func TestNewModifyDNRequest(t *testing.T) {
	req, err := NewModifyDNRequest("dc=test,dc=com", "dc=new", true, "dc=change")
	if err != nil {
		t.Fatalf("NewModifyDNRequest() error: %v", err)
	}
	if req.DN != "dc=test,dc=com" || req.NewRDN != "dc=new" || !req.DeleteOldRDN || req.NewSuperior != "dc=change" {
		t.Errorf("request = %+v", req)
	}

	if _, err := NewModifyDNRequest("dc=test", "", false, ""); !errors.Is(err, ErrInvalidDN) {
		t.Errorf("empty RDN error = %v, want ErrInvalidDN", err)
	}
	if _, err := NewModifyDNRequest("dc=test", "dc=new", false, "not a dn"); !errors.Is(err, ErrInvalidDN) {
		t.Errorf("bad superior error = %v, want ErrInvalidDN", err)
	}
}
