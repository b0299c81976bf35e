package ldapmod

import (
	"fmt"

	"github.com/go-ldap/ldap/v3"
)

// NewModifyRequest rebuilds the LDAP modify request a replicated change
// carries, so it can be replayed against the local directory.
func NewModifyRequest(dn string, changes []ldap.Change) (*ldap.ModifyRequest, error) {
	if err := CheckDN(dn); err != nil {
		return nil, err
	}
	req := ldap.NewModifyRequest(dn, nil)
	for _, c := range changes {
		if c.Modification.Type == "" {
			return nil, ErrEmptyChange
		}
		if _, ok := opNames[c.Operation]; !ok {
			return nil, fmt.Errorf("%w: %d", ErrUnknownOp, c.Operation)
		}
		req.Changes = append(req.Changes, c)
	}
	return req, nil
}

// CheckDN reports whether dn parses as a distinguished name. The empty
// DN (root DSE) is accepted.
func CheckDN(dn string) error {
	if dn == "" {
		return nil
	}
	if _, err := ldap.ParseDN(dn); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidDN, dn, err)
	}
	return nil
}

// NewAddRequest rebuilds the add request for a replicated entry.
func NewAddRequest(dn string, attrs []ldap.PartialAttribute) (*ldap.AddRequest, error) {
	if err := CheckDN(dn); err != nil {
		return nil, err
	}
	req := ldap.NewAddRequest(dn, nil)
	for _, a := range attrs {
		if a.Type == "" {
			return nil, ErrEmptyChange
		}
		req.Attribute(a.Type, a.Vals)
	}
	return req, nil
}

// NewModifyDNRequest rebuilds a rename. newSuperior is empty when the
// entry keeps its parent.
func NewModifyDNRequest(dn, newRDN string, deleteOldRDN bool, newSuperior string) (*ldap.ModifyDNRequest, error) {
	for _, s := range []string{dn, newSuperior} {
		if err := CheckDN(s); err != nil {
			return nil, err
		}
	}
	if newRDN == "" {
		return nil, fmt.Errorf("%w: empty RDN", ErrInvalidDN)
	}
	if err := CheckDN(newRDN); err != nil {
		return nil, err
	}
	return ldap.NewModifyDNRequest(dn, newRDN, deleteOldRDN, newSuperior), nil
}
