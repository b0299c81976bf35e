// Package ldapmod encodes LDAP modification lists and attribute sets in
// BER, the form in which they travel inside replicated updates.
//
// A modification is SEQUENCE { ENUMERATED op, SEQUENCE { OCTET STRING
// type, SET OF OCTET STRING } }; an attribute is the inner SEQUENCE on
// its own. Lists are plain concatenations without an outer wrapper.
package ldapmod

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	ber "github.com/go-asn1-ber/asn1-ber"
	"github.com/go-ldap/ldap/v3"
)

var (
	ErrMalformed   = errors.New("malformed BER element")
	ErrUnknownOp   = errors.New("unknown modification type")
	ErrInvalidDN   = errors.New("invalid DN")
	ErrEmptyChange = errors.New("modification without attribute type")
)

// opNames maps ldap.Change operations to their LDIF spelling.
var opNames = map[uint]string{
	ldap.AddAttribute:       "add",
	ldap.DeleteAttribute:    "delete",
	ldap.ReplaceAttribute:   "replace",
	ldap.IncrementAttribute: "increment",
}

// OpName returns the LDIF name of a modification type.
func OpName(op uint) string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return fmt.Sprintf("op(%d)", op)
}

func encodeAttribute(a ldap.PartialAttribute) *ber.Packet {
	seq := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "Attribute")
	seq.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, a.Type, "Type"))
	set := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSet, nil, "Values")
	for _, v := range a.Vals {
		set.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, v, "Value"))
	}
	seq.AppendChild(set)
	return seq
}

// EncodeMods returns the BER form of changes.
func EncodeMods(changes []ldap.Change) []byte {
	var buf bytes.Buffer
	for _, c := range changes {
		seq := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "Change")
		seq.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagEnumerated, int64(c.Operation), "Operation"))
		seq.AppendChild(encodeAttribute(c.Modification))
		buf.Write(seq.Bytes())
	}
	return buf.Bytes()
}

// EncodeAttributes returns the BER form of attrs.
func EncodeAttributes(attrs []ldap.PartialAttribute) []byte {
	var buf bytes.Buffer
	for _, a := range attrs {
		buf.Write(encodeAttribute(a).Bytes())
	}
	return buf.Bytes()
}

// readAll splits data into its top-level BER elements.
func readAll(data []byte) ([]*ber.Packet, error) {
	var packets []*ber.Packet
	r := bytes.NewReader(data)
	for r.Len() > 0 {
		p, err := ber.ReadPacket(r)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, fmt.Errorf("%w: truncated at offset %d", ErrMalformed, len(data)-r.Len())
			}
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		packets = append(packets, p)
	}
	return packets, nil
}

func isUniversal(p *ber.Packet, tagType ber.Type, tag ber.Tag) bool {
	return p.ClassType == ber.ClassUniversal && p.TagType == tagType && p.Tag == tag
}

func octetString(p *ber.Packet) (string, error) {
	if !isUniversal(p, ber.TypePrimitive, ber.TagOctetString) {
		return "", fmt.Errorf("%w: expected OCTET STRING", ErrMalformed)
	}
	s, ok := p.Value.(string)
	if !ok {
		return "", fmt.Errorf("%w: OCTET STRING without value", ErrMalformed)
	}
	return s, nil
}

func decodeAttribute(p *ber.Packet) (ldap.PartialAttribute, error) {
	if !isUniversal(p, ber.TypeConstructed, ber.TagSequence) || len(p.Children) != 2 {
		return ldap.PartialAttribute{}, fmt.Errorf("%w: expected attribute SEQUENCE", ErrMalformed)
	}
	attrType, err := octetString(p.Children[0])
	if err != nil {
		return ldap.PartialAttribute{}, err
	}
	set := p.Children[1]
	if !isUniversal(set, ber.TypeConstructed, ber.TagSet) {
		return ldap.PartialAttribute{}, fmt.Errorf("%w: expected value SET", ErrMalformed)
	}
	attr := ldap.PartialAttribute{Type: attrType}
	for _, child := range set.Children {
		v, err := octetString(child)
		if err != nil {
			return ldap.PartialAttribute{}, err
		}
		attr.Vals = append(attr.Vals, v)
	}
	return attr, nil
}

// DecodeMods parses the output of EncodeMods. Empty input yields no changes.
func DecodeMods(data []byte) ([]ldap.Change, error) {
	packets, err := readAll(data)
	if err != nil {
		return nil, err
	}
	changes := make([]ldap.Change, 0, len(packets))
	for _, p := range packets {
		if !isUniversal(p, ber.TypeConstructed, ber.TagSequence) || len(p.Children) != 2 {
			return nil, fmt.Errorf("%w: expected change SEQUENCE", ErrMalformed)
		}
		opPacket := p.Children[0]
		if !isUniversal(opPacket, ber.TypePrimitive, ber.TagEnumerated) {
			return nil, fmt.Errorf("%w: expected ENUMERATED", ErrMalformed)
		}
		op, ok := opPacket.Value.(int64)
		if !ok {
			return nil, fmt.Errorf("%w: ENUMERATED without value", ErrMalformed)
		}
		if _, known := opNames[uint(op)]; !known || op < 0 {
			return nil, fmt.Errorf("%w: %d", ErrUnknownOp, op)
		}
		attr, err := decodeAttribute(p.Children[1])
		if err != nil {
			return nil, err
		}
		changes = append(changes, ldap.Change{Operation: uint(op), Modification: attr})
	}
	return changes, nil
}

// DecodeAttributes parses the output of EncodeAttributes.
func DecodeAttributes(data []byte) ([]ldap.PartialAttribute, error) {
	packets, err := readAll(data)
	if err != nil {
		return nil, err
	}
	attrs := make([]ldap.PartialAttribute, 0, len(packets))
	for _, p := range packets {
		attr, err := decodeAttribute(p)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, attr)
	}
	return attrs, nil
}

// Validate checks that data is a well-formed modification list.
func Validate(data []byte) error {
	_, err := DecodeMods(data)
	return err
}

// Describe renders changes in LDIF style for diagnostics.
func Describe(changes []ldap.Change) string {
	var sb strings.Builder
	for _, c := range changes {
		fmt.Fprintf(&sb, "%s: %s\n", OpName(c.Operation), c.Modification.Type)
		for _, v := range c.Modification.Vals {
			fmt.Fprintf(&sb, "%s: %s\n", c.Modification.Type, v)
		}
		sb.WriteString("-\n")
	}
	return sb.String()
}
