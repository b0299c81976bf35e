package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/go-ldap/ldap/v3"
	dto "github.com/prometheus/client_model/go"

	"github.com/dd0wney/cluso-replication/pkg/ldapmod"
	"github.com/dd0wney/cluso-replication/pkg/metrics"
	"github.com/dd0wney/cluso-replication/pkg/protocol"
)

// decodedMsg is the JSON view printed by the decode command.
type decodedMsg struct {
	Type    string       `json:"type"`
	Tag     byte         `json:"tag"`
	Version string       `json:"version"`
	Size    int          `json:"size"`
	Summary string       `json:"summary,omitempty"`
	Changes []changeView `json:"changes,omitempty"`
	LDIF    string       `json:"ldif,omitempty"`
	Message protocol.Msg `json:"message"`
}

type changeView struct {
	Operation string   `json:"operation"`
	Attribute string   `json:"attribute"`
	Values    []string `json:"values,omitempty"`
}

func runDecode(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("decode", flag.ContinueOnError)
	v := fs.Int("version", int(protocol.Current), "Protocol version negotiated for the session")
	showMetrics := fs.Bool("metrics", false, "Print codec counters after the message")
	compact := fs.Bool("compact", false, "Print JSON on a single line")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ver := protocol.Version(*v)
	if !ver.Valid() {
		return fmt.Errorf("unknown protocol version %d", *v)
	}

	input, err := readHexInput(fs.Args(), stdin)
	if err != nil {
		return err
	}
	buf, err := hex.DecodeString(input)
	if err != nil {
		return fmt.Errorf("invalid hex input: %w", err)
	}

	registry := metrics.NewRegistry()
	view, err := decodeMessage(buf, ver, registry)
	if err != nil {
		if *showMetrics {
			printMetrics(stdout, registry)
		}
		return err
	}

	enc := json.NewEncoder(stdout)
	if !*compact {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(view); err != nil {
		return err
	}
	if *showMetrics {
		printMetrics(stdout, registry)
	}
	return nil
}

// readHexInput takes the message from the first argument, or from
// stdin when there is none or it is "-". Whitespace is ignored.
func readHexInput(args []string, stdin io.Reader) (string, error) {
	var raw string
	if len(args) > 0 && args[0] != "-" {
		raw = strings.Join(args, "")
	} else {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		raw = string(data)
	}
	raw = strings.Join(strings.Fields(raw), "")
	if raw == "" {
		return "", errors.New("no message given")
	}
	return raw, nil
}

func decodeMessage(buf []byte, v protocol.Version, registry *metrics.Registry) (*decodedMsg, error) {
	msg, err := protocol.Decode(buf, v)
	if err != nil {
		typ := "UNKNOWN"
		if len(buf) > 0 {
			typ = protocol.MsgType(buf[0]).String()
		}
		registry.RecordDecodeError(typ, protocol.Reason(err))
		return nil, err
	}
	registry.RecordDecode(msg.Type().String(), len(buf))

	view := &decodedMsg{
		Type:    msg.Type().String(),
		Tag:     buf[0],
		Version: v.String(),
		Size:    len(buf),
		Message: msg,
	}
	if s, ok := msg.(fmt.Stringer); ok {
		view.Summary = s.String()
	}
	changes, err := updateChanges(msg)
	if err != nil {
		return nil, fmt.Errorf("modifications: %w", err)
	}
	for _, c := range changes {
		view.Changes = append(view.Changes, changeView{
			Operation: ldapmod.OpName(c.Operation),
			Attribute: c.Modification.Type,
			Values:    c.Modification.Vals,
		})
	}
	if len(changes) > 0 {
		view.LDIF = ldapmod.Describe(changes)
	}
	return view, nil
}

// updateChanges returns the attribute changes an update carries. The
// attributes of an added entry are shown as add changes.
func updateChanges(msg protocol.Msg) ([]ldap.Change, error) {
	switch m := msg.(type) {
	case *protocol.ModifyMsg:
		return m.Modifications()
	case *protocol.ModifyDNMsg:
		return m.Modifications()
	case *protocol.AddMsg:
		attrs, err := m.EntryAttributes()
		if err != nil {
			return nil, err
		}
		changes := make([]ldap.Change, 0, len(attrs))
		for _, a := range attrs {
			changes = append(changes, ldap.Change{Operation: ldap.AddAttribute, Modification: a})
		}
		return changes, nil
	}
	return nil, nil
}

// printMetrics writes every non-zero counter in the registry, one
// sample per line.
func printMetrics(w io.Writer, registry *metrics.Registry) {
	families, err := registry.GetPrometheusRegistry().Gather()
	if err != nil {
		fmt.Fprintf(w, "# gather failed: %v\n", err)
		return
	}
	for _, mf := range families {
		if mf.GetType() != dto.MetricType_COUNTER {
			continue
		}
		for _, m := range mf.GetMetric() {
			value := m.GetCounter().GetValue()
			if value == 0 {
				continue
			}
			fmt.Fprintf(w, "%s%s %g\n", mf.GetName(), formatLabels(m.GetLabel()), value)
		}
	}
}

func formatLabels(pairs []*dto.LabelPair) string {
	if len(pairs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, fmt.Sprintf("%s=%q", p.GetName(), p.GetValue()))
	}
	sort.Strings(parts)
	return "{" + strings.Join(parts, ",") + "}"
}
