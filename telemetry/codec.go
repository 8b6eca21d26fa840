package telemetry

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Protocol tokens exchanged with the handheld remote.
const (
	ProbeToken       = "Test Connection"
	ProbeAckToken    = "Connection Established"
	DataPrefix       = "Data: "
	UpdateAckToken   = "received"
	HeartbeatToken   = "ping"
	entrySeparator   = ", "
	keyValueSplitter = "="
)

// Kind classifies an inbound line.
type Kind int

const (
	KindUnrecognized Kind = iota
	KindProbe
	KindUpdate
)

func (k Kind) String() string {
	switch k {
	case KindProbe:
		return "probe"
	case KindUpdate:
		return "update"
	default:
		return "unrecognized"
	}
}

// Message is the result of decoding one line.
type Message struct {
	Kind   Kind
	Update Update // valid when Kind == KindUpdate
	Raw    string
}

// Ack returns the acknowledgement token owed to the sender, if any.
func (m Message) Ack() (string, bool) {
	switch m.Kind {
	case KindProbe:
		return ProbeAckToken, true
	case KindUpdate:
		return UpdateAckToken, true
	}
	return "", false
}

// ParseError reports a Data message that was rejected as a whole.
type ParseError struct {
	Line   string
	Entry  string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Entry == "" {
		return fmt.Sprintf("telemetry: %s", e.Reason)
	}
	return fmt.Sprintf("telemetry: %s in entry %q", e.Reason, e.Entry)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Decoder holds the key policy for Data messages. The zero value ignores keys
// it does not recognize, which is how the reference client has always been
// served.
type Decoder struct {
	// StrictKeys rejects a Data message containing an unknown key.
	StrictKeys bool
}

// Decode classifies line using the permissive policy.
func Decode(line string) (Message, error) {
	return Decoder{}.Decode(line)
}

// Decode classifies line. A rejected Data message comes back as
// KindUnrecognized together with a *ParseError.
func (d Decoder) Decode(line string) (Message, error) {
	line = strings.TrimRight(line, "\r\n")
	msg := Message{Raw: line}

	switch {
	case line == ProbeToken:
		msg.Kind = KindProbe
		return msg, nil

	case strings.HasPrefix(line, DataPrefix):
		update, err := d.parseData(line, strings.TrimPrefix(line, DataPrefix))
		if err != nil {
			return msg, err
		}
		msg.Kind = KindUpdate
		msg.Update = update
		return msg, nil
	}

	return msg, nil
}

func (d Decoder) parseData(line, payload string) (update Update, err error) {
	for _, entry := range strings.Split(payload, entrySeparator) {
		key, value, ok := strings.Cut(entry, keyValueSplitter)
		if !ok {
			return Update{}, &ParseError{Line: line, Entry: entry, Reason: "missing '='"}
		}
		key = strings.TrimSpace(key)

		v, perr := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if perr != nil {
			return Update{}, &ParseError{Line: line, Entry: entry, Reason: "invalid number", Err: perr}
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Update{}, &ParseError{Line: line, Entry: entry, Reason: "non-finite value"}
		}

		field, known := LookupField(key)
		if !known {
			if d.StrictKeys {
				return Update{}, &ParseError{Line: line, Entry: entry, Reason: "unknown key"}
			}
			continue
		}
		update.Set(field, v)
	}

	return update, nil
}

// Encode formats r the way the handheld client sends it.
func Encode(r Record) string {
	var sb strings.Builder
	sb.WriteString(DataPrefix)
	for i, f := range Fields() {
		if i > 0 {
			sb.WriteString(entrySeparator)
		}
		sb.WriteString(f.String())
		sb.WriteString(keyValueSplitter)
		sb.WriteString(strconv.FormatFloat(r.Get(f), 'f', -1, 64))
	}
	return sb.String()
}
