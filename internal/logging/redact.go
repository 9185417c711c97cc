package logging

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/landrag/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

const redacted = "[REDACTED]"

// Secret creates a field for a config.Secret that reveals only whether it is
// set and how long it is.
func Secret(key string, val config.Secret) zap.Field {
	if !val.IsSet() {
		return zap.String(key, "[UNSET]")
	}
	return zap.String(key, "[REDACTED:"+strconv.Itoa(len(val.Value()))+"]")
}

// scrubber holds compiled redaction rules. It is shared by encoder clones.
type scrubber struct {
	secretKeys map[string]struct{}
	patterns   []*regexp.Regexp
	bulkyKeys  map[string]struct{}
	maxLen     int
}

func newScrubber(cfg RedactionConfig) (*scrubber, error) {
	s := &scrubber{
		secretKeys: keySet(cfg.Fields),
		bulkyKeys:  keySet(cfg.BulkyFields),
		maxLen:     cfg.MaxValueLen,
	}
	for _, p := range cfg.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		s.patterns = append(s.patterns, re)
	}
	return s, nil
}

func keySet(keys []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[strings.ToLower(k)] = struct{}{}
	}
	return set
}

func (s *scrubber) secret(key string) bool {
	_, ok := s.secretKeys[strings.ToLower(key)]
	return ok
}

// scrub masks secret-looking substrings and shortens bulky values such as
// chunk text or polygon WKT.
func (s *scrubber) scrub(key, val string) string {
	for _, re := range s.patterns {
		val = re.ReplaceAllString(val, redacted)
	}
	if _, bulky := s.bulkyKeys[strings.ToLower(key)]; bulky && s.maxLen > 0 && len(val) > s.maxLen {
		cut := s.maxLen
		for cut > 0 && !isRuneStart(val[cut]) {
			cut--
		}
		val = val[:cut] + "...(+" + strconv.Itoa(len(val)-cut) + " bytes)"
	}
	return val
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

// RedactingEncoder wraps a zapcore.Encoder, masking secret fields and
// truncating bulky ones before they are serialized.
type RedactingEncoder struct {
	zapcore.Encoder
	rules *scrubber
}

// NewRedactingEncoder wraps base with the rules in cfg. A disabled config
// passes everything through.
func NewRedactingEncoder(base zapcore.Encoder, cfg RedactionConfig) (*RedactingEncoder, error) {
	if !cfg.Enabled {
		return &RedactingEncoder{Encoder: base}, nil
	}
	rules, err := newScrubber(cfg)
	if err != nil {
		return nil, err
	}
	return &RedactingEncoder{Encoder: base, rules: rules}, nil
}

func (e *RedactingEncoder) AddString(key, val string) {
	switch {
	case e.rules == nil:
		e.Encoder.AddString(key, val)
	case e.rules.secret(key):
		e.Encoder.AddString(key, redacted)
	default:
		e.Encoder.AddString(key, e.rules.scrub(key, val))
	}
}

func (e *RedactingEncoder) AddByteString(key string, val []byte) {
	if e.rules == nil {
		e.Encoder.AddByteString(key, val)
		return
	}
	e.AddString(key, string(val))
}

func (e *RedactingEncoder) AddReflected(key string, val interface{}) error {
	if e.rules != nil && e.rules.secret(key) {
		e.Encoder.AddString(key, redacted)
		return nil
	}
	return e.Encoder.AddReflected(key, val)
}

func (e *RedactingEncoder) AddObject(key string, obj zapcore.ObjectMarshaler) error {
	if e.rules != nil && e.rules.secret(key) {
		e.Encoder.AddString(key, redacted)
		return nil
	}
	return e.Encoder.AddObject(key, obj)
}

func (e *RedactingEncoder) Clone() zapcore.Encoder {
	return &RedactingEncoder{Encoder: e.Encoder.Clone(), rules: e.rules}
}

// EncodeEntry routes per-entry fields through the redacting methods and
// scrubs the message itself, since errors often end up there.
func (e *RedactingEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	clone := e.Clone().(*RedactingEncoder)
	for _, f := range fields {
		f.AddTo(clone)
	}
	if e.rules != nil {
		ent.Message = e.rules.scrub("", ent.Message)
	}
	return clone.Encoder.EncodeEntry(ent, nil)
}
