// Package bluez reads and rewrites the per-device records BlueZ keeps under
// /var/lib/bluetooth/<adapter>/<device>/info. Records are parsed into an
// ordered section model so that fields this tool does not know about survive
// a rewrite byte-for-byte.
package bluez

import (
	"bufio"
	"bytes"
	"io"
	"strings"
)

// KV is one key=value line inside a section.
type KV struct {
	Key   string
	Value string
}

// Section is one [Name] block with its lines in file order.
type Section struct {
	Name string
	Keys []KV
}

// Record is the ordered content of one info file.
type Record struct {
	Sections []Section
}

// ParseRecord reads a record line by line. [Name] lines open a section,
// key=value lines attach to the open section (split at the first '=').
// Blank lines, lines before the first header, and anything else are
// ignored without error.
func ParseRecord(r io.Reader) (*Record, error) {
	rec := &Record{}
	var cur *Section

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
		case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
			rec.Sections = append(rec.Sections, Section{Name: line[1 : len(line)-1]})
			cur = &rec.Sections[len(rec.Sections)-1]
		default:
			key, value, found := strings.Cut(line, "=")
			if !found || cur == nil {
				continue
			}
			cur.Keys = append(cur.Keys, KV{Key: key, Value: value})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return rec, nil
}

// Marshal renders the record in canonical form: each section header
// followed by its key=value lines, one blank line between sections, and a
// trailing newline.
func (r *Record) Marshal() []byte {
	var buf bytes.Buffer
	for i, sec := range r.Sections {
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteByte('[')
		buf.WriteString(sec.Name)
		buf.WriteString("]\n")
		for _, kv := range sec.Keys {
			buf.WriteString(kv.Key)
			buf.WriteByte('=')
			buf.WriteString(kv.Value)
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes()
}

// Set updates key in the named section, keeping the key's position when it
// already exists. Missing keys are appended to the section, a missing
// section is appended to the record.
func (r *Record) Set(section, key, value string) {
	for i := range r.Sections {
		if r.Sections[i].Name != section {
			continue
		}
		sec := &r.Sections[i]
		for j := range sec.Keys {
			if sec.Keys[j].Key == key {
				sec.Keys[j].Value = value
				return
			}
		}
		sec.Keys = append(sec.Keys, KV{Key: key, Value: value})
		return
	}
	r.Sections = append(r.Sections, Section{
		Name: section,
		Keys: []KV{{Key: key, Value: value}},
	})
}

// Get returns the value of key in the named section.
func (r *Record) Get(section, key string) (string, bool) {
	for _, sec := range r.Sections {
		if sec.Name != section {
			continue
		}
		for _, kv := range sec.Keys {
			if kv.Key == key {
				return kv.Value, true
			}
		}
	}
	return "", false
}
