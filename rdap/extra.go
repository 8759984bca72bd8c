package rdap

import (
	"bytes"
	"encoding/json"
	"reflect"
	"sort"
	"strings"
)

// Unknown-member preservation. RDAP servers routinely add members beyond
// RFC 9083 (extensions advertised in rdapConformance, vendor members), and
// those must survive a parse/serialize round trip. Each object class keeps
// an Extensions map for members its struct does not model; the helpers here
// split and re-join them around encoding/json.

// knownJSONKeys returns the set of json member names a struct type models,
// walking embedded structs.
func knownJSONKeys(t reflect.Type, keys map[string]struct{}) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous {
			knownJSONKeys(f.Type, keys)
			continue
		}
		tag := f.Tag.Get("json")
		if tag == "-" || tag == "" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if name != "" {
			keys[name] = struct{}{}
		}
	}
}

// extraMembers decodes data and returns every top-level member not modeled
// by v's struct type.
func extraMembers(data []byte, v any) map[string]any {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil
	}
	known := make(map[string]struct{})
	knownJSONKeys(reflect.TypeOf(v), known)
	var extra map[string]any
	for k, raw := range all {
		if _, ok := known[k]; ok {
			continue
		}
		var val any
		if err := json.Unmarshal(raw, &val); err != nil {
			continue
		}
		if extra == nil {
			extra = make(map[string]any)
		}
		extra[k] = val
	}
	return extra
}

// spliceExtra appends extra members onto an already-marshaled JSON object.
// The struct's own members keep their declaration order; extras follow in
// sorted key order so output is deterministic.
func spliceExtra(obj []byte, extra map[string]any) ([]byte, error) {
	if len(extra) == 0 {
		return obj, nil
	}
	trimmed := bytes.TrimRight(obj, " \t\r\n")
	if len(trimmed) < 2 || trimmed[len(trimmed)-1] != '}' {
		return obj, nil
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.Write(trimmed[:len(trimmed)-1])
	empty := len(bytes.TrimSpace(trimmed[1:len(trimmed)-1])) == 0
	for _, k := range keys {
		if !empty {
			buf.WriteByte(',')
		}
		empty = false
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(extra[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
