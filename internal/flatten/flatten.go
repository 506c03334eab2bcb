// Package flatten implements the document flattener: it walks a
// parsed JSON value into an ordered sequence of scalar
// (path, typed_value, position) entries plus a deterministic
// structural fingerprint used to intern schemas.
package flatten

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"
)

// DataType classifies a flattened scalar leaf.
type DataType string

const (
	TypeString  DataType = "string"
	TypeInteger DataType = "integer"
	TypeNumber  DataType = "number"
	TypeBoolean DataType = "boolean"
	TypeNull    DataType = "null"
	// TypeArray and TypeObject never appear on an Entry: a container
	// is never itself emitted, only its scalar leaves are.
	// They exist so FieldConstraint.DataType can declare "this path is
	// a container" without matching any flattened leaf's own type.
	TypeArray  DataType = "array"
	TypeObject DataType = "object"
)

// Entry is one scalar leaf discovered while walking a document.
type Entry struct {
	Path     string
	DataType DataType
	Value    string // canonical text form of the scalar
	Position *int   // non-nil when Path passed through an array element
}

// Entries is an ordered list of Entry, in emission order.
type Entries []Entry

// elementTriple is the (path, data_type, nullable) shape the structural
// fingerprint is computed over.
type elementTriple struct {
	Path     string `json:"path"`
	DataType string `json:"data_type"`
	Nullable bool   `json:"nullable"`
}

// Flatten walks v (the result of json.Unmarshal into any) and returns
// its scalar leaves plus a fingerprint stable across documents that
// share the same set of (path, data_type, nullable) triples.
func Flatten(v interface{}) (Entries, string) {
	w := &walker{nullable: make(map[string]bool)}
	w.walk("", v, nil)

	fp := w.fingerprint()
	return w.entries, fp
}

type walker struct {
	entries  Entries
	nullable map[string]bool
	typeOf   orderedTypes // path -> first-seen DataType, for fingerprint triples
}

// orderedTypes is a tiny insertion-ordered map. Flattening runs
// single-threaded per call so a plain map plus an ordered key slice
// suffices.
type orderedTypes struct {
	keys []string
	vals map[string]DataType
}

func (m *orderedTypes) set(path string, dt DataType) {
	if m.vals == nil {
		m.vals = make(map[string]DataType)
	}
	if _, ok := m.vals[path]; !ok {
		m.keys = append(m.keys, path)
	}
	// First non-null type observed wins for the fingerprint triple; a
	// field seen only as null is recorded as TypeNull.
	if existing, ok := m.vals[path]; !ok || existing == TypeNull {
		m.vals[path] = dt
	}
}

func (w *walker) walk(path string, v interface{}, position *int) {
	switch val := v.(type) {
	case map[string]interface{}:
		// Members are walked in sorted key order so the emitted sequence
		// is a pure function of the document, not of map iteration.
		for _, key := range sortedKeys(val) {
			childPath := joinPath(path, key)
			w.walk(childPath, val[key], position)
		}
	case []interface{}:
		// Only one level of positional unfolding: nested arrays inside an
		// array element keep the outer element's position.
		for i, child := range val {
			idx := i
			p := position
			if p == nil {
				p = &idx
			}
			w.walkArrayElement(path, child, p)
		}
	case nil:
		w.emit(path, TypeNull, "null", position)
		w.nullable[path] = true
	case bool:
		w.emit(path, TypeBoolean, strconv.FormatBool(val), position)
	case float64:
		if val == float64(int64(val)) {
			w.emit(path, TypeInteger, strconv.FormatInt(int64(val), 10), position)
		} else {
			w.emit(path, TypeNumber, strconv.FormatFloat(val, 'g', -1, 64), position)
		}
	case json.Number:
		if i, err := val.Int64(); err == nil {
			w.emit(path, TypeInteger, strconv.FormatInt(i, 10), position)
		} else {
			f, _ := val.Float64()
			w.emit(path, TypeNumber, strconv.FormatFloat(f, 'g', -1, 64), position)
		}
	case string:
		w.emit(path, TypeString, val, position)
	}
}

// walkArrayElement descends into one array element, which may itself
// be an object, array, or scalar; only arrays nested a second level
// deep collapse their inner positions into the outer one.
func (w *walker) walkArrayElement(path string, v interface{}, position *int) {
	switch val := v.(type) {
	case map[string]interface{}:
		for _, key := range sortedKeys(val) {
			childPath := joinPath(path, key)
			w.walk(childPath, val[key], position)
		}
	case []interface{}:
		for _, child := range val {
			w.walkArrayElement(path, child, position)
		}
	default:
		w.walk(path, v, position)
	}
}

func (w *walker) emit(path string, dt DataType, value string, position *int) {
	var pos *int
	if position != nil {
		p := *position
		pos = &p
	}
	w.entries = append(w.entries, Entry{Path: path, DataType: dt, Value: value, Position: pos})
	w.typeOf.set(path, dt)
	if dt == TypeNull {
		w.nullable[path] = true
	}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func joinPath(base, key string) string {
	if base == "" {
		return key
	}
	return base + "." + key
}

// fingerprint computes the SHA-256 hash of the sorted (path, data_type,
// nullable) triple list.
func (w *walker) fingerprint() string {
	triples := make([]elementTriple, 0, len(w.typeOf.keys))
	for _, path := range w.typeOf.keys {
		triples = append(triples, elementTriple{
			Path:     path,
			DataType: string(w.typeOf.vals[path]),
			Nullable: w.nullable[path],
		})
	}
	sort.Slice(triples, func(i, j int) bool {
		if triples[i].Path != triples[j].Path {
			return triples[i].Path < triples[j].Path
		}
		if triples[i].DataType != triples[j].DataType {
			return triples[i].DataType < triples[j].DataType
		}
		return !triples[i].Nullable && triples[j].Nullable
	})

	b, _ := json.Marshal(triples)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
