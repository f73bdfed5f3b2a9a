package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"time"

	sqlerrors "github.com/FocuswithJustin/sqlclient/core/errors"
)

// StorageKind is the representation the engine stores for a column.
type StorageKind string

const (
	KindText    StorageKind = "text"
	KindInteger StorageKind = "integer"
	KindReal    StorageKind = "real"
	KindBlob    StorageKind = "blob"
)

// Codec converts between a logical Go value and its stored representation.
//
// Stored values are always one of nil, int64, float64, string or []byte.
type Codec interface {
	Encode(logical any) (any, error)
	Decode(stored any) (any, error)
}

// FieldType pairs a storage kind with the codec used for a column.
type FieldType struct {
	name  string
	kind  StorageKind
	codec Codec
}

// Name returns the logical type name (text, integer, real, blob, json, datetime, boolean).
func (f FieldType) Name() string { return f.name }

// Kind returns the storage kind used in DDL.
func (f FieldType) Kind() StorageKind { return f.kind }

// Codec returns the codec of the field type.
func (f FieldType) Codec() Codec { return f.codec }

// IsZero reports whether f was never initialized.
func (f FieldType) IsZero() bool { return f.codec == nil }

// Text stores strings as text.
func Text() FieldType {
	return FieldType{name: "text", kind: KindText, codec: textCodec{}}
}

// Integer stores int64 values.
func Integer() FieldType {
	return FieldType{name: "integer", kind: KindInteger, codec: integerCodec{}}
}

// Real stores float64 values.
func Real() FieldType {
	return FieldType{name: "real", kind: KindReal, codec: realCodec{}}
}

// Blob stores raw bytes.
func Blob() FieldType {
	return FieldType{name: "blob", kind: KindBlob, codec: blobCodec{}}
}

// BlobWith stores a blob through a caller supplied codec. The codec's Encode
// must return []byte.
func BlobWith(codec Codec) FieldType {
	return FieldType{name: "blob", kind: KindBlob, codec: codec}
}

// JSON stores values of type T as JSON text. Decoding yields a T.
func JSON[T any]() FieldType {
	return FieldType{name: "json", kind: KindText, codec: jsonCodec[T]{}}
}

// Datetime stores time.Time as integer milliseconds since the Unix epoch.
// Precision below one millisecond is truncated.
func Datetime() FieldType {
	return FieldType{name: "datetime", kind: KindInteger, codec: datetimeCodec{}}
}

// Boolean stores bool as 0 or 1.
func Boolean() FieldType {
	return FieldType{name: "boolean", kind: KindInteger, codec: booleanCodec{}}
}

type textCodec struct{}

func (textCodec) Encode(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, typeMismatch("text", "string", v)
	}
	return s, nil
}

func (textCodec) Decode(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	}
	return nil, decodeMismatch("text", v)
}

type integerCodec struct{}

func (integerCodec) Encode(v any) (any, error) {
	n, ok := toInt64(v)
	if !ok {
		return nil, typeMismatch("integer", "integer", v)
	}
	return n, nil
}

func (integerCodec) Decode(v any) (any, error) {
	n, ok := storedInt64(v)
	if !ok {
		return nil, decodeMismatch("integer", v)
	}
	return n, nil
}

type realCodec struct{}

func (realCodec) Encode(v any) (any, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	}
	if n, ok := toInt64(v); ok {
		return float64(n), nil
	}
	return nil, typeMismatch("real", "float64", v)
}

func (realCodec) Decode(v any) (any, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	}
	return nil, decodeMismatch("real", v)
}

type blobCodec struct{}

func (blobCodec) Encode(v any) (any, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, typeMismatch("blob", "[]byte", v)
	}
	return b, nil
}

func (blobCodec) Decode(v any) (any, error) {
	switch x := v.(type) {
	case []byte:
		return x, nil
	case string:
		return []byte(x), nil
	}
	return nil, decodeMismatch("blob", v)
}

type jsonCodec[T any] struct{}

func (jsonCodec[T]) Encode(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json encode: %w", err)
	}
	return string(data), nil
}

func (jsonCodec[T]) Decode(v any) (any, error) {
	var data []byte
	switch x := v.(type) {
	case string:
		data = []byte(x)
	case []byte:
		data = x
	default:
		return nil, decodeMismatch("json", v)
	}

	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, sqlerrors.NewDecode("json", err)
	}
	return out, nil
}

type datetimeCodec struct{}

func (datetimeCodec) Encode(v any) (any, error) {
	switch x := v.(type) {
	case time.Time:
		return x.UnixMilli(), nil
	case *time.Time:
		if x != nil {
			return x.UnixMilli(), nil
		}
	}
	return nil, typeMismatch("datetime", "time.Time", v)
}

func (datetimeCodec) Decode(v any) (any, error) {
	ms, ok := storedInt64(v)
	if !ok {
		return nil, decodeMismatch("datetime", v)
	}
	return time.UnixMilli(ms).UTC(), nil
}

type booleanCodec struct{}

func (booleanCodec) Encode(v any) (any, error) {
	b, ok := v.(bool)
	if !ok {
		return nil, typeMismatch("boolean", "bool", v)
	}
	if b {
		return int64(1), nil
	}
	return int64(0), nil
}

func (booleanCodec) Decode(v any) (any, error) {
	n, ok := storedInt64(v)
	if !ok {
		return nil, decodeMismatch("boolean", v)
	}
	return n != 0, nil
}

// toInt64 accepts every Go integer kind. Unsigned values above MaxInt64 are rejected.
func toInt64(v any) (int64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	}
	return 0, false
}

// storedInt64 reads an integer the engine returned. Whole reals are accepted
// because SQLite may hand back a float for computed expressions.
func storedInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case float64:
		if x == math.Trunc(x) {
			return int64(x), true
		}
	}
	return toInt64(v)
}

func typeMismatch(field, want string, got any) error {
	return fmt.Errorf("%s column expects %s, got %T", field, want, got)
}

func decodeMismatch(field string, got any) error {
	return sqlerrors.NewDecode(field, fmt.Errorf("unexpected stored value of type %T", got))
}
