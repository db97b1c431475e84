package store

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// TimeLayout is how timestamps are stored. The fixed width keeps string
// order equal to chronological order in every backend.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// timeFields are the document fields holding timestamps.
var timeFields = map[string]bool{
	"createdAt":     true,
	"updatedAt":     true,
	"requestedAt":   true,
	"reconfirmedAt": true,
}

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string { return t.UTC().Format(TimeLayout) }

// Encode converts a json-tagged struct into document fields.
func Encode(v any) (Fields, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	var f Fields
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	NormalizeTimes(f)
	return f, nil
}

// NormalizeTimes rewrites the known timestamp fields of f into TimeLayout.
func NormalizeTimes(f Fields) {
	for k, v := range f {
		if !timeFields[k] {
			continue
		}
		switch t := v.(type) {
		case string:
			if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
				f[k] = FormatTime(ts)
			}
		case time.Time:
			f[k] = FormatTime(t)
		}
	}
}

// Decode fills the json-tagged struct pointed to by out from f. Input is
// weakly typed: numbers may arrive as strings and timestamps as RFC 3339.
func Decode(f Fields, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Squash:           true,
		WeaklyTypedInput: true,
		Result:           out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			emptyStringToZeroTime,
			mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(map[string]any(f)); err != nil {
		return fmt.Errorf("decode %T: %w", out, err)
	}
	return nil
}

// emptyStringToZeroTime lets "" stand for an unset timestamp.
func emptyStringToZeroTime(from, to reflect.Type, data any) (any, error) {
	if from.Kind() == reflect.String && to == reflect.TypeOf(time.Time{}) && data == "" {
		return time.Time{}, nil
	}
	return data, nil
}
