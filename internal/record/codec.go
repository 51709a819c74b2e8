package record

import (
	"encoding/json"
	"fmt"

	"github.com/danya02/multibooru-mirror/internal/snowflake"
)

// envelope is the self-describing wire form of a Record. The source and kind
// tags select the payload type on decode.
type envelope struct {
	ID     snowflake.Snowflake `json:"id"`
	Source string              `json:"source"`
	Kind   string              `json:"kind"`
	Data   json.RawMessage     `json:"data"`
}

// decoders maps "source/kind" to a payload decoder. This table is the single
// place a new variant has to be registered.
var decoders = map[string]func(raw []byte) (Data, error){
	"danbooru/comment": decodeInto[DanbooruComment],
	"danbooru/post":    decodeInto[DanbooruPost],
	"danbooru/tag":     decodeInto[DanbooruTag],
	"rule34/comment":   decodeInto[Rule34Comment],
	"media/media":      decodeInto[Media],
}

func decodeInto[T Data](raw []byte) (Data, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// MarshalJSON encodes the record in its envelope form.
func (r Record) MarshalJSON() ([]byte, error) {
	if r.Data == nil {
		return nil, fmt.Errorf("record %s has no data", r.ID)
	}
	payload, err := json.Marshal(r.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal record payload: %w", err)
	}
	source, kind := r.Data.sourceKind()
	return json.Marshal(envelope{
		ID:     r.ID,
		Source: source,
		Kind:   kind,
		Data:   payload,
	})
}

// UnmarshalJSON decodes the envelope form, selecting the payload type from
// the source and kind tags. Unknown tags are an error: the union is closed.
func (r *Record) UnmarshalJSON(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("unmarshal record envelope: %w", err)
	}
	decode, ok := decoders[env.Source+"/"+env.Kind]
	if !ok {
		return fmt.Errorf("unknown record variant %q/%q", env.Source, env.Kind)
	}
	payload, err := decode(env.Data)
	if err != nil {
		return fmt.Errorf("unmarshal %s/%s payload: %w", env.Source, env.Kind, err)
	}
	r.ID = env.ID
	r.Data = payload
	return nil
}

// Encode serializes a record for the bus or for file storage.
func Encode(r Record) ([]byte, error) {
	return json.Marshal(r)
}

// Decode parses a record off the bus. Failure means the message cannot be
// persisted and should be dead-lettered.
func Decode(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, err
	}
	return r, nil
}
