package persistence

import (
	"bytes"
	"encoding/gob"
	"time"

	"github.com/petrijr/sagaflow/pkg/api"
)

func init() {
	// Payload values are interface-typed; gob needs the composite shapes
	// registered up front (basic types are pre-registered by the package).
	gob.Register(map[string]any{})
	gob.Register([]any{})
	gob.Register(time.Time{})
}

// instanceBody bundles the non-queryable parts of an instance into a single
// gob blob. Queryable fields (status, stage, version, timestamps) stay as
// native columns or struct fields in each backend.
type instanceBody struct {
	Order           api.Order
	Attempts        map[api.Stage]int
	Payload         map[string]any
	CompletedStages []api.Stage
	Unresolved      []string
}

func encodeBody(inst *api.Instance) ([]byte, error) {
	body := instanceBody{
		Order:           inst.Order,
		Attempts:        inst.Attempts,
		Payload:         inst.Payload,
		CompletedStages: inst.CompletedStages,
		Unresolved:      inst.Unresolved,
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeBody(data []byte, inst *api.Instance) error {
	if len(data) == 0 {
		return nil
	}
	var body instanceBody
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&body); err != nil {
		return err
	}
	inst.Order = body.Order
	inst.Attempts = body.Attempts
	inst.Payload = body.Payload
	inst.CompletedStages = body.CompletedStages
	inst.Unresolved = body.Unresolved
	if inst.Attempts == nil {
		inst.Attempts = make(map[api.Stage]int)
	}
	if inst.Payload == nil {
		inst.Payload = make(map[string]any)
	}
	return nil
}
