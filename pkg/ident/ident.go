// Package ident derives stable identifiers from record contents.
package ident

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ServiceName scopes every derived identifier to this service.
const ServiceName = "todo-api.shiftedhelix.com"

var Namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte(ServiceName))

// Seed is the structured input an identifier is derived from.
type Seed map[string]any

// Derive returns a version 5 UUID for seed. Field order, at any depth, does not
// affect the result.
func Derive(seed Seed) string {
	return uuid.NewSHA1(Namespace, canonical(seed)).String()
}

func canonical(seed Seed) []byte {
	raw, err := json.Marshal(seed)
	if err != nil {
		return []byte(fmt.Sprintf("%v", map[string]any(seed)))
	}

	// round trip through generic values so nested structs are rewritten as
	// maps, which encoding/json emits with sorted keys
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return raw
	}
	normalised, err := json.Marshal(generic)
	if err != nil {
		return raw
	}
	return normalised
}
