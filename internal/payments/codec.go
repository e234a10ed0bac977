package payments

import (
	"encoding/json"
	"fmt"

	"paymanager/internal/core"
)

// Encode serializes p with every timestamp in UTC.
func Encode(p core.Payment) (string, error) {
	p.DueAt = p.DueAt.UTC()
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode payment: %w", err)
	}
	return string(b), nil
}

// Decode revives a stored value, timestamps included, and checks it.
func Decode(key, value string) (core.Payment, error) {
	var p core.Payment
	if err := json.Unmarshal([]byte(value), &p); err != nil {
		return core.Payment{}, &ParseError{Key: key, Err: err}
	}
	if err := p.Validate(); err != nil {
		return core.Payment{}, &ParseError{Key: key, Err: err}
	}
	return p, nil
}
