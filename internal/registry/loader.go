package registry

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the registry YAML and returns it with the raw bytes
// SSOT 핵심: KnownFields(true)로 오타/미사용 필드 즉시 실패
func Load(path string) (*Registry, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read registry: %w", err)
	}

	reg, err := Parse(data)
	if err != nil {
		return nil, data, err
	}
	return reg, data, nil
}

// Parse decodes and validates registry YAML
func Parse(data []byte) (*Registry, error) {
	var reg Registry
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&reg); err != nil {
		return nil, SchemaError{"registry", err.Error()}
	}

	if err := Validate(&reg); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Hash generates SHA256 hash from the registry (canonical JSON)
// map 키는 encoding/json 이 정렬하므로 재현 가능
func Hash(reg *Registry) (string, error) {
	jsonBytes, err := json.Marshal(reg)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}
