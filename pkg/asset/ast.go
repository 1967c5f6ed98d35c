package asset

import (
	"context"
	"encoding/json"
)

// AST is the opaque parsed representation of an asset.
//
// Program is a serialized payload in a plugin-specific format identified by
// Type and Version. The engine never inspects it; it only shuttles it
// between the serializer, the code generator, and the plugin boundary.
type AST struct {
	Type    string `json:"type"`
	Version string `json:"version"`
	Program []byte `json:"program"`
}

// Serializer converts ASTs to and from cache blobs.
type Serializer interface {
	Serialize(ast *AST) ([]byte, error)
	Deserialize(data []byte) (*AST, error)
}

// JSONSerializer is the default AST serializer.
// The envelope is JSON; Program stays opaque inside it.
type JSONSerializer struct{}

// Serialize encodes the AST envelope as JSON.
func (JSONSerializer) Serialize(ast *AST) ([]byte, error) {
	return json.Marshal(ast)
}

// Deserialize decodes a JSON AST envelope.
func (JSONSerializer) Deserialize(data []byte) (*AST, error) {
	var ast AST
	if err := json.Unmarshal(data, &ast); err != nil {
		return nil, err
	}
	return &ast, nil
}

// GenerateOutput is the result of regenerating code from an AST.
type GenerateOutput struct {
	Content []byte
	Map     []byte // serialized source map, may be nil
}

// Generator regenerates code (and optionally a source map) from a cached
// AST. Invoked only on cache miss for derived content.
type Generator interface {
	Generate(ctx context.Context, a *Asset, ast *AST) (GenerateOutput, error)
}
