// Package uuid provides the UUID implementation of media.IDGenerator.
package uuid

import "github.com/google/uuid"

// Generator produces random UUID job IDs.
type Generator struct{}

// New constructs a Generator.
func New() *Generator { return &Generator{} }

// NewID returns a new random UUID string.
func (g *Generator) NewID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
