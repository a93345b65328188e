package executor

import (
	"context"
	"encoding/json"
)

// Prologue runs its container to completion synchronously during
// Instantiate, before the room reports itself instantiated. Grounded on
// docker_prologue.py.
type Prologue struct {
	base
}

func (p *Prologue) Instantiate(ctx context.Context, volumeName string) error {
	p.volumeName = volumeName
	return p.runOnce(ctx)
}

func (p *Prologue) HandleMessage(ctx context.Context, raw json.RawMessage) error {
	return nil
}

func (p *Prologue) TearDown(ctx context.Context) error {
	return nil
}
