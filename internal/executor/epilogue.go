package executor

import (
	"context"
	"encoding/json"
)

// Epilogue is a no-op on Instantiate and runs its container to
// completion during TearDown, before the room's volume is deleted.
// Grounded on §4.2's description of docker.epilogue and
// original_source/inter_md/backend/executors/docker_epilogue.py, which
// mirrors DockerPrologue's structure with instantiate/tear-down swapped.
type Epilogue struct {
	base
}

func (e *Epilogue) Instantiate(ctx context.Context, volumeName string) error {
	e.volumeName = volumeName
	return nil
}

func (e *Epilogue) HandleMessage(ctx context.Context, raw json.RawMessage) error {
	return nil
}

func (e *Epilogue) TearDown(ctx context.Context) error {
	return e.runOnce(ctx)
}
