package executor

import (
	"context"
	"testing"

	"github.com/h3ndrk/roomhost/internal/dockerengine"
	"github.com/h3ndrk/roomhost/internal/dockerengine/dockerenginetest"
)

func TestEpilogueInstantiateIsNoOp(t *testing.T) {
	engine := dockerenginetest.New()
	e := &Epilogue{base: newTestBase(engine, Config{Type: "docker.epilogue"}, (&recordingSender{}).Sender())}
	if err := e.Instantiate(context.Background(), "vol-1"); err != nil {
		t.Fatalf("Instantiate() = %v, want nil", err)
	}
	if len(engine.Calls) != 0 {
		t.Errorf("Instantiate() made engine calls %v, want none", engine.Calls)
	}
}

func TestEpilogueTearDownRunsContainerToCompletion(t *testing.T) {
	engine := dockerenginetest.New()
	name := dockerengine.ContainerName("room-1", "exec-1")
	e := &Epilogue{base: newTestBase(engine, Config{Type: "docker.epilogue"}, (&recordingSender{}).Sender())}
	e.volumeName = "vol-1"

	errCh := make(chan error, 1)
	go func() { errCh <- e.TearDown(context.Background()) }()

	stream := waitForStream(t, engine, name)
	stream.PushEOF()

	if err := <-errCh; err != nil {
		t.Fatalf("TearDown() = %v, want nil", err)
	}
	if _, ok := engine.Containers[name]; ok {
		t.Error("container was not deleted after run_once completed")
	}
}

func TestEpilogueHandleMessageIsNoOp(t *testing.T) {
	engine := dockerenginetest.New()
	e := &Epilogue{base: newTestBase(engine, Config{Type: "docker.epilogue"}, (&recordingSender{}).Sender())}
	if err := e.HandleMessage(context.Background(), nil); err != nil {
		t.Errorf("HandleMessage() = %v, want nil", err)
	}
}
