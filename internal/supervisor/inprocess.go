package supervisor

import (
	"context"
	"io"
	"sync"

	"github.com/codefionn/pulpit/internal/logger"
)

// FuncSpawner runs the worker loop on goroutines of the host process,
// connected through in-memory pipes. Useful for tests and for platforms
// where re-executing the binary is not possible.
type FuncSpawner struct {
	Run    func(ctx context.Context, in io.Reader, out io.Writer) error
	Logger *logger.Logger
}

// Spawn implements Spawner.
func (s FuncSpawner) Spawn(_ context.Context) (Process, error) {
	log := s.Logger
	if log == nil {
		log = logger.Global().WithPrefix("supervisor")
	}

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())

	result := make(chan error, 1)
	go func() {
		err := s.Run(ctx, inR, outW)
		_ = outW.Close()
		result <- err
	}()

	var once sync.Once
	var runErr error
	wait := func() error {
		once.Do(func() {
			runErr = <-result
			cancel()
		})
		return runErr
	}
	kill := func() error {
		cancel()
		_ = inR.CloseWithError(io.EOF)
		return nil
	}
	return NewStreamProcess(0, inW, outR, wait, kill, log), nil
}
