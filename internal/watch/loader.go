package watch

import "github.com/conneroisu/shaderwatch/internal/shader"

// loader is the reload strategy of a session: it knows which file
// path(s) to recompile and forwards each outcome to the result
// channel. Two variants exist, one per pipeline kind.
type loader interface {
	reload()
}

// graphicsLoader recompiles a vertex+fragment pair.
type graphicsLoader struct {
	vertex   string
	fragment string
	compiler *shader.Compiler
	results  chan<- Result
}

func (l *graphicsLoader) reload() {
	shaders, err := l.compiler.Load(l.vertex, l.fragment)
	if err != nil {
		send(l.results, Result{Err: err})

		return
	}

	entry, err := l.compiler.Parse(shaders)
	if err != nil {
		// Reflection failed: the artifact is discarded, not sent
		// partially.
		send(l.results, Result{Err: err})

		return
	}

	send(l.results, Result{Message: &Message{Shaders: shaders, Entry: entry}})
}

// computeLoader recompiles a single compute shader.
type computeLoader struct {
	compute  string
	compiler *shader.Compiler
	results  chan<- Result
}

func (l *computeLoader) reload() {
	shaders, err := l.compiler.LoadCompute(l.compute)
	if err != nil {
		send(l.results, Result{Err: err})

		return
	}

	entry, err := l.compiler.ParseCompute(shaders)
	if err != nil {
		send(l.results, Result{Err: err})

		return
	}

	send(l.results, Result{Message: &Message{Shaders: shaders, Entry: entry}})
}

// send delivers a result without ever blocking or panicking. If nobody
// drains the channel and the buffer fills up, the result is dropped;
// a stopped consumer must never take the session goroutine down.
func send(results chan<- Result, r Result) {
	select {
	case results <- r:
	default:
	}
}
