package console

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// syncBuffer lets the race detector see the buffer is only touched under
// the console lock, while still being readable after the goroutines finish.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestNotifyRePrompts(t *testing.T) {
	out := &syncBuffer{}
	c := New(Options{Out: out, Err: out})

	c.Notify("Message received from 1.2.3.4:5", "Message: hi")
	assert.Equal(t, "\nMessage received from 1.2.3.4:5\nMessage: hi\n> ", out.String())
}

func TestPrintfAddsNewline(t *testing.T) {
	out := &syncBuffer{}
	errOut := &syncBuffer{}
	c := New(Options{Out: out, Err: errOut, Prompt: "chat> "})

	c.Printf("My Port: %d", 5000)
	c.Printf("already terminated\n")
	c.Errorf("Invalid connection ID.")
	c.Prompt()

	assert.Equal(t, "My Port: 5000\nalready terminated\nchat> ", out.String())
	assert.Equal(t, "Invalid connection ID.\n", errOut.String())
}

func TestHighlight(t *testing.T) {
	assert.Equal(t, "x", New(Options{}).Highlight("x"))
	assert.Equal(t, "\033[0;35mx\033[0m", New(Options{Color: true}).Highlight("x"))
}

func TestConcurrentWritesDoNotInterleave(t *testing.T) {
	out := &syncBuffer{}
	c := New(Options{Out: out, Err: out})

	const writers, perWriter = 8, 50
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if i%2 == 0 {
					c.Notify(fmt.Sprintf("writer-%d-line-%d-%s", w, i, strings.Repeat("x", 100)))
				} else {
					c.Printf("writer-%d-line-%d-%s", w, i, strings.Repeat("y", 100))
				}
			}
		}(w)
	}
	wg.Wait()

	lines := strings.Split(out.String(), "\n")
	count := 0
	for _, l := range lines {
		l = strings.TrimPrefix(l, DefaultPrompt)
		if l == "" {
			continue
		}
		count++
		assert.Regexp(t, `^writer-\d+-line-\d+-(x{100}|y{100})$`, l)
	}
	assert.Equal(t, writers*perWriter, count)
}
