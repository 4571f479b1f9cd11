// Package listener owns the interactive terminal: line input plus output that
// can be printed above the prompt while a mission runs in the background.
package listener

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/chzyer/readline"
)

// ErrClosed is returned by GetInput on EOF or Ctrl+C.
var ErrClosed = errors.New("input closed")

const basePrompt = "research> "

// console is the process-wide terminal. Output printed while a question is
// pending is queued and flushed once it is answered.
type console struct {
	mu       sync.Mutex
	rl       *readline.Instance
	out      io.Writer // used when no readline instance is attached
	prompt   string
	asking   bool
	held     []string
	progress string
}

var term = &console{out: os.Stdout, prompt: basePrompt}

func Init(historyFile string) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          basePrompt,
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	term.mu.Lock()
	term.rl = rl
	term.mu.Unlock()
	return nil
}

func Close() {
	term.mu.Lock()
	defer term.mu.Unlock()
	if term.rl != nil {
		_ = term.rl.Close()
		term.rl = nil
	}
}

// SetProgress shows the running mission's progress in the prompt, e.g.
// "research [42%]> ". An empty label restores the plain prompt.
func SetProgress(label string, pct float64) {
	term.mu.Lock()
	defer term.mu.Unlock()
	if label == "" {
		term.progress = ""
	} else {
		term.progress = fmt.Sprintf("%s %.0f%%", label, pct)
	}
	term.applyPrompt()
}

func promptFor(progress string) string {
	if progress == "" {
		return basePrompt
	}
	return "research [" + progress + "]> "
}

func (c *console) applyPrompt() {
	c.prompt = promptFor(c.progress)
	if c.rl != nil && !c.asking {
		c.rl.SetPrompt(c.prompt)
		c.rl.Refresh()
	}
}

func (c *console) write(s string) {
	if c.rl == nil {
		fmt.Fprintln(c.out, s)
		return
	}
	_, _ = c.rl.Write([]byte("\r\n" + s + "\r\n"))
	c.rl.Refresh()
}

// AsyncPrintln prints above the prompt, or queues the line while a question
// is being asked.
func AsyncPrintln(s string) {
	term.mu.Lock()
	defer term.mu.Unlock()
	if term.asking {
		term.held = append(term.held, s)
		return
	}
	term.write(s)
}

func GetInput() (string, error) {
	term.mu.Lock()
	rl := term.rl
	term.mu.Unlock()
	if rl == nil {
		return "", ErrClosed
	}
	line, err := rl.Readline()
	if err != nil {
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return "", ErrClosed
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (c *console) beginQuestion(question string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.write(question)
	c.asking = true
	if c.rl != nil {
		c.rl.SetPrompt("> ")
	}
}

func (c *console) endQuestion() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.asking = false
	for _, s := range c.held {
		c.write(s)
	}
	c.held = nil
	c.applyPrompt()
}

func parseYesNo(ans string) (yes, ok bool) {
	switch strings.ToLower(strings.TrimSpace(ans)) {
	case "y", "yes":
		return true, true
	case "", "n", "no":
		return false, true
	}
	return false, false
}

// AskYesNo blocks until the user answers. An empty line, EOF or Ctrl+C
// counts as no.
func AskYesNo(question string) bool {
	term.beginQuestion(question + " [y/n]")
	defer term.endQuestion()

	for {
		ans, err := GetInput()
		if err != nil {
			return false
		}
		if yes, ok := parseYesNo(ans); ok {
			return yes
		}
		term.mu.Lock()
		term.write("Please answer y/n.")
		term.mu.Unlock()
	}
}
