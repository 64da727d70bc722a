package scheduler

import (
	"io"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"go.uber.org/zap"

	"github.com/carlbunn/musicbox/logger"
)

// KeyboardReader simulates a tag reader on the terminal for
// development without hardware. Digits 1-9 stand in for tags
// MOCK_TAG_1 through MOCK_TAG_9; q quits, l toggles learning mode,
// n and p cycle learning-mode candidates. Anything else is treated as
// a raw tag uid.
type KeyboardReader struct {
	rl        *readline.Instance
	tags      chan string
	closeOnce sync.Once
}

func NewKeyboardReader() (*KeyboardReader, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "tap> ",
		InterruptPrompt: "^C",
	})
	if err != nil {
		return nil, err
	}
	r := &KeyboardReader{
		rl:   rl,
		tags: make(chan string, 8),
	}
	go r.run()
	logger.Info("keyboard tag reader active, keys 1-9 tap mock tags, q quits")
	return r, nil
}

func (r *KeyboardReader) run() {
	for {
		line, err := r.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				r.push(EventQuit)
				return
			}
			logger.Warn("readline error", zap.Error(err))
			continue
		}
		if tag := translateKey(line); tag != "" {
			r.push(tag)
		}
	}
}

func (r *KeyboardReader) push(tag string) {
	select {
	case r.tags <- tag:
	default:
		logger.Warn("dropping keyboard input, queue full", zap.String("tag", tag))
	}
}

func translateKey(line string) string {
	key := strings.ToLower(strings.TrimSpace(line))
	switch key {
	case "":
		return ""
	case "q", "quit":
		return EventQuit
	case "l", "learn":
		return EventLearn
	case "n", "next":
		return EventNext
	case "p", "prev":
		return EventPrev
	}
	if len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
		return "MOCK_TAG_" + key
	}
	return NormalizeTagID(line)
}

func (r *KeyboardReader) ReadTag() (string, error) {
	select {
	case tag := <-r.tags:
		return tag, nil
	default:
		return "", nil
	}
}

func (r *KeyboardReader) Close() error {
	var err error
	r.closeOnce.Do(func() {
		err = r.rl.Close()
	})
	return err
}
