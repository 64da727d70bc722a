package scheduler

import (
	"bufio"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/carlbunn/musicbox/logger"
)

// DeviceReader reads newline-delimited tag uids from a character
// device, typically a serial-attached rfid reader presenting as a tty.
// Uids are normalized with the TAG_ prefix before delivery.
type DeviceReader struct {
	f         *os.File
	tags      chan string
	closeOnce sync.Once
}

func NewDeviceReader(path string) (*DeviceReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening reader device %s: %w", path, err)
	}
	r := &DeviceReader{
		f:    f,
		tags: make(chan string, 8),
	}
	go r.run()
	logger.Info("tag reader device open", zap.String("device", path))
	return r, nil
}

func (r *DeviceReader) run() {
	scanner := bufio.NewScanner(r.f)
	for scanner.Scan() {
		tag := NormalizeTagID(scanner.Text())
		if tag == "" {
			continue
		}
		select {
		case r.tags <- tag:
		default:
			logger.Warn("dropping tag, queue full", zap.String("tag", tag))
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Error("tag reader device failed", zap.Error(err))
	}
}

func (r *DeviceReader) ReadTag() (string, error) {
	select {
	case tag := <-r.tags:
		return tag, nil
	default:
		return "", nil
	}
}

func (r *DeviceReader) Close() error {
	var err error
	r.closeOnce.Do(func() {
		err = r.f.Close()
	})
	return err
}
