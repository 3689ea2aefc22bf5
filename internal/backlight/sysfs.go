package backlight

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Sysfs stores brightness as a decimal integer in a file, typically
// /sys/class/backlight/<device>/brightness.
type Sysfs struct {
	path string
}

func NewSysfs(path string) *Sysfs {
	return &Sysfs{path: path}
}

func (s *Sysfs) Current() (int, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return 0, fmt.Errorf("unable to read brightness at %s: %w", s.path, err)
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("unable to parse brightness at %s: %w", s.path, err)
	}
	return v, nil
}

// Set overwrites the file. The file must already exist, as sysfs
// attributes always do.
func (s *Sysfs) Set(value int) error {
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return fmt.Errorf("unable to set brightness at %s: %w", s.path, err)
	}
	if _, err := f.WriteString(strconv.Itoa(value)); err != nil {
		f.Close()
		return fmt.Errorf("unable to set brightness at %s: %w", s.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("unable to set brightness at %s: %w", s.path, err)
	}
	return nil
}

func (s *Sysfs) Close() error {
	return nil
}

func (s *Sysfs) String() string {
	return "sysfs(" + s.path + ")"
}
