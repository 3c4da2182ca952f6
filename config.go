package semispace

import (
	"fmt"
	"io"
	"os"

	"github.com/inhies/go-bytesize"
	"gopkg.in/yaml.v2"

	"github.com/tinygc/semispace/internal/sysmem"
)

// ByteSize is a byte count that unmarshals from YAML either as a plain
// integer or as a human-readable string such as "64KB" or "8MB".
type ByteSize uint64

func (b *ByteSize) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var n uint64
	if err := unmarshal(&n); err == nil {
		*b = ByteSize(n)
		return nil
	}
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	v, err := bytesize.Parse(s)
	if err != nil {
		return err
	}
	*b = ByteSize(v)
	return nil
}

func (b ByteSize) String() string {
	return bytesize.New(float64(b)).String()
}

// Config carries the initialization parameters of a heap.
type Config struct {
	// HeapSize is the size of the whole semi-space mapping, both halves
	// together. It must be a power of two and at least two OS pages.
	HeapSize ByteSize `yaml:"heap-size"`

	// Trace receives one summary line per collection when non-nil.
	Trace io.Writer `yaml:"-"`

	// Audit checks that the reachable object set is preserved across
	// every collection. It walks the full graph twice per cycle, so it is
	// for debugging embedders, not production.
	Audit bool `yaml:"audit"`
}

// LoadConfig reads a YAML heap configuration from path.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// heapSize validates the configured size.
func (c Config) heapSize() (uintptr, error) {
	size := uintptr(c.HeapSize)
	if least := 2 * sysmem.PageSize(); size < least {
		return 0, fmt.Errorf("semispace: heap size %d below the minimum of %d", size, least)
	}
	if size&(size-1) != 0 {
		return 0, fmt.Errorf("semispace: heap size %d is not a power of two", size)
	}
	return size, nil
}
