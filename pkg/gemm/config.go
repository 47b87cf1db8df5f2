// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gemm

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// EnvConfig is the environment variable read by ConfigFromEnv.
const EnvConfig = "GEMM_CONFIG"

// MaxRegisterBlock is the largest number of rows or columns of the output block a unit of the
// register-blocked kernel can hold in its private accumulators.
const MaxRegisterBlock = 8

// Config holds the tunable parameters of the kernels. They don't change the results.
type Config struct {
	// TileSize is the edge of the square tiles staged in the scratchpad by the shared-memory kernels.
	TileSize int

	// RegisterBlockRows and RegisterBlockCols are the shape of the output block computed by each unit
	// of the register-blocked kernel. TileSize must be divisible by both.
	RegisterBlockRows, RegisterBlockCols int

	// NaiveBlockSize is the edge of the square work-groups of the naive kernel.
	NaiveBlockSize int
}

// DefaultConfig returns the default kernel parameters: 16×16 tiles, 4×4 register blocks.
func DefaultConfig() Config {
	return Config{
		TileSize:          16,
		RegisterBlockRows: 4,
		RegisterBlockCols: 4,
		NaiveBlockSize:    16,
	}
}

// String implements fmt.Stringer, in the format accepted by ParseConfig.
func (c Config) String() string {
	return fmt.Sprintf("tile=%d,reg=%dx%d,naive_block=%d",
		c.TileSize, c.RegisterBlockRows, c.RegisterBlockCols, c.NaiveBlockSize)
}

// Validate the configuration. It returns ErrInvalidConfig if it is not valid.
//
// Whether the work-groups and scratchpad fit the device is only checked at launch time.
func (c Config) Validate() error {
	if c.TileSize < 1 || c.NaiveBlockSize < 1 {
		return errors.Wrapf(ErrInvalidConfig, "%s: tile and naive block sizes must be >= 1", c)
	}
	if c.RegisterBlockRows < 1 || c.RegisterBlockRows > MaxRegisterBlock ||
		c.RegisterBlockCols < 1 || c.RegisterBlockCols > MaxRegisterBlock {
		return errors.Wrapf(ErrInvalidConfig, "%s: register block dimensions must be between 1 and %d",
			c, MaxRegisterBlock)
	}
	if c.TileSize%c.RegisterBlockRows != 0 || c.TileSize%c.RegisterBlockCols != 0 {
		return errors.Wrapf(ErrInvalidConfig, "%s: tile size must be divisible by the register block dimensions", c)
	}
	return nil
}

// ParseConfig parses a comma-separated list of "key=value" options, applied over DefaultConfig:
//
//   - "tile=<int>": TileSize.
//   - "reg=<rows>x<cols>": RegisterBlockRows and RegisterBlockCols. E.g.: "reg=4x8".
//   - "reg_rows=<int>", "reg_cols=<int>": each register block dimension individually.
//   - "naive_block=<int>": NaiveBlockSize.
//
// The result is validated.
func ParseConfig(config string) (Config, error) {
	c := DefaultConfig()
	for _, part := range strings.Split(config, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, found := strings.Cut(part, "=")
		if !found {
			return c, errors.Wrapf(ErrInvalidConfig, "option %q is not in the form key=value", part)
		}
		var err error
		switch key {
		case "tile":
			c.TileSize, err = strconv.Atoi(value)
		case "reg":
			rows, cols, ok := strings.Cut(value, "x")
			if !ok {
				return c, errors.Wrapf(ErrInvalidConfig, "option %q: want <rows>x<cols>", part)
			}
			if c.RegisterBlockRows, err = strconv.Atoi(rows); err == nil {
				c.RegisterBlockCols, err = strconv.Atoi(cols)
			}
		case "reg_rows":
			c.RegisterBlockRows, err = strconv.Atoi(value)
		case "reg_cols":
			c.RegisterBlockCols, err = strconv.Atoi(value)
		case "naive_block":
			c.NaiveBlockSize, err = strconv.Atoi(value)
		default:
			return c, errors.Wrapf(ErrInvalidConfig, "unknown option %q", key)
		}
		if err != nil {
			return c, errors.Wrapf(ErrInvalidConfig, "option %q: %v", part, err)
		}
	}
	return c, c.Validate()
}

// ConfigFromEnv parses the configuration in the environment variable GEMM_CONFIG, or returns
// DefaultConfig if it is not set.
func ConfigFromEnv() (Config, error) {
	c, err := ParseConfig(os.Getenv(EnvConfig))
	if err != nil {
		return c, errors.WithMessagef(err, "parsing $%s", EnvConfig)
	}
	return c, nil
}
