// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gemm

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Algorithm selects the kernel used to compute the matrix multiplication.
//
// It doesn't change the result (up to floating point summation order), only the execution path
// and performance.
//
//go:generate go tool enumer -type=Algorithm -trimprefix=Algorithm -transform=snake -json -yaml -text -output=gen_algorithm_enumer.go
type Algorithm int

const (
	// AlgorithmNaive computes one output element per unit, reading the operands from global memory.
	AlgorithmNaive Algorithm = iota

	// AlgorithmShared stages Tile×Tile tiles of A and B in the work-group scratchpad.
	AlgorithmShared

	// AlgorithmSharedRegister stages tiles like AlgorithmShared, and each unit computes a
	// RegisterBlockRows×RegisterBlockCols block of outputs held in private accumulators.
	AlgorithmSharedRegister
)

// ParseAlgorithm converts the name (e.g. "shared_register") or the integer value (e.g. "2") of an
// Algorithm. It returns ErrUnsupportedAlgorithm for anything else.
func ParseAlgorithm(s string) (Algorithm, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.Atoi(s); err == nil {
		alg := Algorithm(v)
		if !alg.IsAAlgorithm() {
			return alg, errors.Wrapf(ErrUnsupportedAlgorithm, "algorithm value %d", v)
		}
		return alg, nil
	}
	alg, err := AlgorithmString(s)
	if err != nil {
		return alg, errors.Wrapf(ErrUnsupportedAlgorithm, "algorithm %q, valid values are %q", s, AlgorithmStrings())
	}
	return alg, nil
}
