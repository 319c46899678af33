// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package lower

import (
	internallower "github.com/born-ml/lower/internal/lower"
)

// Error is the structured translation failure.
type Error = internallower.Error

// ErrorKind classifies an Error.
type ErrorKind = internallower.ErrorKind

// Error kinds.
const (
	ShapeArityMismatch    = internallower.ShapeArityMismatch
	UnsupportedOperator   = internallower.UnsupportedOperator
	UnsupportedConstant   = internallower.UnsupportedConstant
	DuplicateRegistration = internallower.DuplicateRegistration
	MissingOperand        = internallower.MissingOperand
	MalformedGraph        = internallower.MalformedGraph
)

// Sentinels for errors.Is.
var (
	ErrShapeArityMismatch    = internallower.ErrShapeArityMismatch
	ErrUnsupportedOperator   = internallower.ErrUnsupportedOperator
	ErrUnsupportedConstant   = internallower.ErrUnsupportedConstant
	ErrDuplicateRegistration = internallower.ErrDuplicateRegistration
	ErrMissingOperand        = internallower.ErrMissingOperand
	ErrMalformedGraph        = internallower.ErrMalformedGraph
)

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return internallower.IsKind(err, kind)
}
