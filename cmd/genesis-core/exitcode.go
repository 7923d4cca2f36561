package main

import cerrors "github.com/genesis-core/genesis-core/internal/errors"

// exitCodeFor maps an error's kind to the CLI's non-zero exit code
// discipline: fatal config and fatal data are both unrecoverable,
// transient failures are distinguished for operators deciding whether
// to retry.
func exitCodeFor(err error) int {
	switch {
	case cerrors.IsKind(err, cerrors.KindFatalConfig):
		return 2
	case cerrors.IsKind(err, cerrors.KindFatalData):
		return 3
	case cerrors.IsKind(err, cerrors.KindTransient):
		return 4
	default:
		return 1
	}
}
