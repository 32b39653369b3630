//go:build !unix

package main

import (
	"context"

	"github.com/c0deZ3R0/fieldsync/logging"
)

func handleLevelSignals(context.Context, *logging.DynamicLevelVar, *logging.Logger) func() {
	return func() {}
}
