//go:build !unix

package main

import (
	"context"
	"errors"
	"io"
)

func servePipe(context.Context, string, func(context.Context, io.Reader) error) error {
	return errors.New("named pipes are not supported on this platform")
}
