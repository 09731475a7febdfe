package redis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/wordsync/internal/model"
)

var domainErrors = []error{
	model.ErrDocumentNotFound,
	model.ErrDocumentExists,
	model.ErrInsufficientCurrency,
	model.ErrMalformedDocument,
	model.ErrInvalidField,
	model.ErrInvalidUnit,
	model.ErrTransientNetwork,
	model.ErrPermissionDenied,
}

// classify maps driver errors onto the gateway error taxonomy
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	if errors.Is(err, redis.Nil) {
		return model.ErrDocumentNotFound
	}

	var redisErr redis.Error
	if errors.As(err, &redisErr) {
		msg := redisErr.Error()
		for _, prefix := range []string{"NOPERM", "NOAUTH", "WRONGPASS"} {
			if strings.HasPrefix(msg, prefix) {
				return fmt.Errorf("%w: %s", model.ErrPermissionDenied, msg)
			}
		}
	}

	var netErr net.Error
	switch {
	case errors.As(err, &netErr),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, redis.ErrClosed),
		errors.Is(err, redis.TxFailedErr):
		return fmt.Errorf("%w: %v", model.ErrTransientNetwork, err)
	}
	return err
}
