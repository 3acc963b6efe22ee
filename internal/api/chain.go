package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
)

// Strategy is one way of performing a request.
type Strategy interface {
	Name() string
	Do(ctx context.Context, req Request, out any) error
}

type endpoint struct {
	client *Client
	name   string
	prefix string
	strict bool
}

// Primary issues requests as-is and treats any non-2xx status as failure.
func Primary(c *Client) Strategy {
	return &endpoint{client: c, name: "primary", strict: true}
}

// Legacy issues requests under prefix (empty for the same path) and decodes
// whatever body comes back, matching the pre-batch endpoints.
func Legacy(c *Client, prefix string) Strategy {
	return &endpoint{client: c, name: "legacy", prefix: strings.Trim(prefix, "/")}
}

func (e *endpoint) Name() string { return e.name }

func (e *endpoint) Do(ctx context.Context, req Request, out any) error {
	if e.prefix != "" {
		req.Path = e.prefix + "/" + strings.TrimLeft(req.Path, "/")
	}
	return e.client.Do(ctx, req, e.strict, out)
}

// Chain tries its strategies in order until one succeeds. Any error from an
// earlier strategy triggers the next one, except ErrUnauthorized and context
// cancellation which end the chain.
type Chain struct {
	strategies []Strategy
	logger     *slog.Logger
}

func NewChain(logger *slog.Logger, strategies ...Strategy) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{strategies: strategies, logger: logger}
}

func (ch *Chain) Do(ctx context.Context, req Request, out any) error {
	if len(ch.strategies) == 0 {
		return errors.New("api: empty strategy chain")
	}

	var errs []error
	for i, s := range ch.strategies {
		if i > 0 {
			resetValue(out)
		}
		err := s.Do(ctx, req, out)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrUnauthorized) || ctx.Err() != nil {
			return err
		}
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		if i < len(ch.strategies)-1 {
			ch.logger.Info("falling back to next API strategy",
				"path", req.Path,
				"from", s.Name(),
				"to", ch.strategies[i+1].Name(),
				"error", err,
			)
		}
	}
	return errors.Join(errs...)
}

// resetValue zeroes *out so a failed attempt cannot leak fields into the
// next one.
func resetValue(out any) {
	v := reflect.ValueOf(out)
	if v.Kind() == reflect.Pointer && !v.IsNil() {
		v.Elem().Set(reflect.Zero(v.Elem().Type()))
	}
}
