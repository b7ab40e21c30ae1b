//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/ooni/probe-cli/blob/v3.20.0/internal/x/dslx/fxasync.go
// Adapted from: https://github.com/ooni/probe-cli/blob/v3.20.0/internal/x/dslx/fxcore.go
// Adapted from: https://github.com/ooni/probe-cli/blob/v3.20.0/internal/x/dslx/fxstream.go
//

package transport

import "context"

// compose2 chains two [Func] instances together into a pipeline.
//
// The output of op1 becomes the input to op2. If op1 returns an error,
// op2 is not called and the error is returned immediately.
func compose2[A, B, C any](op1 Func[A, B], op2 Func[B, C]) Func[A, C] {
	return &composed2[A, B, C]{op1, op2}
}

type composed2[A, B, C any] struct {
	op1 Func[A, B]
	op2 Func[B, C]
}

func (c *composed2[A, B, C]) Call(ctx context.Context, input A) (C, error) {
	res, err := c.op1.Call(ctx, input)
	if err != nil {
		var zero C
		return zero, err
	}
	return c.op2.Call(ctx, res)
}

// Compose5 chains the resolve -> connect -> cancel-watch -> observe -> plain
// HTTP connection stages of the phase-accurate probe pipeline (the
// non-TLS case) into a single [Func].
func Compose5[A, B, C, D, E, F any](op1 Func[A, B], op2 Func[B, C], op3 Func[C, D], op4 Func[D, E], op5 Func[E, F]) Func[A, F] {
	return compose2(op1, compose2(op2, compose2(op3, compose2(op4, op5))))
}

// Compose6 chains the same stages as [Compose5] plus a TLS handshake stage,
// for the TLS case of the phase-accurate probe pipeline.
func Compose6[A, B, C, D, E, F, G any](
	op1 Func[A, B], op2 Func[B, C], op3 Func[C, D], op4 Func[D, E], op5 Func[E, F], op6 Func[F, G]) Func[A, G] {
	return compose2(op1, Compose5(op2, op3, op4, op5, op6))
}

// ConstFunc returns a [Func] that always returns the given value.
//
// This lifts a pure value into the [Func] world, creating a [Func[Unit, B]]
// that ignores its input and returns the constant value. Used by
// [NewEndpointFunc] to inject the already-resolved address into the
// pipeline's first stage.
func ConstFunc[B any](value B) Func[Unit, B] {
	return &constFunc[B]{value}
}

type constFunc[B any] struct {
	value B
}

func (c *constFunc[B]) Call(ctx context.Context, _ Unit) (B, error) {
	return c.value, nil
}
