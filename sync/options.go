// Copyright 2016 Aleksandr Demakin. All rights reserved.

package sync

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type options struct {
	log *zap.Logger
	reg prometheus.Registerer
}

// Option configures optional dependencies of synchronization objects.
type Option func(*options)

// WithLogger sets a logger for the object.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithRegisterer sets a prometheus registerer, where object's metrics are registered.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.reg = reg
	}
}

func makeOptions(opts []Option) options {
	var result options
	for _, opt := range opts {
		opt(&result)
	}
	if result.log == nil {
		result.log = zap.NewNop()
	}
	return result
}
