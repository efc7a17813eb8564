package interceptors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/glimte/svcbus-go/contracts"
	"github.com/glimte/svcbus-go/serialization"
)

// ErrMessageRejected is returned for rejected messages under RejectWithError
var ErrMessageRejected = errors.New("message rejected by filter")

// Filter decides whether a message reaches the handler
type Filter interface {
	Accept(ctx context.Context, msg contracts.Message) (bool, error)
}

// FilterFunc adapts a function to Filter
type FilterFunc func(ctx context.Context, msg contracts.Message) (bool, error)

// Accept implements Filter
func (f FilterFunc) Accept(ctx context.Context, msg contracts.Message) (bool, error) {
	return f(ctx, msg)
}

// RejectAction is what the filtering interceptor does with a rejected message.
// Only RejectWithError leaves the message unacknowledged.
type RejectAction int

const (
	RejectSilently RejectAction = iota
	RejectWithLog
	RejectWithError
)

// FilteringInterceptor stops messages rejected by a filter before they reach
// the handler
type FilteringInterceptor struct {
	filter Filter
	action RejectAction
	logger *slog.Logger
}

// NewFilteringInterceptor creates a filtering interceptor
func NewFilteringInterceptor(filter Filter, action RejectAction) *FilteringInterceptor {
	return &FilteringInterceptor{filter: filter, action: action, logger: slog.Default()}
}

// WithLogger sets the logger used by RejectWithLog
func (i *FilteringInterceptor) WithLogger(logger *slog.Logger) *FilteringInterceptor {
	i.logger = logger
	return i
}

// Intercept implements Interceptor
func (i *FilteringInterceptor) Intercept(ctx context.Context, msg contracts.Message, next MessageHandler) error {
	accepted, err := i.filter.Accept(ctx, msg)
	if err != nil {
		return fmt.Errorf("filter %s: %w", contracts.TypeName(msg), err)
	}
	if accepted {
		return next.Handle(ctx, msg)
	}

	switch i.action {
	case RejectWithError:
		return fmt.Errorf("%w: %s %s", ErrMessageRejected, contracts.TypeName(msg), msg.GetID())
	case RejectWithLog:
		i.logger.Info("message rejected", "typeName", contracts.TypeName(msg), "role", roleName(msg), "messageId", msg.GetID())
	}
	return nil
}

// Name implements Interceptor
func (i *FilteringInterceptor) Name() string {
	return "FilteringInterceptor"
}

func roleName(msg contracts.Message) string {
	for _, r := range contracts.Roles() {
		if r.Matches(msg) {
			return r.String()
		}
	}
	return "unknown"
}

// AllOf accepts a message when every filter does; the first error wins
func AllOf(filters ...Filter) Filter {
	return FilterFunc(func(ctx context.Context, msg contracts.Message) (bool, error) {
		for _, f := range filters {
			if ok, err := f.Accept(ctx, msg); err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	})
}

// AnyOf accepts a message when at least one filter does
func AnyOf(filters ...Filter) Filter {
	return FilterFunc(func(ctx context.Context, msg contracts.Message) (bool, error) {
		for _, f := range filters {
			ok, err := f.Accept(ctx, msg)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	})
}

// Not inverts a filter
func Not(filter Filter) Filter {
	return FilterFunc(func(ctx context.Context, msg contracts.Message) (bool, error) {
		ok, err := filter.Accept(ctx, msg)
		return !ok && err == nil, err
	})
}

// RoleFilter accepts messages playing one of roles
func RoleFilter(roles ...contracts.Role) Filter {
	return FilterFunc(func(_ context.Context, msg contracts.Message) (bool, error) {
		for _, r := range roles {
			if r.Matches(msg) {
				return true, nil
			}
		}
		return false, nil
	})
}

// TypeNameFilter accepts messages published under one of names
func TypeNameFilter(names ...string) Filter {
	allowed := make(map[string]struct{}, len(names))
	for _, n := range names {
		allowed[n] = struct{}{}
	}
	return FilterFunc(func(_ context.Context, msg contracts.Message) (bool, error) {
		_, ok := allowed[contracts.TypeName(msg)]
		return ok, nil
	})
}

// RegisteredTypeFilter accepts messages whose type name is registered from a
// package whose import path contains pkgFilter. Later registrations are seen.
func RegisteredTypeFilter(registry *serialization.TypeRegistry, pkgFilter string) Filter {
	return FilterFunc(func(_ context.Context, msg contracts.Message) (bool, error) {
		mt, ok := registry.Lookup(contracts.TypeName(msg))
		return ok && strings.Contains(mt.PkgPath, pkgFilter), nil
	})
}

// TargetServiceFilter accepts commands addressed to service, compared case
// insensitively. Commands without a target and other roles pass.
func TargetServiceFilter(service string) Filter {
	return FilterFunc(func(_ context.Context, msg contracts.Message) (bool, error) {
		cmd, ok := msg.(contracts.Command)
		if !ok || cmd.GetTargetService() == "" {
			return true, nil
		}
		return strings.EqualFold(cmd.GetTargetService(), service), nil
	})
}

// When applies interceptor only to messages accepted by filter; the others
// go straight to the next handler
func When(filter Filter, interceptor Interceptor) Interceptor {
	return NewInterceptorFunc(fmt.Sprintf("When[%s]", interceptor.Name()), func(ctx context.Context, msg contracts.Message, next MessageHandler) error {
		ok, err := filter.Accept(ctx, msg)
		if err != nil {
			return err
		}
		if ok {
			return interceptor.Intercept(ctx, msg, next)
		}
		return next.Handle(ctx, msg)
	})
}
