// Package interceptors wraps message handlers in a chain of cross-cutting
// steps such as logging, panic recovery, filtering, timeouts, retries and
// circuit breaking.
//
//	chain := interceptors.NewInterceptorChain(logger).
//		Add(interceptors.NewRecoveryInterceptor()).
//		Add(interceptors.NewLoggingInterceptor(logger)).
//		Add(interceptors.NewRetryInterceptor(policy))
//
//	sub, err := endpoint.Commands().Subscribe(ctx, interceptors.Wrap(chain, handleCommand))
package interceptors
