package middleware

// Chain composes middlewares so that the first one is the outermost.
func Chain[T any](middlewares ...func(T) T) func(T) T {
	return func(handler T) T {
		for i := len(middlewares) - 1; i >= 0; i-- {
			handler = middlewares[i](handler)
		}
		return handler
	}
}
