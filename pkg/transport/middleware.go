package transport

// Middleware decorates a MessageCreator.
type Middleware func(MessageCreator) MessageCreator

// Chain composes middleware so that Chain(a, b)(h) behaves as a(b(h)): the
// first middleware sees the request first.
func Chain(middlewares ...Middleware) Middleware {
	return func(next MessageCreator) MessageCreator {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
