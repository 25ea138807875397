// Package server hosts the Fiber HTTP service and request middleware chain
// for the thumbnail facade. It bootstraps Fiber, attaches recover and
// request-ID middlewares, and exposes router constructors that other packages
// (main, routes) can reuse. The adapter stays thin: status-code mapping and
// response headers live in routes, all semantics live in internal/media.
// Keep exports narrow and accept explicit dependencies.
package server
