// Package router implements the compiled route table of the core.
//
// The table maps (method, pattern) pairs to registered values, where a
// pattern is a path template made of fixed segments and :name captures
// (for example /users/:id). Lookups resolve a concrete request path to
// the registered value plus the extracted path parameters.
//
// A bounded LRU cache sits in front of the general matcher and
// shortcuts repeated hits on the same concrete path. The cache is
// cleared whenever the route set changes, so cached results can never
// outlive the routes that produced them.
package router
