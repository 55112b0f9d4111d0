// Package spec describes the container a test fixture needs.
//
// A Spec is built through a Builder and frozen by Build: the returned value holds its
// own copies of every slice and map, so later calls on the builder never reach a
// container that is already running.
//
// Basic usage:
//
//	s, err := spec.New("redis:7-alpine").
//	    WithExposedPorts(6379).
//	    WithWaitStrategy(wait.ForLog("Ready to accept connections")).
//	    Build()
//
// Images can also be built from a directory or a git repository:
//
//	s, err := spec.FromBuildContext("./testdata/api").
//	    WithBuildArg("VERSION", "1.2.3").
//	    WithExposedPorts(8080).
//	    Build()
//
// Without a wait strategy, a container with exposed ports waits for all of them to
// accept connections and a container without ports is ready as soon as it runs.
package spec
