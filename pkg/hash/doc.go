// Package hash derives short, stable identifiers from filesystem paths.
//
// testbox tags images built from a local context as testbox-{hash}:latest, so
// rebuilding the same directory replaces the previous image instead of piling up
// new ones:
//
//	tag := "testbox-" + hash.PathHash("/workspace/api") + ":latest"
//
// The hash is the first 8 hex characters of MD5(path) after cleaning the path.
package hash
