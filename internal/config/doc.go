// Package config loads testbox.yaml fixture files.
//
// A fixture file lists the containers a project needs for its tests:
//
//	containers:
//	  - name: cache
//	    image: redis:7-alpine
//	    ports: [6379]
//	    wait: {strategy: log, pattern: "Ready to accept connections"}
//
// Relative paths (env_file, mounts, build.context) resolve against the directory
// holding the file. Without an explicit path the file is looked up at the root of
// the git repository containing the working directory.
package config
