package spec_test

import (
	"fmt"
	"time"

	"github.com/rickgorman/testbox/pkg/spec"
	"github.com/rickgorman/testbox/pkg/wait"
)

func ExampleNew() {
	s, err := spec.New("redis:7-alpine").
		WithExposedPorts(6379).
		WithCmd("redis-server", "--save", "").
		WithWaitStrategy(wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second)).
		Build()
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(s.Reference(), s.ExposedPorts)
	// Output: redis:7-alpine [6379]
}

func ExampleFromBuildContext() {
	s, err := spec.FromBuildContext("./testdata/api").
		WithBuildArg("VERSION", "1.2.3").
		WithExposedPorts(8080).
		WithHealthCheck(spec.HealthCheck{
			Test:     []string{"CMD", "wget", "-qO-", "http://localhost:8080/health"},
			Interval: time.Second,
			Retries:  30,
		}).
		WithWaitStrategy(wait.ForHealthCheck()).
		Build()
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(s.Reference())
	// Output: build:./testdata/api
}
