package main

import "fmt"

var (
	gitSHA1   string = "unknown"
	gitDirty  string = "unknown"
	buildID   string = "unknown"
	buildDate string = "unknown"
)

func versionString() string {
	return fmt.Sprintf("go-coro-httpd sha=%s dirty=%s build=%s date=%s", gitSHA1, gitDirty, buildID, buildDate)
}
