package main

import (
	"bytes"
	"testing"
)

// cliOutput 收集一次测试中 run 写出的内容。
type cliOutput struct {
	stdout bytes.Buffer
	stderr bytes.Buffer
}

// captureOutput 把 stdOut/stdErr 指向内存缓冲，测试结束后恢复。
func captureOutput(t *testing.T) *cliOutput {
	t.Helper()
	out := &cliOutput{}
	prevOut, prevErr := stdOut, stdErr
	stdOut, stdErr = &out.stdout, &out.stderr
	t.Cleanup(func() {
		stdOut, stdErr = prevOut, prevErr
	})
	return out
}
